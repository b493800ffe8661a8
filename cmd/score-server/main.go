// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This binary provides a score query server over score files in a local
// directory or a GCS bucket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulldump/goconfig"
	"github.com/gin-gonic/gin"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
	"github.com/iossifovlab/scoreget/analytics"
	"github.com/iossifovlab/scoreget/api"
	"github.com/iossifovlab/scoreget/configuration"
	"github.com/iossifovlab/scoreget/source"
	"github.com/iossifovlab/scoreget/source/gcs"
)

var VERSION = "dev"

const analyticsProperty = "UA-103022118-1"

func main() {
	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", VERSION)
		return
	}

	if c.ShowConfig {
		if err := json.MarshalWrite(os.Stdout, c, jsontext.WithIndent("    ")); err != nil {
			log.Fatalf("Failed to print config: %v", err)
		}
		fmt.Println()
	}

	if err := c.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	stop, err := configuration.StartProfile(c.Profile)
	if err != nil {
		log.Fatalf("Failed to start profile: %v", err)
	}
	defer stop()

	ctx := context.Background()
	opener, closeOpener, err := newOpener(ctx, &c)
	if err != nil {
		log.Fatalf("Failed to open score source: %v", err)
	}
	defer closeOpener()

	server := api.NewServer(opener, c.ScoreOptions()...)
	server.SetIdleFiles(c.IdleFiles)
	if ids := c.IDs(); len(ids) > 0 {
		server.Whitelist(ids)
	}
	defer server.Close()

	router := gin.Default()
	if c.TrackUsage {
		log.Printf("Enabling anonymous usage tracking")

		client := analytics.NewClient(analyticsProperty, uuid.New().String())
		router.Use(analytics.Middleware(client.Sender(log.Printf)))
	}
	server.Export(router)

	s := &http.Server{
		Addr:    c.HttpAddr,
		Handler: router,
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signals
		log.Printf("Signal received: %v", sig)
		s.Shutdown(context.Background())
	}()

	log.Printf("Listening on %s", c.HttpAddr)
	if c.HttpsCert != "" {
		err = s.ListenAndServeTLS(c.HttpsCert, c.HttpsKey)
	} else {
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("HTTP server returned an error: %v", err)
	}
}

// newOpener returns the source named by c and a function releasing it.
func newOpener(ctx context.Context, c *configuration.Server) (source.Opener, func(), error) {
	if c.Bucket == "" {
		log.Printf("Serving score files from %s", c.Dir)
		return source.FileOpener{Root: c.Dir}, func() {}, nil
	}

	newOpener := gcs.NewDefaultOpener
	if c.Public {
		newOpener = gcs.NewPublicOpener
	}
	opener, err := newOpener(ctx, c.Bucket)
	if err != nil {
		return nil, nil, fmt.Errorf("opening bucket %s: %v", c.Bucket, err)
	}
	log.Printf("Serving score files from gs://%s", c.Bucket)
	return opener, func() { opener.Close() }, nil
}
