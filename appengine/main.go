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

// This binary serves the score query API on App Engine from the bucket named
// by SCORE_BUCKET.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/iossifovlab/scoreget/analytics"
	"github.com/iossifovlab/scoreget/api"
	"github.com/iossifovlab/scoreget/source/gcs"
	"google.golang.org/appengine"
)

func init() {
	bucket := os.Getenv("SCORE_BUCKET")
	if bucket == "" {
		log.Fatalf("SCORE_BUCKET is not set")
	}
	opener, err := gcs.NewDefaultOpener(context.Background(), bucket)
	if err != nil {
		log.Fatalf("Failed to open bucket %s: %v", bucket, err)
	}

	server := api.NewServer(opener)
	if list := os.Getenv("SCORE_WHITELIST"); list != "" {
		server.Whitelist(strings.Split(list, ","))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	server.Export(router)

	handler := http.Handler(router)
	if property := os.Getenv("ANALYTICS_PROPERTY"); property != "" {
		client := analytics.NewClient(property, uuid.New().String())
		handler = analytics.TrackingHandler(handler, client.Sender(log.Printf))
	}
	http.Handle("/", handler)
}

func main() {
	appengine.Main()
}
