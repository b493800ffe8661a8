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

// This binary queries a score file, either directly (local or in GCS, with
// Google authentication) or through a score server.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/fulldump/goconfig"
	"github.com/iossifovlab/scoreget/configuration"
	"github.com/iossifovlab/scoreget/genomics"
	"github.com/iossifovlab/scoreget/score"
	"github.com/iossifovlab/scoreget/source"
	"github.com/iossifovlab/scoreget/source/gcs"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

var VERSION = "dev"

const (
	scope = "https://www.googleapis.com/auth/devstorage.read_only"
)

func main() {
	c := configuration.DefaultQuery()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", VERSION)
		return
	}
	if err := c.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	stop, err := configuration.StartProfile(c.Profile)
	if err != nil {
		log.Fatalf("Failed to start profile: %v", err)
	}
	defer stop()

	region, err := genomics.ParseRegion(c.Region)
	if err != nil {
		log.Fatalf("Failed to parse region: %v", err)
	}

	ctx := context.Background()

	// For compatibility with other tools, read the standard cURL certificate
	// authority override from the environment.
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := os.ReadFile(bundle)
		if err != nil {
			log.Fatalf("Failed to read CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			log.Fatalf("Failed to initialize system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatalf("Failed to add certificates from bundle %q", bundle)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		})
		log.Printf("Using CA override bundle from %q", bundle)
	}

	if c.Server != "" {
		if err := queryServer(ctx, httpClient(ctx, c.Token), c.Server, c.File, region, c.Highest, os.Stdout); err != nil {
			log.Fatalf("Query failed: %v", err)
		}
		return
	}

	opener, err := newOpener(ctx, &c)
	if err != nil {
		log.Fatalf("Failed to open score source: %v", err)
	}

	var opts []score.Option
	if c.Config != "" {
		opts = append(opts, score.WithConfigPath(c.Config))
	}
	sf, err := score.OpenFrom(ctx, opener, c.File, opts...)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", c.File, err)
	}
	defer sf.Close()

	if err := queryFile(sf, region, c.Highest, os.Stdout); err != nil {
		log.Fatalf("Query failed: %v", err)
	}
}

// httpClient returns the client for score server requests: a bearer token
// client when token is set, otherwise the client carried by ctx.
func httpClient(ctx context.Context, token string) *http.Client {
	if token != "" {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   "Bearer",
			AccessToken: token,
		}))
	}
	if client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		return client
	}
	return http.DefaultClient
}

func newOpener(ctx context.Context, c *configuration.Query) (source.Opener, error) {
	switch {
	case c.Bucket == "":
		return source.FileOpener{}, nil
	case c.Public:
		return gcs.NewPublicOpener(ctx, c.Bucket)
	case c.Token != "":
		return gcs.NewOpener(ctx, c.Bucket, gcs.WithBearerToken(c.Token))
	}

	tokens, err := google.DefaultTokenSource(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("finding default credentials: %v", err)
	}
	return gcs.NewOpener(ctx, c.Bucket, option.WithTokenSource(tokens))
}
