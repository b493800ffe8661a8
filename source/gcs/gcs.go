// Copyright 2019 Google Inc.
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

// Package gcs serves score files stored in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/iossifovlab/scoreget/source"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Opener opens objects of one bucket.
type Opener struct {
	bucket *storage.BucketHandle
	close  func() error
}

var (
	defaultStorageClient           *storage.Client
	defaultStorageClientError      error
	initializeDefaultStorageClient sync.Once
)

// NewDefaultOpener returns an Opener that uses the application default
// credentials.  The storage client is shared by all default Openers.
func NewDefaultOpener(ctx context.Context, bucket string) (*Opener, error) {
	initializeDefaultStorageClient.Do(func() {
		defaultStorageClient, defaultStorageClientError = storage.NewClient(ctx)
	})
	if defaultStorageClientError != nil {
		return nil, fmt.Errorf("creating default storage client: %v", defaultStorageClientError)
	}
	return &Opener{bucket: defaultStorageClient.Bucket(bucket)}, nil
}

// NewOpener returns an Opener with its own storage client created with opts.
// The client is released by Close.
func NewOpener(ctx context.Context, bucket string, opts ...option.ClientOption) (*Opener, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %v", err)
	}
	return &Opener{bucket: client.Bucket(bucket), close: client.Close}, nil
}

// NewPublicOpener returns an Opener that does not use any form of client
// authorization.  It can only be used to read publicly-readable objects.
func NewPublicOpener(ctx context.Context, bucket string) (*Opener, error) {
	return NewOpener(ctx, bucket, option.WithHTTPClient(http.DefaultClient))
}

// WithBearerToken returns a client option that authenticates requests with
// an OAuth2 access token.  The token may carry a "Bearer " prefix, as found
// in Authorization headers.
func WithBearerToken(token string) option.ClientOption {
	token = strings.TrimPrefix(token, "Bearer ")
	return option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
		TokenType:   "Bearer",
		AccessToken: token,
	}))
}

// Close releases the storage client owned by the Opener, if any.
func (o *Opener) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Open returns the named object.  Reads are served with ranged requests
// made with ctx.
func (o *Opener) Open(ctx context.Context, name string) (source.Object, error) {
	handle := o.bucket.Object(name)
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return nil, storageError(fmt.Sprintf("reading attributes of %s", name), err)
	}

	read := func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		r, err := handle.NewRangeReader(ctx, offset, length)
		if err != nil {
			return nil, storageError(fmt.Sprintf("reading %s", name), err)
		}
		return r, nil
	}
	return source.NewRangeObject(ctx, read, attrs.Size, nil), nil
}

// Exists reports whether the named object exists.
func (o *Opener) Exists(ctx context.Context, name string) (bool, error) {
	_, err := o.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storageError(fmt.Sprintf("checking %s", name), err)
	}
	return true, nil
}

func storageError(context string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", context, source.ErrNotExist)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %v", context, source.ErrUnauthenticated, err)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", context, source.ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", context, source.ErrNotExist, err)
		}
	}
	return fmt.Errorf("%s: %v", context, err)
}
