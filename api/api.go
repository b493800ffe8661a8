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

// Package api implements an HTTP query API over positional score files.
//
// Score files are addressed by ID, the name of the data file relative to the
// source the server reads from.  The endpoints are:
//
//	GET /scores                  IDs currently served
//	GET /scores/:id              score names and contigs of a file
//	GET /scores/:id/values       scores of the records overlapping a region
//	GET /scores/:id/highest      largest score of each column in a region
//
// Regions are given either as referenceName, start and end parameters
// (one-based, inclusive) or as a single region parameter (chrom:begin-end).
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/iossifovlab/scoreget/genomics"
	"github.com/iossifovlab/scoreget/score"
	"github.com/iossifovlab/scoreget/source"
)

const (
	scoresPath = "/scores"

	// RequestIDHeader carries the identifier of a request in both directions.
	RequestIDHeader = "X-Request-Id"

	defaultIdleFiles = 4
	catalogDegree    = 8
)

var (
	errInvalidOrUnspecifiedID = errors.New("invalid or unspecified ID")
	errMissingReferenceName   = errors.New("no reference name specified")
	errMissingStart           = errors.New("no start specified")
)

// Server provides the score query API.  Must be created with NewServer.
type Server struct {
	opener    source.Opener
	options   []score.Option
	whitelist *btree.BTreeG[string]
	idle      int

	mu     sync.Mutex
	pools  map[string]*pool
	opened *btree.BTreeG[string]
}

// NewServer returns a new Server that opens score files through opener with
// the given options.
func NewServer(opener source.Opener, opts ...score.Option) *Server {
	return &Server{
		opener:    opener,
		options:   opts,
		whitelist: btree.NewOrderedG[string](catalogDegree),
		idle:      defaultIdleFiles,
		pools:     make(map[string]*pool),
		opened:    btree.NewOrderedG[string](catalogDegree),
	}
}

// Whitelist adds IDs to the set of score files which the server is allowed
// to serve.  If Whitelist is never called for a given Server then any file
// the opener can reach is served.
func (server *Server) Whitelist(ids []string) {
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			server.whitelist.ReplaceOrInsert(id)
		}
	}
}

// SetIdleFiles bounds the number of open score files kept per ID between
// requests.
func (server *Server) SetIdleFiles(n int) {
	server.idle = n
}

// Export registers the API endpoints with router.
func (server *Server) Export(router gin.IRoutes) {
	router.Use(requestID(), forwardOrigin())
	router.GET(scoresPath, server.serveList)
	router.GET(scoresPath+"/:id", server.serveMetadata)
	router.GET(scoresPath+"/:id/values", server.serveValues)
	router.GET(scoresPath+"/:id/highest", server.serveHighest)
}

// IDs returns the whitelisted IDs together with those that have been opened,
// sorted.
func (server *Server) IDs() []string {
	server.mu.Lock()
	ids := server.opened.Clone()
	server.mu.Unlock()

	server.whitelist.Ascend(func(id string) bool {
		ids.ReplaceOrInsert(id)
		return true
	})
	out := make([]string, 0, ids.Len())
	ids.Ascend(func(id string) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Close closes the idle score files of every ID.
func (server *Server) Close() error {
	server.mu.Lock()
	defer server.mu.Unlock()

	var errs []error
	for id, p := range server.pools {
		if err := p.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %v", id, err))
		}
	}
	server.pools = make(map[string]*pool)
	server.opened.Clear(false)
	return errors.Join(errs...)
}

func (server *Server) checkWhitelist(id string) error {
	if server.whitelist.Len() == 0 || server.whitelist.Has(id) {
		return nil
	}
	return fmt.Errorf("access to score file %s is not allowed", id)
}

func parseID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", errInvalidOrUnspecifiedID
	}
	return id, nil
}

// parseRegion reads the query region.  A region parameter without an end
// runs to the end of the chromosome; an unset end parameter defaults to the
// start.
func parseRegion(c *gin.Context) (genomics.Region, error) {
	if value := c.Query("region"); value != "" {
		return genomics.ParseRegion(value)
	}

	var (
		name  = c.Query("referenceName")
		start = c.Query("start")
		end   = c.Query("end")
	)
	if name == "" {
		return genomics.Region{}, errMissingReferenceName
	}
	if start == "" {
		return genomics.Region{}, errMissingStart
	}

	region := genomics.Region{Chrom: name}
	n, err := strconv.ParseUint(start, 10, 32)
	if err != nil {
		return genomics.Region{}, fmt.Errorf("parsing start: %v", err)
	}
	if n == 0 {
		return genomics.Region{}, errors.New("start must be positive")
	}
	region.Start, region.End = int(n), int(n)

	if end != "" {
		n, err := strconv.ParseUint(end, 10, 32)
		if err != nil {
			return genomics.Region{}, fmt.Errorf("parsing end: %v", err)
		}
		region.End = int(n)
	}
	return region, nil
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func newApiError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %v", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newApiError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newApiError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

func newPermissionDeniedError(context string, err error) error {
	return newApiError("PermissionDenied", http.StatusForbidden, context, err)
}

func newUnsupportedFormatError(context string, err error) error {
	return newApiError("UnsupportedFormat", http.StatusBadRequest, context, err)
}

func newNotFoundError(context string, err error) error {
	return newApiError("NotFound", http.StatusNotFound, context, err)
}

// newStorageError maps the errors of opening a score file to API errors.
func newStorageError(context string, err error) error {
	switch {
	case errors.Is(err, source.ErrNotExist):
		return newNotFoundError(context, err)
	case errors.Is(err, source.ErrPermissionDenied):
		return newPermissionDeniedError(context, err)
	case errors.Is(err, source.ErrUnauthenticated):
		return newInvalidAuthenticationError(context, err)
	case errors.Is(err, score.ErrConfig):
		return newUnsupportedFormatError(context, err)
	}
	return fmt.Errorf("%s: %v", context, err)
}

// writeError writes either a JSON object or bare HTTP error describing err.
// A JSON object is written only when the error has a name and code defined by
// the API.
func writeError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.code, gin.H{
			"error":   apiErr.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(apiErr.code), apiErr.cause),
		})
		return
	}

	code := http.StatusInternalServerError
	c.Abort()
	c.String(code, "%s: %v", http.StatusText(code), err)
}

// requestID propagates the request ID of the caller, or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func forwardOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Next()
	}
}
