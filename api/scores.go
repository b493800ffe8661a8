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

package api

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iossifovlab/scoreget/analytics"
	"github.com/iossifovlab/scoreget/genomics"
	"github.com/iossifovlab/scoreget/score"
	"github.com/moznion/go-optional"
)

type columnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type metadataResponse struct {
	ID           string       `json:"id"`
	Scores       []string     `json:"scores"`
	Columns      []columnInfo `json:"columns"`
	Contigs      []string     `json:"contigs"`
	NoScoreValue *string      `json:"noScoreValue"`
}

type valuesResponse struct {
	ID     string               `json:"id"`
	Region string               `json:"region"`
	Path   string               `json:"path"`
	Names  []string             `json:"names"`
	Count  []int                `json:"count"`
	Values map[string][]*string `json:"values"`
}

type highestResponse struct {
	ID      string              `json:"id"`
	Region  string              `json:"region"`
	Highest map[string]*float64 `json:"highest"`
}

func (server *Server) serveList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scores": server.IDs()})
}

// open resolves the ID of a request and takes a score file for it.  On
// failure it writes the error response and returns nil.
func (server *Server) open(c *gin.Context) (string, *score.ScoreFile) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, newInvalidInputError("parsing score file ID", err))
		return "", nil
	}

	if err := server.checkWhitelist(id); err != nil {
		writeError(c, newPermissionDeniedError("checking whitelist", err))
		return "", nil
	}

	sf, err := server.acquire(c.Request.Context(), id)
	if err != nil {
		writeError(c, newStorageError("opening score file", err))
		return "", nil
	}
	return id, sf
}

func (server *Server) serveMetadata(c *gin.Context) {
	id, sf := server.open(c)
	if sf == nil {
		return
	}
	defer server.release(id, sf)

	var columns []columnInfo
	for _, column := range sf.Schema().Columns {
		columns = append(columns, columnInfo{column.Name, column.Type})
	}
	c.JSON(http.StatusOK, metadataResponse{
		ID:           id,
		Scores:       sf.ScoreNames(),
		Columns:      columns,
		Contigs:      sf.Contigs(),
		NoScoreValue: stringPointer(sf.NoScoreValue()),
	})
}

// queryRegion parses and checks the query region, writing the error
// response on failure.
func queryRegion(c *gin.Context) (genomics.Region, bool) {
	region, err := parseRegion(c)
	if err != nil {
		writeError(c, newInvalidInputError("parsing region", err))
		return genomics.Region{}, false
	}
	if _, end := region.Bounds(); end < region.Start {
		writeError(c, newInvalidRangeError(fmt.Errorf("%s: start > end", region)))
		return genomics.Region{}, false
	}
	return region, true
}

func (server *Server) serveValues(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Scores", "Values Request Received", "", nil))

	region, ok := queryRegion(c)
	if !ok {
		return
	}
	id, sf := server.open(c)
	if sf == nil {
		return
	}
	defer server.release(id, sf)

	begin, end := region.Bounds()
	scores, err := sf.FetchScores(region.Chrom, begin, end)
	if err != nil {
		track(analytics.Event("Scores", "Values Internal Error", "", nil))
		writeError(c, fmt.Errorf("fetching scores: %v", err))
		return
	}
	path := sf.Stats().Last.String()
	track(analytics.Event("Scores", "Access Path", path, nil))

	response := valuesResponse{
		ID:     id,
		Region: region.String(),
		Path:   path,
		Names:  scores.Names,
		Count:  scores.Count,
		Values: make(map[string][]*string, len(scores.Columns)),
	}
	if response.Count == nil {
		response.Count = []int{}
	}
	for name, column := range scores.Columns {
		values := make([]*string, len(column))
		for i, value := range column {
			values[i] = stringPointer(value)
		}
		response.Values[name] = values
	}
	c.JSON(http.StatusOK, response)

	count := int64(scores.Len())
	track(analytics.Event("Scores", "Values Response Record Count", "", &count))
	track(analytics.Event("Scores", "Values Response Sent", "", nil))
}

func (server *Server) serveHighest(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("Scores", "Highest Request Received", "", nil))

	region, ok := queryRegion(c)
	if !ok {
		return
	}
	id, sf := server.open(c)
	if sf == nil {
		return
	}
	defer server.release(id, sf)

	begin, end := region.Bounds()
	highest, err := sf.FetchHighestScores(region.Chrom, begin, end)
	if err != nil {
		track(analytics.Event("Scores", "Highest Internal Error", "", nil))
		writeError(c, fmt.Errorf("fetching highest scores: %v", err))
		return
	}

	response := highestResponse{
		ID:      id,
		Region:  region.String(),
		Highest: make(map[string]*float64, len(highest)),
	}
	for name, value := range highest {
		// JSON has no NaN.
		if math.IsNaN(value) {
			response.Highest[name] = nil
			continue
		}
		value := value
		response.Highest[name] = &value
	}
	c.JSON(http.StatusOK, response)
	track(analytics.Event("Scores", "Highest Response Sent", "", nil))
}

func stringPointer(value optional.Option[string]) *string {
	if v, err := value.Take(); err == nil {
		return &v
	}
	return nil
}
