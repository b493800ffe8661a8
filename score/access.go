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

package score

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/iossifovlab/scoreget/source"
)

// Format selects the storage backend of a score file.
type Format int

// Supported formats.
const (
	// FormatTabix covers bgzip-compressed tables with a tabix or CSI index
	// ("tsv" and "bedgraph").
	FormatTabix Format = iota
	// FormatBigWig covers dense BigWig tracks ("bigwig" and "bw").
	FormatBigWig
)

func (f Format) String() string {
	switch f {
	case FormatTabix:
		return "tabix"
	case FormatBigWig:
		return "bigwig"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps the misc.format value of a config to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "tsv", "bedgraph":
		return FormatTabix, nil
	case "bigwig", "bw":
		return FormatBigWig, nil
	}
	return 0, fmt.Errorf("%w: unknown format %q", ErrConfig, name)
}

// Path identifies how a query was answered.
type Path int

// Access paths.
const (
	PathNone Path = iota
	PathSequential
	PathDirect
)

func (p Path) String() string {
	switch p {
	case PathSequential:
		return "sequential"
	case PathDirect:
		return "direct"
	}
	return "none"
}

// Stats counts the queries answered by a RangeAccessor.
type Stats struct {
	Sequential int
	Direct     int
	// Resets counts repositionings of the sequential cursor.
	Resets int
	// Last is the path taken by the most recent Fetch.
	Last Path
}

// RangeAccessor returns the records of a score file that overlap one-based,
// inclusive ranges.  Implementations keep per-query state and are not safe
// for concurrent use.
type RangeAccessor interface {
	// Fetch returns the records overlapping chrom:[begin, end], choosing the
	// cheapest way to read them from the previous queries.
	Fetch(chrom string, begin, end int) ([]*Record, error)
	// FetchDirect answers the query with a stateless indexed lookup.
	FetchDirect(chrom string, begin, end int) ([]*Record, error)
	Stats() Stats
	Close() error
}

// BackendConfig is passed to a Backend to open a score file.
type BackendConfig struct {
	Opener source.Opener
	Path   string
	// NewRecord builds records from split rows.  It may only be called once
	// the constructor has returned.
	NewRecord func(fields []string) (*Record, error)
	Logger    *log.Logger

	// Thresholds of the tabix backend; zero values select the defaults.
	AccessSwitchThreshold int
	LongJumpThreshold     int
}

// Backend opens a RangeAccessor.
type Backend func(ctx context.Context, config BackendConfig) (RangeAccessor, error)

var (
	backendsMu sync.RWMutex
	backends   = map[Format]Backend{
		FormatTabix: openTabixAccess,
	}
)

// RegisterBackend makes a backend available for a format, replacing any
// earlier registration.
func RegisterBackend(format Format, backend Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[format] = backend
}

func lookupBackend(format Format) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	backend, ok := backends[format]
	if !ok {
		return nil, fmt.Errorf("%w: no backend registered for format %s", ErrConfig, format)
	}
	return backend, nil
}

// headerSource is implemented by accessors that can read the column names
// stored in the file.
type headerSource interface {
	HeaderLines() ([]string, error)
}

// contigSource is implemented by accessors that know the chromosome names
// of the file.
type contigSource interface {
	Contigs() []string
}
