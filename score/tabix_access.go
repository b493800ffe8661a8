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
	"errors"
	"fmt"
	"log"

	"github.com/iossifovlab/scoreget/internal/index"
	"github.com/iossifovlab/scoreget/source"
	"github.com/iossifovlab/scoreget/tabix"
)

const (
	// LongJumpThreshold is the forward distance past the end of the window
	// beyond which the sequential path repositions its cursor instead of
	// scanning ahead.
	LongJumpThreshold = 5000
	// AccessSwitchThreshold is the distance from the end of the previous
	// query beyond which a query is answered with a direct lookup.
	AccessSwitchThreshold = 1500
)

// TabixAccess answers queries against a tabix-indexed score file.  It keeps
// two cursors into the file: one feeds a WindowBuffer that is reused while
// queries move forward in small steps, the other serves direct lookups.
type TabixAccess struct {
	name       string
	sequential *tabix.File
	direct     *tabix.File
	buffer     *WindowBuffer
	newRecord  func([]string) (*Record, error)
	logger     *log.Logger

	lastEnd int
	stats   Stats

	// The thresholds are tunable separately; see the constants of the same
	// names.
	AccessSwitchThreshold int
	LongJumpThreshold     int
}

// NewTabixAccess returns an accessor reading from two handles on the same
// file.  Rows are turned into records with config.NewRecord.
func NewTabixAccess(name string, sequential, direct *tabix.File, config BackendConfig) *TabixAccess {
	access := &TabixAccess{
		name:                  name,
		sequential:            sequential,
		direct:                direct,
		newRecord:             config.NewRecord,
		logger:                config.Logger,
		AccessSwitchThreshold: config.AccessSwitchThreshold,
		LongJumpThreshold:     config.LongJumpThreshold,
	}
	if access.logger == nil {
		access.logger = log.Default()
	}
	if access.AccessSwitchThreshold <= 0 {
		access.AccessSwitchThreshold = AccessSwitchThreshold
	}
	if access.LongJumpThreshold <= 0 {
		access.LongJumpThreshold = LongJumpThreshold
	}
	access.buffer = NewWindowBuffer(config.NewRecord)
	return access
}

func openTabixAccess(ctx context.Context, config BackendConfig) (RangeAccessor, error) {
	idx, err := readIndex(ctx, config.Opener, config.Path)
	if err != nil {
		return nil, err
	}

	sequential, err := openTabix(ctx, config.Opener, config.Path, idx)
	if err != nil {
		return nil, err
	}
	direct, err := openTabix(ctx, config.Opener, config.Path, idx)
	if err != nil {
		sequential.Close()
		return nil, err
	}
	return NewTabixAccess(config.Path, sequential, direct, config), nil
}

func readIndex(ctx context.Context, opener source.Opener, path string) (*index.Index, error) {
	idx, err := tabix.OpenIndex(ctx, opener, path)
	if errors.Is(err, tabix.ErrNoIndex) {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return idx, err
}

func openTabix(ctx context.Context, opener source.Opener, path string, idx *index.Index) (*tabix.File, error) {
	object, err := opener.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return tabix.New(object, idx), nil
}

// Fetch implements RangeAccessor.  A query starting more than
// AccessSwitchThreshold bases away from the end of the previous query is
// answered directly; any other query goes through the window buffer.
func (a *TabixAccess) Fetch(chrom string, begin, end int) ([]*Record, error) {
	distance := begin - a.lastEnd
	if distance < 0 {
		distance = -distance
	}
	a.lastEnd = end

	if distance > a.AccessSwitchThreshold {
		a.stats.Direct++
		a.stats.Last = PathDirect
		return a.FetchDirect(chrom, begin, end)
	}
	a.stats.Sequential++
	a.stats.Last = PathSequential
	return a.fetchSequential(chrom, begin, end)
}

func (a *TabixAccess) fetchSequential(chrom string, begin, end int) ([]*Record, error) {
	if chrom != a.buffer.Chrom() || begin < a.buffer.Begin() || begin-a.buffer.End() > a.LongJumpThreshold {
		a.reset(chrom, begin)
	}
	if !a.buffer.Positioned() {
		return nil, nil
	}

	a.buffer.Purge(chrom, begin, end)
	if err := a.fill(chrom, begin, end); err != nil {
		return nil, err
	}
	return a.buffer.Select(chrom, begin, end), nil
}

// fill runs WindowBuffer.Fill, naming the file in errors.
func (a *TabixAccess) fill(chrom string, begin, end int) error {
	if err := a.buffer.Fill(chrom, begin, end); err != nil {
		return fmt.Errorf("reading %s: %v", a.name, err)
	}
	return nil
}

// reset empties the window and positions the sequential cursor at
// chrom:begin, reading to the end of the chromosome.
func (a *TabixAccess) reset(chrom string, begin int) {
	a.stats.Resets++
	a.buffer.Reset()
	it, err := a.sequential.Fetch(chrom, begin-1, 0)
	if err != nil {
		a.logger.Printf("Warning: could not find region %s:%d in %s: %v", chrom, begin, a.name, err)
		a.buffer.SetSource(nil)
		return
	}
	a.buffer.SetSource(it)
}

// FetchDirect implements RangeAccessor.  Unknown chromosomes and invalid
// ranges are logged and yield no records.
func (a *TabixAccess) FetchDirect(chrom string, begin, end int) ([]*Record, error) {
	it, err := a.direct.Fetch(chrom, begin-1, end)
	if errors.Is(err, tabix.ErrUnknownContig) || errors.Is(err, tabix.ErrInvalidRange) {
		a.logger.Printf("Warning: could not find region %s:%d-%d in %s: %v", chrom, begin, end, a.name, err)
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("fetching %s:%d-%d: %v", chrom, begin, end, err)
	}

	var records []*Record
	for it.Next() {
		r, err := a.newRecord(it.Fields())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %v", a.name, err)
		}
		records = append(records, r)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %v", a.name, err)
	}
	return records, nil
}

// Stats implements RangeAccessor.
func (a *TabixAccess) Stats() Stats {
	return a.stats
}

// Contigs returns the chromosome names of the index.
func (a *TabixAccess) Contigs() []string {
	return a.direct.Contigs()
}

// HeaderLines returns the meta lines at the top of the file.
func (a *TabixAccess) HeaderLines() ([]string, error) {
	return a.direct.HeaderLines()
}

// Close releases both handles.
func (a *TabixAccess) Close() error {
	return errors.Join(a.sequential.Close(), a.direct.Close())
}
