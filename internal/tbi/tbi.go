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

// Package tbi contains support for processing the information in a tabix
// index file (http://samtools.github.io/hts-specs/tabix.pdf).
package tbi

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/iossifovlab/scoreget/internal/bgzf"
	"github.com/iossifovlab/scoreget/internal/binary"
	"github.com/iossifovlab/scoreget/internal/index"
)

const (
	// Magic identifies tabix index data.
	Magic = "TBI\x01"

	// MinShift and Depth are the fixed binning scheme of tabix, shared with
	// the BAM index.
	MinShift = 14
	Depth    = 5

	// This ID is used as a virtual bin ID for (unused) chunk metadata.
	metadataID = 37450

	// The linear index has one entry per 16kbp window; no reference is
	// long enough to need more than this many.
	maximumIntervals = 1 << (29 - MinShift)
)

// Read reads tabix formatted index data from r.  The data is expected to be
// BGZF compressed, as written by tabix.
func Read(r io.Reader) (*index.Index, error) {
	tbi, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer tbi.Close()
	return index.Read(tbi, Magic, &Reader{})
}

// Reader contains support for reading information from tabix formatted data.
type Reader struct {
}

// ReadPreamble reads the reference count and the tabix header.
func (*Reader) ReadPreamble(r io.Reader) (*index.Preamble, error) {
	var references int32
	if err := binary.Read(r, &references); err != nil {
		return nil, fmt.Errorf("reading reference count: %v", err)
	}
	header, err := index.ReadHeader(r)
	if err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	return &index.Preamble{
		MinShift:   MinShift,
		Depth:      Depth,
		Header:     *header,
		References: references,
	}, nil
}

// ReadBin reads a bin from r.  Tabix bins carry no offset of their own; the
// linear index serves that purpose.
func (*Reader) ReadBin(r io.Reader) (*index.Bin, error) {
	var bin struct {
		ID     uint32
		Chunks int32
	}
	if err := binary.Read(r, &bin); err != nil {
		return nil, fmt.Errorf("reading bin header: %v", err)
	}
	return &index.Bin{ID: bin.ID, Chunks: bin.Chunks}, nil
}

// IsVirtualBin indicates if the provided ID identifies a virtual bin that is used to store
// metadata.
func (*Reader) IsVirtualBin(id uint32) bool {
	return id == metadataID
}

// ReadIntervals reads the linear index of a reference.
func (*Reader) ReadIntervals(r io.Reader) ([]bgzf.Address, error) {
	var intervals int32
	if err := binary.Read(r, &intervals); err != nil {
		return nil, fmt.Errorf("reading interval count: %v", err)
	}
	if intervals < 0 || intervals > maximumIntervals {
		return nil, fmt.Errorf("invalid interval count (%d intervals)", intervals)
	}
	offsets := make([]bgzf.Address, intervals)
	if err := binary.Read(r, offsets); err != nil {
		return nil, fmt.Errorf("reading offsets: %v", err)
	}
	return offsets, nil
}
