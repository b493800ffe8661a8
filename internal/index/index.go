// Copyright 2018 Google Inc.
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

// Package index contains support for processing the information in a
// binning index file (tabix or CSI).
package index

import (
	"fmt"
	"io"

	"github.com/iossifovlab/scoreget/internal/bgzf"
	"github.com/iossifovlab/scoreget/internal/binary"
)

// Index holds a fully decoded binning index.
type Index struct {
	// MinShift is the number of bits for the minimal interval and Depth is the
	// depth of the binning index.
	MinShift, Depth int32
	// Header describes the columns of the indexed text file.
	Header Header
	// References holds the bins of each reference, in Header.Names order.
	References []Reference
}

// Reference holds the bins and the linear index for one reference sequence.
type Reference struct {
	bins map[uint32]*bin
	// Intervals is the linear index (tabix only): the smallest address of a
	// record overlapping each 1<<MinShift window.
	Intervals []bgzf.Address
}

type bin struct {
	offset bgzf.Address
	chunks []bgzf.Chunk
}

// Preamble is the format specific information preceding the per reference
// records of an index.
type Preamble struct {
	MinShift, Depth int32
	Header          Header
	References      int32
}

// Reader is an interface for reading format specific information from index data.
type Reader interface {
	// ReadPreamble reads everything between the magic and the first
	// reference: the binning scheme, the tabix header and the reference count.
	ReadPreamble(io.Reader) (*Preamble, error)
	// ReadBin reads a bin.
	ReadBin(io.Reader) (*Bin, error)
	// IsVirtualBin indicates if the provided ID identifies a virtual bin that is used to store
	// metadata.
	IsVirtualBin(uint32) bool
	// ReadIntervals reads the linear index that follows the bins of a
	// reference, if the format has one.
	ReadIntervals(io.Reader) ([]bgzf.Address, error)
}

// Bin represents a contignous genomic region.
type Bin struct {
	// ID is an identifier for the bin.
	ID uint32
	// Offset is the (virtual) file offset of the first overlapping record.
	Offset uint64
	// Chunks is the number of chunks in the bin.
	Chunks int32
}

// Read reads index data from r.  The function takes a reader that reads
// format specific information from the input reader.
func Read(r io.Reader, magic string, reader Reader) (*Index, error) {
	if err := binary.ExpectBytes(r, []byte(magic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}

	preamble, err := reader.ReadPreamble(r)
	if err != nil {
		return nil, fmt.Errorf("reading preamble: %v", err)
	}
	if preamble.References < 0 {
		return nil, fmt.Errorf("invalid reference count (%d references)", preamble.References)
	}
	if names := len(preamble.Header.Names); names != int(preamble.References) {
		return nil, fmt.Errorf("%d reference names for %d references", names, preamble.References)
	}

	index := &Index{
		MinShift:   preamble.MinShift,
		Depth:      preamble.Depth,
		Header:     preamble.Header,
		References: make([]Reference, preamble.References),
	}
	for i := range index.References {
		var binCount int32
		if err := binary.Read(r, &binCount); err != nil {
			return nil, fmt.Errorf("reading bin count: %v", err)
		}
		if binCount < 0 {
			return nil, fmt.Errorf("invalid bin count (%d bins)", binCount)
		}

		reference := Reference{bins: make(map[uint32]*bin, binCount)}
		for j := int32(0); j < binCount; j++ {
			header, err := reader.ReadBin(r)
			if err != nil {
				return nil, fmt.Errorf("reading bin: %v", err)
			}
			if header.Chunks < 0 {
				return nil, fmt.Errorf("invalid chunk count (%d chunks)", header.Chunks)
			}

			chunks := make([]bgzf.Chunk, header.Chunks)
			if err := binary.Read(r, chunks); err != nil {
				return nil, fmt.Errorf("reading chunks: %v", err)
			}
			if reader.IsVirtualBin(header.ID) {
				continue
			}
			reference.bins[header.ID] = &bin{
				offset: bgzf.Address(header.Offset),
				chunks: chunks,
			}
		}

		reference.Intervals, err = reader.ReadIntervals(r)
		if err != nil {
			return nil, fmt.Errorf("reading linear index: %v", err)
		}
		index.References[i] = reference
	}
	return index, nil
}

// ReferenceID returns the position of the named reference in the index.
func (index *Index) ReferenceID(name string) (int, bool) {
	for i, n := range index.Header.Names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// MaximumPosition returns the first position that the binning scheme can no
// longer address.
func (index *Index) MaximumPosition() uint32 {
	return maximumBinWidth(index.MinShift, index.Depth)
}

// Chunks returns the merged BGZF chunks that may contain records of the
// reference overlapping the zero-based, half-open range [start, end).  An end
// of zero means the end of the reference.
func (index *Index) Chunks(referenceID int, start, end uint32) []*bgzf.Chunk {
	if referenceID < 0 || referenceID >= len(index.References) {
		return nil
	}
	reference := index.References[referenceID]
	minimum := reference.minimumOffset(start, index.MinShift)

	var candidates []*bgzf.Chunk
	for _, id := range binsForRange(start, end, index.MinShift, index.Depth) {
		b, ok := reference.bins[id]
		if !ok {
			continue
		}
		for _, chunk := range b.chunks {
			if chunk.End <= minimum || chunk.End <= b.offset {
				continue
			}
			chunk := chunk
			candidates = append(candidates, &chunk)
		}
	}
	return bgzf.Merge(candidates, 0)
}

func (reference *Reference) minimumOffset(start uint32, minShift int32) bgzf.Address {
	if len(reference.Intervals) == 0 {
		return 0
	}
	window := int(start >> uint32(minShift))
	if window >= len(reference.Intervals) {
		window = len(reference.Intervals) - 1
	}
	return reference.Intervals[window]
}

func binsForRange(start, end uint32, minShift, depth int32) []uint32 {
	maxWidth := maximumBinWidth(minShift, depth)
	if end == 0 || end > maxWidth {
		end = maxWidth
	}
	if end <= start {
		return nil
	}
	if start > maxWidth {
		return nil
	}

	// This is derived from the C examples in the CSI index specification.
	end--
	var bins []uint32
	for l, t, s := uint(0), uint(0), uint(minShift+depth*3); l <= uint(depth); l++ {
		b := t + (uint(start) >> s)
		e := t + (uint(end) >> s)
		for i := b; i <= e; i++ {
			bins = append(bins, uint32(i))
		}
		s -= 3
		t += 1 << (l * 3)
	}
	return bins
}

// BinForRange returns the smallest bin fully containing the zero-based,
// half-open range [start, end).
func BinForRange(start, end uint32, minShift, depth int32) uint32 {
	end--
	s := uint(minShift)
	t := uint32((1<<(uint(depth)*3) - 1) / 7)
	for l := uint(depth); l > 0; l-- {
		if start>>s == end>>s {
			return t + start>>s
		}
		s += 3
		t -= 1 << ((l - 1) * 3)
	}
	return 0
}

func maximumBinWidth(minShift, depth int32) uint32 {
	return uint32(1 << uint32(minShift+depth*3))
}
