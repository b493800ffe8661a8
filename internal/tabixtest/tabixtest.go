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

// Package tabixtest writes small bgzip-compressed, tabix-indexed files for
// tests.  It is not a general purpose indexer: input lines must already be
// sorted and grouped by reference.
package tabixtest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/iossifovlab/scoreget/internal/bgzf"
	"github.com/iossifovlab/scoreget/internal/binary"
	"github.com/iossifovlab/scoreget/internal/csi"
	"github.com/iossifovlab/scoreget/internal/index"
	"github.com/iossifovlab/scoreget/internal/tbi"
)

// Options controls the layout of the written files.
type Options struct {
	// Header describes the columns; Names is filled in by Write.
	Header index.Header
	// CSI selects a .csi index instead of a .tbi one.
	CSI bool
	// BlockLines, when positive, starts a new BGZF block every BlockLines
	// data lines so that tests exercise multi-block files.
	BlockLines int
}

// Generic returns options for a tab-separated file with one-based, inclusive
// positions in the given one-based columns.  An end column of zero means
// single-position records.
func Generic(sequence, begin, end int) Options {
	return Options{Header: index.Header{
		Format:         index.FormatGeneric,
		SequenceColumn: int32(sequence),
		BeginColumn:    int32(begin),
		EndColumn:      int32(end),
		Meta:           '#',
	}}
}

// Write writes meta and lines (without newlines) to a BGZF file at path and
// an index next to it.  It returns the path of the index.
func Write(path string, opts Options, meta, lines []string) (string, error) {
	data, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer data.Close()

	w := bgzf.NewWriter(data)
	for _, line := range meta {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return "", err
		}
	}

	var (
		header     = opts.Header
		references []*reference
		current    *reference
	)
	for i, line := range lines {
		if opts.BlockLines > 0 && i > 0 && i%opts.BlockLines == 0 {
			if err := w.Flush(); err != nil {
				return "", err
			}
		}

		name, begin, end, err := parse(&header, line)
		if err != nil {
			return "", fmt.Errorf("line %d: %v", i+1, err)
		}
		if current == nil || current.name != name {
			current = &reference{name: name, bins: make(map[uint32]*binData)}
			references = append(references, current)
			header.Names = append(header.Names, name)
		}

		start := w.Address()
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return "", err
		}
		current.add(begin, end, start, w.Address())
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	indexPath, encoded := path+".tbi", encodeTBI(&header, references)
	if opts.CSI {
		indexPath, encoded = path+".csi", encodeCSI(&header, references)
	}

	out, err := os.Create(indexPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	iw := bgzf.NewWriter(out)
	if _, err := iw.Write(encoded); err != nil {
		return "", err
	}
	if err := iw.Close(); err != nil {
		return "", err
	}
	return indexPath, out.Close()
}

type binData struct {
	offset bgzf.Address
	chunks []bgzf.Chunk
}

type reference struct {
	name      string
	bins      map[uint32]*binData
	intervals []bgzf.Address
	set       []bool
	last      uint32
}

func (ref *reference) add(begin, end uint32, start, stop bgzf.Address) {
	id := index.BinForRange(begin, end, tbi.MinShift, tbi.Depth)
	b, ok := ref.bins[id]
	if !ok {
		b = &binData{offset: start}
		ref.bins[id] = b
	}
	// Consecutive records of one bin share a chunk, even across blocks.
	if n := len(b.chunks); n > 0 && (ref.last == id || b.chunks[n-1].End == start) {
		b.chunks[n-1].End = stop
	} else {
		b.chunks = append(b.chunks, bgzf.Chunk{Start: start, End: stop})
	}
	ref.last = id

	for window := int(begin >> tbi.MinShift); window <= int((end-1)>>tbi.MinShift); window++ {
		for len(ref.intervals) <= window {
			ref.intervals = append(ref.intervals, 0)
			ref.set = append(ref.set, false)
		}
		if !ref.set[window] {
			ref.intervals[window], ref.set[window] = start, true
		}
	}
}

// linear fills holes in the linear index with the preceding offset.
func (ref *reference) linear() []bgzf.Address {
	var previous bgzf.Address
	out := make([]bgzf.Address, len(ref.intervals))
	for i, offset := range ref.intervals {
		if ref.set[i] {
			previous = offset
		}
		out[i] = previous
	}
	return out
}

func (ref *reference) sortedBins() []uint32 {
	var ids []uint32
	for id := range ref.bins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func encodeTBI(header *index.Header, references []*reference) []byte {
	var buffer bytes.Buffer
	buffer.WriteString(tbi.Magic)
	binary.Write(&buffer, int32(len(references)))
	index.WriteHeader(&buffer, header)
	for _, ref := range references {
		binary.Write(&buffer, int32(len(ref.bins)))
		for _, id := range ref.sortedBins() {
			b := ref.bins[id]
			binary.Write(&buffer, id)
			binary.Write(&buffer, int32(len(b.chunks)))
			binary.Write(&buffer, b.chunks)
		}
		intervals := ref.linear()
		binary.Write(&buffer, int32(len(intervals)))
		binary.Write(&buffer, intervals)
	}
	return buffer.Bytes()
}

func encodeCSI(header *index.Header, references []*reference) []byte {
	var aux bytes.Buffer
	index.WriteHeader(&aux, header)

	var buffer bytes.Buffer
	buffer.WriteString(csi.Magic)
	binary.Write(&buffer, []int32{tbi.MinShift, tbi.Depth, int32(aux.Len())})
	buffer.Write(aux.Bytes())
	binary.Write(&buffer, int32(len(references)))
	for _, ref := range references {
		binary.Write(&buffer, int32(len(ref.bins)))
		for _, id := range ref.sortedBins() {
			b := ref.bins[id]
			binary.Write(&buffer, id)
			binary.Write(&buffer, uint64(b.offset))
			binary.Write(&buffer, int32(len(b.chunks)))
			binary.Write(&buffer, b.chunks)
		}
	}
	return buffer.Bytes()
}

// parse returns the reference and the zero-based, half-open range of a line.
func parse(header *index.Header, line string) (string, uint32, uint32, error) {
	fields := strings.Split(line, "\t")
	column := func(c int32) (string, error) {
		if c < 1 || int(c) > len(fields) {
			return "", fmt.Errorf("missing column %d", c)
		}
		return fields[c-1], nil
	}

	name, err := column(header.SequenceColumn)
	if err != nil {
		return "", 0, 0, err
	}
	value, err := column(header.BeginColumn)
	if err != nil {
		return "", 0, 0, err
	}
	begin, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return "", 0, 0, err
	}
	end := begin
	if header.EndColumn > 0 {
		if value, err = column(header.EndColumn); err != nil {
			return "", 0, 0, err
		}
		if end, err = strconv.ParseUint(value, 10, 32); err != nil {
			return "", 0, 0, err
		}
	}
	if !header.ZeroBased() {
		begin--
	} else if header.EndColumn == 0 {
		end = begin + 1
	}
	return name, uint32(begin), uint32(end), nil
}
