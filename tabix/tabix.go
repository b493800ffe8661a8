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

// Package tabix reads bgzip-compressed, tab-separated text files through a
// tabix (.tbi) or CSI (.csi) index.
package tabix

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iossifovlab/scoreget/internal/bgzf"
	"github.com/iossifovlab/scoreget/internal/csi"
	"github.com/iossifovlab/scoreget/internal/index"
	"github.com/iossifovlab/scoreget/internal/tbi"
	"github.com/iossifovlab/scoreget/source"
)

var (
	// ErrUnknownContig is returned by Fetch for contigs missing from the index.
	ErrUnknownContig = errors.New("unknown contig")
	// ErrInvalidRange is returned by Fetch for ranges the index cannot address.
	ErrInvalidRange = errors.New("invalid range")
	// ErrNoIndex is returned when a file has no index sidecar.
	ErrNoIndex = errors.New("no index found")
)

// IndexSuffixes lists the index sidecar suffixes in the order they are tried.
var IndexSuffixes = []string{".tbi", ".csi"}

// File is an indexed text file.  Each File has a single read cursor: a call
// to Fetch or HeaderLines invalidates iterators returned by earlier calls.
//
// A File is not safe for concurrent use.
type File struct {
	data   io.ReaderAt
	index  *index.Index
	reader *bgzf.Reader

	// generation is bumped whenever the cursor is repositioned.
	generation int
}

// Open opens the file at path together with its index sidecar.
func Open(path string) (*File, error) {
	return OpenFrom(context.Background(), source.FileOpener{}, path)
}

// OpenFrom opens the named file and its index sidecar through opener.
func OpenFrom(ctx context.Context, opener source.Opener, name string) (*File, error) {
	index, err := OpenIndex(ctx, opener, name)
	if err != nil {
		return nil, err
	}
	data, err := opener.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return New(data, index), nil
}

// FindIndex returns the name of the index sidecar of name, trying
// IndexSuffixes in order.  The error wraps ErrNoIndex when none exists.
func FindIndex(ctx context.Context, opener source.Opener, name string) (string, error) {
	for _, suffix := range IndexSuffixes {
		exists, err := opener.Exists(ctx, name+suffix)
		if err != nil {
			return "", fmt.Errorf("checking index of %s: %w", name, err)
		}
		if exists {
			return name + suffix, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrNoIndex, name)
}

// OpenIndex finds and decodes the index sidecar of name.
func OpenIndex(ctx context.Context, opener source.Opener, name string) (*index.Index, error) {
	indexName, err := FindIndex(ctx, opener, name)
	if err != nil {
		return nil, err
	}
	object, err := opener.Open(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer object.Close()
	return ReadIndex(indexName, io.NewSectionReader(object, 0, object.Size()))
}

// ReadIndex decodes the index read from r.  The format is chosen from the
// magic of the decompressed data, so name is only used in errors.
func ReadIndex(name string, r io.Reader) (*index.Index, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %v", name, err)
	}
	magic, err := indexMagic(raw)
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %v", name, err)
	}

	var idx *index.Index
	switch magic {
	case tbi.Magic:
		idx, err = tbi.Read(bytes.NewReader(raw))
	case csi.Magic:
		idx, err = csi.Read(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("reading index %s: unrecognized format", name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %v", name, err)
	}
	return idx, nil
}

// indexMagic returns the first four decompressed bytes of a gzip-wrapped
// index.
func indexMagic(raw []byte) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer gz.Close()

	magic := make([]byte, len(tbi.Magic))
	if _, err := io.ReadFull(gz, magic); err != nil {
		return "", err
	}
	return string(magic), nil
}

// New returns a File reading records from data using index.  If data is an
// io.Closer it is closed by Close.  The index is not modified and may be
// shared between Files.
func New(data io.ReaderAt, index *index.Index) *File {
	return &File{
		data:   data,
		index:  index,
		reader: bgzf.NewReader(data),
	}
}

// Close releases the underlying data.
func (f *File) Close() error {
	f.generation++
	if closer, ok := f.data.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Contigs returns the names of the indexed references in index order.
func (f *File) Contigs() []string {
	return append([]string(nil), f.index.Header.Names...)
}

// HeaderLines returns the meta lines at the top of the file, including any
// lines skipped by the index.
func (f *File) HeaderLines() ([]string, error) {
	f.generation++
	if err := f.reader.Seek(0); err != nil {
		return nil, fmt.Errorf("seeking to start: %v", err)
	}

	var lines []string
	for i := 0; ; i++ {
		line, err := f.reader.ReadLine()
		if err == io.EOF {
			return lines, nil
		} else if err != nil {
			return nil, fmt.Errorf("reading header: %v", err)
		}
		if i >= int(f.index.Header.Skip) && !f.isMeta(line) {
			return lines, nil
		}
		lines = append(lines, string(line))
	}
}

// Fetch returns an iterator over the records of chrom that overlap the
// zero-based, half-open range [start, end).  An end of zero or less means the
// end of the contig.
func (f *File) Fetch(chrom string, start, end int) (*Iterator, error) {
	id, ok := f.index.ReferenceID(chrom)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownContig, chrom)
	}
	limit := int(f.index.MaximumPosition())
	if end <= 0 {
		end = limit
	}
	if start < 0 || start > end || start >= limit {
		return nil, fmt.Errorf("%w %s:%d-%d", ErrInvalidRange, chrom, start, end)
	}
	if end > limit {
		end = limit
	}

	f.generation++
	return &Iterator{
		file:       f,
		generation: f.generation,
		chunks:     f.index.Chunks(id, uint32(start), uint32(end)),
		chrom:      chrom,
		start:      start,
		end:        end,
	}, nil
}

func (f *File) isMeta(line []byte) bool {
	return len(line) == 0 || int32(line[0]) == f.index.Header.Meta
}

// span returns the zero-based, half-open range covered by a record.
func (f *File) span(fields []string) (string, int, int, error) {
	header := &f.index.Header
	column := func(c int32) (string, error) {
		if c < 1 || int(c) > len(fields) {
			return "", fmt.Errorf("missing column %d", c)
		}
		return fields[c-1], nil
	}

	chrom, err := column(header.SequenceColumn)
	if err != nil {
		return "", 0, 0, err
	}
	value, err := column(header.BeginColumn)
	if err != nil {
		return "", 0, 0, err
	}
	begin, err := strconv.Atoi(value)
	if err != nil {
		return "", 0, 0, fmt.Errorf("parsing begin: %v", err)
	}
	if !header.ZeroBased() {
		begin--
	}

	end := begin + 1
	switch {
	case header.Preset() == index.FormatVCF:
		ref, err := column(4)
		if err != nil {
			return "", 0, 0, err
		}
		end = begin + len(ref)
	case header.EndColumn > 0:
		value, err := column(header.EndColumn)
		if err != nil {
			return "", 0, 0, err
		}
		if end, err = strconv.Atoi(value); err != nil {
			return "", 0, 0, fmt.Errorf("parsing end: %v", err)
		}
	}
	if end <= begin {
		end = begin + 1
	}
	return chrom, begin, end, nil
}

// Iterator walks the records returned by Fetch.
type Iterator struct {
	file       *File
	generation int

	chunks  []*bgzf.Chunk
	current *bgzf.Chunk

	chrom      string
	start, end int

	fields []string
	err    error
	done   bool
}

// Next advances to the next overlapping record.  It returns false when the
// records are exhausted or an error occurred.
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if it.generation != it.file.generation {
		it.err = errors.New("iterator invalidated by a later fetch")
		return false
	}

	reader := it.file.reader
	for {
		if it.current == nil {
			if len(it.chunks) == 0 {
				it.done = true
				return false
			}
			it.current, it.chunks = it.chunks[0], it.chunks[1:]
			if err := reader.Seek(it.current.Start); err != nil {
				it.err = fmt.Errorf("seeking to %s: %v", it.current.Start, err)
				return false
			}
		}
		if reader.Tell() >= it.current.End {
			it.current = nil
			continue
		}

		line, err := reader.ReadLine()
		if err == io.EOF {
			it.current = nil
			continue
		} else if err != nil {
			it.err = fmt.Errorf("reading record: %v", err)
			return false
		}
		if it.file.isMeta(line) {
			continue
		}

		fields := strings.Split(string(line), "\t")
		chrom, begin, end, err := it.file.span(fields)
		if err != nil {
			it.err = fmt.Errorf("parsing record %q: %v", line, err)
			return false
		}
		if chrom != it.chrom {
			continue
		}
		if begin >= it.end {
			it.done = true
			return false
		}
		if end <= it.start {
			continue
		}
		it.fields = fields
		return true
	}
}

// Fields returns the tab-separated columns of the current record.
func (it *Iterator) Fields() []string {
	return it.fields
}

// Err returns the error, if any, that stopped the iteration.
func (it *Iterator) Err() error {
	return it.err
}
