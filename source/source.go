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

// Package source provides read access to score files kept in local
// directories or object stores.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrNotExist is wrapped by errors for objects that do not exist.
	ErrNotExist = errors.New("object does not exist")
	// ErrPermissionDenied is wrapped by errors for objects the caller may not
	// read.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated is wrapped by errors caused by missing or invalid
	// credentials.
	ErrUnauthenticated = errors.New("invalid authentication")
)

// Object is an open, immutable object.
type Object interface {
	io.ReaderAt
	io.Closer
	// Size returns the length of the object in bytes.
	Size() int64
}

// Opener is an interface to the storage engine in use.
type Opener interface {
	// Open returns the named object.
	Open(ctx context.Context, name string) (Object, error)
	// Exists reports whether the named object exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// FileOpener opens files from the local file system.  Relative names are
// resolved against Root.
type FileOpener struct {
	Root string
}

func (o FileOpener) path(name string) string {
	if o.Root == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Root, name)
}

// Open opens the named file.
func (o FileOpener) Open(_ context.Context, name string) (Object, error) {
	f, err := os.Open(o.path(name))
	if err != nil {
		return nil, fileError(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading file info: %v", err)
	}
	return &file{File: f, size: info.Size()}, nil
}

// Exists reports whether the named file exists.
func (o FileOpener) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(o.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fileError(err)
	}
	return true, nil
}

func fileError(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

type file struct {
	*os.File
	size int64
}

func (f *file) Size() int64 { return f.size }

// RangeReader returns a reader for length bytes of an object starting at
// offset.
type RangeReader func(ctx context.Context, offset, length int64) (io.ReadCloser, error)

// readAhead is the minimum number of bytes requested from a RangeReader.  A
// BGZF block is never larger than this, so decoding one block costs at most
// two requests.
const readAhead = 64 << 10

// NewRangeObject returns an Object of the given size that serves reads with
// ranged requests.  Requests are widened to readAhead bytes and the last
// response is kept to serve the small reads made while decoding blocks.
func NewRangeObject(ctx context.Context, read RangeReader, size int64, closer func() error) Object {
	return &rangeObject{ctx: ctx, read: read, size: size, closer: closer}
}

type rangeObject struct {
	ctx    context.Context
	read   RangeReader
	size   int64
	closer func() error

	mu     sync.Mutex
	offset int64
	cache  []byte
}

func (o *rangeObject) Size() int64 { return o.size }

func (o *rangeObject) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer()
}

func (o *rangeObject) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= o.size {
		return 0, io.EOF
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var n int
	for n < len(p) && off < o.size {
		if off < o.offset || off >= o.offset+int64(len(o.cache)) {
			if err := o.fill(off, int64(len(p)-n)); err != nil {
				return n, err
			}
		}
		copied := copy(p[n:], o.cache[off-o.offset:])
		n += copied
		off += int64(copied)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (o *rangeObject) fill(off, want int64) error {
	if want < readAhead {
		want = readAhead
	}
	if off+want > o.size {
		want = o.size - off
	}
	r, err := o.read(o.ctx, off, want)
	if err != nil {
		return err
	}
	defer r.Close()

	data := make([]byte, want)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("reading range %d+%d: %v", off, want, err)
	}
	o.offset, o.cache = off, data
	return nil
}
