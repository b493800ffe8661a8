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

package bgzf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Reader reads uncompressed data from a BGZF archive and supports seeking to
// virtual addresses.  The most recently decoded block is kept in memory so
// that seeks landing in the same block do not touch the underlying storage.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	r io.ReaderAt

	block  []byte // Uncompressed data of the current block.
	offset uint64 // Compressed offset of the current block.
	size   int    // Compressed size of the current block.
	pos    int    // Read position inside block.
	loaded bool

	line []byte
}

// NewReader returns a Reader that reads blocks from r.
func NewReader(r io.ReaderAt) *Reader {
	return &Reader{r: r}
}

// Seek positions the reader at the provided virtual address.
func (r *Reader) Seek(addr Address) error {
	if !r.loaded || addr.BlockOffset() != r.offset {
		if err := r.load(addr.BlockOffset()); err != nil {
			return err
		}
	}
	if int(addr.DataOffset()) > len(r.block) {
		return fmt.Errorf("data offset %d beyond block of %d bytes", addr.DataOffset(), len(r.block))
	}
	r.pos = int(addr.DataOffset())
	return nil
}

// Tell returns the virtual address of the next byte to be read.  When the
// current block is exhausted the address of the following block is returned.
func (r *Reader) Tell() Address {
	if !r.loaded {
		return 0
	}
	if r.pos >= len(r.block) {
		return NewAddress(r.offset+uint64(r.size), 0)
	}
	return NewAddress(r.offset, uint16(r.pos))
}

// ReadLine returns the next newline-terminated line without its terminator.
// The returned slice is only valid until the next call to ReadLine.  At the
// end of the archive ReadLine returns io.EOF.
func (r *Reader) ReadLine() ([]byte, error) {
	r.line = r.line[:0]
	for {
		if !r.loaded || r.pos >= len(r.block) {
			if err := r.next(); err != nil {
				if errors.Is(err, io.EOF) {
					if len(r.line) > 0 {
						return r.line, nil
					}
					return nil, io.EOF
				}
				return nil, err
			}
			continue
		}

		rest := r.block[r.pos:]
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			r.line = append(r.line, rest[:i]...)
			r.pos += i + 1
			return bytes.TrimSuffix(r.line, []byte{'\r'}), nil
		}
		r.line = append(r.line, rest...)
		r.pos = len(r.block)
	}
}

func (r *Reader) next() error {
	if !r.loaded {
		return r.load(0)
	}
	return r.load(r.offset + uint64(r.size))
}

func (r *Reader) load(offset uint64) error {
	section := io.NewSectionReader(r.r, int64(offset), MaximumBlockSize)
	data, size, err := DecodeBlock(section)
	if err != nil {
		return fmt.Errorf("reading block at %d: %w", offset, err)
	}
	r.block, r.offset, r.size, r.pos, r.loaded = data, offset, size, 0, true
	return nil
}
