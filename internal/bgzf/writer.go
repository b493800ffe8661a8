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
	"errors"
	"fmt"
	"io"
)

// blockDataSize is the amount of uncompressed data bgzip places in a block.
const blockDataSize = 0xff00

// Writer compresses data into BGZF blocks and keeps track of the virtual
// address of the next byte written.
type Writer struct {
	w      io.Writer
	buf    []byte
	offset uint64
	closed bool
}

// NewWriter returns a Writer that writes BGZF blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, blockDataSize)}
}

// Write buffers p, emitting a block whenever a full one is available.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed writer")
	}
	var written int
	for len(p) > 0 {
		n := blockDataSize - len(w.buf)
		if n > len(p) {
			n = len(p)
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		written += n
		if len(w.buf) == blockDataSize {
			if err := w.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush writes any buffered data as a (possibly short) block.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	encoded, err := EncodeBlock(w.buf)
	if err != nil {
		return fmt.Errorf("encoding block: %v", err)
	}
	if _, err := w.w.Write(encoded); err != nil {
		return fmt.Errorf("writing block: %v", err)
	}
	w.offset += uint64(len(encoded))
	w.buf = w.buf[:0]
	return nil
}

// Address returns the virtual address of the next byte to be written.
func (w *Writer) Address() Address {
	return NewAddress(w.offset, uint16(len(w.buf)))
}

// Close flushes buffered data and appends the EOF marker block.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	if _, err := w.w.Write(eofMarker); err != nil {
		return fmt.Errorf("writing EOF marker: %v", err)
	}
	return nil
}
