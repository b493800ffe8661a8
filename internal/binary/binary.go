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

// Package binary provides support for operating on binary data.
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// maximumNamesLength bounds the allocation made for a block of reference
// names so that malformed data cannot request arbitrarily large buffers.
const maximumNamesLength = 1 << 26

// ExpectBytes reads len(want) bytes from r and checks that they match want.
func ExpectBytes(r io.Reader, want []byte) error {
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading magic: %v", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("wrong magic %v (wanted %v)", got, want)
	}
	return nil
}

// Read reads a little endian value from r into v using binary.Read.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// Write writes v to w in little endian order using binary.Write.
func Write(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadNames reads a length-prefixed block of NUL-terminated names, the layout
// used for reference names in tabix headers.
func ReadNames(r io.Reader) ([]string, error) {
	var length int32
	if err := Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading names length: %v", err)
	}
	if length < 0 || length > maximumNamesLength {
		return nil, fmt.Errorf("invalid names length (%d bytes)", length)
	}
	block := make([]byte, length)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, fmt.Errorf("reading names: %v", err)
	}

	var names []string
	for len(block) > 0 {
		end := bytes.IndexByte(block, 0)
		if end < 0 {
			return nil, fmt.Errorf("unterminated name %q", block)
		}
		names = append(names, string(block[:end]))
		block = block[end+1:]
	}
	return names, nil
}

// WriteNames writes names in the layout read by ReadNames.
func WriteNames(w io.Writer, names []string) error {
	var block bytes.Buffer
	for _, name := range names {
		block.WriteString(name)
		block.WriteByte(0)
	}
	if err := Write(w, int32(block.Len())); err != nil {
		return fmt.Errorf("writing names length: %v", err)
	}
	if _, err := w.Write(block.Bytes()); err != nil {
		return fmt.Errorf("writing names: %v", err)
	}
	return nil
}
