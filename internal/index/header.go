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

package index

import (
	"fmt"
	"io"

	"github.com/iossifovlab/scoreget/internal/binary"
)

// Presets for Header.Format, as defined by the tabix specification.
const (
	FormatGeneric = 0
	FormatSAM     = 1
	FormatVCF     = 2

	// FormatZeroBased is OR-ed into Format for files with zero-based,
	// half-open coordinates (UCSC BED style).
	FormatZeroBased = 0x10000
)

// Header describes the layout of a tabix-indexed text file.
type Header struct {
	Format int32
	// Column numbers are one-based.  An EndColumn of zero means records end
	// one base after they begin.
	SequenceColumn, BeginColumn, EndColumn int32
	// Meta is the character that starts header and comment lines.
	Meta int32
	// Skip is the number of leading lines to ignore.
	Skip int32
	// Names holds the reference names in index order.
	Names []string
}

// Preset returns the file type encoded in the low bits of Format.
func (h *Header) Preset() int32 {
	return h.Format & 0xffff
}

// ZeroBased reports whether the begin column holds zero-based positions.
func (h *Header) ZeroBased() bool {
	return h.Format&FormatZeroBased != 0
}

// ReadHeader reads the tabix column description followed by the reference
// names.
func ReadHeader(r io.Reader) (*Header, error) {
	var fields struct {
		Format                                 int32
		SequenceColumn, BeginColumn, EndColumn int32
		Meta, Skip                             int32
	}
	if err := binary.Read(r, &fields); err != nil {
		return nil, fmt.Errorf("reading columns: %v", err)
	}
	names, err := binary.ReadNames(r)
	if err != nil {
		return nil, err
	}
	return &Header{
		Format:         fields.Format,
		SequenceColumn: fields.SequenceColumn,
		BeginColumn:    fields.BeginColumn,
		EndColumn:      fields.EndColumn,
		Meta:           fields.Meta,
		Skip:           fields.Skip,
		Names:          names,
	}, nil
}

// WriteHeader writes h in the layout read by ReadHeader.
func WriteHeader(w io.Writer, h *Header) error {
	fields := []int32{h.Format, h.SequenceColumn, h.BeginColumn, h.EndColumn, h.Meta, h.Skip}
	if err := binary.Write(w, fields); err != nil {
		return fmt.Errorf("writing columns: %v", err)
	}
	return binary.WriteNames(w, h.Names)
}
