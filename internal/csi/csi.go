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

// Package csi contains support for processing the information in a CSI file (http://samtools.github.io/hts-specs/CSIv1.pdf).
package csi

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/iossifovlab/scoreget/internal/bgzf"
	"github.com/iossifovlab/scoreget/internal/binary"
	"github.com/iossifovlab/scoreget/internal/index"
)

const (
	// Magic identifies CSI index data.
	Magic = "CSI\x01"

	// Auxiliary data shorter than this cannot hold a tabix header.
	minimumTabixAuxLength = 28

	maximumAuxLength = 1 << 26
)

// Read reads CSI formatted index data from r.  The auxiliary data is expected
// to hold a tabix header, as written by tabix -C.
func Read(r io.Reader) (*index.Index, error) {
	csi, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer csi.Close()
	return index.Read(csi, Magic, &Reader{})
}

// Reader contains support for reading information from CSI formatted data.
// The depth of the scheme is remembered to recognize the metadata bin.
type Reader struct {
	depth int32
}

// ReadPreamble reads the CSI scheme, the tabix header stored in the auxiliary
// data and the reference count.
func (reader *Reader) ReadPreamble(csi io.Reader) (*index.Preamble, error) {
	var csiHeader struct {
		MinimumWidth   int32
		Depth          int32
		AuxilaryLength int32
	}
	if err := binary.Read(csi, &csiHeader); err != nil {
		return nil, fmt.Errorf("reading the csi header: %v", err)
	}
	if csiHeader.AuxilaryLength < 0 || csiHeader.AuxilaryLength > maximumAuxLength {
		return nil, fmt.Errorf("invalid auxiliary length (%d bytes)", csiHeader.AuxilaryLength)
	}
	aux := make([]byte, csiHeader.AuxilaryLength)
	if _, err := io.ReadFull(csi, aux); err != nil {
		return nil, fmt.Errorf("reading auxiliary data: %v", err)
	}

	preamble := &index.Preamble{
		MinShift: csiHeader.MinimumWidth,
		Depth:    csiHeader.Depth,
	}
	if len(aux) >= minimumTabixAuxLength {
		header, err := index.ReadHeader(bytes.NewReader(aux))
		if err != nil {
			return nil, fmt.Errorf("reading tabix header: %v", err)
		}
		preamble.Header = *header
	}
	if err := binary.Read(csi, &preamble.References); err != nil {
		return nil, fmt.Errorf("reading reference count: %v", err)
	}
	reader.depth = csiHeader.Depth
	return preamble, nil
}

// ReadBin reads a bin from r.
func (*Reader) ReadBin(r io.Reader) (*index.Bin, error) {
	var bin index.Bin
	if err := binary.Read(r, &bin); err != nil {
		return nil, fmt.Errorf("reading bin header: %v", err)
	}
	return &bin, nil
}

// IsVirtualBin indicates if the provided ID identifies a virtual bin that is used to store
// metadata.
func (reader *Reader) IsVirtualBin(id uint32) bool {
	return id == MetadataBin(reader.depth)
}

// ReadIntervals returns nil; CSI stores a per-bin offset instead of a linear
// index.
func (*Reader) ReadIntervals(io.Reader) ([]bgzf.Address, error) {
	return nil, nil
}

// MetadataBin returns the ID of the pseudo-bin holding metadata for a scheme
// of the given depth.
func MetadataBin(depth int32) uint32 {
	return uint32((1<<(uint(depth+1)*3)-1)/7) + 1
}
