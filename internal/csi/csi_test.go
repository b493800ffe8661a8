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

package csi_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iossifovlab/scoreget/internal/csi"
	"github.com/iossifovlab/scoreget/internal/tabixtest"
)

func TestRegionRead(t *testing.T) {
	options := tabixtest.Generic(1, 2, 3)
	options.CSI = true
	options.BlockLines = 2

	path := filepath.Join(t.TempDir(), "scores.bed.gz")
	indexPath, err := tabixtest.Write(path, options, nil, []string{
		"chr1\t100\t110\t0.5",
		"chr1\t120\t130\t0.7",
		"chr1\t200\t210\t0.9",
		"chr1\t70000\t70001\t1.0",
		"chr2\t1\t1\t0.1",
	})
	if err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}

	r, err := os.Open(indexPath)
	if err != nil {
		t.Fatalf("Failed to open testdata: %v", err)
	}
	defer r.Close()

	index, err := csi.Read(r)
	if err != nil {
		t.Fatalf("Read() returned unexpected error: %v", err)
	}
	if got, want := index.Header.Names, []string{"chr1", "chr2"}; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Wrong reference names: got %q, want %q", got, want)
	}

	testCases := []struct {
		name      string
		reference int
		start     uint32
		end       uint32
		chunks    int
	}{
		{"first records", 0, 99, 130, 1},
		{"separate block", 0, 69999, 70001, 1},
		{"whole reference", 0, 0, 0, 1},
		{"between records", 0, 300000, 400000, 0},
		{"second reference", 1, 0, 1, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := index.Chunks(tc.reference, tc.start, tc.end)
			if got, want := len(chunks), tc.chunks; got != want {
				t.Fatalf("Wrong number of chunks: got %d, want %d", got, want)
			}
		})
	}
}

func TestMetadataBin(t *testing.T) {
	if got, want := csi.MetadataBin(5), uint32(37450); got != want {
		t.Errorf("MetadataBin(5): got %d, want %d", got, want)
	}
}
