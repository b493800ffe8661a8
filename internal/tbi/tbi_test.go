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

package tbi_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/iossifovlab/scoreget/internal/bgzf"
	"github.com/iossifovlab/scoreget/internal/tabixtest"
	"github.com/iossifovlab/scoreget/internal/tbi"
)

var lines = []string{
	"1\t10\t15\t0.1",
	"1\t20\t25\t0.2",
	"1\t40000\t40010\t0.3",
	"2\t5\t5\t0.4",
	"X\t100\t200\t0.5",
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.tsv.gz")
	indexPath, err := tabixtest.Write(path, tabixtest.Generic(1, 2, 3), []string{"#chrom\tbegin\tend\tscore"}, lines)
	if err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}

	r, err := os.Open(indexPath)
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	defer r.Close()

	index, err := tbi.Read(r)
	if err != nil {
		t.Fatalf("Read() returned unexpected error: %v", err)
	}

	if got, want := len(index.References), 3; got != want {
		t.Fatalf("Wrong number of references: got %d, want %d", got, want)
	}
	if got, want := index.Header.Names[2], "X"; got != want {
		t.Errorf("Wrong reference name: got %q, want %q", got, want)
	}
	if got, want := index.Header.Meta, int32('#'); got != want {
		t.Errorf("Wrong meta character: got %q, want %q", got, want)
	}
	if got, want := len(index.References[0].Intervals), 3; got != want {
		t.Errorf("Wrong linear index length: got %d, want %d", got, want)
	}

	testCases := []struct {
		name       string
		reference  int
		start, end uint32
		chunks     int
	}{
		{"first window", 0, 0, 100, 1},
		{"whole reference", 0, 0, 0, 1},
		{"third window", 0, 39999, 40010, 1},
		{"second reference", 1, 0, 10, 1},
		{"empty window", 1, 1 << 20, 1<<20 + 10, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := len(index.Chunks(tc.reference, tc.start, tc.end)), tc.chunks; got != want {
				t.Errorf("Wrong number of chunks: got %d, want %d", got, want)
			}
		})
	}
}

func TestRead_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"not compressed", []byte("TBI\x01")},
		{"wrong magic", []byte("CSI\x01\x00\x00\x00\x00")},
		{"truncated header", []byte("TBI\x01\x01\x00\x00\x00\x00\x00")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			if tc.name != "not compressed" {
				block, err := bgzf.EncodeBlock(tc.data)
				if err != nil {
					t.Fatalf("EncodeBlock() failed: %v", err)
				}
				data = block
			}
			if _, err := tbi.Read(bytes.NewReader(data)); err == nil {
				t.Fatal("Read(): expected error, not success")
			}
		})
	}
}
