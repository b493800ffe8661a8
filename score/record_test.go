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

package score

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	r, err := NewRecord([]string{"chr1", "100", "110", "0.5"}, 0, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, "chr1", r.Chrom)
	assert.Equal(t, 100, r.Begin)
	assert.Equal(t, 110, r.End)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, "0.5", r.Field(3))
	assert.Equal(t, "", r.Field(4))
	assert.Equal(t, "", r.Field(-1))
	assert.Equal(t, "chr1:100-110", r.String())
}

func TestNewRecord_SinglePosition(t *testing.T) {
	r, err := NewRecord([]string{"1", "7", "A"}, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, r.Begin)
	assert.Equal(t, 7, r.End)
}

func TestNewRecord_Malformed(t *testing.T) {
	testCases := []struct {
		name   string
		fields []string
	}{
		{"begin", []string{"chr1", "x", "110"}},
		{"end", []string{"chr1", "100", "1e3"}},
		{"short", []string{"chr1", "100"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRecord(tc.fields, 0, 1, 2); err == nil {
				t.Errorf("NewRecord(%q): expected error, not success", tc.fields)
			}
		})
	}
}

func TestEmptyRecordDefaults(t *testing.T) {
	empty := optional.None[*Record]()
	assert.Equal(t, "", chromOf(empty))
	assert.Equal(t, -1, beginOf(empty))
	assert.Equal(t, -1, endOf(empty))

	r := &Record{Chrom: "chr2", Begin: 3, End: 9}
	present := optional.Some(r)
	assert.Equal(t, "chr2", chromOf(present))
	assert.Equal(t, 3, beginOf(present))
	assert.Equal(t, 9, endOf(present))
}

func TestIsNullMarker(t *testing.T) {
	for marker, want := range map[string]bool{"na": true, "NA": true, "None": true, "-": false, "": false, "nan": false} {
		if got := isNullMarker(marker); got != want {
			t.Errorf("isNullMarker(%q): got %v, want %v", marker, got, want)
		}
	}
}
