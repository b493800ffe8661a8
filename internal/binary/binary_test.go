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

package binary

import (
	"bytes"
	"reflect"
	"testing"
)

func TestExpectBytes(t *testing.T) {
	testCases := []struct {
		want  []byte
		input []byte
		match bool
	}{
		{[]byte("BCF\x02\x02"), []byte("BCF\x02\x02"), true},
		{[]byte("BCF\x02\x02"), []byte("BCF\x02\x02EXTRA"), true},
		{[]byte("BCF\x02\x02"), []byte("BCF\x03\x02"), false},
		{[]byte("BCF\x02\x02"), []byte("BCF\x02"), false},
		{[]byte("BCF\x02\x02"), []byte(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.input), func(t *testing.T) {
			err := ExpectBytes(bytes.NewReader(tc.input), tc.want)
			if err != nil && tc.match {
				t.Fatalf("ExpectBytes returned unexpected error: %v", err)
			} else if err == nil && !tc.match {
				t.Fatalf("ExpectBytes accepted mismatched input %v", tc.match)
			}
		})
	}
}

func TestReadNames(t *testing.T) {
	testCases := []struct {
		name  string
		names []string
	}{
		{"empty", nil},
		{"single", []string{"chr1"}},
		{"several", []string{"1", "2", "X", "GL000249.1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buffer bytes.Buffer
			if err := WriteNames(&buffer, tc.names); err != nil {
				t.Fatalf("WriteNames() failed: %v", err)
			}
			got, err := ReadNames(&buffer)
			if err != nil {
				t.Fatalf("ReadNames() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.names) {
				t.Errorf("ReadNames(): got %q, want %q", got, tc.names)
			}
		})
	}
}

func TestReadNames_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input []byte
	}{
		{"truncated length", []byte{1, 0}},
		{"negative length", []byte{0xff, 0xff, 0xff, 0xff}},
		{"truncated names", []byte{4, 0, 0, 0, 'c', 'h'}},
		{"unterminated", []byte{2, 0, 0, 0, 'c', 'h'}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got, err := ReadNames(bytes.NewReader(tc.input)); err == nil {
				t.Errorf("Unexpected success: got %q, wanted error", got)
			}
		})
	}
}
