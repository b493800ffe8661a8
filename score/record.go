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

// Package score serves range queries over positional genomic score files:
// bgzip-compressed, tabix-indexed tables that assign values to chromosome
// ranges.
package score

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"
)

// ErrConfig is wrapped by errors caused by an invalid score file
// description.
var ErrConfig = errors.New("invalid score file configuration")

// columnLayout holds the positions of the columns that place a record on
// the genome.
type columnLayout struct {
	chrom, begin, end int
}

// Record is one row of a score file.  Begin and End are one-based and
// inclusive.
type Record struct {
	Chrom      string
	Begin, End int

	fields []string
}

// NewRecord returns a Record over fields whose location is read from the
// given columns.  It fails on malformed positions.
func NewRecord(fields []string, chrom, begin, end int) (*Record, error) {
	return newRecord(columnLayout{chrom: chrom, begin: begin, end: end}, fields)
}

func newRecord(layout columnLayout, fields []string) (*Record, error) {
	for _, column := range []int{layout.chrom, layout.begin, layout.end} {
		if column < 0 || column >= len(fields) {
			return nil, fmt.Errorf("malformed record %q: missing column %d", strings.Join(fields, "\t"), column)
		}
	}
	begin, err := strconv.Atoi(fields[layout.begin])
	if err != nil {
		return nil, fmt.Errorf("malformed record %q: %v", strings.Join(fields, "\t"), err)
	}
	end, err := strconv.Atoi(fields[layout.end])
	if err != nil {
		return nil, fmt.Errorf("malformed record %q: %v", strings.Join(fields, "\t"), err)
	}
	return &Record{
		Chrom:  fields[layout.chrom],
		Begin:  begin,
		End:    end,
		fields: fields,
	}, nil
}

// Field returns the i-th column, or "" when the record is shorter.
func (r *Record) Field(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Len returns the number of columns.
func (r *Record) Len() int {
	return len(r.fields)
}

func (r *Record) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Begin, r.End)
}

// The accessors below read an optional record with the defaults of an empty
// window: no chromosome and positions of -1.

func chromOf(record optional.Option[*Record]) string {
	if r, err := record.Take(); err == nil {
		return r.Chrom
	}
	return ""
}

func beginOf(record optional.Option[*Record]) int {
	if r, err := record.Take(); err == nil {
		return r.Begin
	}
	return -1
}

func endOf(record optional.Option[*Record]) int {
	if r, err := record.Take(); err == nil {
		return r.End
	}
	return -1
}

// isNullMarker reports whether marker stands for "no value" rather than a
// literal string.
func isNullMarker(marker string) bool {
	switch strings.ToLower(marker) {
	case "na", "none":
		return true
	}
	return false
}
