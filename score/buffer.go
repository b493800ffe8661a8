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
	"fmt"

	"github.com/moznion/go-optional"
)

// RowSource is a stream of split rows, such as a *tabix.Iterator.
type RowSource interface {
	Next() bool
	Fields() []string
	Err() error
}

// WindowBuffer is an ordered window of records of one chromosome together
// with the row source it is filled from.  Rows from the source must be
// sorted by begin position and belong to a single chromosome; this is not
// checked.
type WindowBuffer struct {
	newRecord func([]string) (*Record, error)
	records   []*Record
	source    RowSource
}

// NewWindowBuffer returns an empty window that builds records from source
// rows with newRecord.
func NewWindowBuffer(newRecord func([]string) (*Record, error)) *WindowBuffer {
	return &WindowBuffer{newRecord: newRecord}
}

// SetSource replaces the row source.  A nil source marks the window as not
// positioned: Fill does nothing until a new source is set.
func (b *WindowBuffer) SetSource(source RowSource) {
	b.source = source
}

// Positioned reports whether the window has a row source.
func (b *WindowBuffer) Positioned() bool {
	return b.source != nil
}

// Append adds r to the back of the window.
func (b *WindowBuffer) Append(r *Record) {
	b.records = append(b.records, r)
}

// Reset drops all records.  The source is left in place.
func (b *WindowBuffer) Reset() {
	b.records = nil
}

// PopFront removes and returns the first record.
func (b *WindowBuffer) PopFront() optional.Option[*Record] {
	if len(b.records) == 0 {
		return optional.None[*Record]()
	}
	front := b.records[0]
	b.records[0] = nil
	b.records = b.records[1:]
	return optional.Some(front)
}

// Front returns the first record.
func (b *WindowBuffer) Front() optional.Option[*Record] {
	if len(b.records) == 0 {
		return optional.None[*Record]()
	}
	return optional.Some(b.records[0])
}

// Back returns the last record.
func (b *WindowBuffer) Back() optional.Option[*Record] {
	if len(b.records) == 0 {
		return optional.None[*Record]()
	}
	return optional.Some(b.records[len(b.records)-1])
}

// Len returns the number of buffered records.
func (b *WindowBuffer) Len() int { return len(b.records) }

// Chrom returns the chromosome of the window, or "" when it is empty.
func (b *WindowBuffer) Chrom() string { return chromOf(b.Front()) }

// Begin returns the begin of the first record, or -1 when empty.
func (b *WindowBuffer) Begin() int { return beginOf(b.Front()) }

// End returns the end of the last record, or -1 when empty.
func (b *WindowBuffer) End() int { return endOf(b.Back()) }

// Purge drops records from the front that cannot overlap a query at begin
// or later: records of another chromosome and records ending before begin.
// It stops at the first record that may still overlap.
func (b *WindowBuffer) Purge(chrom string, begin, end int) {
	for len(b.records) > 0 {
		front := b.records[0]
		if front.Chrom == chrom && front.End >= begin {
			return
		}
		b.PopFront()
	}
}

// Fill extends the window from the source so that it covers [begin, end].
// Source records ending before begin are skipped.  After the first record
// reaching begin, records are appended until one ends after end, so the
// window overshoots the query by one record.
//
// Fill does nothing when the window already extends past end on chrom or
// when there is no source.  The check looks only at the last record, so with
// overlapping records a long record at the back hides later-starting records
// that also overlap [begin, end]; FetchDirect returns them.
func (b *WindowBuffer) Fill(chrom string, begin, end int) error {
	if b.Chrom() == chrom && b.End() > end {
		return nil
	}
	if b.source == nil {
		return nil
	}

	var first *Record
	for b.source.Next() {
		r, err := b.newRecord(b.source.Fields())
		if err != nil {
			return err
		}
		if r.End >= begin {
			first = r
			break
		}
	}
	if first == nil {
		return b.source.Err()
	}
	b.Append(first)

	for b.source.Next() {
		r, err := b.newRecord(b.source.Fields())
		if err != nil {
			return err
		}
		if r.Chrom != first.Chrom {
			return fmt.Errorf("record %s in window of %s", r, first.Chrom)
		}
		b.Append(r)
		if r.End > end {
			return nil
		}
	}
	return b.source.Err()
}

// Select returns the buffered records of chrom whose closed interval
// intersects [begin, end].
func (b *WindowBuffer) Select(chrom string, begin, end int) []*Record {
	var selected []*Record
	for _, r := range b.records {
		if r.Chrom != chrom {
			continue
		}
		if intersects(begin, end, r.Begin, r.End) {
			selected = append(selected, r)
		}
	}
	return selected
}

// intersects reports whether the closed intervals [b1, e1] and [b2, e2]
// share a position: either one contains an endpoint of the other.
func intersects(b1, e1, b2, e2 int) bool {
	return (b2 <= b1 && b1 <= e2) || (b2 <= e1 && e1 <= e2) ||
		(b1 <= b2 && b2 <= e1) || (b1 <= e2 && e2 <= e1)
}
