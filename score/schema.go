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
	"sort"
	"strings"
)

// Column types of a Schema.
const (
	TypeString = "str"
	TypeFloat  = "float"
	TypeInt    = "int"
)

// Column is a named, typed column of a score file.
type Column struct {
	Name string
	Type string
}

// Schema lists the columns of a score file in header order.
type Schema struct {
	Columns []Column
}

// newSchema types every header column from typed.  Columns missing from
// typed are strings.
func newSchema(header []string, typed Typed) (*Schema, error) {
	types := make(map[string]string)
	// Sorted for deterministic error messages.
	var kinds []string
	for kind := range typed {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		kind := strings.ToLower(kind)
		switch kind {
		case TypeString, TypeFloat, TypeInt:
		default:
			return nil, fmt.Errorf("%w: unknown column type %q", ErrConfig, kind)
		}
	}
	for _, kind := range kinds {
		for _, name := range typed[kind] {
			if previous, ok := types[name]; ok {
				return nil, fmt.Errorf("%w: column %q typed both %s and %s", ErrConfig, name, previous, kind)
			}
			types[name] = strings.ToLower(kind)
		}
	}

	schema := &Schema{}
	seen := make(map[string]bool)
	for _, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrConfig, name)
		}
		seen[name] = true
		kind, ok := types[name]
		if !ok {
			kind = TypeString
		}
		schema.Columns = append(schema.Columns, Column{Name: name, Type: kind})
	}
	for name := range types {
		if !seen[name] {
			return nil, fmt.Errorf("%w: typed column %q is not in the header", ErrConfig, name)
		}
	}
	return schema, nil
}

// Index returns the position of the named column, or -1.
func (s *Schema) Index(name string) int {
	for i, column := range s.Columns {
		if column.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, column := range s.Columns {
		names[i] = column.Name
	}
	return names
}
