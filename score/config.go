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
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ConfigSuffix is appended to a score file path to find its default config.
const ConfigSuffix = ".json"

// Config describes the layout of a score file.  It is usually read from a
// JSON file kept next to the data.
type Config struct {
	General     General `json:"general"`
	Columns     Columns `json:"columns"`
	ScoreSchema Typed   `json:"score_schema"`
	Misc        Misc    `json:"misc"`
}

// General holds the properties of the file as a whole.
type General struct {
	// Header names the columns.  When empty the last meta line of the file
	// is used.
	Header List `json:"header"`
	// NoScoreValue marks missing scores.  It defaults to "na".
	NoScoreValue string `json:"no_score_value"`
	// ChrPrefix tells whether the file names chromosomes "chr1" rather than
	// "1".  When unset it is detected from the index.
	ChrPrefix *bool `json:"chr_prefix"`
}

// Columns assigns roles to header columns.
type Columns struct {
	Chr      string `json:"chr"`
	PosBegin string `json:"pos_begin"`
	PosEnd   string `json:"pos_end"`
	Ref      string `json:"ref"`
	Alt      string `json:"alt"`
	Score    List   `json:"score"`
}

// Typed maps a column type ("str", "float" or "int") to column names.
type Typed map[string]List

// Misc holds the storage format, "tsv" (the default), "bedgraph", "bigwig"
// or "bw".
type Misc struct {
	Format string `json:"format"`
}

// List is a list of names written either as a JSON array or as a single
// comma separated string.
type List []string

// UnmarshalJSON accepts both spellings of a List.
func (l *List) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		*l = names
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*l = nil
	for _, name := range strings.Split(joined, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*l = append(*l, name)
		}
	}
	return nil
}

// ReadConfig decodes a JSON config from r.
func ReadConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := json.UnmarshalDecode(jsontext.NewDecoder(r), &config); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", ErrConfig, err)
	}
	return &config, nil
}

// PosEndColumn returns the end column, which defaults to the begin column
// for files of single-position records.
func (c *Columns) PosEndColumn() string {
	if c.PosEnd == "" {
		return c.PosBegin
	}
	return c.PosEnd
}
