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
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/iossifovlab/scoreget/genomics"
	"github.com/iossifovlab/scoreget/source"
	"github.com/moznion/go-optional"
)

// CountColumn is the name under which FetchScores results carry the number
// of query positions covered by each record.
const CountColumn = "COUNT"

const defaultNoScoreValue = "na"

// ScoreFile answers score queries against one score file.  It owns open
// handles and a query window, so it must not be shared between goroutines;
// open one ScoreFile per worker instead.
type ScoreFile struct {
	path     string
	config   *Config
	schema   *Schema
	accessor RangeAccessor
	logger   *log.Logger

	layout       columnLayout
	scoreNames   []string
	scoreIndices []int
	ref, alt     int
	chrPrefix    bool
	marker       string
}

type options struct {
	configPath   string
	config       *Config
	logger       *log.Logger
	accessSwitch int
	longJump     int
}

// An Option configures Open and OpenFrom.
type Option func(*options)

// WithConfigPath reads the description of the score file from path instead
// of the file next to the data.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithConfig uses an already decoded description of the score file.
func WithConfig(config *Config) Option {
	return func(o *options) { o.config = config }
}

// WithLogger sends warnings to logger instead of the standard logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithThresholds overrides the distances that steer the tabix backend
// between its sequential and direct paths.  Zero keeps a default.
func WithThresholds(accessSwitch, longJump int) Option {
	return func(o *options) { o.accessSwitch, o.longJump = accessSwitch, longJump }
}

// Open opens a score file from the local file system.
func Open(path string, opts ...Option) (*ScoreFile, error) {
	return OpenFrom(context.Background(), source.FileOpener{}, path, opts...)
}

// OpenFrom opens the score file at path through opener.  Unless WithConfig
// is given, the description is read from path+ConfigSuffix.
func OpenFrom(ctx context.Context, opener source.Opener, path string, opts ...Option) (*ScoreFile, error) {
	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	exists, err := opener.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	} else if !exists {
		return nil, fmt.Errorf("score file %s: %w", path, source.ErrNotExist)
	}

	config := o.config
	if config == nil {
		configPath := o.configPath
		if configPath == "" {
			configPath = path + ConfigSuffix
		}
		if config, err = loadConfig(ctx, opener, configPath); err != nil {
			return nil, err
		}
	}

	format, err := ParseFormat(config.Misc.Format)
	if err != nil {
		return nil, err
	}
	backend, err := lookupBackend(format)
	if err != nil {
		return nil, err
	}

	sf := &ScoreFile{path: path, config: config, logger: o.logger}
	sf.accessor, err = backend(ctx, BackendConfig{
		Opener:                opener,
		Path:                  path,
		NewRecord:             sf.newRecord,
		Logger:                o.logger,
		AccessSwitchThreshold: o.accessSwitch,
		LongJumpThreshold:     o.longJump,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := sf.init(); err != nil {
		sf.accessor.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return sf, nil
}

func loadConfig(ctx context.Context, opener source.Opener, path string) (*Config, error) {
	object, err := opener.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
	}
	defer object.Close()
	return ReadConfig(io.NewSectionReader(object, 0, object.Size()))
}

func (sf *ScoreFile) init() error {
	config := sf.config

	header := config.General.Header
	if len(header) == 0 {
		var err error
		if header, err = sf.readHeader(); err != nil {
			return err
		}
	}
	schema, err := newSchema(header, config.ScoreSchema)
	if err != nil {
		return err
	}
	sf.schema = schema

	roles := []struct {
		role, column string
		index        *int
	}{
		{"chr", config.Columns.Chr, &sf.layout.chrom},
		{"pos_begin", config.Columns.PosBegin, &sf.layout.begin},
		{"pos_end", config.Columns.PosEndColumn(), &sf.layout.end},
	}
	for _, r := range roles {
		if r.column == "" {
			return fmt.Errorf("%w: no column given for %s", ErrConfig, r.role)
		}
		if *r.index = schema.Index(r.column); *r.index < 0 {
			return fmt.Errorf("%w: %s column %q is not in the header", ErrConfig, r.role, r.column)
		}
	}

	sf.ref, sf.alt = -1, -1
	for _, r := range []struct {
		role, column string
		index        *int
	}{
		{"ref", config.Columns.Ref, &sf.ref},
		{"alt", config.Columns.Alt, &sf.alt},
	} {
		if r.column == "" {
			continue
		}
		if *r.index = schema.Index(r.column); *r.index < 0 {
			return fmt.Errorf("%w: %s column %q is not in the header", ErrConfig, r.role, r.column)
		}
	}

	if len(config.Columns.Score) == 0 {
		return fmt.Errorf("%w: no score columns", ErrConfig)
	}
	for _, name := range config.Columns.Score {
		i := schema.Index(name)
		if i < 0 {
			return fmt.Errorf("%w: score %q is not in the schema %v", ErrConfig, name, schema.Names())
		}
		sf.scoreNames = append(sf.scoreNames, name)
		sf.scoreIndices = append(sf.scoreIndices, i)
	}

	if config.General.ChrPrefix != nil {
		sf.chrPrefix = *config.General.ChrPrefix
	} else if contigs, ok := sf.accessor.(contigSource); ok {
		if names := contigs.Contigs(); len(names) > 0 {
			sf.chrPrefix = strings.HasPrefix(names[len(names)-1], genomics.ChromPrefix)
		}
	}

	sf.marker = config.General.NoScoreValue
	if sf.marker == "" {
		sf.marker = defaultNoScoreValue
	}
	return nil
}

// readHeader takes the column names from the last meta line of the file.
func (sf *ScoreFile) readHeader() ([]string, error) {
	headers, ok := sf.accessor.(headerSource)
	if !ok {
		return nil, fmt.Errorf("%w: no header given", ErrConfig)
	}
	lines, err := headers.HeaderLines()
	if err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no header given and none in the file", ErrConfig)
	}
	last := strings.TrimPrefix(lines[len(lines)-1], "#")
	return strings.Split(last, "\t"), nil
}

func (sf *ScoreFile) newRecord(fields []string) (*Record, error) {
	return newRecord(sf.layout, fields)
}

// Path returns the location of the score file.
func (sf *ScoreFile) Path() string { return sf.path }

// ScoreNames returns the names of the score columns.
func (sf *ScoreFile) ScoreNames() []string {
	return append([]string(nil), sf.scoreNames...)
}

// Schema returns the columns of the file.
func (sf *ScoreFile) Schema() *Schema { return sf.schema }

// NoScoreValue returns the value reported for missing scores: nothing when
// the marker is "na" or "none", otherwise the marker itself.
func (sf *ScoreFile) NoScoreValue() optional.Option[string] {
	if isNullMarker(sf.marker) {
		return optional.None[string]()
	}
	return optional.Some(sf.marker)
}

// Contigs returns the chromosome names of the file, when the backend knows
// them.
func (sf *ScoreFile) Contigs() []string {
	if contigs, ok := sf.accessor.(contigSource); ok {
		return contigs.Contigs()
	}
	return nil
}

// Stats returns the access counters of the backend.
func (sf *ScoreFile) Stats() Stats { return sf.accessor.Stats() }

// Close releases the handles of the file.
func (sf *ScoreFile) Close() error {
	return sf.accessor.Close()
}

// Scores holds the values of the records overlapping a query, one entry per
// record in file order.
type Scores struct {
	// Names lists the columns in header order.
	Names []string
	// Count holds the number of query positions covered by each record.
	Count []int
	// Columns maps column names to values.  Missing values are None.
	Columns map[string][]optional.Option[string]
}

// Len returns the number of records.
func (s *Scores) Len() int { return len(s.Count) }

func (sf *ScoreFile) newScores() *Scores {
	scores := &Scores{
		Names:   sf.schema.Names(),
		Columns: make(map[string][]optional.Option[string], len(sf.schema.Columns)),
	}
	for _, name := range scores.Names {
		scores.Columns[name] = nil
	}
	return scores
}

func (sf *ScoreFile) add(scores *Scores, r *Record, begin, end int) {
	scores.Count = append(scores.Count, min(end, r.End)-max(r.Begin, begin)+1)
	for i, name := range scores.Names {
		scores.Columns[name] = append(scores.Columns[name], sf.value(r.Field(i)))
	}
}

func (sf *ScoreFile) value(field string) optional.Option[string] {
	if sf.missing(field) {
		return optional.None[string]()
	}
	return optional.Some(field)
}

func (sf *ScoreFile) missing(field string) bool {
	return strings.EqualFold(field, sf.marker)
}

func (sf *ScoreFile) validRange(chrom string, begin, end int) bool {
	if end < begin {
		sf.logger.Printf("Warning: invalid region %s:%d-%d in %s", chrom, begin, end, sf.path)
		return false
	}
	return true
}

// FetchScores returns the values of every column for the records that
// overlap chrom:[begin, end], together with the coverage of each record.
func (sf *ScoreFile) FetchScores(chrom string, begin, end int) (*Scores, error) {
	scores := sf.newScores()
	if !sf.validRange(chrom, begin, end) {
		return scores, nil
	}

	chrom = genomics.HandleChromPrefix(sf.chrPrefix, chrom)
	records, err := sf.accessor.Fetch(chrom, begin, end)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		sf.add(scores, r, begin, end)
	}
	return scores, nil
}

// FetchAlleleScores returns the values of the records at chrom:pos whose
// reference and alternative alleles match.  The file must name its allele
// columns.
func (sf *ScoreFile) FetchAlleleScores(chrom string, pos int, ref, alt string) (*Scores, error) {
	if sf.ref < 0 || sf.alt < 0 {
		return nil, fmt.Errorf("%w: %s has no allele columns", ErrConfig, sf.path)
	}

	chrom = genomics.HandleChromPrefix(sf.chrPrefix, chrom)
	records, err := sf.accessor.Fetch(chrom, pos, pos)
	if err != nil {
		return nil, err
	}
	scores := sf.newScores()
	for _, r := range records {
		if r.Field(sf.ref) == ref && r.Field(sf.alt) == alt {
			sf.add(scores, r, pos, pos)
		}
	}
	return scores, nil
}

// Table holds score columns converted to numbers.
type Table struct {
	Count []int
	// Columns maps score names to values; missing values are NaN.
	Columns map[string][]float32
}

// FetchScoresTable is FetchScores restricted to the score columns, with the
// values parsed as numbers.
func (sf *ScoreFile) FetchScoresTable(chrom string, begin, end int) (*Table, error) {
	scores, err := sf.FetchScores(chrom, begin, end)
	if err != nil {
		return nil, err
	}

	table := &Table{Count: scores.Count, Columns: make(map[string][]float32, len(sf.scoreNames))}
	nan := float32(math.NaN())
	for _, name := range sf.scoreNames {
		column := make([]float32, 0, scores.Len())
		for _, value := range scores.Columns[name] {
			v, err := value.Take()
			if err != nil || strings.EqualFold(v, "na") {
				column = append(column, nan)
				continue
			}
			parsed, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return nil, fmt.Errorf("parsing %s value %q: %v", name, v, err)
			}
			column = append(column, float32(parsed))
		}
		table.Columns[name] = column
	}
	return table, nil
}

// FetchHighestScores returns, for every score column, the largest value of
// the records overlapping chrom:[begin, end].  Missing values are ignored; a
// column with no values maps to NaN.  The query always uses a direct lookup
// and leaves the query window untouched.
func (sf *ScoreFile) FetchHighestScores(chrom string, begin, end int) (map[string]float64, error) {
	result := make(map[string]float64)
	if !sf.validRange(chrom, begin, end) {
		return result, nil
	}

	chrom = genomics.HandleChromPrefix(sf.chrPrefix, chrom)
	records, err := sf.accessor.FetchDirect(chrom, begin, end)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return result, nil
	}

	for i, name := range sf.scoreNames {
		highest := math.NaN()
		for _, r := range records {
			field := r.Field(sf.scoreIndices[i])
			if sf.missing(field) {
				continue
			}
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %s value %q of %s: %v", name, field, r, err)
			}
			if math.IsNaN(highest) || value > highest {
				highest = value
			}
		}
		result[name] = highest
	}
	return result, nil
}
