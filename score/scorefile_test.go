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
	"context"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iossifovlab/scoreget/internal/tabixtest"
	"github.com/iossifovlab/scoreget/source"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoreConfig = `{
	"general": {"header": ["chrom", "begin", "end", "score"]},
	"columns": {"chr": "chrom", "pos_begin": "begin", "pos_end": "end", "score": ["score"]},
	"score_schema": {"float": ["score"]}
}`

var e2eLines = []string{
	"chr1\t100\t110\t0.5",
	"chr1\t120\t130\t0.7",
	"chr1\t200\t210\t0.9",
}

// writeScoreFile writes a tabix-indexed score file with four columns
// (chrom, begin, end, score) and, unless config is empty, its JSON config.
func writeScoreFile(t *testing.T, config string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scores.tsv.gz")
	_, err := tabixtest.Write(path, tabixtest.Generic(1, 2, 3), []string{"#chrom\tbegin\tend\tscore"}, lines)
	require.NoError(t, err)
	if config != "" {
		require.NoError(t, os.WriteFile(path+ConfigSuffix, []byte(config), 0o644))
	}
	return path
}

func openScoreFile(t *testing.T, path string, opts ...Option) (*ScoreFile, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	opts = append([]Option{WithLogger(log.New(&logs, "", 0))}, opts...)
	sf, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sf.Close() })
	return sf, &logs
}

func values(scores *Scores, name string) []string {
	var out []string
	for _, value := range scores.Columns[name] {
		out = append(out, value.TakeOr("<missing>"))
	}
	return out
}

func TestScoreFile_EndToEnd(t *testing.T) {
	sf, _ := openScoreFile(t, writeScoreFile(t, scoreConfig, e2eLines))

	testCases := []struct {
		begin, end int
		want       []string
		resets     int
	}{
		{105, 125, []string{"0.5", "0.7"}, 1},
		{205, 210, []string{"0.9"}, 1},
		{100, 101, []string{"0.5"}, 2},
	}
	for _, tc := range testCases {
		scores, err := sf.FetchScores("chr1", tc.begin, tc.end)
		require.NoError(t, err)
		assert.Equal(t, tc.want, values(scores, "score"), "chr1:%d-%d", tc.begin, tc.end)

		stats := sf.Stats()
		assert.Equal(t, PathSequential, stats.Last)
		assert.Equal(t, tc.resets, stats.Resets)
	}
	assert.Equal(t, 0, sf.Stats().Direct)
}

func TestScoreFile_Count(t *testing.T) {
	sf, _ := openScoreFile(t, writeScoreFile(t, scoreConfig, []string{"chr1\t10\t15\t0.3", "chr1\t18\t30\t0.4"}))

	scores, err := sf.FetchScores("chr1", 12, 20)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3}, scores.Count)
	assert.Equal(t, []string{"chrom", "begin", "end", "score"}, scores.Names)
	assert.Equal(t, []optional.Option[string]{optional.Some("10"), optional.Some("18")}, scores.Columns["begin"])
	assert.Equal(t, 2, scores.Len())
}

func TestScoreFile_Idempotent(t *testing.T) {
	sf, _ := openScoreFile(t, writeScoreFile(t, scoreConfig, e2eLines))

	for _, query := range [][2]int{{105, 125}, {3000, 3100}, {120, 205}} {
		first, err := sf.FetchScores("chr1", query[0], query[1])
		require.NoError(t, err)
		second, err := sf.FetchScores("chr1", query[0], query[1])
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestScoreFile_FetchHighestScores(t *testing.T) {
	config := `{
		"general": {"header": ["chrom", "begin", "end", "a", "b"]},
		"columns": {"chr": "chrom", "pos_begin": "begin", "pos_end": "end", "score": "a,b"}
	}`
	path := filepath.Join(t.TempDir(), "scores.tsv.gz")
	_, err := tabixtest.Write(path, tabixtest.Generic(1, 2, 3), nil, []string{
		"chr1\t10\t12\t0.2\tNA",
		"chr1\t13\t14\t0.5\tna",
		"chr1\t15\t16\tna\tNA",
		"chr1\t50\t60\t0.1\t0.3",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+ConfigSuffix, []byte(config), 0o644))
	sf, _ := openScoreFile(t, path)

	result, err := sf.FetchHighestScores("chr1", 10, 16)
	require.NoError(t, err)
	assert.Equal(t, 0.5, result["a"])
	assert.True(t, math.IsNaN(result["b"]), "all values missing")

	result, err = sf.FetchHighestScores("chr1", 30, 40)
	require.NoError(t, err)
	assert.Empty(t, result)

	result, err = sf.FetchHighestScores("chr7", 1, 100)
	require.NoError(t, err)
	assert.Empty(t, result)

	// Highest scores never touch the query window.
	assert.Equal(t, Stats{}, sf.Stats())
}

func TestScoreFile_MissingValues(t *testing.T) {
	testCases := []struct {
		name   string
		marker string
		want   optional.Option[string]
		values []string
	}{
		{"default", "", optional.None[string](), []string{"0.1", "<missing>", "<missing>", "-"}},
		{"none", "None", optional.None[string](), []string{"0.1", "NA", "na", "-"}},
		{"literal", "-", optional.Some("-"), []string{"0.1", "NA", "na", "<missing>"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := strings.Replace(scoreConfig, `"general": {`, `"general": {"no_score_value": "`+tc.marker+`", `, 1)
			path := writeScoreFile(t, config, []string{
				"chr1\t1\t1\t0.1",
				"chr1\t2\t2\tNA",
				"chr1\t3\t3\tna",
				"chr1\t4\t4\t-",
			})
			sf, _ := openScoreFile(t, path)
			assert.Equal(t, tc.want, sf.NoScoreValue())

			scores, err := sf.FetchScores("chr1", 1, 4)
			require.NoError(t, err)
			assert.Equal(t, tc.values, values(scores, "score"))
		})
	}
}

func TestScoreFile_FetchScoresTable(t *testing.T) {
	sf, _ := openScoreFile(t, writeScoreFile(t, scoreConfig, []string{
		"chr1\t1\t5\t0.25",
		"chr1\t6\t9\tNA",
	}))

	table, err := sf.FetchScoresTable("chr1", 3, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, table.Count)
	require.Len(t, table.Columns["score"], 2)
	assert.Equal(t, float32(0.25), table.Columns["score"][0])
	assert.True(t, math.IsNaN(float64(table.Columns["score"][1])))
}

func TestScoreFile_FetchAlleleScores(t *testing.T) {
	config := `{
		"columns": {"chr": "chrom", "pos_begin": "pos", "ref": "ref", "alt": "alt", "score": ["cadd"]},
		"score_schema": {"float": ["cadd"], "str": ["ref", "alt"]}
	}`
	path := filepath.Join(t.TempDir(), "alleles.tsv.gz")
	_, err := tabixtest.Write(path, tabixtest.Generic(1, 2, 0), []string{"#chrom\tpos\tref\talt\tcadd"}, []string{
		"1\t100\tA\tC\t1.5",
		"1\t100\tA\tG\t2.5",
		"1\t100\tA\tT\t3.5",
		"1\t101\tC\tA\t4.5",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+ConfigSuffix, []byte(config), 0o644))
	sf, _ := openScoreFile(t, path)

	scores, err := sf.FetchAlleleScores("1", 100, "A", "G")
	require.NoError(t, err)
	assert.Equal(t, []string{"2.5"}, values(scores, "cadd"))
	assert.Equal(t, []int{1}, scores.Count)

	scores, err = sf.FetchAlleleScores("chr1", 101, "C", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"4.5"}, values(scores, "cadd"))

	scores, err = sf.FetchAlleleScores("1", 101, "C", "T")
	require.NoError(t, err)
	assert.Equal(t, 0, scores.Len())

	plain, _ := openScoreFile(t, writeScoreFile(t, scoreConfig, e2eLines))
	_, err = plain.FetchAlleleScores("chr1", 100, "A", "C")
	assert.ErrorIs(t, err, ErrConfig)
}

func TestScoreFile_HeaderFromFile(t *testing.T) {
	config := `{"columns": {"chr": "chrom", "pos_begin": "begin", "pos_end": "end", "score": ["score"]}}`
	sf, _ := openScoreFile(t, writeScoreFile(t, config, e2eLines))

	assert.Equal(t, []string{"chrom", "begin", "end", "score"}, sf.Schema().Names())
	assert.Equal(t, []string{"score"}, sf.ScoreNames())
	assert.Equal(t, []string{"chr1"}, sf.Contigs())
}

func TestScoreFile_ChromPrefix(t *testing.T) {
	bare := []string{"1\t100\t110\t0.5", "2\t100\t110\t0.6"}
	forced := strings.Replace(scoreConfig, `"general": {`, `"general": {"chr_prefix": true, `, 1)

	testCases := []struct {
		name   string
		config string
		lines  []string
		chrom  string
		want   []string
	}{
		{"prefixed file, bare query", scoreConfig, e2eLines, "1", []string{"0.5"}},
		{"prefixed file, prefixed query", scoreConfig, e2eLines, "chr1", []string{"0.5"}},
		{"bare file, prefixed query", scoreConfig, bare, "chr2", []string{"0.6"}},
		{"bare file, bare query", scoreConfig, bare, "2", []string{"0.6"}},
		{"forced prefix on bare file", forced, bare, "2", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sf, _ := openScoreFile(t, writeScoreFile(t, tc.config, tc.lines))
			scores, err := sf.FetchScores(tc.chrom, 105, 106)
			require.NoError(t, err)
			assert.Equal(t, tc.want, values(scores, "score"))
		})
	}
}

func TestScoreFile_InvalidRange(t *testing.T) {
	sf, logs := openScoreFile(t, writeScoreFile(t, scoreConfig, e2eLines))

	scores, err := sf.FetchScores("chr1", 110, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, scores.Len())
	assert.Contains(t, logs.String(), "Warning: invalid region chr1:110-100")
}

func TestOpen_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		config string
		setup  func(path string) error
		want   error
	}{
		{
			name:   "missing index",
			config: scoreConfig,
			setup:  func(path string) error { return os.Remove(path + ".tbi") },
			want:   ErrConfig,
		},
		{
			name:   "missing config",
			config: "",
			want:   ErrConfig,
		},
		{
			name:   "malformed config",
			config: `{"general": `,
			want:   ErrConfig,
		},
		{
			name:   "unknown score",
			config: strings.Replace(scoreConfig, `"score": ["score"]`, `"score": ["phylop"]`, 1),
			want:   ErrConfig,
		},
		{
			name:   "no scores",
			config: strings.Replace(scoreConfig, `"score": ["score"]`, `"score": []`, 1),
			want:   ErrConfig,
		},
		{
			name:   "missing chromosome column",
			config: strings.Replace(scoreConfig, `"chr": "chrom", `, ``, 1),
			want:   ErrConfig,
		},
		{
			name:   "unknown position column",
			config: strings.Replace(scoreConfig, `"pos_begin": "begin"`, `"pos_begin": "start"`, 1),
			want:   ErrConfig,
		},
		{
			name:   "unknown column type",
			config: strings.Replace(scoreConfig, `"float"`, `"double"`, 1),
			want:   ErrConfig,
		},
		{
			name:   "unknown format",
			config: strings.Replace(scoreConfig, `"score_schema"`, `"misc": {"format": "parquet"}, "score_schema"`, 1),
			want:   ErrConfig,
		},
		{
			name:   "bigwig without backend",
			config: strings.Replace(scoreConfig, `"score_schema"`, `"misc": {"format": "bigWig"}, "score_schema"`, 1),
			want:   ErrConfig,
		},
		{
			name:   "missing data",
			config: scoreConfig,
			setup:  os.Remove,
			want:   source.ErrNotExist,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScoreFile(t, tc.config, e2eLines)
			if tc.setup != nil {
				require.NoError(t, tc.setup(path))
			}
			_, err := Open(path)
			if !errors.Is(err, tc.want) {
				t.Errorf("Open(): got error %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOpen_WithConfig(t *testing.T) {
	path := writeScoreFile(t, "", e2eLines)
	config, err := ReadConfig(strings.NewReader(scoreConfig))
	require.NoError(t, err)

	sf, _ := openScoreFile(t, path, WithConfig(config))
	assert.Equal(t, []string{"score"}, sf.ScoreNames())

	other := filepath.Join(t.TempDir(), "other.json")
	require.NoError(t, os.WriteFile(other, []byte(scoreConfig), 0o644))
	sf, _ = openScoreFile(t, path, WithConfigPath(other))
	assert.Equal(t, path, sf.Path())
}

type fakeAccessor struct {
	rows      [][]string
	newRecord func([]string) (*Record, error)
	closed    bool
}

func (a *fakeAccessor) Fetch(chrom string, begin, end int) ([]*Record, error) {
	return a.FetchDirect(chrom, begin, end)
}

func (a *fakeAccessor) FetchDirect(chrom string, begin, end int) ([]*Record, error) {
	var out []*Record
	for _, row := range a.rows {
		r, err := a.newRecord(row)
		if err != nil {
			return nil, err
		}
		if r.Chrom == chrom && intersects(begin, end, r.Begin, r.End) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *fakeAccessor) Stats() Stats { return Stats{} }

func (a *fakeAccessor) Close() error {
	a.closed = true
	return nil
}

func TestRegisterBackend(t *testing.T) {
	accessor := &fakeAccessor{rows: [][]string{{"1", "10", "20", "7"}}}
	RegisterBackend(FormatBigWig, func(_ context.Context, config BackendConfig) (RangeAccessor, error) {
		assert.True(t, strings.HasSuffix(config.Path, ".bw"))
		accessor.newRecord = config.NewRecord
		return accessor, nil
	})
	defer func() {
		backendsMu.Lock()
		delete(backends, FormatBigWig)
		backendsMu.Unlock()
	}()

	path := filepath.Join(t.TempDir(), "track.bw")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	config, err := ReadConfig(strings.NewReader(scoreConfig))
	require.NoError(t, err)
	config.Misc.Format = "bw"
	bare := false
	config.General.ChrPrefix = &bare

	sf, err := Open(path, WithConfig(config))
	require.NoError(t, err)
	scores, err := sf.FetchScores("chr1", 15, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, values(scores, "score"))
	assert.Equal(t, []int{6}, scores.Count)
	assert.Nil(t, sf.Contigs())

	require.NoError(t, sf.Close())
	assert.True(t, accessor.closed)
}
