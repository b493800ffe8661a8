// Copyright 2017 Google Inc.
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

package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/iossifovlab/scoreget/genomics"
	"github.com/iossifovlab/scoreget/score"
)

// queryFile prints the scores of sf in region to w, as a table of records or
// as the highest value of each score.
func queryFile(sf *score.ScoreFile, region genomics.Region, highest bool, w io.Writer) error {
	begin, end := region.Bounds()
	if highest {
		values, err := sf.FetchHighestScores(region.Chrom, begin, end)
		if err != nil {
			return err
		}
		return printHighest(w, sf.ScoreNames(), values)
	}

	scores, err := sf.FetchScores(region.Chrom, begin, end)
	if err != nil {
		return err
	}
	return printScores(w, scores, sf.NoScoreValue().TakeOr("NA"))
}

func printScores(w io.Writer, scores *score.Scores, missing string) error {
	if _, err := fmt.Fprintf(w, "%s\t%s\n", strings.Join(scores.Names, "\t"), score.CountColumn); err != nil {
		return err
	}
	row := make([]string, len(scores.Names))
	for i := 0; i < scores.Len(); i++ {
		for j, name := range scores.Names {
			row[j] = scores.Columns[name][i].TakeOr(missing)
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\n", strings.Join(row, "\t"), scores.Count[i]); err != nil {
			return err
		}
	}
	return nil
}

func printHighest(w io.Writer, names []string, values map[string]float64) error {
	for _, name := range names {
		value, ok := values[name]
		if !ok {
			continue
		}
		formatted := "NA"
		if !math.IsNaN(value) {
			formatted = strconv.FormatFloat(value, 'g', -1, 64)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, formatted); err != nil {
			return err
		}
	}
	return nil
}

// queryServer runs the query against a score server and prints the JSON
// response.
func queryServer(ctx context.Context, client *http.Client, server, id string, region genomics.Region, highest bool, w io.Writer) error {
	endpoint := "values"
	if highest {
		endpoint = "highest"
	}
	target := fmt.Sprintf("%s/scores/%s/%s", strings.TrimSuffix(server, "/"), url.PathEscape(id), endpoint)
	target = addParameter(target, "region", region.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func addParameter(input, name, value string) string {
	values := url.Values{}
	values.Set(name, value)
	if strings.Contains(input, "?") {
		return input + "&" + values.Encode()
	}
	return input + "?" + values.Encode()
}

func errorFromResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s (reading body: %v)", resp.Status, err)
	}

	var apiError struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiError); err != nil || apiError.Error == "" {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("%s: %s", apiError.Error, apiError.Message)
}
