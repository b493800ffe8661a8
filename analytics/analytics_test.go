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

package analytics

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send_Batches(t *testing.T) {
	testCases := []struct {
		name     string
		hits     int
		requests int
	}{
		{"empty", 0, 0},
		{"partial batch", 3, 1},
		{"exact batches", defaultBatchSize * 4, 4},
		{"trailing partial batch", defaultBatchSize*2 + 1, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var (
				mu       sync.Mutex
				requests int
			)
			client := fakeBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				mu.Lock()
				requests++
				mu.Unlock()
				w.WriteHeader(http.StatusOK)
			})

			var hits []Hit
			for i := 0; i < tc.hits; i++ {
				hits = append(hits, Event("tests", "test", "", nil))
			}
			require.NoError(t, client.Send(context.Background(), hits))

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tc.requests, requests)
		})
	}
}

func TestClient_Send_VerifyPayloads(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []string
	)
	client := fakeBackend(t, func(w http.ResponseWriter, req *http.Request) {
		scanner := bufio.NewScanner(req.Body)
		mu.Lock()
		for scanner.Scan() {
			payloads = append(payloads, scanner.Text())
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	var hits []Hit
	for i := int64(0); i < 10; i++ {
		i := i
		hits = append(hits, Event("tests", "test", fmt.Sprintf("%d", i), &i))
	}
	require.NoError(t, client.Send(context.Background(), hits))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, len(hits))
	for i, payload := range payloads {
		got, err := url.ParseQuery(payload)
		require.NoError(t, err, "payload %q", payload)

		want := url.Values{
			"v":   []string{"1"},
			"cid": []string{client.clientID},
			"tid": []string{client.propertyID},
		}
		for key, value := range hits[i] {
			want.Add(key, value)
		}
		assert.Equal(t, want, got, "hit %d", i)
	}
}

func TestClient_Send_Status(t *testing.T) {
	client := fakeBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := client.Send(context.Background(), []Hit{Event("tests", "test", "", nil)})
	assert.ErrorContains(t, err, "unexpected response status")
}

func TestEvent_TypeParameter(t *testing.T) {
	if got, want := Event("tests", "test", "", nil)["t"], "event"; got != want {
		t.Errorf("Wrong hit type: got %q, want %q", got, want)
	}
}

func TestEvent_OptionalParameters(t *testing.T) {
	hit := Event("tests", "test", "", nil)
	assert.NotContains(t, hit, "el", "label parameter was added for empty label")
	assert.NotContains(t, hit, "ev", "value parameter was added for nil value")
}

func TestEvent_Values(t *testing.T) {
	testCases := []struct {
		name  string
		value int64
		want  string
	}{
		{"zero", 0, "0"},
		{"maximum", math.MaxInt64, strconv.Itoa(math.MaxInt64)},
		{"minimum", math.MinInt64, strconv.Itoa(math.MinInt64)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Event("tests", "test", "", &tc.value)["ev"]; got != tc.want {
				t.Fatalf("Wrong value: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTrackingHandler(t *testing.T) {
	want := []Hit{
		Event("tests", "test", "a", nil),
		Event("tests", "test", "b", nil),
	}

	handler := http.HandlerFunc(func(_ http.ResponseWriter, req *http.Request) {
		track := TrackerFromContext(req.Context())
		for i := range want {
			track(want[i])
		}
	})

	var got []Hit
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	TrackingHandler(handler, func(hits []Hit) { got = hits }).ServeHTTP(w, req)

	assert.Equal(t, want, got)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	want := []Hit{
		Event("Scores", "Values Request Received", "", nil),
		Event("Scores", "Access Path", "sequential", nil),
	}

	var got []Hit
	router := gin.New()
	router.Use(Middleware(func(hits []Hit) { got = hits }))
	router.GET("/test", func(c *gin.Context) {
		track := TrackerFromContext(c.Request.Context())
		for i := range want {
			track(want[i])
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, want, got)
}

func TestTrackerFromContext_WithEmptyContextIsNotNil(t *testing.T) {
	ctx := context.Background()
	if track := TrackerFromContext(ctx); track == nil {
		t.Error("TrackerFromContext returned nil")
	}
}

func TestClient_Sender(t *testing.T) {
	received := make(chan string, defaultBatchSize)
	client := fakeBackend(t, func(w http.ResponseWriter, req *http.Request) {
		scanner := bufio.NewScanner(req.Body)
		for scanner.Scan() {
			received <- scanner.Text()
		}
		w.WriteHeader(http.StatusOK)
	})

	send := client.Sender(func(string, ...interface{}) {})
	send(nil)
	send([]Hit{Event("tests", "sent", "", nil)})

	payload, err := url.ParseQuery(<-received)
	require.NoError(t, err)
	assert.Equal(t, "sent", payload.Get("ea"))
}

func fakeBackend(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("UA-TEST123", "0001-0002-0003-0004")
	client.endpoint = server.URL
	return client
}
