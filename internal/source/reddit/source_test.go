package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mention_collector/internal/domain"
	"mention_collector/internal/source"
)

var now = time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)

func newTestSource(t *testing.T, srv *httptest.Server) *Source {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := source.NewClient(source.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond}, logger)
	s, err := New(client, srv.URL, srv.URL+"/token", domain.Credentials{
		"client_id":     "id",
		"client_secret": "secret",
		"user_agent":    "test-agent/1.0",
	}, logger)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func post(id string, age time.Duration, self bool) map[string]any {
	return map[string]any{
		"kind": "t3",
		"data": map[string]any{
			"id":          id,
			"title":       "Thoughts on Flo",
			"selftext":    map[bool]string{true: "I like it", false: ""}[self],
			"author":      "someone",
			"subreddit":   "TwoXChromosomes",
			"created_utc": float64(now.Add(-age).Unix()),
			"url":         "https://example.com/link",
			"permalink":   "/r/TwoXChromosomes/comments/" + id,
			"is_self":     self,
		},
	}
}

func TestFetch_FollowsAfterAndFiltersOld(t *testing.T) {
	var searches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		n := searches.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, `"Flo App"`, r.URL.Query().Get("q"))

		var listing map[string]any
		switch n {
		case 1:
			assert.Empty(t, r.URL.Query().Get("after"))
			listing = map[string]any{"data": map[string]any{
				"after":    "t3_b",
				"children": []any{post("a", time.Hour, true), post("old", 40*24*time.Hour, true)},
			}}
		default:
			assert.Equal(t, "t3_b", r.URL.Query().Get("after"))
			listing = map[string]any{"data": map[string]any{
				"after":    "",
				"children": []any{post("b", 2*time.Hour, false)},
			}}
		}
		_ = json.NewEncoder(w).Encode(listing)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	records, err := newTestSource(t, srv).Fetch(context.Background(), domain.Query{
		Origin: "Flo App",
		Limit:  10,
		Brand:  "flo_app",
		Config: domain.SourceConfig{DaysBack: 30, Sort: "new"},
	})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, int32(2), searches.Load())
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "TwoXChromosomes", records[0].Origin)
	assert.Equal(t, domain.RatingNotApplicable, records[0].Rating)
	assert.Equal(t, "https://www.reddit.com/r/TwoXChromosomes/comments/a", records[0].Backlink)
	assert.Equal(t, "[Link post: https://example.com/link]", *records[1].Body)
}

func TestFetch_PageBound(t *testing.T) {
	var searches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"tok"}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		n := searches.Add(1)
		// every post is too old, and the vendor always claims another page
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"after":    fmt.Sprintf("t3_%d", n),
			"children": []any{post(fmt.Sprintf("p%d", n), 90*24*time.Hour, true)},
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	records, err := newTestSource(t, srv).Fetch(context.Background(), domain.Query{Origin: "Flo", Limit: 5, Brand: "flo"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(2), searches.Load())
}

func TestFetch_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestSource(t, srv).Fetch(context.Background(), domain.Query{Origin: "Flo", Limit: 5, Brand: "flo"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
}

func TestNew_RequiresCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(source.NewClient(source.Config{}, logger), "", "", domain.Credentials{"client_id": "x"}, logger)
	assert.True(t, errors.Is(err, domain.ErrCredentialsNotFound))
}
