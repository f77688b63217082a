package freshness

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar/internal/freshness/metrics"
)

type stubSearcher struct {
	results []SearchResult
	err     error
	calls   atomic.Int32
	query   string
}

func (s *stubSearcher) Search(_ context.Context, query string) ([]SearchResult, error) {
	s.calls.Add(1)
	s.query = query
	return s.results, s.err
}

func newOracle(s Searcher, opts ...Option) *Oracle {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
	}
	return New(s, append(base, opts...)...)
}

func TestFallbackMarkers(t *testing.T) {
	o := newOracle(nil)
	assert.Equal(t, ModeFallback, o.Mode())

	tests := []struct {
		title      string
		original   bool
		confidence float64
	}{
		{"Improved CRISPR delivery in primates", false, 0.95},
		{"On the DNA Structure of nucleic acids", false, 0.95},
		{"An mRNA vaccine platform", false, 0.95},
		{"Senolytic effects in aged mice", true, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			v := o.Check(context.Background(), tt.title, "")
			assert.Equal(t, tt.original, v.Original)
			assert.Equal(t, tt.confidence, v.Confidence)
			if !tt.original {
				assert.Contains(t, v.Reason, "Evidence of Prior Publication")
			}
		})
	}
}

func TestLiveSearch(t *testing.T) {
	ctx := context.Background()
	title := "Senolytic Clearance Extends Healthspan in Aged Mice"

	t.Run("title prefix found in result", func(t *testing.T) {
		s := &stubSearcher{results: []SearchResult{
			{Title: "Unrelated", URL: "https://a.example"},
			{Title: "SENOLYTIC CLEARANCE EXTENDS HEALTHSPAN in aged mice - Nature", URL: "https://nature.example/x"},
		}}
		v := newOracle(s).Check(ctx, title, "")
		assert.False(t, v.Original)
		assert.Equal(t, 0.95, v.Confidence)
		assert.Equal(t, "High Similarity Detected on Web: Matches found at https://nature.example/x (SENOLYTIC CLEARANCE EXTENDS HEALTHSPAN in aged mice - Nature)", v.Reason)
		assert.Equal(t, `scientific research paper titled "`+title+`" published literature`, s.query)
	})

	t.Run("result prefix found in title", func(t *testing.T) {
		s := &stubSearcher{results: []SearchResult{{Title: "Senolytic clearance", URL: "https://b.example"}}}
		v := newOracle(s).Check(ctx, title+" and beyond", "")
		assert.False(t, v.Original)
	})

	t.Run("no match", func(t *testing.T) {
		s := &stubSearcher{results: []SearchResult{{Title: "Quantum dots", URL: "https://c.example"}, {Title: ""}}}
		v := newOracle(s).Check(ctx, title, "")
		assert.True(t, v.Original)
		assert.Equal(t, 0.9, v.Confidence)
		assert.Equal(t, ModeLive, v.Mode)
	})

	t.Run("search error degrades", func(t *testing.T) {
		s := &stubSearcher{err: errors.New("connection reset")}
		v := newOracle(s).Check(ctx, title, "")
		assert.True(t, v.Original)
		assert.Equal(t, 0.5, v.Confidence)
		assert.Equal(t, "Search skipped due to technical error.", v.Reason)
		assert.Equal(t, ModeDegraded, v.Mode)
	})
}

func TestExcerpt(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "abstract", Excerpt("abstract"))
	})

	t.Run("clipped on a rune boundary", func(t *testing.T) {
		text := strings.Repeat("a", ExcerptLimit-1) + "é and more"
		got := Excerpt(text)
		assert.Equal(t, ExcerptLimit-1, len(got))
		assert.True(t, utf8.ValidString(got))
	})

	t.Run("blank title uses first excerpt line", func(t *testing.T) {
		s := &stubSearcher{}
		v := newOracle(s).Check(context.Background(), "  ", "\n\n  Senolytic clearance in aged mice\nMethods...")
		assert.True(t, v.Original)
		assert.Equal(t, `scientific research paper titled "Senolytic clearance in aged mice" published literature`, s.query)
	})

	t.Run("blank excerpt marker found via headline", func(t *testing.T) {
		v := newOracle(nil).Check(context.Background(), "", "CRISPR base editing revisited\nbody")
		assert.False(t, v.Original)
		assert.Equal(t, ModeFallback, v.Mode)
	})

	t.Run("nothing to check degrades", func(t *testing.T) {
		s := &stubSearcher{}
		v := newOracle(s).Check(context.Background(), "", " \n ")
		assert.True(t, v.Original)
		assert.Equal(t, 0.5, v.Confidence)
		assert.Equal(t, ModeDegraded, v.Mode)
		assert.Equal(t, int32(0), s.calls.Load())
	})
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("live verdicts are cached by normalized title", func(t *testing.T) {
		s := &stubSearcher{}
		o := newOracle(s, WithCacheTTL(time.Minute))
		o.Check(ctx, "Gut Microbiome  Study", "")
		o.Check(ctx, "gut microbiome study", "")
		assert.Equal(t, int32(1), s.calls.Load())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		s := &stubSearcher{err: errors.New("boom")}
		o := newOracle(s, WithCacheTTL(time.Minute))
		o.Check(ctx, "t", "")
		o.Check(ctx, "t", "")
		assert.Equal(t, int32(2), s.calls.Load())
	})

	t.Run("disabled", func(t *testing.T) {
		s := &stubSearcher{}
		o := newOracle(s, WithCacheTTL(0))
		o.Check(ctx, "t", "")
		o.Check(ctx, "t", "")
		assert.Equal(t, int32(2), s.calls.Load())
	})
}

func TestThrottleHonoursContext(t *testing.T) {
	s := &stubSearcher{}
	o := newOracle(s, WithRateLimit(0.001), WithCacheTTL(0))

	first := o.Check(context.Background(), "a", "")
	assert.Equal(t, ModeLive, first.Mode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	second := o.Check(ctx, "b", "")
	assert.Equal(t, ModeDegraded, second.Mode)
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestTavilyClient(t *testing.T) {
	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.APIKey != "tvly-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"A paper","url":"https://x.example","content":"..."}]}`))
	}))
	defer srv.Close()

	c := NewTavilyClient(srv.URL, "tvly-key", srv.Client())
	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{{Title: "A paper", URL: "https://x.example"}}, results)
	assert.Equal(t, "basic", got.SearchDepth)
	assert.Equal(t, 5, got.MaxResults)
	assert.False(t, got.IncludeAnswer)

	_, err = NewTavilyClient(srv.URL, "wrong", srv.Client()).Search(context.Background(), "q")
	assert.Error(t, err)
}
