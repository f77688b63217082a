// Package freshness estimates whether a submission is new work or already
// published, using a web search when a credential is configured and a static
// marker list otherwise.
package freshness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"scholar/internal/freshness/metrics"
)

// Check modes, also used as metric labels.
const (
	ModeLive     = "live"
	ModeFallback = "fallback"
	ModeDegraded = "degraded"
)

const (
	prefixLen      = 30
	searchErrorMsg = "Search skipped due to technical error."
	noSubjectMsg   = "Search skipped, no title or excerpt to check."
	priorArtMsg    = "Evidence of Prior Publication: This research matches historical breakthroughs or highly cited literature."
)

var famousMarkers = []string{"crispr", "mrna", "qubit", "relativity", "string theory", "dna structure"}

// Verdict is the freshness outcome.
type Verdict struct {
	Original   bool
	Confidence float64
	Reason     string
	Mode       string
}

// Oracle answers freshness checks.
type Oracle struct {
	searcher Searcher
	cache    *gocache.Cache
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Oracle) {
		o.metrics = m
	}
}

// WithCacheTTL caches live verdicts per normalized title. Zero disables.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Oracle) {
		if ttl > 0 {
			o.cache = gocache.New(ttl, 2*ttl)
		} else {
			o.cache = nil
		}
	}
}

// WithRateLimit throttles outgoing searches. Zero or less disables.
func WithRateLimit(perSecond float64) Option {
	return func(o *Oracle) {
		if perSecond > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			o.limiter = nil
		}
	}
}

// WithTimeout bounds each search call.
func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		o.timeout = d
	}
}

// New builds an oracle. A nil searcher selects the marker fallback.
func New(searcher Searcher, opts ...Option) *Oracle {
	o := &Oracle{
		searcher: searcher,
		cache:    gocache.New(time.Hour, 2*time.Hour),
		timeout:  10 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mode reports which path checks take.
func (o *Oracle) Mode() string {
	if o.searcher == nil {
		return ModeFallback
	}
	return ModeLive
}

// ExcerptLimit is the number of leading content bytes callers pass as the
// excerpt.
const ExcerptLimit = 1000

// Excerpt clips text to ExcerptLimit bytes on a rune boundary.
func Excerpt(text string) string {
	if len(text) <= ExcerptLimit {
		return text
	}
	cut := ExcerptLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Check returns the verdict for a title and a leading excerpt of the
// content. A blank title is taken from the excerpt's first non-empty line.
// It never fails; a search error yields a low-confidence original verdict.
func (o *Oracle) Check(ctx context.Context, title, excerpt string) Verdict {
	title = strings.TrimSpace(title)
	if title == "" {
		title = headline(excerpt)
	}
	if title == "" {
		v := Verdict{Original: true, Confidence: 0.5, Reason: noSubjectMsg, Mode: ModeDegraded}
		o.metrics.ObserveCheck(v.Mode, v.Original)
		return v
	}
	if o.searcher == nil {
		v := markerVerdict(title)
		o.metrics.ObserveCheck(v.Mode, v.Original)
		return v
	}

	key := normalizeTitle(title)
	if o.cache != nil {
		if cached, ok := o.cache.Get(key); ok {
			o.metrics.IncrementCacheHits()
			return cached.(Verdict)
		}
	}

	v, err := o.search(ctx, title)
	if err != nil {
		o.logger.WarnContext(ctx, "freshness search failed", "title", title, "error", err)
		v = Verdict{Original: true, Confidence: 0.5, Reason: searchErrorMsg, Mode: ModeDegraded}
	} else if o.cache != nil {
		o.cache.SetDefault(key, v)
	}
	o.metrics.ObserveCheck(v.Mode, v.Original)
	return v
}

func (o *Oracle) search(ctx context.Context, title string) (Verdict, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return Verdict{}, fmt.Errorf("search throttle: %w", err)
		}
	}

	query := fmt.Sprintf("scientific research paper titled \"%s\" published literature", title)
	results, err := o.searcher.Search(ctx, query)
	if err != nil {
		return Verdict{}, err
	}
	if hit, ok := firstMatch(title, results); ok {
		o.logger.InfoContext(ctx, "prior publication found", "title", title, "url", hit.URL)
		return Verdict{
			Original:   false,
			Confidence: 0.95,
			Reason:     fmt.Sprintf("High Similarity Detected on Web: Matches found at %s (%s)", hit.URL, hit.Title),
			Mode:       ModeLive,
		}, nil
	}
	return Verdict{Original: true, Confidence: 0.9, Mode: ModeLive}, nil
}

// firstMatch reports the first result whose lowercased title contains the
// submission title's leading characters, or the other way round. Results
// without a title are ignored.
func firstMatch(title string, results []SearchResult) (SearchResult, bool) {
	target := strings.ToLower(title)
	targetPrefix := prefix(target, prefixLen)
	for _, r := range results {
		found := strings.ToLower(r.Title)
		if found == "" {
			continue
		}
		if strings.Contains(found, targetPrefix) || strings.Contains(target, prefix(found, prefixLen)) {
			return r, true
		}
	}
	return SearchResult{}, false
}

func markerVerdict(title string) Verdict {
	lower := strings.ToLower(title)
	for _, marker := range famousMarkers {
		if strings.Contains(lower, marker) {
			return Verdict{Original: false, Confidence: 0.95, Reason: priorArtMsg, Mode: ModeFallback}
		}
	}
	return Verdict{Original: true, Confidence: 0.8, Mode: ModeFallback}
}

// headline is the first non-empty line of excerpt.
func headline(excerpt string) string {
	for _, line := range strings.Split(Excerpt(excerpt), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
