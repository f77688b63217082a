// Package tokens aggregates the tradable tokens of partner organizations
// from published token lists, optionally checking each mint on chain.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"scholar/internal/ledger"
)

// Default token list locations.
const (
	DefaultBioListURL     = "https://tokenlists.bio.xyz/bio-token-list.json"
	DefaultBiddingListURL = "https://tokenlists.bio.xyz/bidding-token-list.json"
)

// Source names the list a token came from.
type Source string

const (
	SourceBioList     Source = "bio-token-list"
	SourceBiddingList Source = "bidding-token-list"
	SourceFallback    Source = "fallback"
)

// On-chain check outcomes other than success.
const (
	StatusUnsupportedChain = "unsupported-chain"
	StatusEVMAddress       = "evm-address"
	StatusInvalidAddress   = "invalid-address"
	StatusNotFound         = "not-found"
	StatusUnavailable      = "rpc-unavailable"
)

const listingKey = "listing"

// Token is one partner token.
type Token struct {
	Name    string         `json:"name"`
	Symbol  string         `json:"symbol"`
	Address string         `json:"address"`
	ChainID *int           `json:"chainId,omitempty"`
	LogoURI string         `json:"logoURI,omitempty"`
	Source  Source         `json:"source"`
	OnChain *OnChainStatus `json:"onChain,omitempty"`
}

// OnChainStatus is the result of reading a token's mint.
type OnChainStatus struct {
	Exists   bool    `json:"exists"`
	Decimals *uint8  `json:"decimals,omitempty"`
	Supply   *uint64 `json:"supply,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Listing is a snapshot of partner tokens.
type Listing struct {
	Tokens    []Token
	UpdatedAt time.Time
}

// MintReader reads a mint account.
type MintReader interface {
	Mint(ctx context.Context, address string) (ledger.MintInfo, error)
}

type listEntry struct {
	ChainID *int   `json:"chainId"`
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	LogoURI string `json:"logoURI"`
}

type tokenList struct {
	Tokens []listEntry `json:"tokens"`
}

type listSource struct {
	url    string
	source Source
}

// Catalog fetches and caches partner tokens.
type Catalog struct {
	lists       []listSource
	partners    []string
	client      *http.Client
	mints       MintReader
	chains      map[int]bool
	cache       *gocache.Cache
	timeout     time.Duration
	retries     int
	backoffBase time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithHTTPClient sets the client used for list downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Catalog) {
		if client != nil {
			c.client = client
		}
	}
}

// WithListURLs overrides the token list locations. Empty values keep the
// defaults.
func WithListURLs(bioList, biddingList string) Option {
	return func(c *Catalog) {
		if bioList != "" {
			c.lists[0].url = bioList
		}
		if biddingList != "" {
			c.lists[1].url = biddingList
		}
	}
}

// WithMintReader enables on-chain checks.
func WithMintReader(m MintReader) Option {
	return func(c *Catalog) {
		c.mints = m
	}
}

// WithSolanaChains sets the list chain ids treated as Solana.
func WithSolanaChains(ids []int) Option {
	return func(c *Catalog) {
		if len(ids) == 0 {
			return
		}
		c.chains = make(map[int]bool, len(ids))
		for _, id := range ids {
			c.chains[id] = true
		}
	}
}

// WithCacheTTL sets how long a listing is served before refetching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Catalog) {
		if ttl > 0 {
			c.cache = gocache.New(ttl, 2*ttl)
		}
	}
}

// WithTimeout bounds each list download attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets retries per list after the first attempt, with the first
// delay at base and later delays doubling.
func WithRetries(n int, base time.Duration) Option {
	return func(c *Catalog) {
		if n >= 0 {
			c.retries = n
		}
		if base > 0 {
			c.backoffBase = base
		}
	}
}

// New builds a catalog that keeps tokens matching partnerNames.
func New(partnerNames []string, opts ...Option) (*Catalog, error) {
	names := make([]string, 0, len(partnerNames))
	for _, n := range partnerNames {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one partner name is required")
	}
	c := &Catalog{
		lists: []listSource{
			{url: DefaultBioListURL, source: SourceBioList},
			{url: DefaultBiddingListURL, source: SourceBiddingList},
		},
		partners:    names,
		client:      http.DefaultClient,
		chains:      map[int]bool{101: true, 102: true, 103: true},
		cache:       gocache.New(10*time.Minute, 20*time.Minute),
		timeout:     8 * time.Second,
		retries:     2,
		backoffBase: 500 * time.Millisecond,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tokens returns the cached listing, refreshing it when stale. When neither
// list yields a partner token a static fallback set is served.
func (c *Catalog) Tokens(ctx context.Context) Listing {
	if cached, ok := c.cache.Get(listingKey); ok {
		return cached.(Listing)
	}

	results := make([][]Token, len(c.lists))
	var g errgroup.Group
	for i, l := range c.lists {
		g.Go(func() error {
			list, err := c.fetch(ctx, l.url)
			if err != nil {
				c.logger.WarnContext(ctx, "token list unavailable", "source", l.source, "url", l.url, "error", err)
				return nil
			}
			results[i] = c.filter(list, l.source)
			return nil
		})
	}
	_ = g.Wait()

	var merged []Token
	for _, r := range results {
		merged = append(merged, r...)
	}
	if len(merged) == 0 {
		merged = fallbackTokens()
	}
	listing := Listing{Tokens: merged, UpdatedAt: c.now()}
	c.cache.SetDefault(listingKey, listing)
	return listing
}

// TokensWithOnChain is Tokens with each mint checked. Checks are not cached.
func (c *Catalog) TokensWithOnChain(ctx context.Context) Listing {
	listing := c.Tokens(ctx)
	out := make([]Token, len(listing.Tokens))
	var g errgroup.Group
	g.SetLimit(4)
	for i, t := range listing.Tokens {
		g.Go(func() error {
			status := c.onChain(ctx, t)
			t.OnChain = &status
			out[i] = t
			return nil
		})
	}
	_ = g.Wait()
	return Listing{Tokens: out, UpdatedAt: listing.UpdatedAt}
}

// Available reports whether the current listing came from a remote list.
func (c *Catalog) Available(ctx context.Context) bool {
	for _, t := range c.Tokens(ctx).Tokens {
		if t.Source != SourceFallback {
			return true
		}
	}
	return false
}

func (c *Catalog) onChain(ctx context.Context, t Token) OnChainStatus {
	switch {
	case t.Address == "":
		return OnChainStatus{Error: StatusInvalidAddress}
	case strings.HasPrefix(t.Address, "0x"):
		return OnChainStatus{Error: StatusEVMAddress}
	case t.ChainID != nil && !c.chains[*t.ChainID]:
		return OnChainStatus{Error: StatusUnsupportedChain}
	}
	if _, err := solana.PublicKeyFromBase58(t.Address); err != nil {
		return OnChainStatus{Error: StatusInvalidAddress}
	}
	if c.mints == nil {
		return OnChainStatus{Error: StatusUnavailable}
	}
	info, err := c.mints.Mint(ctx, t.Address)
	if err != nil {
		c.logger.DebugContext(ctx, "mint lookup failed", "symbol", t.Symbol, "address", t.Address, "error", err)
		return OnChainStatus{Error: StatusNotFound}
	}
	return OnChainStatus{Exists: true, Decimals: &info.Decimals, Supply: &info.Supply}
}

// filter keeps entries whose name contains a partner name, or whose symbol
// contains a partner name without its "dao" suffix.
func (c *Catalog) filter(list tokenList, source Source) []Token {
	var out []Token
	for _, e := range list.Tokens {
		if !c.isPartner(e.Name, e.Symbol) {
			continue
		}
		t := Token{
			Name:    e.Name,
			Symbol:  e.Symbol,
			Address: e.Address,
			ChainID: e.ChainID,
			LogoURI: e.LogoURI,
			Source:  source,
		}
		if t.Name == "" {
			t.Name = "Unknown"
		}
		if t.Symbol == "" {
			t.Symbol = "UNKNOWN"
		}
		out = append(out, t)
	}
	return out
}

func (c *Catalog) isPartner(name, symbol string) bool {
	n := strings.ToLower(name)
	s := strings.ToLower(symbol)
	for _, p := range c.partners {
		if n != "" && strings.Contains(n, p) {
			return true
		}
		if s != "" && strings.Contains(s, strings.Replace(p, "dao", "", 1)) {
			return true
		}
	}
	return false
}

func (c *Catalog) fetch(ctx context.Context, url string) (tokenList, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.backoffBase
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retries)), ctx)

	var list tokenList
	op := func() error {
		var err error
		list, err = c.fetchOnce(ctx, url)
		return err
	}
	if err := backoff.Retry(op, policy); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return tokenList{}, perm.Err
		}
		return tokenList{}, err
	}
	return list, nil
}

// fetchOnce downloads one list. Client errors other than 429 are permanent.
func (c *Catalog) fetchOnce(ctx context.Context, url string) (tokenList, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tokenList{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return tokenList{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("token list returned %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return tokenList{}, backoff.Permanent(err)
		}
		return tokenList{}, err
	}
	var list tokenList
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&list); err != nil {
		return tokenList{}, backoff.Permanent(fmt.Errorf("decode token list: %w", err))
	}
	return list, nil
}

func fallbackTokens() []Token {
	return []Token{
		{Name: "VitaDAO", Symbol: "VITA", Source: SourceFallback},
		{Name: "HairDAO", Symbol: "HAIR", Source: SourceFallback},
		{Name: "ValleyDAO", Symbol: "VALLEY", Source: SourceFallback},
		{Name: "AthenaDAO", Symbol: "ATHENA", Source: SourceFallback},
	}
}
