package tokens

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scholar/internal/ledger"
)

const (
	vitaMint = "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"
	hairMint = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
)

const bioListJSON = `{"name":"BIO","tokens":[
 {"chainId":101,"address":"` + vitaMint + `","name":"VitaDAO Token","symbol":"VITA","logoURI":"https://x/vita.png"},
 {"chainId":1,"address":"0xabc","name":"HairDAO","symbol":"HAIR"},
 {"chainId":101,"address":"So11111111111111111111111111111111111111112","name":"Wrapped SOL","symbol":"SOL"}
]}`

const biddingListJSON = `{"tokens":[
 {"chainId":56,"address":"` + hairMint + `","name":"","symbol":"psy"},
 {"address":"not-base58!","name":"CryoDAO","symbol":"CRYO"},
 {"address":"","name":"Long COVID Labs","symbol":"LCL"}
]}`

type fakeMints struct {
	calls atomic.Int32
	err   error
}

func (f *fakeMints) Mint(_ context.Context, address string) (ledger.MintInfo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return ledger.MintInfo{}, f.err
	}
	return ledger.MintInfo{Address: address, Decimals: 18, Supply: 64_298_880}, nil
}

type CatalogSuite struct {
	suite.Suite
	ctx         context.Context
	bioHits     atomic.Int32
	biddingHits atomic.Int32
	bioStatus   atomic.Int32
	bio         *httptest.Server
	bidding     *httptest.Server
	mints       *fakeMints
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) SetupTest() {
	s.ctx = context.Background()
	s.bioHits.Store(0)
	s.biddingHits.Store(0)
	s.bioStatus.Store(http.StatusOK)
	s.mints = &fakeMints{}
	s.bio = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.bioHits.Add(1)
		if code := int(s.bioStatus.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = io.WriteString(w, bioListJSON)
	}))
	s.bidding = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.biddingHits.Add(1)
		_, _ = io.WriteString(w, biddingListJSON)
	}))
}

func (s *CatalogSuite) TearDownTest() {
	s.bio.Close()
	s.bidding.Close()
}

func (s *CatalogSuite) newCatalog(opts ...Option) *Catalog {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithListURLs(s.bio.URL, s.bidding.URL),
		WithMintReader(s.mints),
		WithRetries(1, time.Millisecond),
	}
	c, err := New([]string{"VitaDAO", "HairDAO", "PsyDAO", "CryoDAO", "Long COVID Labs"}, append(base, opts...)...)
	s.Require().NoError(err)
	return c
}

func (s *CatalogSuite) TestNewRequiresPartners() {
	_, err := New([]string{" ", ""})
	s.Error(err)
}

func (s *CatalogSuite) TestMergesPartnerTokensFromBothLists() {
	listing := s.newCatalog().Tokens(s.ctx)

	s.Require().Len(listing.Tokens, 5)
	s.False(listing.UpdatedAt.IsZero())

	vita := listing.Tokens[0]
	s.Equal("VitaDAO Token", vita.Name)
	s.Equal(SourceBioList, vita.Source)
	s.Equal("https://x/vita.png", vita.LogoURI)
	s.Require().NotNil(vita.ChainID)
	s.Equal(101, *vita.ChainID)

	s.Equal("HAIR", listing.Tokens[1].Symbol)

	psy := listing.Tokens[2]
	s.Equal("Unknown", psy.Name, "matched on symbol only")
	s.Equal(SourceBiddingList, psy.Source)

	for _, t := range listing.Tokens {
		s.NotEqual("SOL", t.Symbol, "non-partner tokens are dropped")
		s.Nil(t.OnChain)
	}
}

func (s *CatalogSuite) TestListingIsCached() {
	c := s.newCatalog()
	first := c.Tokens(s.ctx)
	second := c.Tokens(s.ctx)
	s.Equal(first.UpdatedAt, second.UpdatedAt)
	s.Equal(int32(1), s.bioHits.Load())
	s.Equal(int32(1), s.biddingHits.Load())
}

func (s *CatalogSuite) TestRetriesServerErrors() {
	s.bioStatus.Store(http.StatusBadGateway)
	listing := s.newCatalog().Tokens(s.ctx)

	s.Equal(int32(2), s.bioHits.Load(), "one retry after the first attempt")
	s.Require().Len(listing.Tokens, 3, "the bidding list still contributes")
	for _, t := range listing.Tokens {
		s.Equal(SourceBiddingList, t.Source)
	}
}

func (s *CatalogSuite) TestClientErrorsAreNotRetried() {
	s.bioStatus.Store(http.StatusNotFound)
	s.newCatalog().Tokens(s.ctx)
	s.Equal(int32(1), s.bioHits.Load())
}

func (s *CatalogSuite) TestFallbackWhenNoListAnswers() {
	s.bio.Close()
	s.bidding.Close()
	c := s.newCatalog()

	listing := c.Tokens(s.ctx)
	s.Require().Len(listing.Tokens, 4)
	for _, t := range listing.Tokens {
		s.Equal(SourceFallback, t.Source)
		s.Empty(t.Address)
	}
	s.False(c.Available(s.ctx))
}

func (s *CatalogSuite) TestOnChainStatus() {
	c := s.newCatalog()
	listing := c.TokensWithOnChain(s.ctx)
	s.Require().Len(listing.Tokens, 5)

	byName := map[string]*OnChainStatus{}
	for _, t := range listing.Tokens {
		s.Require().NotNil(t.OnChain, t.Name)
		byName[t.Name] = t.OnChain
	}

	vita := byName["VitaDAO Token"]
	s.True(vita.Exists)
	s.Require().NotNil(vita.Decimals)
	s.Equal(uint8(18), *vita.Decimals)
	s.Equal(uint64(64_298_880), *vita.Supply)

	s.Equal(StatusEVMAddress, byName["HairDAO"].Error)
	s.Equal(StatusUnsupportedChain, byName["Unknown"].Error)
	s.Equal(StatusInvalidAddress, byName["CryoDAO"].Error)
	s.Equal(StatusInvalidAddress, byName["Long COVID Labs"].Error)
	s.Equal(int32(1), s.mints.calls.Load(), "only the solana mint is read")

	s.Run("cached listing is not mutated", func() {
		for _, t := range c.Tokens(s.ctx).Tokens {
			s.Nil(t.OnChain)
		}
	})
}

func (s *CatalogSuite) TestOnChainMissingMint() {
	s.mints.err = errors.New("could not find mint")
	listing := s.newCatalog().TokensWithOnChain(s.ctx)
	s.Equal(StatusNotFound, listing.Tokens[0].OnChain.Error)
	s.False(listing.Tokens[0].OnChain.Exists)
}

func (s *CatalogSuite) TestOnChainWithoutReader() {
	c := s.newCatalog(WithMintReader(nil))
	listing := c.TokensWithOnChain(s.ctx)
	s.Equal(StatusUnavailable, listing.Tokens[0].OnChain.Error)
}
