package ownership

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const locator = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

type claimant struct {
	key    solana.PrivateKey
	wallet string
}

func newClaimant(t require.TestingT) claimant {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return claimant{key: key, wallet: key.PublicKey().String()}
}

func (c claimant) claim(t require.TestingT, loc string) Claim {
	sig, err := c.key.Sign([]byte(CanonicalMessage(loc)))
	require.NoError(t, err)
	return Claim{Locator: loc, Wallet: c.wallet, Signature: base64.StdEncoding.EncodeToString(sig[:])}
}

type VerifierSuite struct {
	suite.Suite
	ctx      context.Context
	verifier *Verifier
	alice    claimant
	bob      claimant
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.verifier = New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.alice = newClaimant(s.T())
	s.bob = newClaimant(s.T())
}

func (s *VerifierSuite) TestNoClaimSkips() {
	res := s.verifier.Verify(s.ctx, Claim{Locator: locator}, map[string]string{"author_wallet": s.bob.wallet}, nil)
	s.Equal(StatusSkipped, res.Status)
}

func (s *VerifierSuite) TestSignatureFailureIsFatal() {
	s.Run("signed by someone else", func() {
		c := s.bob.claim(s.T(), locator)
		c.Wallet = s.alice.wallet
		res := s.verifier.Verify(s.ctx, c, nil, nil)
		s.Equal(StatusFailed, res.Status)
		s.Contains(res.Reason, "Signature Verification Failed")
	})

	s.Run("signed a different locator", func() {
		c := s.alice.claim(s.T(), "other-locator")
		c.Locator = locator
		res := s.verifier.Verify(s.ctx, c, map[string]string{"author_wallet": s.alice.wallet}, nil)
		s.Equal(StatusFailed, res.Status, "matching metadata cannot rescue a bad signature")
	})

	s.Run("garbage signature", func() {
		res := s.verifier.Verify(s.ctx, Claim{Locator: locator, Wallet: s.alice.wallet, Signature: "!!"}, nil, nil)
		s.Equal(StatusFailed, res.Status)
	})

	s.Run("invalid address", func() {
		res := s.verifier.Verify(s.ctx, Claim{Locator: locator, Wallet: "0xdeadbeef", Signature: "AA=="}, nil, nil)
		s.Equal(StatusFailed, res.Status)
	})
}

func (s *VerifierSuite) TestMetadataMismatchFails() {
	res := s.verifier.Verify(s.ctx, s.alice.claim(s.T(), locator), map[string]string{"author_wallet": s.bob.wallet}, nil)
	s.Equal(StatusFailed, res.Status)
	s.Equal(s.bob.wallet, res.Wallet)
	s.Equal("metadata_key:author_wallet", res.Source)
	s.Contains(res.Reason, "does not match the claimant wallet")
}

func (s *VerifierSuite) TestMetadataValueMatchVerifies() {
	res := s.verifier.Verify(s.ctx, s.alice.claim(s.T(), locator), map[string]string{"Payout": "  " + s.alice.wallet + " "}, nil)
	s.Equal(StatusVerified, res.Status)
	s.Equal(SourceMetadataValue, res.Source)
}

func (s *VerifierSuite) TestExactValueWinsOverKnownKey() {
	// The claimant appears under an arbitrary key while author_wallet names
	// someone else. The exact value match is taken and the known key is never
	// consulted.
	meta := map[string]string{
		"author_wallet": s.bob.wallet,
		"co_author":     s.alice.wallet,
	}
	res := s.verifier.Verify(s.ctx, s.alice.claim(s.T(), locator), meta, nil)
	s.Equal(StatusVerified, res.Status)
	s.Equal(SourceMetadataValue, res.Source)
}

func (s *VerifierSuite) TestContentFallback() {
	s.Run("json wallet matches", func() {
		content := []byte(`{"title":"paper","authorWallet":"` + s.alice.wallet + `"}`)
		res := s.verifier.Verify(s.ctx, s.alice.claim(s.T(), locator), map[string]string{}, content)
		s.Equal(StatusVerified, res.Status)
		s.Equal("content:authorWallet", res.Source)
	})

	s.Run("json wallet differs", func() {
		content := []byte(`{"reward_address":"` + s.bob.wallet + `"}`)
		res := s.verifier.Verify(s.ctx, s.alice.claim(s.T(), locator), nil, content)
		s.Equal(StatusFailed, res.Status)
	})

	s.Run("metadata wallet suppresses content", func() {
		content := []byte(`{"wallet":"` + s.bob.wallet + `"}`)
		meta := map[string]string{"wallet": s.alice.wallet}
		res := s.verifier.Verify(s.ctx, s.alice.claim(s.T(), locator), meta, content)
		s.Equal(StatusVerified, res.Status)
	})

	s.Run("non json content skips", func() {
		res := s.verifier.Verify(s.ctx, s.alice.claim(s.T(), locator), nil, []byte("plain text"))
		s.Equal(StatusSkipped, res.Status)
	})
}

func TestDecodeSignature(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	sig, err := key.Sign([]byte("x"))
	require.NoError(t, err)

	fromB64, err := DecodeSignature(base64.StdEncoding.EncodeToString(sig[:]))
	require.NoError(t, err)
	assert.Equal(t, sig, fromB64)

	fromB58, err := DecodeSignature(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, fromB58)

	_, err = DecodeSignature("not-a-signature")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"))
	assert.False(t, ValidAddress("Unknown Researcher"))
	assert.False(t, ValidAddress(""))
}

func TestCanonicalMessage(t *testing.T) {
	assert.Equal(t, "Claiming grant for content: abc", CanonicalMessage("abc"))
}
