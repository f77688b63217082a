// Package ownership decides whether a claimant is entitled to a submission's
// grant, from a signature over a canonical message and whatever wallet the
// content or its pin metadata declares.
package ownership

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Status is the ownership stage outcome.
type Status string

const (
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Wallet sources reported in Result.Source.
const (
	SourceMetadataValue = "metadata"
	SourceMetadataKey   = "metadata_key"
	SourceContent       = "content"
)

var (
	ErrInvalidAddress    = errors.New("invalid wallet address")
	ErrInvalidSignature  = errors.New("invalid signature encoding")
	ErrSignatureMismatch = errors.New("signature does not match claimed wallet")
)

// metadataKeys are checked in order when no value matched the claimant.
var metadataKeys = []string{"author_wallet", "reward_address", "wallet", "Wallet address"}

// contentKeys are checked in order on JSON content.
var contentKeys = []string{"author_wallet", "reward_address", "wallet", "authorWallet"}

// Claim is a claimant identity and its proof for one locator.
type Claim struct {
	Locator   string
	Wallet    string
	Signature string
}

// Present reports whether an identity was claimed at all.
func (c Claim) Present() bool {
	return c.Wallet != ""
}

// Result is the ownership decision.
type Result struct {
	Status Status
	Reason string
	// Wallet is the declared wallet that was compared, if any.
	Wallet string
	// Source names where Wallet came from.
	Source string
}

// CanonicalMessage is the exact text a claimant signs.
func CanonicalMessage(locator string) string {
	return "Claiming grant for content: " + locator
}

// ValidAddress reports whether s decodes as a base58 public key.
func ValidAddress(s string) bool {
	_, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	return err == nil
}

// DecodeSignature accepts base64 or base58 encodings of a 64-byte signature.
func DecodeSignature(s string) (solana.Signature, error) {
	s = strings.TrimSpace(s)
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == len(solana.Signature{}) {
		return solana.SignatureFromBytes(raw), nil
	}
	sig, err := solana.SignatureFromBase58(s)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return sig, nil
}

// VerifySignature checks the claim's signature over the canonical message.
func VerifySignature(c Claim) error {
	pub, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Wallet))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	sig, err := DecodeSignature(c.Signature)
	if err != nil {
		return err
	}
	if !sig.Verify(pub, []byte(CanonicalMessage(c.Locator))) {
		return ErrSignatureMismatch
	}
	return nil
}

// Verifier runs the ownership decision.
type Verifier struct {
	logger *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// New creates a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify decides ownership for a claim. A bad signature fails outright;
// a missing declared wallet only skips.
func (v *Verifier) Verify(ctx context.Context, c Claim, metadata map[string]string, content []byte) Result {
	if !c.Present() {
		return Result{Status: StatusSkipped, Reason: "No ownership claim supplied."}
	}
	if err := VerifySignature(c); err != nil {
		v.logger.WarnContext(ctx, "ownership signature rejected",
			"locator", c.Locator,
			"wallet", c.Wallet,
			"error", err,
		)
		return Result{
			Status: StatusFailed,
			Reason: fmt.Sprintf("Cryptographic Signature Verification Failed: %v. Ownership could not be established for %s.", err, c.Wallet),
		}
	}

	declared, source := declaredWallet(c.Wallet, metadata, content)
	switch {
	case declared == "":
		v.logger.InfoContext(ctx, "no declared wallet, signature accepted as claim", "locator", c.Locator)
		return Result{Status: StatusSkipped, Reason: "No ownership metadata found. Signature verified as baseline proof of claim."}
	case declared != c.Wallet:
		v.logger.WarnContext(ctx, "ownership mismatch",
			"locator", c.Locator,
			"declared_wallet", declared,
			"claimant", c.Wallet,
			"source", source,
		)
		return Result{
			Status: StatusFailed,
			Wallet: declared,
			Source: source,
			Reason: fmt.Sprintf("Absolute Ownership Verification Failed: The wallet address linked to this content (%s) does not match the claimant wallet (%s). Unauthorized claim attempt detected.", declared, c.Wallet),
		}
	default:
		v.logger.InfoContext(ctx, "ownership verified", "locator", c.Locator, "source", source)
		return Result{Status: StatusVerified, Wallet: declared, Source: source}
	}
}

// declaredWallet finds the wallet the content is linked to. An exact value
// match anywhere in metadata wins over the well-known keys, and content is
// only parsed when metadata yields nothing.
func declaredWallet(claimant string, metadata map[string]string, content []byte) (string, string) {
	for _, val := range metadata {
		if strings.TrimSpace(val) == claimant {
			return claimant, SourceMetadataValue
		}
	}
	for _, key := range metadataKeys {
		if w := metadata[key]; w != "" {
			return w, SourceMetadataKey + ":" + key
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		return "", ""
	}
	for _, key := range contentKeys {
		if w, ok := doc[key].(string); ok && w != "" {
			return w, SourceContent + ":" + key
		}
	}
	return "", ""
}
