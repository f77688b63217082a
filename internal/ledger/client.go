// Package ledger talks to the Solana RPC to move grant funds and read the
// funding wallet's balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"scholar/internal/payout"
)

// MemoProgramID is the SPL memo program.
var MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

var (
	// ErrConfirmTimeout is wrapped in a payout.IndeterminateError by send,
	// since the transaction may still land.
	ErrConfirmTimeout    = errors.New("transaction not confirmed before deadline")
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

// RPC is the subset of the Solana JSON-RPC client used here.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Client signs and submits transactions with the agent key.
type Client struct {
	rpc            RPC
	signer         solana.PrivateKey
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithConfirmTimeout bounds how long a send waits for confirmation.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.confirmTimeout = d
		}
	}
}

// WithPollInterval sets the signature status polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New builds a client. Use rpc.New(url) for a live endpoint.
func New(r RPC, signer solana.PrivateKey, opts ...Option) (*Client, error) {
	if r == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if len(signer) != 64 {
		return nil, fmt.Errorf("signing key is required")
	}
	c := &Client{
		rpc:            r,
		signer:         signer,
		confirmTimeout: 60 * time.Second,
		pollInterval:   time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PublicKey returns the funding wallet address.
func (c *Client) PublicKey() solana.PublicKey {
	return c.signer.PublicKey()
}

// grantMemo is the on-chain memo for a grant, identical across instruments
// so either transfer traces back to its verification hash.
func grantMemo(hash string) string {
	return "Grant: " + hash
}

func memoInstruction(memo string) solana.Instruction {
	return solana.NewInstruction(MemoProgramID, solana.AccountMetaSlice{}, []byte(memo))
}

// send builds, signs and submits instructions, then waits for confirmation.
func (c *Client) send(ctx context.Context, instructions ...solana.Instruction) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("latest blockhash: %w", err)
	}
	if recent == nil || recent.Value == nil {
		return solana.Signature{}, fmt.Errorf("latest blockhash: empty response")
	}

	payer := c.signer.PublicKey()
	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &c.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	c.logger.DebugContext(ctx, "transaction submitted", "signature", sig.String())

	if err := c.confirm(ctx, sig); err != nil {
		if errors.Is(err, ErrConfirmTimeout) {
			return sig, &payout.IndeterminateError{Signature: sig.String(), Err: err}
		}
		return sig, err
	}
	return sig, nil
}

func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		} else if err != nil {
			c.logger.DebugContext(ctx, "signature status lookup failed", "signature", sig.String(), "error", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
		case <-ticker.C:
		}
	}
}
