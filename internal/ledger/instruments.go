package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"scholar/internal/payout"
)

// Instrument names as recorded on submissions.
const (
	TokenInstrumentName  = "BIO"
	NativeInstrumentName = "SOL"
)

// TokenInstrument sends a fixed amount of an SPL token, creating the
// recipient's associated token account when it does not exist.
type TokenInstrument struct {
	client *Client
	mint   solana.PublicKey
	amount uint64
}

// NewTokenInstrument sends amount whole tokens of mint.
func NewTokenInstrument(client *Client, mint string, amount uint64) (*TokenInstrument, error) {
	m, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("token mint: %w", err)
	}
	return &TokenInstrument{client: client, mint: m, amount: amount}, nil
}

// Name implements payout.Instrument.
func (t *TokenInstrument) Name() string {
	return TokenInstrumentName
}

// Transfer implements payout.Instrument.
func (t *TokenInstrument) Transfer(ctx context.Context, req payout.TransferRequest) (payout.Receipt, error) {
	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return payout.Receipt{}, fmt.Errorf("recipient: %w", err)
	}

	supply, err := t.client.rpc.GetTokenSupply(ctx, t.mint, rpc.CommitmentConfirmed)
	if err != nil {
		return payout.Receipt{}, fmt.Errorf("token supply: %w", err)
	}
	if supply == nil || supply.Value == nil {
		return payout.Receipt{}, fmt.Errorf("token supply: empty response")
	}
	decimals := supply.Value.Decimals
	raw, err := scale(t.amount, decimals)
	if err != nil {
		return payout.Receipt{}, err
	}

	owner := t.client.PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(owner, t.mint)
	if err != nil {
		return payout.Receipt{}, fmt.Errorf("source token account: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(recipient, t.mint)
	if err != nil {
		return payout.Receipt{}, fmt.Errorf("recipient token account: %w", err)
	}

	var instructions []solana.Instruction
	if _, err := t.client.rpc.GetAccountInfo(ctx, dest); err != nil {
		if !errors.Is(err, rpc.ErrNotFound) {
			return payout.Receipt{}, fmt.Errorf("recipient token account lookup: %w", err)
		}
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(owner, recipient, t.mint).Build())
	}
	instructions = append(instructions,
		token.NewTransferCheckedInstruction(raw, decimals, source, t.mint, dest, owner, []solana.PublicKey{}).Build(),
		memoInstruction(grantMemo(req.Memo)),
	)

	sig, err := t.client.send(ctx, instructions...)
	if err != nil {
		return payout.Receipt{}, err
	}
	return payout.Receipt{Instrument: t.Name(), Signature: sig.String(), Amount: t.amount, Unit: TokenInstrumentName}, nil
}

// NativeInstrument sends a fixed number of lamports.
type NativeInstrument struct {
	client   *Client
	lamports uint64
}

// NewNativeInstrument sends lamports per grant.
func NewNativeInstrument(client *Client, lamports uint64) *NativeInstrument {
	return &NativeInstrument{client: client, lamports: lamports}
}

// Name implements payout.Instrument.
func (n *NativeInstrument) Name() string {
	return NativeInstrumentName
}

// Transfer implements payout.Instrument.
func (n *NativeInstrument) Transfer(ctx context.Context, req payout.TransferRequest) (payout.Receipt, error) {
	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return payout.Receipt{}, fmt.Errorf("recipient: %w", err)
	}
	sig, err := n.client.send(ctx,
		system.NewTransferInstruction(n.lamports, n.client.PublicKey(), recipient).Build(),
		memoInstruction(grantMemo(req.Memo)),
	)
	if err != nil {
		return payout.Receipt{}, err
	}
	return payout.Receipt{Instrument: n.Name(), Signature: sig.String(), Amount: n.lamports, Unit: "lamports"}, nil
}

func scale(amount uint64, decimals uint8) (uint64, error) {
	out := amount
	for i := uint8(0); i < decimals; i++ {
		if out > math.MaxUint64/10 {
			return 0, fmt.Errorf("grant amount %d overflows at %d decimals", amount, decimals)
		}
		out *= 10
	}
	return out, nil
}
