package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// MintInfo describes an SPL token mint.
type MintInfo struct {
	Address  string
	Decimals uint8
	Supply   uint64
}

// SupplyRPC is the single call a MintReader needs.
type SupplyRPC interface {
	GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
}

// MintReader reads mint accounts. It needs no signing key.
type MintReader struct {
	rpc SupplyRPC
}

// NewMintReader builds a reader over r.
func NewMintReader(r SupplyRPC) *MintReader {
	return &MintReader{rpc: r}
}

// Mint reads decimals and raw supply for the mint at address.
func (m *MintReader) Mint(ctx context.Context, address string) (MintInfo, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return MintInfo{}, fmt.Errorf("mint address: %w", err)
	}
	out, err := m.rpc.GetTokenSupply(ctx, key, rpc.CommitmentConfirmed)
	if err != nil {
		return MintInfo{}, fmt.Errorf("token supply: %w", err)
	}
	if out == nil || out.Value == nil {
		return MintInfo{}, fmt.Errorf("token supply: empty response")
	}
	info := MintInfo{Address: key.String(), Decimals: out.Value.Decimals}
	if out.Value.Amount != "" {
		if info.Supply, err = strconv.ParseUint(out.Value.Amount, 10, 64); err != nil {
			return MintInfo{}, fmt.Errorf("token supply amount %q: %w", out.Value.Amount, err)
		}
	}
	return info, nil
}

// ExplorerCluster is the explorer query suffix for rpcURL: devnet and local
// endpoints get "?cluster=devnet", everything else none.
func ExplorerCluster(rpcURL string) string {
	if strings.Contains(rpcURL, "devnet") || strings.Contains(rpcURL, "localhost") {
		return "?cluster=devnet"
	}
	return ""
}

// TokenExplorerURL links to the mint page on Solscan.
func TokenExplorerURL(mint, rpcURL string) string {
	return "https://solscan.io/token/" + mint + ExplorerCluster(rpcURL)
}
