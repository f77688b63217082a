package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const lamportsPerSOL = 1_000_000_000

// WalletInfo describes the funding wallet.
type WalletInfo struct {
	PublicKey    string
	SOLBalance   float64
	TokenBalance string
	TokenMint    string
}

// WalletInfo reads the native balance and, when mint is set, the balance of
// the wallet's associated token account. A missing token account reads as "0".
func (c *Client) WalletInfo(ctx context.Context, mint string) (WalletInfo, error) {
	owner := c.PublicKey()
	info := WalletInfo{PublicKey: owner.String(), TokenBalance: "0", TokenMint: mint}

	bal, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return WalletInfo{}, fmt.Errorf("native balance: %w", err)
	}
	info.SOLBalance = float64(bal.Value) / lamportsPerSOL

	if mint == "" {
		return info, nil
	}
	m, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return info, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, m)
	if err != nil {
		return info, nil
	}
	tb, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil || tb == nil || tb.Value == nil {
		c.logger.DebugContext(ctx, "token balance unavailable", "mint", mint, "error", err)
		return info, nil
	}
	info.TokenBalance = tb.Value.UiAmountString
	return info, nil
}
