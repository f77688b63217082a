package httptransport

import (
	"scholar/internal/partners"
	"scholar/internal/partners/tokens"
	"scholar/internal/submission"
)

// WalletResponse is the body of GET /api/agent/wallet.
type WalletResponse struct {
	PublicKey    string  `json:"publicKey"`
	SOLBalance   float64 `json:"solBalance"`
	BioBalance   string  `json:"bioBalance"`
	BioTokenMint string  `json:"bioTokenMint,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// PartnersResponse is the body of GET /api/partners.
type PartnersResponse struct {
	DAOs  []partners.Partner `json:"daos"`
	Count int                `json:"count"`
}

// PartnerTokensResponse is the body of GET /api/biodao/tokens. UpdatedAt is
// in Unix milliseconds.
type PartnerTokensResponse struct {
	Tokens    []tokens.Token `json:"tokens"`
	UpdatedAt int64          `json:"updatedAt"`
}

// GrantTokenResponse is the body of GET /api/bio-token.
type GrantTokenResponse struct {
	Address       string `json:"address"`
	Decimals      uint8  `json:"decimals"`
	Supply        uint64 `json:"supply"`
	IsInitialized bool   `json:"isInitialized"`
	ExplorerURL   string `json:"explorerUrl,omitempty"`
	Error         string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status           string            `json:"status"`
	Agent            string            `json:"agent"`
	SupportedBioDAOs int               `json:"supportedBioDAOs"`
	Uptime           float64           `json:"uptime"`
	Integrations     map[string]string `json:"integrations"`
}

// InitialState is the first event on a feed connection.
type InitialState struct {
	Logs  []submission.Record `json:"logs"`
	Stats submission.Stats    `json:"stats"`
}
