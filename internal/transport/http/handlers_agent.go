package httptransport

import (
	"maps"
	"net/http"
	"strings"
	"time"

	"scholar/internal/ledger"
	"scholar/internal/partners/tokens"
	dErrors "scholar/pkg/domain-errors"
	"scholar/pkg/platform/httputil"
)

// defaultMintDecimals is reported when the grant mint cannot be read.
const defaultMintDecimals = 9

// HandleWallet reports the funding wallet. It always answers 200; an
// unavailable ledger is reported in the body.
func (h *Handler) HandleWallet(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		httputil.WriteJSON(w, http.StatusOK, unconfiguredWallet())
		return
	}
	info, err := h.wallet.WalletInfo(r.Context(), h.tokenMint)
	if err != nil {
		h.logger.WarnContext(r.Context(), "wallet lookup failed", "error", err)
		httputil.WriteJSON(w, http.StatusOK, unconfiguredWallet())
		return
	}
	mint := info.TokenMint
	if mint == "" {
		mint = "N/A"
	}
	httputil.WriteJSON(w, http.StatusOK, WalletResponse{
		PublicKey:    info.PublicKey,
		SOLBalance:   info.SOLBalance,
		BioBalance:   info.TokenBalance,
		BioTokenMint: mint,
	})
}

func unconfiguredWallet() WalletResponse {
	return WalletResponse{
		PublicKey:  "N/A",
		BioBalance: "0",
		Error:      "Agent wallet not configured",
	}
}

// HandlePartners lists the partner registry.
func (h *Handler) HandlePartners(w http.ResponseWriter, _ *http.Request) {
	all := h.partners.All()
	httputil.WriteJSON(w, http.StatusOK, PartnersResponse{DAOs: all, Count: len(all)})
}

// HandlePartnerTokens lists partner tokens. ?onchain=true, 1 or yes adds a
// mint check per token.
func (h *Handler) HandlePartnerTokens(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "partner token lists are not configured"))
		return
	}
	var listing tokens.Listing
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("onchain"))) {
	case "true", "1", "yes":
		listing = h.tokens.TokensWithOnChain(r.Context())
	default:
		listing = h.tokens.Tokens(r.Context())
	}
	list := listing.Tokens
	if list == nil {
		list = []tokens.Token{}
	}
	httputil.WriteJSON(w, http.StatusOK, PartnerTokensResponse{Tokens: list, UpdatedAt: listing.UpdatedAt.UnixMilli()})
}

// HandleGrantToken describes the grant token mint. Like the wallet endpoint
// it always answers 200 and reports lookup failures in the body.
func (h *Handler) HandleGrantToken(w http.ResponseWriter, r *http.Request) {
	if h.mints == nil || h.tokenMint == "" {
		httputil.WriteJSON(w, http.StatusOK, GrantTokenResponse{
			Address:  h.tokenMint,
			Decimals: defaultMintDecimals,
			Error:    "Grant token mint not configured",
		})
		return
	}
	resp := GrantTokenResponse{
		Address:     h.tokenMint,
		ExplorerURL: ledger.TokenExplorerURL(h.tokenMint, h.rpcURL),
	}
	info, err := h.mints.Mint(r.Context(), h.tokenMint)
	if err != nil {
		h.logger.WarnContext(r.Context(), "grant mint lookup failed", "mint", h.tokenMint, "error", err)
		resp.Decimals = defaultMintDecimals
		resp.Error = err.Error()
	} else {
		resp.Decimals = info.Decimals
		resp.Supply = info.Supply
		resp.IsInitialized = true
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleHealth reports liveness and integration modes.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	integrations := h.integrations
	if h.tokens != nil {
		integrations = maps.Clone(h.integrations)
		if integrations == nil {
			integrations = map[string]string{}
		}
		integrations["bioDaoTokenLists"] = "unavailable"
		if h.tokens.Available(r.Context()) {
			integrations["bioDaoTokenLists"] = "available"
		}
	}
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		Agent:            agentName,
		SupportedBioDAOs: len(h.partners.Names()),
		Uptime:           time.Since(h.started).Seconds(),
		Integrations:     integrations,
	})
}
