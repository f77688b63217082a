package httptransport

import (
	"strings"

	dErrors "scholar/pkg/domain-errors"
)

// EvaluateRequest is the body of POST /api/evaluate.
type EvaluateRequest struct {
	CID           string `json:"cid"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
}

// Validate trims fields and checks the claim pairing.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CID = strings.TrimSpace(r.CID)
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	r.WalletAddress = strings.TrimSpace(r.WalletAddress)
	r.Signature = strings.TrimSpace(r.Signature)

	if r.CID == "" {
		return dErrors.New(dErrors.CodeValidation, "cid is required")
	}
	if len(r.Title) > 512 || len(r.Author) > 256 {
		return dErrors.New(dErrors.CodeValidation, "title or author too long")
	}
	if (r.WalletAddress == "") != (r.Signature == "") {
		return dErrors.New(dErrors.CodeValidation, "both walletAddress and signature are required for verified claims")
	}
	return nil
}
