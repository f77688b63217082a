// Package scoring turns submission text into sub-scores, a trust score, a
// funding destination, a category and a grant decision. Everything here is
// deterministic: the same content always yields the same Result.
package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Decision is the grant recommendation.
type Decision string

const (
	DecisionFund   Decision = "FUND"
	DecisionReview Decision = "REVIEW"
	DecisionReject Decision = "REJECT"
)

const (
	baseScore     = 10
	termIncrement = 3
	maxSubScore   = 25
	maxTrustScore = 100

	fundThreshold   = 80
	reviewThreshold = 60

	verificationHashLen = 16

	// Unassigned is the destination when no group matches.
	Unassigned = "Unassigned"
	// GeneralCategory is the category when no group matches.
	GeneralCategory = "General DeSci"
)

// Breakdown holds the four sub-scores, each in [0,25].
type Breakdown struct {
	Reproducibility int `json:"reproducibilityScore"`
	Methodology     int `json:"methodologyScore"`
	Novelty         int `json:"noveltyScore"`
	Impact          int `json:"impactScore"`
}

// Sum returns the aggregate of the four sub-scores, clamped to [0,100].
func (b Breakdown) Sum() int {
	return clamp(b.Reproducibility+b.Methodology+b.Novelty+b.Impact, maxTrustScore)
}

// Result is the full scorer output.
type Result struct {
	Breakdown        Breakdown
	TrustScore       int
	Destination      string
	Category         string
	Decision         Decision
	VerificationHash string
	Reasoning        string
}

// Score evaluates text for keyword signals. raw is the exact content as
// fetched and only feeds the verification hash; pass the same bytes for
// plain-text submissions.
func Score(text string, raw []byte) Result {
	normalized := strings.ToLower(text)

	b := Breakdown{
		Reproducibility: subScore(normalized, reproducibilityTerms),
		Methodology:     subScore(normalized, methodologyTerms),
		Novelty:         subScore(normalized, noveltyTerms),
		Impact:          subScore(normalized, impactTerms),
	}
	trust := b.Sum()
	res := Result{
		Breakdown:        b,
		TrustScore:       trust,
		Destination:      firstMatch(normalized, destinationGroups, Unassigned),
		Category:         firstMatch(normalized, categoryGroups, GeneralCategory),
		Decision:         DecisionFor(trust),
		VerificationHash: VerificationHash(raw),
	}
	res.Reasoning = reasoning(res)
	return res
}

// DecisionFor maps a trust score onto a grant decision.
func DecisionFor(trust int) Decision {
	switch {
	case trust >= fundThreshold:
		return DecisionFund
	case trust >= reviewThreshold:
		return DecisionReview
	default:
		return DecisionReject
	}
}

// VerificationHash is the short audit token attached to payout memos: the
// first 16 hex characters of SHA-256 over the raw content.
func VerificationHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:verificationHashLen]
}

func subScore(text string, terms []string) int {
	score := baseScore
	for _, term := range terms {
		if strings.Contains(text, term) {
			score += termIncrement
		}
	}
	return clamp(score, maxSubScore)
}

func firstMatch(text string, groups []group, fallback string) string {
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				return g.label
			}
		}
	}
	return fallback
}

func clamp(v, upper int) int {
	if v < 0 {
		return 0
	}
	if v > upper {
		return upper
	}
	return v
}

func reasoning(r Result) string {
	return fmt.Sprintf(
		"Heuristic evaluation based on keyword signals in the submission. "+
			"Reproducibility: %d/25, Methodology: %d/25, Novelty: %d/25, Impact: %d/25. "+
			"Recommended BioDAO: %s. Grant Recommendation: %s.",
		r.Breakdown.Reproducibility, r.Breakdown.Methodology, r.Breakdown.Novelty, r.Breakdown.Impact,
		r.Destination, r.Decision,
	)
}
