package submission

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// StageStatus is the status of one verification stage.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageVerified StageStatus = "verified"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// Stage names a verification stage.
type Stage string

const (
	StageOwnership Stage = "ownership"
	StageDuplicate Stage = "fingerprint"
	StageFreshness Stage = "grounding"
	StageDecision  Stage = "decision"
)

// Stages lists stages in execution order.
var Stages = []Stage{StageOwnership, StageDuplicate, StageFreshness, StageDecision}

// Status is the aggregate record status.
type Status string

const (
	StatusScanning   Status = "Scanning"
	StatusVerified   Status = "Verified"
	StatusPayoutSent Status = "Payout Sent"
	StatusFailed     Status = "Failed"
)

// Terminal reports whether no further transitions may be applied.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusPayoutSent
}

var (
	ErrTerminal          = errors.New("record is in a terminal state")
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// Submission is an accepted request. It is not modified after creation.
type Submission struct {
	ID         string
	Locator    string
	Title      string
	Author     string
	Claimant   string
	Signature  string
	Source     string
	ReceivedAt time.Time
}

// HasClaim reports whether an identity was claimed.
func (s Submission) HasClaim() bool {
	return s.Claimant != ""
}

// Steps holds per-stage statuses.
type Steps struct {
	Ownership StageStatus `json:"ownership"`
	Duplicate StageStatus `json:"fingerprint"`
	Freshness StageStatus `json:"grounding"`
	Decision  StageStatus `json:"decision"`
}

func (s *Steps) get(stage Stage) (*StageStatus, error) {
	switch stage {
	case StageOwnership:
		return &s.Ownership, nil
	case StageDuplicate:
		return &s.Duplicate, nil
	case StageFreshness:
		return &s.Freshness, nil
	case StageDecision:
		return &s.Decision, nil
	}
	return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, stage)
}

// Record is the observable projection of a submission. It only holds
// values, so a plain copy is a snapshot.
type Record struct {
	ID                   string    `json:"id"`
	Locator              string    `json:"cid"`
	Title                string    `json:"title"`
	Author               string    `json:"author"`
	Claimant             string    `json:"walletAddress,omitempty"`
	Source               string    `json:"source"`
	Status               Status    `json:"status"`
	VerificationSteps    Steps     `json:"verificationSteps"`
	TrustScore           int       `json:"trustScore"`
	ReproducibilityScore int       `json:"reproducibilityScore"`
	MethodologyScore     int       `json:"methodologyScore"`
	NoveltyScore         int       `json:"noveltyScore"`
	ImpactScore          int       `json:"impactScore"`
	ImpactCategory       string    `json:"impactCategory"`
	RecommendedBioDao    string    `json:"recommendedBioDao"`
	GrantRecommendation  string    `json:"grantRecommendation,omitempty"`
	AgentReasoning       string    `json:"agentReasoning"`
	VerificationHash     string    `json:"verificationHash"`
	ContentFingerprint   string    `json:"contentFingerprint,omitempty"`
	PayoutTx             string    `json:"payoutTx,omitempty"`
	PayoutToken          string    `json:"payoutToken,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	UpdatedAt            time.Time `json:"updatedAt"`
	Version              uint64    `json:"version"`
}

// NewRecord starts a Scanning record for sub.
func NewRecord(sub Submission, destination string) Record {
	return Record{
		ID:                sub.ID,
		Locator:           sub.Locator,
		Title:             sub.Title,
		Author:            sub.Author,
		Claimant:          sub.Claimant,
		Source:            sub.Source,
		Status:            StatusScanning,
		RecommendedBioDao: destination,
		VerificationSteps: Steps{
			Ownership: StagePending,
			Duplicate: StagePending,
			Freshness: StagePending,
			Decision:  StagePending,
		},
		Timestamp: sub.ReceivedAt,
		UpdatedAt: sub.ReceivedAt,
	}
}

// StageStatus returns the current status of stage.
func (r *Record) StageStatus(stage Stage) StageStatus {
	p, err := r.VerificationSteps.get(stage)
	if err != nil {
		return ""
	}
	return *p
}

// Advance moves a pending stage to a final status. A failed stage fails the
// record and sets its reasoning.
func (r *Record) Advance(stage Stage, status StageStatus, reason string) error {
	if r.Status.Terminal() {
		return ErrTerminal
	}
	p, err := r.VerificationSteps.get(stage)
	if err != nil {
		return err
	}
	if *p != StagePending || status == StagePending || status == "" {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, stage, *p, status)
	}
	*p = status
	if status == StageFailed {
		r.Status = StatusFailed
		r.AgentReasoning = reason
	}
	return nil
}

// Fail moves the record to Failed without touching stage statuses.
func (r *Record) Fail(reason string) error {
	if r.Status.Terminal() {
		return ErrTerminal
	}
	r.Status = StatusFailed
	r.AgentReasoning = reason
	return nil
}

// Settle sets a non-failed final status.
func (r *Record) Settle(status Status) error {
	if r.Status.Terminal() {
		return ErrTerminal
	}
	if status != StatusVerified && status != StatusPayoutSent {
		return fmt.Errorf("%w: cannot settle as %s", ErrInvalidTransition, status)
	}
	r.Status = status
	return nil
}

// Stats aggregates records.
type Stats struct {
	PapersScanned  int               `json:"papersScanned"`
	PapersVerified int               `json:"papersVerified"`
	PayoutsSent    int               `json:"payoutsSent"`
	AvgTrustScore  float64           `json:"avgTrustScore"`
	Integrations   StatsIntegrations `json:"integrations"`
}

// StatsIntegrations counts payouts per instrument.
type StatsIntegrations struct {
	BioTokenPayouts int `json:"bioTokenPayouts"`
	SolPayouts      int `json:"solPayouts"`
}

// ComputeStats summarizes records. The trust average covers every record
// and is rounded to one decimal.
func ComputeStats(records []Record) Stats {
	var st Stats
	total := 0
	for _, r := range records {
		st.PapersScanned++
		total += r.TrustScore
		if r.Status == StatusVerified || r.Status == StatusPayoutSent {
			st.PapersVerified++
		}
		if r.Status != StatusPayoutSent {
			continue
		}
		// Unconfirmed transfers keep their instrument but are not counted.
		st.PayoutsSent++
		switch r.PayoutToken {
		case "BIO":
			st.Integrations.BioTokenPayouts++
		case "SOL":
			st.Integrations.SolPayouts++
		}
	}
	if st.PapersScanned > 0 {
		st.AvgTrustScore = math.Round(float64(total)/float64(st.PapersScanned)*10) / 10
	}
	return st
}

// Event types carried by the feed.
const (
	EventInitialState = "initial_state"
	EventStatus       = "agent_status"
	EventVerified     = "agent_verified"
)

// Event is one feed message.
type Event struct {
	Type   string
	Record Record
}
