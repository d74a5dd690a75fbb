package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundRecord - audit entry for a settled session
type RoundRecord struct {
	ID             int64           `json:"id"`
	SessionID      string          `json:"session_id"`
	UserID         int64           `json:"user_id"`
	Outcome        Outcome         `json:"outcome"`
	Wager          decimal.Decimal `json:"wager"`
	Payout         decimal.Decimal `json:"payout"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	Configuration  Configuration   `json:"configuration"`
	Revealed       []int           `json:"revealed"`
	Hazards        []int           `json:"hazard_positions"`
	CommitmentHash string          `json:"commitment_hash"`
	RevealedSeed   string          `json:"revealed_seed"`
	Verified       bool            `json:"verified"`
	VerifyError    string          `json:"verify_error,omitempty"`
	SettledAt      time.Time       `json:"settled_at"`
}

// NewRoundRecord builds the audit entry from a settled session.
func NewRoundRecord(userID int64, s Session, verifyErr error, at time.Time) *RoundRecord {
	r := &RoundRecord{
		SessionID:      s.ID,
		UserID:         userID,
		Outcome:        s.Outcome,
		Wager:          s.Wager,
		Payout:         s.Payout,
		Multiplier:     s.Multiplier,
		Configuration:  s.Configuration,
		Revealed:       NormalizeCells(s.Revealed),
		Hazards:        NormalizeCells(s.Hazards),
		CommitmentHash: s.CommitmentHash,
		RevealedSeed:   s.RevealedSeed,
		Verified:       verifyErr == nil,
		SettledAt:      at.UTC(),
	}
	if verifyErr != nil {
		r.VerifyError = verifyErr.Error()
	}
	return r
}
