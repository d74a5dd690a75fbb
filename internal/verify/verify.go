package verify

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"mines_client/internal/domain"
	"mines_client/internal/errs"
)

// Commit is the commitment function: lowercase hex SHA-256 of the seed bytes.
func Commit(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Verifier checks a revealed seed against the hash committed before play.
type Verifier struct {
	commitment string
	seed       string
}

// New holds the commitment published at session start.
func New(commitment string) *Verifier {
	return &Verifier{commitment: strings.ToLower(strings.TrimSpace(commitment))}
}

// Commitment returns the stored hash.
func (v *Verifier) Commitment() string { return v.commitment }

// Reveal records the seed published at settlement.
func (v *Verifier) Reveal(seed string) { v.seed = seed }

// Ready reports whether both values are present.
func (v *Verifier) Ready() bool { return v.commitment != "" && v.seed != "" }

// Verify recomputes the commitment over the seed. A mismatch is an IntegrityError.
// Before the seed is known it returns false with a non-integrity error.
func (v *Verifier) Verify() (bool, error) {
	if !v.Ready() {
		return false, errs.Protocol(errs.CodeMissingSeed, "seed not revealed yet")
	}
	got := Commit(v.seed)
	if subtle.ConstantTimeCompare([]byte(got), []byte(v.commitment)) != 1 {
		return false, errs.Integrity(errs.CodeCommitmentMismatch,
			fmt.Sprintf("revealed seed hashes to %s, server committed to %s", got, v.commitment))
	}
	return true, nil
}

// CheckLayout validates the published hazard layout against what was played:
// positions on the board, distinct, as many as configured, and never a cell the
// server already confirmed safe.
func CheckLayout(cfg domain.Configuration, safe, hazards []int) error {
	if len(hazards) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(hazards))
	for _, h := range hazards {
		if !cfg.InRange(h) {
			return errs.Integrity(errs.CodeLayoutInvalid, fmt.Sprintf("hazard %d outside board of %d", h, cfg.Cells))
		}
		if seen[h] {
			return errs.Integrity(errs.CodeLayoutInvalid, fmt.Sprintf("hazard %d listed twice", h))
		}
		seen[h] = true
	}
	if len(hazards) != cfg.Hazards {
		return errs.Integrity(errs.CodeLayoutInvalid,
			fmt.Sprintf("%d hazards published, session was configured with %d", len(hazards), cfg.Hazards))
	}
	for _, c := range safe {
		if seen[c] {
			return errs.Integrity(errs.CodeLayoutInvalid, fmt.Sprintf("cell %d was confirmed safe but is listed as a hazard", c))
		}
	}
	return nil
}

// Session runs every check that applies to a settled session.
func Session(s domain.Session) error {
	v := New(s.CommitmentHash)
	v.Reveal(s.RevealedSeed)
	if _, err := v.Verify(); err != nil {
		return err
	}
	return CheckLayout(s.Configuration, s.Revealed, s.Hazards)
}
