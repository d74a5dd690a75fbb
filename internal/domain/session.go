package domain

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Status - lifecycle stage of the session mirrored from the server
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusPlaying    Status = "playing"
	StatusResolving  Status = "resolving"
	StatusSettled    Status = "settled"
)

// Outcome is set only once the session is settled.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

const (
	DefaultCells = 25 // 5x5 grid
	MinCells     = 2
	MaxCells     = 100
	MinHazards   = 1
)

// Configuration - difficulty parameters fixed before start
type Configuration struct {
	Cells   int `json:"cells" yaml:"cells"`
	Hazards int `json:"hazards" yaml:"hazards"`
}

// Validate checks board bounds: at least one hazard and at least one safe cell.
func (c Configuration) Validate() error {
	if c.Cells < MinCells || c.Cells > MaxCells {
		return fmt.Errorf("cells must be between %d and %d", MinCells, MaxCells)
	}
	if c.Hazards < MinHazards || c.Hazards >= c.Cells {
		return fmt.Errorf("hazards must be between %d and %d", MinHazards, c.Cells-1)
	}
	return nil
}

// SafeCells returns how many cells are not hazards.
func (c Configuration) SafeCells() int {
	return c.Cells - c.Hazards
}

// InRange reports whether idx is a cell of this board.
func (c Configuration) InRange(idx int) bool {
	return idx >= 0 && idx < c.Cells
}

// Session is a value copy of the session state. The state machine hands these out;
// mutating one has no effect on the machine.
type Session struct {
	ID             string          `json:"session_id,omitempty"`
	Status         Status          `json:"status"`
	Wager          decimal.Decimal `json:"wager"`
	Configuration  Configuration   `json:"configuration"`
	Revealed       []int           `json:"revealed"`
	Multiplier     decimal.Decimal `json:"current_multiplier"`
	CommitmentHash string          `json:"commitment_hash,omitempty"`
	RevealedSeed   string          `json:"revealed_seed,omitempty"`
	Hazards        []int           `json:"hazard_positions,omitempty"`
	Outcome        Outcome         `json:"outcome,omitempty"`
	Payout         decimal.Decimal `json:"payout"`
}

// NewSession returns the empty NotStarted session.
func NewSession() Session {
	return Session{
		Status:     StatusNotStarted,
		Revealed:   []int{},
		Multiplier: decimal.NewFromInt(1),
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	cp := s
	cp.Revealed = slices.Clone(s.Revealed)
	if cp.Revealed == nil {
		cp.Revealed = []int{}
	}
	cp.Hazards = slices.Clone(s.Hazards)
	return cp
}

// HasRevealed reports whether idx is a confirmed safe cell.
func (s Session) HasRevealed(idx int) bool {
	_, found := slices.BinarySearch(s.Revealed, idx)
	return found
}

// RevealedCount returns the number of confirmed safe cells.
func (s Session) RevealedCount() int {
	return len(s.Revealed)
}

// PotentialPayout is wager x current multiplier, for display only.
func (s Session) PotentialPayout() decimal.Decimal {
	return s.Wager.Mul(s.Multiplier)
}

// AcceptsIntents reports whether the user may still reveal or cash out.
func (s Session) AcceptsIntents() bool {
	return s.Status == StatusPlaying
}

// NormalizeCells returns a sorted, de-duplicated copy of cells.
func NormalizeCells(cells []int) []int {
	out := slices.Clone(cells)
	if out == nil {
		out = []int{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
