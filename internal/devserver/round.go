package devserver

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"slices"
	"strconv"
	"time"

	"mines_client/internal/domain"
	"mines_client/internal/verify"

	"github.com/shopspring/decimal"
)

// HouseEdge is taken off the fair multiplier.
var HouseEdge = decimal.RequireFromString("0.01")

const (
	StatusActive    = "active"
	StatusCashedOut = "cashed_out"
	StatusExploded  = "exploded"
)

var (
	ErrNotActive     = errors.New("game is not active")
	ErrInvalidCell   = errors.New("invalid cell position")
	ErrAlreadyOpened = errors.New("cell already revealed")
	ErrNoReveals     = errors.New("must reveal at least one cell before cashing out")
)

// Round is one authoritative mines game. The hazard layout is derived from the
// seed, so the published commitment fixes it before the first reveal.
type Round struct {
	ID            string
	UserID        int64
	Configuration domain.Configuration
	Wager         decimal.Decimal
	Seed          string
	Commitment    string
	Hazards       []int
	Revealed      []int
	Multiplier    decimal.Decimal
	Status        string
	Payout        decimal.Decimal
	CreatedAt     time.Time
	FinishedAt    *time.Time
}

// NewSeed returns 32 random bytes, hex encoded.
func NewSeed() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// NewRound creates an active round.
func NewRound(id string, userID int64, wager decimal.Decimal, cfg domain.Configuration, seed string) (*Round, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !wager.IsPositive() {
		return nil, errors.New("wager must be positive")
	}
	return &Round{
		ID:            id,
		UserID:        userID,
		Configuration: cfg,
		Wager:         wager,
		Seed:          seed,
		Commitment:    verify.Commit(seed),
		Hazards:       Layout(seed, cfg),
		Revealed:      []int{},
		Multiplier:    decimal.NewFromInt(1),
		Status:        StatusActive,
		CreatedAt:     time.Now(),
	}, nil
}

// Layout shuffles the board with a SHA-256 stream keyed by the seed and takes
// the first Hazards cells.
func Layout(seed string, cfg domain.Configuration) []int {
	cells := make([]int, cfg.Cells)
	for i := range cells {
		cells[i] = i
	}
	for i := cfg.Cells - 1; i > 0; i-- {
		h := sha256.Sum256([]byte(seed + ":" + strconv.Itoa(i)))
		j := int(binary.BigEndian.Uint64(h[:8]) % uint64(i+1))
		cells[i], cells[j] = cells[j], cells[i]
	}
	hazards := slices.Clone(cells[:cfg.Hazards])
	slices.Sort(hazards)
	return hazards
}

// Multiplier is the payout multiplier after revealed safe cells:
// product of remaining/safeRemaining, less the house edge, floored to 2 places.
func Multiplier(cfg domain.Configuration, revealed int) decimal.Decimal {
	if revealed <= 0 {
		return decimal.NewFromInt(1)
	}
	num, den := decimal.NewFromInt(1), decimal.NewFromInt(1)
	safe := cfg.SafeCells()
	for i := 0; i < revealed && i < safe; i++ {
		num = num.Mul(decimal.NewFromInt(int64(cfg.Cells - i)))
		den = den.Mul(decimal.NewFromInt(int64(safe - i)))
	}
	m := num.DivRound(den, 8).Mul(decimal.NewFromInt(1).Sub(HouseEdge)).Truncate(2)
	if m.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return m
}

// MultiplierTable lists the multiplier after 1..SafeCells reveals.
func MultiplierTable(cfg domain.Configuration) []decimal.Decimal {
	table := make([]decimal.Decimal, cfg.SafeCells())
	for i := range table {
		table[i] = Multiplier(cfg, i+1)
	}
	return table
}

func (r *Round) isHazard(cell int) bool {
	_, ok := slices.BinarySearch(r.Hazards, cell)
	return ok
}

// Reveal opens a cell. settled is true when the round ended, by a hazard or
// because every safe cell is open.
func (r *Round) Reveal(cell int) (hitHazard, settled bool, err error) {
	if r.Status != StatusActive {
		return false, false, ErrNotActive
	}
	if !r.Configuration.InRange(cell) {
		return false, false, ErrInvalidCell
	}
	if slices.Contains(r.Revealed, cell) {
		return false, false, ErrAlreadyOpened
	}

	if r.isHazard(cell) {
		r.Status = StatusExploded
		r.Payout = decimal.Zero
		r.finish()
		return true, true, nil
	}

	r.Revealed = append(r.Revealed, cell)
	r.Multiplier = Multiplier(r.Configuration, len(r.Revealed))

	// all safe cells open: automatic cash-out
	if len(r.Revealed) >= r.Configuration.SafeCells() {
		r.Status = StatusCashedOut
		r.Payout = r.Wager.Mul(r.Multiplier)
		r.finish()
		return false, true, nil
	}
	return false, false, nil
}

// CashOut settles at the current multiplier.
func (r *Round) CashOut() (decimal.Decimal, error) {
	if r.Status != StatusActive {
		return decimal.Zero, ErrNotActive
	}
	if len(r.Revealed) == 0 {
		return decimal.Zero, ErrNoReveals
	}
	r.Status = StatusCashedOut
	r.Payout = r.Wager.Mul(r.Multiplier)
	r.finish()
	return r.Payout, nil
}

// IsActive returns whether the round still accepts reveals.
func (r *Round) IsActive() bool {
	return r.Status == StatusActive
}

func (r *Round) finish() {
	now := time.Now()
	r.FinishedAt = &now
}
