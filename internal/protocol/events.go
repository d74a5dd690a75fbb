package protocol

import (
	"encoding/json"

	"mines_client/internal/domain"

	"github.com/shopspring/decimal"
)

// Event names on the wire.
const (
	// client -> server
	MsgStartGame       = "start_game"
	MsgRevealCell      = "reveal_cell"
	MsgCashOut         = "cash_out"
	MsgResumeDiscovery = "resume_discovery"

	// server -> client
	MsgGameStarted  = "game_started"
	MsgCellSafe     = "cell_safe"
	MsgCellHazard   = "cell_hazard"
	MsgCashedOut    = "cashed_out"
	MsgGameResumed  = "game_resumed"
	MsgSessionError = "session_error"
	MsgBalanceDelta = "balance_delta"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is the closed set of server events. Only types in this package implement it.
type Inbound interface {
	EventName() string
	// RawPayload is the payload exactly as received, nil if built locally.
	RawPayload() []byte
	inbound()
}

type raw struct {
	payload []byte
}

func (r raw) RawPayload() []byte { return r.payload }
func (raw) inbound()             {}

// GameStarted confirms a start_game.
type GameStarted struct {
	raw
	SessionID      string               `json:"session_id"`
	CommitmentHash string               `json:"commitment_hash"`
	Wager          decimal.Decimal      `json:"wager"`
	Configuration  domain.Configuration `json:"configuration"`
	RequestID      string               `json:"request_id,omitempty"`
}

func (GameStarted) EventName() string { return MsgGameStarted }

// CellSafe confirms a safe reveal.
type CellSafe struct {
	raw
	SessionID         string          `json:"session_id"`
	CellIndex         int             `json:"cell_index"`
	Revealed          []int           `json:"revealed"`
	CurrentMultiplier decimal.Decimal `json:"current_multiplier"`
}

func (CellSafe) EventName() string { return MsgCellSafe }

// CellHazard reports the revealed cell was a hazard and settles the session as lost.
type CellHazard struct {
	raw
	SessionID       string `json:"session_id"`
	CellIndex       int    `json:"cell_index"`
	RevealedSeed    string `json:"revealed_seed"`
	HazardPositions []int  `json:"hazard_positions"`
}

func (CellHazard) EventName() string { return MsgCellHazard }

// CashedOut settles the session as won.
type CashedOut struct {
	raw
	SessionID       string          `json:"session_id"`
	Payout          decimal.Decimal `json:"payout"`
	RevealedSeed    string          `json:"revealed_seed"`
	HazardPositions []int           `json:"hazard_positions,omitempty"`
}

func (CashedOut) EventName() string { return MsgCashedOut }

// Snapshot is the full state of an unfinished session.
type Snapshot struct {
	SessionID         string               `json:"session_id"`
	Revealed          []int                `json:"revealed"`
	CurrentMultiplier decimal.Decimal      `json:"current_multiplier"`
	CommitmentHash    string               `json:"commitment_hash"`
	Wager             decimal.Decimal      `json:"wager"`
	Configuration     domain.Configuration `json:"configuration"`
}

// GameResumed answers resume_discovery. Found=false means no unfinished session.
type GameResumed struct {
	raw
	Found   bool      `json:"found"`
	Session *Snapshot `json:"session"`
}

func (GameResumed) EventName() string { return MsgGameResumed }

// SessionError is a server rejection. Category names the intent it answers, if known.
type SessionError struct {
	raw
	Message   string          `json:"message"`
	Code      string          `json:"code"`
	Category  domain.Category `json:"category,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

func (SessionError) EventName() string { return MsgSessionError }

// BalanceDelta carries the authoritative balance for a user.
type BalanceDelta struct {
	raw
	domain.BalanceDelta
}

func (BalanceDelta) EventName() string { return MsgBalanceDelta }

// client -> server payloads

type StartGamePayload struct {
	Wager         decimal.Decimal      `json:"wager"`
	Configuration domain.Configuration `json:"configuration"`
	RequestID     string               `json:"request_id"`
}

type RevealCellPayload struct {
	SessionID string `json:"session_id"`
	CellIndex int    `json:"cell_index"`
}

type CashOutPayload struct {
	SessionID          string          `json:"session_id"`
	ExpectedMultiplier decimal.Decimal `json:"expected_multiplier"`
}

type ResumeDiscoveryPayload struct{}

// Outbound event name per category.
var categoryEvents = map[domain.Category]string{
	domain.CategoryStart:   MsgStartGame,
	domain.CategoryReveal:  MsgRevealCell,
	domain.CategoryCashOut: MsgCashOut,
	domain.CategoryResume:  MsgResumeDiscovery,
}

// EventFor returns the outbound event name of a category.
func EventFor(c domain.Category) string {
	return categoryEvents[c]
}
