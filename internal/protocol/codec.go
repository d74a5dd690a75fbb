package protocol

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"mines_client/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrRejected marks a frame refused at the channel boundary: unknown type,
// malformed JSON, wrong direction, or a payload that fails validation.
var ErrRejected = errors.New("event rejected")

var one = decimal.NewFromInt(1)

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Decode parses one inbound frame into its typed event.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, reject("malformed frame: %v", err)
	}
	if env.Type == "" {
		return nil, reject("missing type")
	}
	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}

	var (
		ev  Inbound
		err error
	)
	switch env.Type {
	case MsgGameStarted:
		var e GameStarted
		if err = strictUnmarshal(payload, &e); err == nil {
			e.raw = raw{payload: payload}
			err = e.validate()
		}
		ev = e
	case MsgCellSafe:
		var e CellSafe
		if err = strictUnmarshal(payload, &e); err == nil {
			e.raw = raw{payload: payload}
			err = e.validate()
		}
		ev = e
	case MsgCellHazard:
		var e CellHazard
		if err = strictUnmarshal(payload, &e); err == nil {
			e.raw = raw{payload: payload}
			err = e.validate()
		}
		ev = e
	case MsgCashedOut:
		var e CashedOut
		if err = strictUnmarshal(payload, &e); err == nil {
			e.raw = raw{payload: payload}
			err = e.validate()
		}
		ev = e
	case MsgGameResumed:
		var e GameResumed
		if err = strictUnmarshal(payload, &e); err == nil {
			e.raw = raw{payload: payload}
			err = e.validate()
		}
		ev = e
	case MsgSessionError:
		var e SessionError
		if err = strictUnmarshal(payload, &e); err == nil {
			e.raw = raw{payload: payload}
			err = e.validate()
		}
		ev = e
	case MsgBalanceDelta:
		var e BalanceDelta
		if err = strictUnmarshal(payload, &e); err == nil {
			e.raw = raw{payload: payload}
			err = e.validate()
		}
		ev = e
	case MsgStartGame, MsgRevealCell, MsgCashOut, MsgResumeDiscovery:
		return nil, reject("%s is a client event", env.Type)
	default:
		return nil, reject("unknown event %q", env.Type)
	}
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return nil, err
		}
		return nil, reject("%s: %v", env.Type, err)
	}
	return ev, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Encode builds an outbound frame.
func Encode(name string, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return json.Marshal(Envelope{Type: name, Payload: body})
}

// EncodeInbound builds a server frame. Used by the dev server and tests.
func EncodeInbound(ev Inbound) ([]byte, error) {
	return Encode(ev.EventName(), ev)
}

// CanonicalPayload returns the bytes used to compare two deliveries of the same event.
func CanonicalPayload(ev Inbound) []byte {
	if p := ev.RawPayload(); p != nil {
		return p
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	return b
}

func validHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func validCells(cells []int) error {
	for _, c := range cells {
		if c < 0 {
			return fmt.Errorf("negative cell index %d", c)
		}
	}
	return nil
}

func (e GameStarted) validate() error {
	if e.SessionID == "" {
		return reject("game_started: missing session_id")
	}
	if !validHex(e.CommitmentHash) {
		return reject("game_started: commitment_hash must be hex")
	}
	if !e.Wager.IsPositive() {
		return reject("game_started: wager must be positive")
	}
	if err := e.Configuration.Validate(); err != nil {
		return reject("game_started: %v", err)
	}
	return nil
}

func (e CellSafe) validate() error {
	if e.SessionID == "" {
		return reject("cell_safe: missing session_id")
	}
	if e.CellIndex < 0 {
		return reject("cell_safe: negative cell_index")
	}
	if err := validCells(e.Revealed); err != nil {
		return reject("cell_safe: %v", err)
	}
	if e.CurrentMultiplier.LessThan(one) {
		return reject("cell_safe: current_multiplier below 1")
	}
	return nil
}

func (e CellHazard) validate() error {
	if e.SessionID == "" {
		return reject("cell_hazard: missing session_id")
	}
	if e.CellIndex < 0 {
		return reject("cell_hazard: negative cell_index")
	}
	if e.RevealedSeed == "" {
		return reject("cell_hazard: missing revealed_seed")
	}
	if len(e.HazardPositions) == 0 {
		return reject("cell_hazard: missing hazard_positions")
	}
	if err := validCells(e.HazardPositions); err != nil {
		return reject("cell_hazard: %v", err)
	}
	return nil
}

func (e CashedOut) validate() error {
	if e.SessionID == "" {
		return reject("cashed_out: missing session_id")
	}
	if e.Payout.IsNegative() {
		return reject("cashed_out: negative payout")
	}
	if e.RevealedSeed == "" {
		return reject("cashed_out: missing revealed_seed")
	}
	if err := validCells(e.HazardPositions); err != nil {
		return reject("cashed_out: %v", err)
	}
	return nil
}

func (e GameResumed) validate() error {
	if !e.Found {
		if e.Session != nil {
			return reject("game_resumed: session present with found=false")
		}
		return nil
	}
	s := e.Session
	if s == nil {
		return reject("game_resumed: found without session")
	}
	if s.SessionID == "" {
		return reject("game_resumed: missing session_id")
	}
	if !validHex(s.CommitmentHash) {
		return reject("game_resumed: commitment_hash must be hex")
	}
	if !s.Wager.IsPositive() {
		return reject("game_resumed: wager must be positive")
	}
	if err := s.Configuration.Validate(); err != nil {
		return reject("game_resumed: %v", err)
	}
	if s.CurrentMultiplier.LessThan(one) {
		return reject("game_resumed: current_multiplier below 1")
	}
	for _, c := range s.Revealed {
		if !s.Configuration.InRange(c) {
			return reject("game_resumed: revealed cell %d out of range", c)
		}
	}
	if len(domain.NormalizeCells(s.Revealed)) != len(s.Revealed) {
		return reject("game_resumed: duplicate revealed cells")
	}
	return nil
}

func (e SessionError) validate() error {
	if e.Message == "" && e.Code == "" {
		return reject("session_error: empty")
	}
	if e.Category != "" && !e.Category.Valid() {
		return reject("session_error: unknown category %q", e.Category)
	}
	return nil
}

func (e BalanceDelta) validate() error {
	if e.UserID == 0 {
		return reject("balance_delta: missing user_id")
	}
	if e.NewBalance.IsNegative() {
		return reject("balance_delta: negative balance")
	}
	return nil
}

// DecodeIntent parses a client frame into its outbound payload type. The dev
// server uses it; the client never receives these.
func DecodeIntent(frame []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, reject("malformed frame: %v", err)
	}
	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}

	var (
		out any
		err error
	)
	switch env.Type {
	case MsgStartGame:
		var p StartGamePayload
		err = strictUnmarshal(payload, &p)
		out = p
	case MsgRevealCell:
		var p RevealCellPayload
		err = strictUnmarshal(payload, &p)
		out = p
	case MsgCashOut:
		var p CashOutPayload
		err = strictUnmarshal(payload, &p)
		out = p
	case MsgResumeDiscovery:
		var p ResumeDiscoveryPayload
		err = strictUnmarshal(payload, &p)
		out = p
	default:
		return "", nil, reject("unknown intent %q", env.Type)
	}
	if err != nil {
		return "", nil, reject("%s: %v", env.Type, err)
	}
	return env.Type, out, nil
}
