package session

import (
	"bytes"
	"slices"

	"mines_client/internal/domain"
	"mines_client/internal/errs"
	"mines_client/internal/protocol"
	"mines_client/internal/verify"

	"github.com/shopspring/decimal"
)

// Apply routes a server event to its transition. Balance deltas are not session
// events and are rejected here. A nil error with no change means the event was an
// exact duplicate of one already applied.
func (m *Machine) Apply(ev protocol.Inbound) error {
	switch e := ev.(type) {
	case protocol.GameStarted:
		return m.ApplyStarted(e)
	case protocol.CellSafe:
		return m.ApplySafe(e)
	case protocol.CellHazard:
		return m.ApplyHazard(e)
	case protocol.CashedOut:
		return m.ApplyCashedOut(e)
	case protocol.GameResumed:
		return m.ApplyResumed(e)
	case protocol.SessionError:
		return m.ApplyError(e)
	default:
		return errs.Protocolf(errs.CodeUnexpectedEvent, "%s is not a session event", ev.EventName())
	}
}

func (m *Machine) expect(id, event string) error {
	if m.s.ID == "" || id != m.s.ID {
		return errs.Protocolf(errs.CodeStaleSession, "%s for session %q, expected %q", event, id, m.s.ID)
	}
	return nil
}

// ApplyStarted moves NotStarted to Playing for the outstanding start request.
func (m *Machine) ApplyStarted(ev protocol.GameStarted) error {
	if m.s.Status != domain.StatusNotStarted {
		if ev.SessionID == m.s.ID && ev.CommitmentHash == m.s.CommitmentHash {
			return nil
		}
		return errs.Protocolf(errs.CodeUnexpectedEvent, "game_started for %q while %s", ev.SessionID, m.s.Status)
	}
	if m.isRetired(ev.SessionID) {
		return errs.Protocolf(errs.CodeStaleSession, "game_started for finished session %q", ev.SessionID)
	}
	if m.pending == nil {
		return errs.Protocolf(errs.CodeStaleSession, "game_started for %q with no start outstanding", ev.SessionID)
	}
	if ev.RequestID != "" && m.pending.requestID != "" && ev.RequestID != m.pending.requestID {
		return errs.Protocolf(errs.CodeStaleSession, "game_started answers request %q, outstanding is %q", ev.RequestID, m.pending.requestID)
	}
	if err := ev.Configuration.Validate(); err != nil {
		return errs.Protocol(errs.CodeInvalidConfig, err.Error())
	}

	m.s = domain.Session{
		ID:             ev.SessionID,
		Status:         domain.StatusPlaying,
		Wager:          ev.Wager,
		Configuration:  ev.Configuration,
		Revealed:       []int{},
		Multiplier:     decimal.NewFromInt(1),
		CommitmentHash: ev.CommitmentHash,
	}
	m.appliedSafe = make(map[int][]byte)
	m.settledBy, m.settlement = "", nil
	m.cashOutPending = false
	m.pending = nil
	m.verification = Verification{}
	m.notify(domain.StatusNotStarted, protocol.MsgGameStarted)
	return nil
}

// ApplySafe appends a confirmed safe cell and takes the server's multiplier.
func (m *Machine) ApplySafe(ev protocol.CellSafe) error {
	if err := m.expect(ev.SessionID, protocol.MsgCellSafe); err != nil {
		return err
	}
	payload := protocol.CanonicalPayload(ev)

	if m.s.HasRevealed(ev.CellIndex) {
		return m.duplicateSafe(ev, payload)
	}
	switch m.s.Status {
	case domain.StatusPlaying:
	case domain.StatusResolving:
		return errs.Protocolf(errs.CodeWrongState, "cell_safe %d arrived while resolving", ev.CellIndex)
	default:
		return errs.Protocolf(errs.CodeTerminal, "cell_safe %d for settled session", ev.CellIndex)
	}
	if !m.s.Configuration.InRange(ev.CellIndex) {
		return errs.Protocolf(errs.CodeInvalidCell, "cell_safe %d outside board of %d", ev.CellIndex, m.s.Configuration.Cells)
	}
	if ev.CurrentMultiplier.LessThan(m.s.Multiplier) {
		return errs.Protocolf(errs.CodeNonMonotonic, "multiplier %s below current %s", ev.CurrentMultiplier, m.s.Multiplier)
	}
	next := domain.NormalizeCells(append(slices.Clone(m.s.Revealed), ev.CellIndex))
	if len(next) > m.s.Configuration.SafeCells() {
		return errs.Protocolf(errs.CodeRevealedMismatch, "%d safe cells confirmed on a board with %d", len(next), m.s.Configuration.SafeCells())
	}
	if len(ev.Revealed) > 0 && !slices.Equal(domain.NormalizeCells(ev.Revealed), next) {
		return errs.Protocolf(errs.CodeRevealedMismatch, "server revealed set %v, local %v", ev.Revealed, next)
	}

	m.s.Revealed = next
	m.s.Multiplier = ev.CurrentMultiplier
	m.appliedSafe[ev.CellIndex] = payload
	m.notify(domain.StatusPlaying, protocol.MsgCellSafe)
	return nil
}

// duplicateSafe handles a cell_safe for a cell already confirmed.
func (m *Machine) duplicateSafe(ev protocol.CellSafe, payload []byte) error {
	prev := m.appliedSafe[ev.CellIndex]
	if prev != nil {
		if bytes.Equal(prev, payload) {
			return nil
		}
		return errs.Protocolf(errs.CodeDuplicateMismatch, "second cell_safe for %d differs from the first", ev.CellIndex)
	}
	// the cell came from a resume snapshot; accept a redelivery that says nothing newer
	if ev.CurrentMultiplier.GreaterThan(m.s.Multiplier) {
		return errs.Protocolf(errs.CodeDuplicateMismatch, "cell_safe %d carries multiplier %s above current %s", ev.CellIndex, ev.CurrentMultiplier, m.s.Multiplier)
	}
	for _, c := range ev.Revealed {
		if !m.s.HasRevealed(c) {
			return errs.Protocolf(errs.CodeDuplicateMismatch, "cell_safe %d lists unknown cell %d", ev.CellIndex, c)
		}
	}
	return nil
}

// ApplyHazard settles the session as lost: Playing -> Resolving -> Settled.
func (m *Machine) ApplyHazard(ev protocol.CellHazard) error {
	if err := m.expect(ev.SessionID, protocol.MsgCellHazard); err != nil {
		return err
	}
	payload := protocol.CanonicalPayload(ev)
	if m.s.Status == domain.StatusSettled {
		return m.duplicateSettlement(protocol.MsgCellHazard, payload)
	}
	if !m.s.Configuration.InRange(ev.CellIndex) {
		return errs.Protocolf(errs.CodeInvalidCell, "cell_hazard %d outside board of %d", ev.CellIndex, m.s.Configuration.Cells)
	}
	if m.s.HasRevealed(ev.CellIndex) {
		return errs.Protocolf(errs.CodeRevealedMismatch, "cell_hazard %d was already confirmed safe", ev.CellIndex)
	}

	if m.s.Status == domain.StatusPlaying {
		m.s.Status = domain.StatusResolving
		m.notify(domain.StatusPlaying, protocol.MsgCellHazard)
	}
	m.settle(domain.OutcomeLost, decimal.Zero, ev.RevealedSeed, ev.HazardPositions, protocol.MsgCellHazard, payload)
	return nil
}

// ApplyCashedOut settles the session as won. The server may also settle from
// Playing when every safe cell has been revealed.
func (m *Machine) ApplyCashedOut(ev protocol.CashedOut) error {
	if err := m.expect(ev.SessionID, protocol.MsgCashedOut); err != nil {
		return err
	}
	payload := protocol.CanonicalPayload(ev)
	if m.s.Status == domain.StatusSettled {
		return m.duplicateSettlement(protocol.MsgCashedOut, payload)
	}
	m.settle(domain.OutcomeWon, ev.Payout, ev.RevealedSeed, ev.HazardPositions, protocol.MsgCashedOut, payload)
	return nil
}

func (m *Machine) duplicateSettlement(event string, payload []byte) error {
	if event == m.settledBy && bytes.Equal(payload, m.settlement) {
		return nil
	}
	return errs.Protocolf(errs.CodeTerminal, "%s after session settled by %s", event, m.settledBy)
}

func (m *Machine) settle(outcome domain.Outcome, payout decimal.Decimal, seed string, hazards []int, event string, payload []byte) {
	from := m.s.Status
	m.s.Status = domain.StatusSettled
	m.s.Outcome = outcome
	m.s.Payout = payout
	m.s.RevealedSeed = seed
	if len(hazards) > 0 {
		m.s.Hazards = domain.NormalizeCells(hazards)
	}
	m.cashOutPending = false
	m.settledBy = event
	m.settlement = payload

	err := verify.Session(m.s)
	m.verification = Verification{Checked: true, OK: err == nil, Err: err}
	m.notify(from, event)
}

// ApplyResumed installs a server snapshot in one step, or clears a session the
// server no longer has.
func (m *Machine) ApplyResumed(ev protocol.GameResumed) error {
	if !ev.Found || ev.Session == nil {
		return m.resumeNone()
	}
	snap := *ev.Session
	if m.isRetired(snap.SessionID) {
		return errs.Protocolf(errs.CodeStaleSession, "game_resumed for finished session %q", snap.SessionID)
	}
	if err := snap.Configuration.Validate(); err != nil {
		return errs.Protocol(errs.CodeInvalidConfig, err.Error())
	}
	revealed := domain.NormalizeCells(snap.Revealed)
	if len(revealed) > snap.Configuration.SafeCells() {
		return errs.Protocolf(errs.CodeRevealedMismatch, "snapshot has %d safe cells on a board with %d", len(revealed), snap.Configuration.SafeCells())
	}

	switch m.s.Status {
	case domain.StatusSettled:
		// the result stays until acknowledged; a newer server session is asked for again then
		if snap.SessionID != m.s.ID {
			m.resumeDeferred = true
		}
		m.log.Debug("snapshot ignored while settled", "settled", m.s.ID, "server", snap.SessionID)
		return nil
	case domain.StatusPlaying, domain.StatusResolving:
		if snap.SessionID == m.s.ID {
			if snap.CurrentMultiplier.LessThan(m.s.Multiplier) {
				return errs.Protocolf(errs.CodeNonMonotonic, "snapshot multiplier %s below current %s", snap.CurrentMultiplier, m.s.Multiplier)
			}
			for _, c := range m.s.Revealed {
				if _, ok := slices.BinarySearch(revealed, c); !ok {
					return errs.Protocolf(errs.CodeNonMonotonic, "snapshot lost confirmed cell %d", c)
				}
			}
		} else {
			m.log.Warn("resume replaced local session", "local", m.s.ID, "server", snap.SessionID)
			m.retire(m.s.ID)
		}
	}

	from := m.s.Status
	keep := m.appliedSafe
	if snap.SessionID != m.s.ID {
		keep = make(map[int][]byte)
	}
	m.s = domain.Session{
		ID:             snap.SessionID,
		Status:         domain.StatusPlaying,
		Wager:          snap.Wager,
		Configuration:  snap.Configuration,
		Revealed:       revealed,
		Multiplier:     snap.CurrentMultiplier,
		CommitmentHash: snap.CommitmentHash,
	}
	m.appliedSafe = make(map[int][]byte, len(revealed))
	for _, c := range revealed {
		m.appliedSafe[c] = keep[c]
	}
	m.settledBy, m.settlement = "", nil
	m.cashOutPending = false
	m.pending = nil
	m.verification = Verification{}
	m.notify(from, protocol.MsgGameResumed)
	return nil
}

func (m *Machine) resumeNone() error {
	switch m.s.Status {
	case domain.StatusNotStarted:
		m.pending = nil
		return nil
	case domain.StatusSettled:
		return nil
	}
	id := m.s.ID
	m.reset(protocol.MsgGameResumed)
	return errs.Protocolf(errs.CodeSessionEnded, "session %q ended while disconnected; check your balance and history", id)
}

// ApplyError records a server rejection. State stays as it was, except that a
// rejected cash-out returns Resolving to Playing and a rejected start is forgotten.
// The returned ProtocolError is for the user.
func (m *Machine) ApplyError(ev protocol.SessionError) error {
	if ev.SessionID != "" && m.s.ID != "" && ev.SessionID != m.s.ID {
		return errs.Protocolf(errs.CodeStaleSession, "session_error for %q, expected %q", ev.SessionID, m.s.ID)
	}
	switch ev.Category {
	case domain.CategoryCashOut:
		m.AbortCashOut()
	case domain.CategoryStart:
		m.pending = nil
	}
	msg := ev.Message
	if msg == "" {
		msg = ev.Code
	}
	e := errs.Protocol(errs.CodeServerRejected, msg)
	if ev.Code != "" {
		e.Message = ev.Code + ": " + msg
	}
	return e
}
