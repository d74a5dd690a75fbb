package session

import (
	"log/slog"

	"mines_client/internal/domain"
	"mines_client/internal/errs"
	"mines_client/internal/logger"

	"github.com/shopspring/decimal"
)

const retiredLimit = 64

// Change describes one mutation of the session.
type Change struct {
	From    domain.Status
	To      domain.Status
	Event   string
	Session domain.Session
}

// Verification is the result of checking a settled session.
type Verification struct {
	Checked bool
	OK      bool
	Err     error
}

type pendingStart struct {
	requestID string
	wager     decimal.Decimal
	cfg       domain.Configuration
}

// Machine owns the session mirrored from the server and its transition table.
// It is not safe for concurrent use: one event loop drives it, one call at a time.
type Machine struct {
	s domain.Session

	// canonical payload of each applied cell_safe; nil when the cell came from a snapshot
	appliedSafe map[int][]byte
	// canonical payload and name of the event that settled the session
	settledBy  string
	settlement []byte
	// Resolving was entered by a local cash-out, not by a hazard
	cashOutPending bool
	// a snapshot for another session arrived while Settled
	resumeDeferred bool

	pending      *pendingStart
	retired      map[string]struct{}
	retiredOrder []string
	verification Verification

	subs    map[int]func(Change)
	nextSub int
	log     *slog.Logger
}

// New creates a machine in NotStarted.
func New() *Machine {
	return &Machine{
		s:           domain.NewSession(),
		appliedSafe: make(map[int][]byte),
		retired:     make(map[string]struct{}),
		subs:        make(map[int]func(Change)),
		log:         logger.With("component", "session"),
	}
}

// Snapshot returns a read-only copy of the session.
func (m *Machine) Snapshot() domain.Session {
	return m.s.Clone()
}

// Status returns the current status.
func (m *Machine) Status() domain.Status { return m.s.Status }

// SessionID is the id inbound events must carry, empty in NotStarted.
func (m *Machine) SessionID() string { return m.s.ID }

// Verification returns the fairness check of the settled session.
func (m *Machine) Verification() Verification { return m.verification }

// PendingStart returns the request id of the outstanding start, if any.
func (m *Machine) PendingStart() (string, bool) {
	if m.pending == nil {
		return "", false
	}
	return m.pending.requestID, true
}

// CashOutPending reports whether Resolving was entered by a local cash-out.
func (m *Machine) CashOutPending() bool { return m.cashOutPending }

// ResumeDeferred reports whether a snapshot was skipped because a settled
// result was still on screen.
func (m *Machine) ResumeDeferred() bool { return m.resumeDeferred }

// Subscribe registers fn for every change and returns its cancel func.
func (m *Machine) Subscribe(fn func(Change)) func() {
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() { delete(m.subs, id) }
}

func (m *Machine) notify(from domain.Status, event string) {
	c := Change{From: from, To: m.s.Status, Event: event, Session: m.s.Clone()}
	m.log.Debug("session changed", "from", from, "to", c.To, "event", event, "session_id", m.s.ID)
	for _, fn := range m.subs {
		fn(c)
	}
}

// CheckStart validates a start intent without changing state.
func (m *Machine) CheckStart(wager decimal.Decimal, cfg domain.Configuration) error {
	switch m.s.Status {
	case domain.StatusNotStarted, domain.StatusSettled:
	default:
		return errs.Validationf(errs.CodeWrongState, "cannot start while %s", m.s.Status)
	}
	if !wager.IsPositive() {
		return errs.Validation(errs.CodeInvalidWager, "wager must be positive")
	}
	if err := cfg.Validate(); err != nil {
		return errs.Validation(errs.CodeInvalidConfig, err.Error())
	}
	return nil
}

// BeginStart records an outstanding start request. Starting from Settled
// acknowledges the previous result first.
func (m *Machine) BeginStart(requestID string, wager decimal.Decimal, cfg domain.Configuration) error {
	if err := m.CheckStart(wager, cfg); err != nil {
		return err
	}
	if m.s.Status == domain.StatusSettled {
		m.reset("start_requested")
	}
	m.pending = &pendingStart{requestID: requestID, wager: wager, cfg: cfg}
	return nil
}

// CancelStart forgets the outstanding start, e.g. when it could not be sent.
func (m *Machine) CancelStart() {
	m.pending = nil
}

// CheckReveal validates a reveal intent without changing state.
func (m *Machine) CheckReveal(idx int) error {
	if m.s.Status != domain.StatusPlaying {
		return errs.Validationf(errs.CodeWrongState, "cannot reveal while %s", m.s.Status)
	}
	if !m.s.Configuration.InRange(idx) {
		return errs.Validationf(errs.CodeInvalidCell, "cell %d is not on a board of %d", idx, m.s.Configuration.Cells)
	}
	if m.s.HasRevealed(idx) {
		return errs.Validationf(errs.CodeCellRevealed, "cell %d is already revealed", idx)
	}
	return nil
}

// CheckCashOut validates a cash-out intent without changing state.
func (m *Machine) CheckCashOut() error {
	if m.s.Status != domain.StatusPlaying {
		return errs.Validationf(errs.CodeWrongState, "cannot cash out while %s", m.s.Status)
	}
	if m.s.RevealedCount() < 1 {
		return errs.Validation(errs.CodeNoReveals, "reveal at least one cell before cashing out")
	}
	return nil
}

// BeginCashOut moves Playing to Resolving; no further intents are accepted.
func (m *Machine) BeginCashOut() error {
	if err := m.CheckCashOut(); err != nil {
		return err
	}
	from := m.s.Status
	m.s.Status = domain.StatusResolving
	m.cashOutPending = true
	m.notify(from, "cashout_requested")
	return nil
}

// AbortCashOut returns to Playing when a cash-out never reached the server.
func (m *Machine) AbortCashOut() {
	if m.s.Status != domain.StatusResolving || !m.cashOutPending {
		return
	}
	m.s.Status = domain.StatusPlaying
	m.cashOutPending = false
	m.notify(domain.StatusResolving, "cashout_aborted")
}

// Acknowledge dismisses a settled result and resets to NotStarted. No network call.
// In NotStarted it forgets an unanswered start, so a late confirmation is ignored.
func (m *Machine) Acknowledge() error {
	switch m.s.Status {
	case domain.StatusNotStarted:
		m.pending = nil
		return nil
	case domain.StatusSettled:
		m.reset("acknowledged")
		return nil
	default:
		return errs.Validationf(errs.CodeWrongState, "nothing to acknowledge while %s", m.s.Status)
	}
}

func (m *Machine) reset(event string) {
	from := m.s.Status
	m.retire(m.s.ID)
	m.s = domain.NewSession()
	m.appliedSafe = make(map[int][]byte)
	m.settledBy = ""
	m.settlement = nil
	m.cashOutPending = false
	m.resumeDeferred = false
	m.pending = nil
	m.verification = Verification{}
	m.notify(from, event)
}

func (m *Machine) retire(id string) {
	if id == "" {
		return
	}
	if _, ok := m.retired[id]; ok {
		return
	}
	m.retired[id] = struct{}{}
	m.retiredOrder = append(m.retiredOrder, id)
	if len(m.retiredOrder) > retiredLimit {
		delete(m.retired, m.retiredOrder[0])
		m.retiredOrder = m.retiredOrder[1:]
	}
}

func (m *Machine) isRetired(id string) bool {
	_, ok := m.retired[id]
	return ok
}
