package devserver

import (
	"errors"
	"sync"

	"mines_client/internal/domain"
	"mines_client/internal/protocol"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service holds the active round and balance of every user. All outcomes are
// decided here; it answers each intent with the events to push back.
type Service struct {
	mu           sync.Mutex
	active       map[int64]*Round
	balances     map[int64]decimal.Decimal
	startBalance decimal.Decimal
	newSeed      func() string
	finished     []*Round
}

func NewService(startBalance decimal.Decimal) *Service {
	return &Service{
		active:       make(map[int64]*Round),
		balances:     make(map[int64]decimal.Decimal),
		startBalance: startBalance,
		newSeed:      NewSeed,
	}
}

// SetSeedFunc replaces the seed source, for reproducible rounds.
func (s *Service) SetSeedFunc(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newSeed = fn
}

// Balance returns the user's balance, creating the account on first use.
func (s *Service) Balance(userID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(userID)
}

// Active returns the user's unfinished round, if any.
func (s *Service) Active(userID int64) (*Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.active[userID]
	return r, ok
}

func (s *Service) balanceLocked(userID int64) decimal.Decimal {
	b, ok := s.balances[userID]
	if !ok {
		b = s.startBalance
		s.balances[userID] = b
	}
	return b
}

// Handle applies one intent for userID.
func (s *Service) Handle(userID int64, name string, payload any) []protocol.Inbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := payload.(type) {
	case protocol.StartGamePayload:
		return s.start(userID, p)
	case protocol.RevealCellPayload:
		return s.reveal(userID, p)
	case protocol.CashOutPayload:
		return s.cashOut(userID, p)
	case protocol.ResumeDiscoveryPayload:
		return s.resume(userID)
	}
	return []protocol.Inbound{reject("", "", "E_UNKNOWN", "unknown intent "+name)}
}

func reject(cat domain.Category, sessionID, code, msg string) protocol.SessionError {
	return protocol.SessionError{Message: msg, Code: code, Category: cat, SessionID: sessionID}
}

func (s *Service) balanceEvent(userID int64, reason string) protocol.BalanceDelta {
	return protocol.BalanceDelta{BalanceDelta: domain.BalanceDelta{
		UserID:     userID,
		NewBalance: s.balanceLocked(userID),
		Reason:     reason,
	}}
}

func (s *Service) start(userID int64, p protocol.StartGamePayload) []protocol.Inbound {
	if existing, ok := s.active[userID]; ok && existing.IsActive() {
		return []protocol.Inbound{reject(domain.CategoryStart, "", "E_ACTIVE", "you already have an active game")}
	}
	if err := p.Configuration.Validate(); err != nil {
		return []protocol.Inbound{reject(domain.CategoryStart, "", "E_CONFIG", err.Error())}
	}
	bal := s.balanceLocked(userID)
	if !p.Wager.IsPositive() {
		return []protocol.Inbound{reject(domain.CategoryStart, "", "E_WAGER", "wager must be positive")}
	}
	if bal.LessThan(p.Wager) {
		return []protocol.Inbound{reject(domain.CategoryStart, "", "E_FUNDS", "insufficient balance")}
	}

	r, err := NewRound(uuid.NewString(), userID, p.Wager, p.Configuration, s.newSeed())
	if err != nil {
		return []protocol.Inbound{reject(domain.CategoryStart, "", "E_CONFIG", err.Error())}
	}
	s.balances[userID] = bal.Sub(p.Wager)
	s.active[userID] = r
	return []protocol.Inbound{
		protocol.GameStarted{
			SessionID:      r.ID,
			CommitmentHash: r.Commitment,
			Wager:          r.Wager,
			Configuration:  r.Configuration,
			RequestID:      p.RequestID,
		},
		s.balanceEvent(userID, "wager"),
	}
}

func (s *Service) round(userID int64, sessionID string, cat domain.Category) (*Round, protocol.Inbound) {
	r, ok := s.active[userID]
	if !ok || r.ID != sessionID {
		return nil, reject(cat, sessionID, "E_SESSION", "no active game with this id")
	}
	return r, nil
}

func (s *Service) reveal(userID int64, p protocol.RevealCellPayload) []protocol.Inbound {
	r, rej := s.round(userID, p.SessionID, domain.CategoryReveal)
	if rej != nil {
		return []protocol.Inbound{rej}
	}
	hit, settled, err := r.Reveal(p.CellIndex)
	if err != nil {
		return []protocol.Inbound{reject(domain.CategoryReveal, r.ID, code(err), err.Error())}
	}
	if hit {
		s.finish(userID, r)
		return []protocol.Inbound{protocol.CellHazard{
			SessionID:       r.ID,
			CellIndex:       p.CellIndex,
			RevealedSeed:    r.Seed,
			HazardPositions: r.Hazards,
		}}
	}
	out := []protocol.Inbound{protocol.CellSafe{
		SessionID:         r.ID,
		CellIndex:         p.CellIndex,
		Revealed:          domain.NormalizeCells(r.Revealed),
		CurrentMultiplier: r.Multiplier,
	}}
	if settled {
		out = append(out, s.payout(userID, r)...)
	}
	return out
}

func (s *Service) cashOut(userID int64, p protocol.CashOutPayload) []protocol.Inbound {
	r, rej := s.round(userID, p.SessionID, domain.CategoryCashOut)
	if rej != nil {
		return []protocol.Inbound{rej}
	}
	if _, err := r.CashOut(); err != nil {
		return []protocol.Inbound{reject(domain.CategoryCashOut, r.ID, code(err), err.Error())}
	}
	return s.payout(userID, r)
}

func (s *Service) payout(userID int64, r *Round) []protocol.Inbound {
	s.balances[userID] = s.balanceLocked(userID).Add(r.Payout)
	s.finish(userID, r)
	return []protocol.Inbound{
		protocol.CashedOut{
			SessionID:       r.ID,
			Payout:          r.Payout,
			RevealedSeed:    r.Seed,
			HazardPositions: r.Hazards,
		},
		s.balanceEvent(userID, "payout"),
	}
}

func (s *Service) finish(userID int64, r *Round) {
	delete(s.active, userID)
	s.finished = append(s.finished, r)
}

func (s *Service) resume(userID int64) []protocol.Inbound {
	out := []protocol.Inbound{protocol.GameResumed{Found: false}}
	if r, ok := s.active[userID]; ok {
		out[0] = protocol.GameResumed{Found: true, Session: &protocol.Snapshot{
			SessionID:         r.ID,
			Revealed:          domain.NormalizeCells(r.Revealed),
			CurrentMultiplier: r.Multiplier,
			CommitmentHash:    r.Commitment,
			Wager:             r.Wager,
			Configuration:     r.Configuration,
		}}
	}
	return append(out, s.balanceEvent(userID, "sync"))
}

func code(err error) string {
	switch {
	case errors.Is(err, ErrNotActive):
		return "E_NOT_ACTIVE"
	case errors.Is(err, ErrInvalidCell):
		return "E_CELL"
	case errors.Is(err, ErrAlreadyOpened):
		return "E_OPENED"
	case errors.Is(err, ErrNoReveals):
		return "E_NO_REVEALS"
	}
	return "E_INTERNAL"
}

// Finished returns settled rounds, oldest first.
func (s *Service) Finished() []*Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Round(nil), s.finished...)
}
