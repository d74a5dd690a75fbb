package controller

import (
	"context"

	"mines_client/internal/domain"
	"mines_client/internal/verify"

	"github.com/shopspring/decimal"
)

// View is the derived state a UI renders.
type View struct {
	Session         domain.Session    `json:"session"`
	PotentialPayout decimal.Decimal   `json:"potential_payout"`
	Balance         *decimal.Decimal  `json:"balance,omitempty"`
	Connected       bool              `json:"connected"`
	Degraded        bool              `json:"degraded"`
	Resyncing       bool              `json:"resyncing"`
	InFlight        []domain.Category `json:"in_flight"`
	CanStart        bool              `json:"can_start"`
	CanReveal       bool              `json:"can_reveal"`
	CanCashOut      bool              `json:"can_cash_out"`
	Notices         []Notice          `json:"notices"`
}

// VerifyResult is the fairness audit of the current session.
type VerifyResult struct {
	SessionID    string `json:"session_id,omitempty"`
	Commitment   string `json:"commitment_hash,omitempty"`
	RevealedSeed string `json:"revealed_seed,omitempty"`
	Checked      bool   `json:"checked"`
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
}

// View returns a snapshot of the derived state.
func (c *Controller) View(ctx context.Context) (View, error) {
	var v View
	err := c.call(ctx, func() error {
		v = c.view()
		return nil
	})
	return v, err
}

// Verify re-runs the fairness checks on the current session.
func (c *Controller) Verify(ctx context.Context) (VerifyResult, error) {
	var r VerifyResult
	err := c.call(ctx, func() error {
		s := c.machine.Snapshot()
		r = VerifyResult{SessionID: s.ID, Commitment: s.CommitmentHash, RevealedSeed: s.RevealedSeed}
		if s.Status != domain.StatusSettled {
			return nil
		}
		r.Checked = true
		if err := verify.Session(s); err != nil {
			r.Error = err.Error()
			return nil
		}
		r.OK = true
		return nil
	})
	return r, err
}

// Balance returns the cached balance.
func (c *Controller) Balance() (decimal.Decimal, bool) {
	return c.balance.Balance()
}

// UserID returns the identity balance deltas are matched against.
func (c *Controller) UserID() int64 {
	return c.balance.UserID()
}

// Notices lists the current notices.
func (c *Controller) Notices(ctx context.Context) ([]Notice, error) {
	var out []Notice
	err := c.call(ctx, func() error {
		out = c.notices.List()
		return nil
	})
	return out, err
}

// DismissNotice removes a dismissible notice.
func (c *Controller) DismissNotice(ctx context.Context, id int64) error {
	return c.call(ctx, func() error { return c.notices.Dismiss(id) })
}

func (c *Controller) view() View {
	s := c.machine.Snapshot()
	v := View{
		Session:         s,
		PotentialPayout: s.PotentialPayout(),
		Connected:       c.connected,
		Degraded:        c.degraded,
		Resyncing:       c.connected && !c.resume.Synced(),
		Notices:         c.notices.List(),
	}
	if s.Status == domain.StatusNotStarted {
		v.PotentialPayout = decimal.Zero
	}
	if bal, ok := c.balance.Balance(); ok {
		v.Balance = &bal
	}
	for _, cat := range domain.Categories {
		if c.gate.Held(cat) {
			v.InFlight = append(v.InFlight, cat)
		}
	}
	_, pending := c.machine.PendingStart()
	ready := c.connected && !v.Resyncing
	v.CanStart = ready && !pending && c.machine.CheckStart(decimal.NewFromInt(1), DefaultConfiguration) == nil
	v.CanReveal = ready && s.AcceptsIntents() && !c.gate.Held(domain.CategoryReveal)
	v.CanCashOut = ready && c.machine.CheckCashOut() == nil && !c.gate.Held(domain.CategoryCashOut)
	return v
}
