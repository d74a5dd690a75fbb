package controller

import (
	"context"

	"mines_client/internal/domain"
	"mines_client/internal/errs"
	"mines_client/internal/metrics"
	"mines_client/internal/protocol"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartRequest asks for a new session. Preset, when set, names a configuration
// and overrides Configuration.
type StartRequest struct {
	Wager         decimal.Decimal       `json:"wager"`
	Preset        string                `json:"preset,omitempty"`
	Configuration *domain.Configuration `json:"configuration,omitempty"`
}

// DefaultConfiguration is used when a start names neither preset nor board.
var DefaultConfiguration = domain.Configuration{Cells: domain.DefaultCells, Hazards: 3}

// Start validates locally and sends start_game. It returns the request id the
// confirmation is matched against.
func (c *Controller) Start(ctx context.Context, req StartRequest) (string, error) {
	var id string
	err := c.call(ctx, func() error {
		var err error
		id, err = c.start(req)
		return err
	})
	return id, err
}

// Reveal sends reveal_cell for idx.
func (c *Controller) Reveal(ctx context.Context, idx int) error {
	return c.call(ctx, func() error { return c.reveal(idx) })
}

// CashOut sends cash_out and enters Resolving.
func (c *Controller) CashOut(ctx context.Context) error {
	return c.call(ctx, c.cashOut)
}

// Acknowledge dismisses a settled result. No network call, unless a server
// session was skipped while the result was shown; then discovery runs again.
func (c *Controller) Acknowledge(ctx context.Context) error {
	return c.call(ctx, c.acknowledge)
}

func (c *Controller) acknowledge() error {
	deferred := c.machine.ResumeDeferred()
	if err := c.machine.Acknowledge(); err != nil {
		return err
	}
	if deferred {
		if err := c.resume.Rediscover(); err != nil {
			c.log.Warn("rediscovery after acknowledge failed", "error", err)
		}
	}
	return nil
}

func (c *Controller) refuse(cat domain.Category, err error) error {
	reason := errs.CodeOf(err)
	if reason == "" {
		reason = errs.KindOf(err).String()
	}
	metrics.IntentsRefused.WithLabelValues(string(cat), reason).Inc()
	c.log.Debug("intent refused", "category", cat, "reason", reason)
	return err
}

func (c *Controller) resolveConfiguration(req StartRequest) (domain.Configuration, error) {
	if req.Preset != "" {
		cfg, ok := c.opts.Presets[req.Preset]
		if !ok {
			return domain.Configuration{}, errs.Validationf(errs.CodeUnknownPreset, "unknown preset %q", req.Preset)
		}
		return cfg, nil
	}
	if req.Configuration != nil {
		return *req.Configuration, nil
	}
	return DefaultConfiguration, nil
}

func (c *Controller) checkWager(w decimal.Decimal) error {
	if !w.IsPositive() {
		return errs.Validation(errs.CodeInvalidWager, "wager must be positive")
	}
	if !c.opts.MinBet.IsZero() && w.LessThan(c.opts.MinBet) {
		return errs.Validationf(errs.CodeInvalidWager, "wager %s below minimum %s", w, c.opts.MinBet)
	}
	if !c.opts.MaxBet.IsZero() && w.GreaterThan(c.opts.MaxBet) {
		return errs.Validationf(errs.CodeInvalidWager, "wager %s above maximum %s", w, c.opts.MaxBet)
	}
	return nil
}

func (c *Controller) start(req StartRequest) (string, error) {
	cfg, err := c.resolveConfiguration(req)
	if err != nil {
		return "", c.refuse(domain.CategoryStart, err)
	}
	if err := c.checkWager(req.Wager); err != nil {
		return "", c.refuse(domain.CategoryStart, err)
	}
	if err := c.machine.CheckStart(req.Wager, cfg); err != nil {
		return "", c.refuse(domain.CategoryStart, err)
	}
	if err := c.balance.CanAfford(req.Wager); err != nil {
		return "", c.refuse(domain.CategoryStart, err)
	}
	if c.resume.InFlight() {
		return "", c.refuse(domain.CategoryStart, errs.Validation(errs.CodeInFlight, "still checking for an unfinished session"))
	}
	if _, pending := c.machine.PendingStart(); pending && !c.gate.Held(domain.CategoryStart) {
		// the last start timed out but was never answered; a second one could open two sessions
		return "", c.refuse(domain.CategoryStart, errs.Validation(errs.CodeInFlight, "previous start is unconfirmed; wait for the server or reconnect"))
	}

	requestID := uuid.NewString()
	err = c.Dispatch(domain.ActionRequest{
		Category: domain.CategoryStart,
		Event:    protocol.MsgStartGame,
		Payload:  protocol.StartGamePayload{Wager: req.Wager, Configuration: cfg, RequestID: requestID},
	})
	if err != nil {
		return "", err
	}
	if err := c.machine.BeginStart(requestID, req.Wager, cfg); err != nil {
		c.gate.Release(domain.CategoryStart)
		return "", err
	}
	c.log.Info("start requested", "request_id", requestID, "wager", req.Wager, "cells", cfg.Cells, "hazards", cfg.Hazards)
	return requestID, nil
}

func (c *Controller) reveal(idx int) error {
	if err := c.machine.CheckReveal(idx); err != nil {
		return c.refuse(domain.CategoryReveal, err)
	}
	err := c.Dispatch(domain.ActionRequest{
		Category: domain.CategoryReveal,
		Event:    protocol.MsgRevealCell,
		Payload:  protocol.RevealCellPayload{SessionID: c.machine.SessionID(), CellIndex: idx},
	})
	if err != nil {
		return err
	}
	c.revealing = idx
	return nil
}

func (c *Controller) cashOut() error {
	if err := c.machine.CheckCashOut(); err != nil {
		return c.refuse(domain.CategoryCashOut, err)
	}
	s := c.machine.Snapshot()
	err := c.Dispatch(domain.ActionRequest{
		Category: domain.CategoryCashOut,
		Event:    protocol.MsgCashOut,
		Payload:  protocol.CashOutPayload{SessionID: s.ID, ExpectedMultiplier: s.Multiplier},
	})
	if err != nil {
		return err
	}
	if err := c.machine.BeginCashOut(); err != nil {
		c.gate.Release(domain.CategoryCashOut)
		return err
	}
	return nil
}

// Dispatch acquires the category's gate and writes the intent. The gate is
// released again if the write fails. It must run on the loop.
func (c *Controller) Dispatch(req domain.ActionRequest) error {
	if !c.connected {
		return c.refuse(req.Category, errs.Connectivity(errs.CodeNotConnected, "not connected to the game server"))
	}
	if !c.gate.TryAcquire(req.Category) {
		return c.refuse(req.Category, errs.Validationf(errs.CodeInFlight, "a %s request is already awaiting the server", req.Category))
	}
	frame, err := protocol.Encode(req.Event, req.Payload)
	if err != nil {
		c.gate.Release(req.Category)
		return errs.Validation(errs.CodeInvalidConfig, "cannot encode request").Wrap(err)
	}
	if err := c.sender.Send(frame); err != nil {
		c.gate.Release(req.Category)
		return c.refuse(req.Category, errs.Connectivity(errs.CodeNotConnected, "could not send to the game server").Wrap(err))
	}
	req.SentAt = c.opts.Now()
	metrics.IntentsSent.WithLabelValues(string(req.Category)).Inc()
	c.log.Debug("intent sent", "category", req.Category, "event", req.Event, "session_id", c.machine.SessionID())
	return nil
}
