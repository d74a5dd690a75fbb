package controller

import (
	"errors"

	"mines_client/internal/domain"
	"mines_client/internal/errs"
	"mines_client/internal/metrics"
	"mines_client/internal/protocol"
)

// Deliver queues one raw inbound frame. Safe to call from the channel's read goroutine.
func (c *Controller) Deliver(frame []byte) {
	c.post(func() { c.handleFrame(frame) })
}

// Ready signals an established connection.
func (c *Controller) Ready() {
	c.post(c.ready)
}

// Lost signals the connection dropped.
func (c *Controller) Lost(cause error) {
	c.post(func() { c.lost(cause) })
}

func (c *Controller) ready() {
	c.connected = true
	if c.everReady {
		metrics.Reconnects.Inc()
	}
	c.everReady = true
	c.log.Info("channel ready")
	if err := c.resume.OnReady(); err != nil {
		c.surface(err)
	}
}

func (c *Controller) lost(cause error) {
	if !c.connected {
		return
	}
	c.connected = false
	released := c.gate.ReleaseAll()
	c.revealing = -1
	c.resume.OnLost()
	c.log.Warn("channel lost", "error", cause, "released", released, "status", c.machine.Status())
}

// expire runs on the loop when a gate timer fires.
func (c *Controller) expire(cat domain.Category, token uint64) {
	if !c.gate.Expire(cat, token) {
		return
	}
	metrics.GateTimeouts.WithLabelValues(string(cat)).Inc()
	c.timeouts++
	if c.timeouts >= c.opts.DegradeAfter && !c.degraded {
		c.degraded = true
		c.log.Warn("game server unresponsive", "timeouts", c.timeouts)
	}
	c.surface(errs.Connectivity(errs.CodeTimeout,
		"no response to "+protocol.EventFor(cat)+" within "+c.gate.Timeout().String()))

	switch cat {
	case domain.CategoryReveal:
		c.revealing = -1
	case domain.CategoryResume:
		c.resume.Failed()
	case domain.CategoryStart, domain.CategoryCashOut:
		// the server may still have applied it; ask what it holds
		if err := c.resume.Rediscover(); err != nil {
			c.log.Warn("rediscovery after timeout failed", "category", cat, "error", err)
		}
	}
}

func (c *Controller) handleFrame(frame []byte) {
	ev, err := protocol.Decode(frame)
	if err != nil {
		metrics.EventsRejected.Inc()
		c.log.Warn("inbound frame rejected", "error", err, "bytes", len(frame))
		return
	}
	c.timeouts = 0
	if c.degraded {
		c.degraded = false
		c.log.Info("game server responsive again")
	}

	switch e := ev.(type) {
	case protocol.BalanceDelta:
		if e.UserID != c.balance.UserID() {
			c.log.Debug("balance delta for another user ignored", "target", e.UserID)
		} else if !c.balance.Apply(e.BalanceDelta) {
			c.log.Debug("balance unchanged", "balance", e.NewBalance)
		}
		err = nil
	case protocol.GameStarted:
		err = c.machine.ApplyStarted(e)
		if err == nil {
			c.gate.Release(domain.CategoryStart)
		}
	case protocol.CellSafe:
		current := e.SessionID == c.machine.SessionID()
		err = c.machine.ApplySafe(e)
		if current && e.CellIndex == c.revealing {
			c.gate.Release(domain.CategoryReveal)
			c.revealing = -1
		}
	case protocol.CellHazard:
		current := e.SessionID == c.machine.SessionID()
		err = c.machine.ApplyHazard(e)
		if err == nil || (current && e.CellIndex == c.revealing) {
			c.gate.Release(domain.CategoryReveal)
			c.revealing = -1
		}
	case protocol.CashedOut:
		err = c.machine.ApplyCashedOut(e)
		if err == nil {
			c.gate.Release(domain.CategoryCashOut)
		}
	case protocol.GameResumed:
		c.gate.Release(domain.CategoryResume)
		err = c.resume.Handle(e)
	case protocol.SessionError:
		c.releaseFor(e)
		err = c.machine.ApplyError(e)
	}
	if err != nil {
		c.surface(err)
		return
	}
	metrics.EventsApplied.WithLabelValues(ev.EventName()).Inc()
}

// releaseFor frees the guard a server rejection answers. Errors for another
// session release nothing.
func (c *Controller) releaseFor(e protocol.SessionError) {
	if cur := c.machine.SessionID(); e.SessionID != "" && cur != "" && e.SessionID != cur {
		return
	}
	var released []domain.Category
	if e.Category != "" {
		if c.gate.Release(e.Category) {
			released = append(released, e.Category)
		}
	} else {
		released = c.gate.ReleaseAll()
	}
	for _, cat := range released {
		switch cat {
		case domain.CategoryReveal:
			c.revealing = -1
		case domain.CategoryResume:
			c.resume.Failed()
		}
	}
}

// surface turns an asynchronous failure into a notice.
func (c *Controller) surface(err error) {
	if err == nil {
		return
	}
	switch errs.KindOf(err) {
	case errs.KindProtocol:
		metrics.ProtocolErrors.WithLabelValues(errs.CodeOf(err)).Inc()
		c.log.Warn("protocol inconsistency", "error", err, "session_id", c.machine.SessionID())
	case errs.KindIntegrity:
		c.log.Error("integrity failure", "error", err, "session_id", c.machine.SessionID())
	case errs.KindConnectivity:
		c.log.Warn("connectivity", "error", err)
	default:
		var e *errs.E
		if !errors.As(err, &e) {
			err = errs.Protocol(errs.CodeUnexpectedEvent, err.Error())
		}
	}
	c.notices.Add(err, c.opts.Now())
}
