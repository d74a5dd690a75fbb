package resume

import (
	"log/slog"

	"mines_client/internal/domain"
	"mines_client/internal/errs"
	"mines_client/internal/logger"
	"mines_client/internal/protocol"
	"mines_client/internal/session"
)

// Dispatcher sends one gated intent. It fails without sending when the
// category is already held or the channel is down.
type Dispatcher interface {
	Dispatch(req domain.ActionRequest) error
}

// Negotiator asks the server for an unfinished session whenever the channel
// becomes ready and feeds the answer into the machine in one step.
// Like the machine it is driven by a single event loop.
type Negotiator struct {
	dispatch Dispatcher
	machine  *session.Machine

	ready    bool
	owed     bool
	inFlight bool
	attempts int
	log      *slog.Logger
}

func New(d Dispatcher, m *session.Machine) *Negotiator {
	return &Negotiator{
		dispatch: d,
		machine:  m,
		owed:     true,
		log:      logger.With("component", "resume"),
	}
}

// OnReady is the single entry point for a newly established connection.
func (n *Negotiator) OnReady() error {
	n.ready = true
	n.owed = true
	n.inFlight = false
	return n.discover()
}

// OnLost marks the channel down. An unanswered discovery is owed again.
func (n *Negotiator) OnLost() {
	n.ready = false
	if n.inFlight {
		n.inFlight = false
		n.owed = true
	}
}

// Rediscover asks again on the live connection, e.g. when a cash-out went unanswered.
func (n *Negotiator) Rediscover() error {
	n.owed = true
	if !n.ready {
		return nil
	}
	return n.discover()
}

// Failed records a discovery that timed out or was rejected. It is retried on
// the next ready event.
func (n *Negotiator) Failed() {
	if n.inFlight {
		n.log.Warn("resume discovery failed", "attempts", n.attempts)
	}
	n.inFlight = false
	n.owed = true
}

// Handle applies a game_resumed reply.
func (n *Negotiator) Handle(ev protocol.GameResumed) error {
	n.inFlight = false
	err := n.machine.ApplyResumed(ev)
	switch {
	case err == nil:
		n.owed = false
		n.attempts = 0
		if ev.Found && n.machine.SessionID() != ev.Session.SessionID {
			n.log.Info("server session deferred until the settled result is acknowledged", "session_id", ev.Session.SessionID)
		} else if ev.Found {
			n.log.Info("session resumed", "session_id", ev.Session.SessionID, "revealed", len(ev.Session.Revealed))
		} else {
			n.log.Debug("no unfinished session")
		}
	case errs.CodeOf(err) == errs.CodeSessionEnded:
		// the reset was applied; the error is only for the user
		n.owed = false
		n.attempts = 0
	}
	return err
}

// Synced reports whether the local session is known to match the server.
func (n *Negotiator) Synced() bool { return !n.owed && !n.inFlight }

// InFlight reports whether a discovery awaits its reply.
func (n *Negotiator) InFlight() bool { return n.inFlight }

// Attempts counts discoveries sent since the last successful reply.
func (n *Negotiator) Attempts() int { return n.attempts }

func (n *Negotiator) discover() error {
	if n.inFlight {
		return nil
	}
	err := n.dispatch.Dispatch(domain.ActionRequest{
		Category: domain.CategoryResume,
		Event:    protocol.MsgResumeDiscovery,
		Payload:  protocol.ResumeDiscoveryPayload{},
	})
	if err != nil {
		n.owed = true
		if errs.CodeOf(err) == errs.CodeInFlight {
			return nil
		}
		return err
	}
	n.inFlight = true
	n.attempts++
	n.log.Debug("resume discovery sent", "attempt", n.attempts)
	return nil
}
