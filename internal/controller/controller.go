package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mines_client/internal/balance"
	"mines_client/internal/domain"
	"mines_client/internal/gate"
	"mines_client/internal/logger"
	"mines_client/internal/metrics"
	"mines_client/internal/resume"
	"mines_client/internal/session"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by calls made after the loop has exited.
var ErrStopped = errors.New("controller stopped")

const (
	inboxSize    = 256
	recordBuffer = 32
	recordTTL    = 5 * time.Second
)

// Sender writes one encoded frame to the game channel without blocking.
type Sender interface {
	Send(frame []byte) error
}

// RoundRecorder persists settled rounds.
type RoundRecorder interface {
	SaveRound(ctx context.Context, r *domain.RoundRecord) error
}

type Options struct {
	UserID       int64
	GateTimeout  time.Duration
	DegradeAfter int
	MinBet       decimal.Decimal
	MaxBet       decimal.Decimal
	Presets      map[string]domain.Configuration
	Recorder     RoundRecorder
	Now          func() time.Time
}

// Controller is the event loop around the session core. Intents, inbound frames,
// connection signals and gate expiries all run on one goroutine, one at a time.
type Controller struct {
	opts    Options
	sender  Sender
	machine *session.Machine
	gate    *gate.Gate
	balance *balance.Reconciler
	resume  *resume.Negotiator
	notices Notices

	connected bool
	everReady bool
	timeouts  int
	degraded  bool
	revealing int

	inbox   chan func()
	stopped chan struct{}
	records chan *domain.RoundRecord
	log     *slog.Logger
}

func New(sender Sender, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DegradeAfter <= 0 {
		opts.DegradeAfter = 3
	}
	c := &Controller{
		opts:      opts,
		sender:    sender,
		machine:   session.New(),
		balance:   balance.New(opts.UserID),
		revealing: -1,
		inbox:     make(chan func(), inboxSize),
		stopped:   make(chan struct{}),
		records:   make(chan *domain.RoundRecord, recordBuffer),
		log:       logger.With("component", "controller", "user_id", opts.UserID),
	}
	c.gate = gate.New(opts.GateTimeout, func(cat domain.Category, token uint64) {
		c.post(func() { c.expire(cat, token) })
	})
	c.resume = resume.New(c, c.machine)
	c.machine.Subscribe(c.onChange)
	c.balance.Subscribe(func(u balance.Update) {
		c.log.Info("balance updated", "old", u.Old, "new", u.New, "reason", u.Reason)
	})
	metrics.SetStatus(domain.StatusNotStarted)
	return c
}

// Run drives the loop and the round writer until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(c.stopped)
		for {
			select {
			case <-gctx.Done():
				return nil
			case fn := <-c.inbox:
				fn()
			}
		}
	})
	g.Go(func() error {
		c.writeRounds(gctx)
		return nil
	})
	return g.Wait()
}

// post queues fn on the loop. It reports false once the loop has stopped.
func (c *Controller) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.stopped:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (c *Controller) call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	select {
	case c.inbox <- func() { res <- fn() }:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-res:
		return err
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) onChange(ch session.Change) {
	metrics.SetStatus(ch.To)
	if ch.To != domain.StatusSettled || ch.From == domain.StatusSettled {
		return
	}
	// nothing else can be answered for a settled session
	c.gate.Release(domain.CategoryReveal)
	c.gate.Release(domain.CategoryCashOut)
	c.revealing = -1

	s := ch.Session
	v := c.machine.Verification()
	metrics.RoundsSettled.WithLabelValues(string(s.Outcome)).Inc()
	c.log.Info("session settled", "session_id", s.ID, "outcome", s.Outcome, "payout", s.Payout, "verified", v.OK)
	if v.Checked && !v.OK {
		metrics.IntegrityFailures.Inc()
		c.log.Error("settlement failed verification", "session_id", s.ID, "error", v.Err)
		c.notices.Add(v.Err, c.opts.Now())
	}
	c.enqueueRound(domain.NewRoundRecord(c.balance.UserID(), s, v.Err, c.opts.Now()))
}

func (c *Controller) enqueueRound(r *domain.RoundRecord) {
	if c.opts.Recorder == nil {
		return
	}
	select {
	case c.records <- r:
	default:
		c.log.Warn("round writer backlog full, dropping record", "session_id", r.SessionID)
	}
}

func (c *Controller) writeRounds(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-c.records:
			wctx, cancel := context.WithTimeout(context.Background(), recordTTL)
			if err := c.opts.Recorder.SaveRound(wctx, r); err != nil {
				c.log.Error("save round failed", "session_id", r.SessionID, "error", err)
			}
			cancel()
		}
	}
}
