package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mines_client/internal/domain"
	"mines_client/internal/errs"
	"mines_client/internal/logger"
	"mines_client/internal/metrics"
	"mines_client/internal/protocol"
	"mines_client/internal/verify"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID = int64(42)
	seed   = "round-seed-1"
	sid    = "sess-1"
)

var classic = domain.Configuration{Cells: 25, Hazards: 3}

type fakeSender struct {
	mu     sync.Mutex
	frames []protocol.Envelope
	fail   error
}

func (f *fakeSender) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return err
	}
	f.frames = append(f.frames, env)
	return nil
}

func (f *fakeSender) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.frames {
		if e.Type == name {
			n++
		}
	}
	return n
}

func (f *fakeSender) last(name string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].Type == name {
			return f.frames[i].Payload
		}
	}
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	rounds []*domain.RoundRecord
}

func (f *fakeRecorder) SaveRound(_ context.Context, r *domain.RoundRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, r)
	return nil
}

func (f *fakeRecorder) all() []*domain.RoundRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.RoundRecord(nil), f.rounds...)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func frame(t *testing.T, ev protocol.Inbound) []byte {
	t.Helper()
	b, err := protocol.EncodeInbound(ev)
	require.NoError(t, err)
	return b
}

// run starts the loop; connect additionally answers the first discovery with "none".
func run(t *testing.T, opts Options) (*Controller, *fakeSender) {
	t.Helper()
	if opts.UserID == 0 {
		opts.UserID = userID
	}
	if opts.GateTimeout == 0 {
		opts.GateTimeout = 5 * time.Second
	}
	s := &fakeSender{}
	c := New(s, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, s
}

func connect(t *testing.T, opts Options) (*Controller, *fakeSender) {
	t.Helper()
	c, s := run(t, opts)
	c.Ready()
	c.Deliver(frame(t, protocol.GameResumed{Found: false}))
	v := view(t, c)
	require.True(t, v.Connected)
	require.False(t, v.Resyncing)
	require.Equal(t, 1, s.count(protocol.MsgResumeDiscovery))
	return c, s
}

func view(t *testing.T, c *Controller) View {
	t.Helper()
	v, err := c.View(context.Background())
	require.NoError(t, err)
	return v
}

func startSession(t *testing.T, c *Controller) {
	t.Helper()
	ctx := context.Background()
	id, err := c.Start(ctx, StartRequest{Wager: dec("10"), Configuration: &classic})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	c.Deliver(frame(t, protocol.GameStarted{
		SessionID:      sid,
		CommitmentHash: verify.Commit(seed),
		Wager:          dec("10"),
		Configuration:  classic,
		RequestID:      id,
	}))
	require.Equal(t, domain.StatusPlaying, view(t, c).Session.Status)
}

func safe(t *testing.T, cell int, mult string) []byte {
	return frame(t, protocol.CellSafe{SessionID: sid, CellIndex: cell, CurrentMultiplier: dec(mult)})
}

func TestHappyPath(t *testing.T) {
	rec := &fakeRecorder{}
	c, s := connect(t, Options{Recorder: rec})
	ctx := context.Background()
	startSession(t, c)

	for _, step := range []struct {
		cell int
		mult string
	}{{3, "1.12"}, {7, "1.27"}, {11, "1.45"}} {
		require.NoError(t, c.Reveal(ctx, step.cell))
		c.Deliver(safe(t, step.cell, step.mult))
		assert.Equal(t, step.mult, view(t, c).Session.Multiplier.String())
	}

	require.NoError(t, c.CashOut(ctx))
	assert.Equal(t, domain.StatusResolving, view(t, c).Session.Status)
	assert.JSONEq(t, `{"session_id":"sess-1","expected_multiplier":"1.45"}`, string(s.last(protocol.MsgCashOut)))

	c.Deliver(frame(t, protocol.CashedOut{SessionID: sid, Payout: dec("14.50"), RevealedSeed: seed}))
	c.Deliver(frame(t, protocol.BalanceDelta{BalanceDelta: domain.BalanceDelta{UserID: userID, NewBalance: dec("104.50"), Reason: "payout"}}))

	v := view(t, c)
	assert.Equal(t, domain.StatusSettled, v.Session.Status)
	assert.Equal(t, domain.OutcomeWon, v.Session.Outcome)
	assert.True(t, v.Session.Payout.Equal(dec("14.5")))
	require.NotNil(t, v.Balance)
	assert.True(t, v.Balance.Equal(dec("104.5")))
	assert.Empty(t, v.Notices)
	assert.Empty(t, v.InFlight)
	assert.Equal(t, 3, s.count(protocol.MsgRevealCell))
	assert.Equal(t, 1, s.count(protocol.MsgCashOut))

	res, err := c.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, res.Checked)
	assert.True(t, res.OK)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 10*time.Millisecond)
	r := rec.all()[0]
	assert.Equal(t, sid, r.SessionID)
	assert.Equal(t, userID, r.UserID)
	assert.True(t, r.Verified)
	assert.Equal(t, []int{3, 7, 11}, r.Revealed)
}

func TestAtMostOneRevealInFlight(t *testing.T) {
	c, s := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)

	require.NoError(t, c.Reveal(ctx, 3))
	err := c.Reveal(ctx, 4)
	require.Error(t, err)
	assert.Equal(t, errs.CodeInFlight, errs.CodeOf(err))
	assert.Equal(t, 1, s.count(protocol.MsgRevealCell))

	c.Deliver(safe(t, 3, "1.12"))
	require.NoError(t, c.Reveal(ctx, 4))
	assert.Equal(t, 2, s.count(protocol.MsgRevealCell))
}

func TestCashOutWithoutRevealsNeverSent(t *testing.T) {
	c, s := connect(t, Options{})
	startSession(t, c)

	err := c.CashOut(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, errs.CodeNoReveals, errs.CodeOf(err))
	assert.Zero(t, s.count(protocol.MsgCashOut))
	assert.Equal(t, domain.StatusPlaying, view(t, c).Session.Status)
}

func TestHazardLoss(t *testing.T) {
	c, s := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)

	require.NoError(t, c.Reveal(ctx, 20))
	c.Deliver(frame(t, protocol.CellHazard{SessionID: sid, CellIndex: 20, RevealedSeed: seed, HazardPositions: []int{20, 21, 22}}))

	v := view(t, c)
	assert.Equal(t, domain.StatusSettled, v.Session.Status)
	assert.Equal(t, domain.OutcomeLost, v.Session.Outcome)
	assert.True(t, v.Session.Payout.IsZero())

	err := c.Reveal(ctx, 5)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, 1, s.count(protocol.MsgRevealCell))
}

func TestDuplicateDelivery(t *testing.T) {
	c, _ := connect(t, Options{})
	startSession(t, c)
	require.NoError(t, c.Reveal(context.Background(), 4))

	c.Deliver(safe(t, 4, "1.12"))
	c.Deliver(safe(t, 4, "1.12"))

	v := view(t, c)
	assert.Equal(t, []int{4}, v.Session.Revealed)
	assert.Empty(t, v.Notices)
}

func TestMidSessionReconnect(t *testing.T) {
	c, s := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 1))
	c.Deliver(safe(t, 1, "1.12"))
	require.NoError(t, c.Reveal(ctx, 2))
	c.Deliver(safe(t, 2, "1.27"))
	before := view(t, c).Session

	c.Lost(errors.New("read: connection reset"))
	assert.False(t, view(t, c).Connected)
	err := c.Reveal(ctx, 3)
	assert.Equal(t, errs.KindConnectivity, errs.KindOf(err))

	c.Ready()
	assert.Equal(t, 2, s.count(protocol.MsgResumeDiscovery))
	assert.True(t, view(t, c).Resyncing)

	c.Deliver(frame(t, protocol.GameResumed{Found: true, Session: &protocol.Snapshot{
		SessionID:         sid,
		Revealed:          []int{1, 2},
		CurrentMultiplier: dec("1.27"),
		CommitmentHash:    verify.Commit(seed),
		Wager:             dec("10"),
		Configuration:     classic,
	}}))

	v := view(t, c)
	assert.False(t, v.Resyncing)
	assert.Equal(t, before, v.Session)
	assert.True(t, v.CanReveal)
	assert.True(t, v.CanCashOut)
}

func TestSessionEndedWhileDisconnected(t *testing.T) {
	c, _ := connect(t, Options{})
	startSession(t, c)

	c.Lost(nil)
	c.Ready()
	c.Deliver(frame(t, protocol.GameResumed{Found: false}))

	v := view(t, c)
	assert.Equal(t, domain.StatusNotStarted, v.Session.Status)
	require.Len(t, v.Notices, 1)
	assert.Equal(t, errs.CodeSessionEnded, v.Notices[0].Code)
}

func TestBalanceLastReceivedWins(t *testing.T) {
	c, _ := connect(t, Options{})

	c.Deliver(frame(t, protocol.BalanceDelta{BalanceDelta: domain.BalanceDelta{UserID: userID, NewBalance: dec("100")}}))
	c.Deliver(frame(t, protocol.BalanceDelta{BalanceDelta: domain.BalanceDelta{UserID: userID, NewBalance: dec("90")}}))
	c.Deliver(frame(t, protocol.BalanceDelta{BalanceDelta: domain.BalanceDelta{UserID: 7, NewBalance: dec("5000")}}))

	v := view(t, c)
	require.NotNil(t, v.Balance)
	assert.Equal(t, "90", v.Balance.String())
}

func TestGateTimeout(t *testing.T) {
	c, s := connect(t, Options{GateTimeout: 40 * time.Millisecond, DegradeAfter: 1})
	ctx := context.Background()
	startSession(t, c)

	require.NoError(t, c.Reveal(ctx, 3))
	require.Eventually(t, func() bool {
		v := view(t, c)
		return len(v.InFlight) == 0 && v.Degraded
	}, time.Second, 10*time.Millisecond)

	v := view(t, c)
	require.NotEmpty(t, v.Notices)
	assert.Equal(t, errs.KindConnectivity.String(), v.Notices[0].Kind)
	assert.Equal(t, errs.CodeTimeout, v.Notices[0].Code)

	// the late confirmation is still applied and clears the degraded view
	c.Deliver(safe(t, 3, "1.12"))
	v = view(t, c)
	assert.False(t, v.Degraded)
	assert.Equal(t, []int{3}, v.Session.Revealed)

	require.NoError(t, c.Reveal(ctx, 4))
	assert.Equal(t, 2, s.count(protocol.MsgRevealCell))
}

func TestCashOutTimeoutRediscovers(t *testing.T) {
	c, s := connect(t, Options{GateTimeout: 40 * time.Millisecond})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 3))
	c.Deliver(safe(t, 3, "1.12"))

	require.NoError(t, c.CashOut(ctx))
	require.Eventually(t, func() bool { return s.count(protocol.MsgResumeDiscovery) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.StatusResolving, view(t, c).Session.Status)

	c.Deliver(frame(t, protocol.CashedOut{SessionID: sid, Payout: dec("11.20"), RevealedSeed: seed}))
	c.Deliver(frame(t, protocol.GameResumed{Found: false}))
	v := view(t, c)
	assert.Equal(t, domain.StatusSettled, v.Session.Status)
	assert.Equal(t, domain.OutcomeWon, v.Session.Outcome)
}

func TestIntegrityNoticeIsSticky(t *testing.T) {
	c, _ := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 3))
	c.Deliver(safe(t, 3, "1.12"))
	require.NoError(t, c.CashOut(ctx))

	c.Deliver(frame(t, protocol.CashedOut{SessionID: sid, Payout: dec("11.20"), RevealedSeed: "forged"}))

	v := view(t, c)
	assert.Equal(t, domain.StatusSettled, v.Session.Status)
	require.Len(t, v.Notices, 1)
	n := v.Notices[0]
	assert.Equal(t, errs.KindIntegrity.String(), n.Kind)
	assert.True(t, n.Sticky)

	err := c.DismissNotice(ctx, n.ID)
	assert.Equal(t, errs.CodeStickyNotice, errs.CodeOf(err))

	res, err := c.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, res.Checked)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func TestServerErrorReleasesGate(t *testing.T) {
	c, s := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 3))
	before := view(t, c).Session

	c.Deliver(frame(t, protocol.SessionError{Message: "cell locked", Code: "E_LOCK", Category: domain.CategoryReveal, SessionID: sid}))

	v := view(t, c)
	assert.Equal(t, before, v.Session)
	require.Len(t, v.Notices, 1)
	assert.Equal(t, errs.KindProtocol.String(), v.Notices[0].Kind)
	require.NoError(t, c.DismissNotice(ctx, v.Notices[0].ID))

	require.NoError(t, c.Reveal(ctx, 3))
	assert.Equal(t, 2, s.count(protocol.MsgRevealCell))
}

func TestStaleErrorKeepsGate(t *testing.T) {
	c, _ := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 3))

	c.Deliver(frame(t, protocol.SessionError{Message: "old", Category: domain.CategoryReveal, SessionID: "sess-0"}))
	assert.Equal(t, errs.CodeInFlight, errs.CodeOf(c.Reveal(ctx, 4)))
}

func TestCashOutRejectedRollsBack(t *testing.T) {
	c, _ := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 3))
	c.Deliver(safe(t, 3, "1.12"))
	require.NoError(t, c.CashOut(ctx))

	c.Deliver(frame(t, protocol.SessionError{Message: "try again", Category: domain.CategoryCashOut, SessionID: sid}))
	v := view(t, c)
	assert.Equal(t, domain.StatusPlaying, v.Session.Status)
	assert.True(t, v.CanCashOut)
}

func TestNotConnected(t *testing.T) {
	c, s := run(t, Options{})

	_, err := c.Start(context.Background(), StartRequest{Wager: dec("10")})
	require.Error(t, err)
	assert.Equal(t, errs.KindConnectivity, errs.KindOf(err))
	assert.Zero(t, s.count(protocol.MsgStartGame))
}

func TestStartWhileResyncing(t *testing.T) {
	c, _ := run(t, Options{})
	c.Ready()

	_, err := c.Start(context.Background(), StartRequest{Wager: dec("10")})
	assert.Equal(t, errs.CodeInFlight, errs.CodeOf(err))
}

func TestStartValidation(t *testing.T) {
	c, s := connect(t, Options{
		MinBet:  dec("1"),
		MaxBet:  dec("100"),
		Presets: map[string]domain.Configuration{"easy": {Cells: 25, Hazards: 1}},
	})
	ctx := context.Background()

	_, err := c.Start(ctx, StartRequest{Wager: dec("1000")})
	assert.Equal(t, errs.CodeInvalidWager, errs.CodeOf(err))

	_, err = c.Start(ctx, StartRequest{Wager: dec("0.5")})
	assert.Equal(t, errs.CodeInvalidWager, errs.CodeOf(err))

	_, err = c.Start(ctx, StartRequest{Wager: dec("10"), Preset: "insane"})
	assert.Equal(t, errs.CodeUnknownPreset, errs.CodeOf(err))

	_, err = c.Start(ctx, StartRequest{Wager: dec("10"), Configuration: &domain.Configuration{Cells: 4, Hazards: 4}})
	assert.Equal(t, errs.CodeInvalidConfig, errs.CodeOf(err))

	c.Deliver(frame(t, protocol.BalanceDelta{BalanceDelta: domain.BalanceDelta{UserID: userID, NewBalance: dec("5")}}))
	_, err = c.Start(ctx, StartRequest{Wager: dec("10")})
	assert.Equal(t, errs.CodeInsufficientFunds, errs.CodeOf(err))
	assert.Zero(t, s.count(protocol.MsgStartGame))

	_, err = c.Start(ctx, StartRequest{Wager: dec("2"), Preset: "easy"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cells":25,"hazards":1}`, mustField(t, s.last(protocol.MsgStartGame), "configuration"))
}

func TestSendFailureReleasesGate(t *testing.T) {
	c, s := connect(t, Options{})
	startSession(t, c)

	s.mu.Lock()
	s.fail = errors.New("buffer full")
	s.mu.Unlock()
	err := c.Reveal(context.Background(), 3)
	assert.Equal(t, errs.KindConnectivity, errs.KindOf(err))
	assert.Empty(t, view(t, c).InFlight)
}

func TestRejectedFrameNeverReachesSession(t *testing.T) {
	c, _ := connect(t, Options{})
	startSession(t, c)
	before := view(t, c).Session

	c.Deliver([]byte(`{"type":"cell_safe","payload":{"session_id":"sess-1","cell_index":3,"current_multiplier":1.12,"extra":1}}`))
	c.Deliver([]byte(`not json`))

	v := view(t, c)
	assert.Equal(t, before, v.Session)
	assert.Empty(t, v.Notices)
}

func mustField(t *testing.T, payload json.RawMessage, key string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &m))
	return string(m[key])
}

func TestStaleRevealAnswerKeepsGate(t *testing.T) {
	c, s := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)

	require.NoError(t, c.Reveal(ctx, 4))
	c.Deliver(frame(t, protocol.CellSafe{SessionID: "old-session", CellIndex: 4, CurrentMultiplier: dec("1.12")}))
	c.Deliver(frame(t, protocol.CellHazard{SessionID: "old-session", CellIndex: 4, RevealedSeed: seed, HazardPositions: []int{4, 5, 6}}))

	v := view(t, c)
	assert.Equal(t, domain.StatusPlaying, v.Session.Status)
	assert.Empty(t, v.Session.Revealed)
	assert.Contains(t, v.InFlight, domain.CategoryReveal)

	err := c.Reveal(ctx, 9)
	require.Error(t, err)
	assert.Equal(t, errs.CodeInFlight, errs.CodeOf(err))
	assert.Equal(t, 1, s.count(protocol.MsgRevealCell))

	c.Deliver(safe(t, 4, "1.12"))
	require.NoError(t, c.Reveal(ctx, 9))
	assert.Equal(t, 2, s.count(protocol.MsgRevealCell))
}

func TestSnapshotWhileSettledWaitsForAcknowledge(t *testing.T) {
	c, s := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 3))
	c.Deliver(safe(t, 3, "1.12"))
	require.NoError(t, c.CashOut(ctx))
	c.Deliver(frame(t, protocol.CashedOut{SessionID: sid, Payout: dec("11.20"), RevealedSeed: seed}))
	settled := view(t, c).Session
	require.Equal(t, domain.StatusSettled, settled.Status)

	other := protocol.GameResumed{Found: true, Session: &protocol.Snapshot{
		SessionID:         "other",
		Revealed:          []int{1},
		CurrentMultiplier: dec("1.12"),
		CommitmentHash:    verify.Commit("other-seed"),
		Wager:             dec("5"),
		Configuration:     classic,
	}}
	c.Deliver(frame(t, other))
	v := view(t, c)
	assert.Equal(t, settled, v.Session)
	assert.Empty(t, v.Notices)
	assert.Equal(t, 1, s.count(protocol.MsgResumeDiscovery))

	require.NoError(t, c.Acknowledge(ctx))
	assert.Equal(t, 2, s.count(protocol.MsgResumeDiscovery))

	c.Deliver(frame(t, other))
	v = view(t, c)
	assert.Equal(t, domain.StatusPlaying, v.Session.Status)
	assert.Equal(t, "other", v.Session.ID)
	assert.False(t, v.Resyncing)
}

func TestAcknowledgeWithoutSkippedSnapshotStaysLocal(t *testing.T) {
	c, s := connect(t, Options{})
	ctx := context.Background()
	startSession(t, c)
	require.NoError(t, c.Reveal(ctx, 20))
	c.Deliver(frame(t, protocol.CellHazard{SessionID: sid, CellIndex: 20, RevealedSeed: seed, HazardPositions: []int{20, 21, 22}}))

	require.NoError(t, c.Acknowledge(ctx))
	assert.Equal(t, domain.StatusNotStarted, view(t, c).Session.Status)
	assert.Equal(t, 1, s.count(protocol.MsgResumeDiscovery))
}

func TestReconnectCounterSkipsFirstConnection(t *testing.T) {
	c, _ := run(t, Options{})
	base := testutil.ToFloat64(metrics.Reconnects)

	c.Ready()
	c.Deliver(frame(t, protocol.GameResumed{Found: false}))
	require.True(t, view(t, c).Connected)
	assert.Equal(t, base, testutil.ToFloat64(metrics.Reconnects))

	c.Lost(errors.New("eof"))
	c.Ready()
	require.True(t, view(t, c).Connected)
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.Reconnects))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBalanceDeltaLogReasons(t *testing.T) {
	out := &syncBuffer{}
	logger.InitWriter(out, "debug", false)
	t.Cleanup(func() { logger.Init("info", false) })

	c, _ := connect(t, Options{})
	delta := func(user int64, bal string) []byte {
		return frame(t, protocol.BalanceDelta{BalanceDelta: domain.BalanceDelta{UserID: user, NewBalance: dec(bal), Reason: "sync"}})
	}
	c.Deliver(delta(userID+1, "5"))
	c.Deliver(delta(userID, "100"))
	c.Deliver(delta(userID, "100"))

	v := view(t, c)
	require.NotNil(t, v.Balance)
	assert.True(t, v.Balance.Equal(dec("100")))

	logs := out.String()
	assert.Equal(t, 1, strings.Count(logs, "balance delta for another user ignored"))
	assert.Equal(t, 1, strings.Count(logs, "balance unchanged"))
}
