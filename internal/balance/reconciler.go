package balance

import (
	"sync"

	"mines_client/internal/domain"
	"mines_client/internal/errs"

	"github.com/shopspring/decimal"
)

// Update is passed to subscribers when the cached balance changes.
type Update struct {
	UserID int64
	Old    decimal.Decimal
	New    decimal.Decimal
	HadOld bool
	Reason string
}

// Reconciler caches the authenticated user's balance from server snapshots.
// The last delta received wins; deltas are never summed.
type Reconciler struct {
	mu      sync.RWMutex
	userID  int64
	balance decimal.Decimal
	known   bool
	subs    map[int]func(Update)
	nextSub int
}

// New creates a reconciler for userID.
func New(userID int64) *Reconciler {
	return &Reconciler{userID: userID, subs: make(map[int]func(Update))}
}

// SetIdentity switches the authenticated user and forgets the cached balance.
func (r *Reconciler) SetIdentity(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userID == userID {
		return
	}
	r.userID = userID
	r.balance = decimal.Decimal{}
	r.known = false
}

// UserID returns the authenticated identity.
func (r *Reconciler) UserID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID
}

// Apply replaces the cached balance with d.NewBalance when d targets the current user.
// It reports whether the cached value changed; subscribers hear only about changes.
func (r *Reconciler) Apply(d domain.BalanceDelta) bool {
	r.mu.Lock()
	if r.userID == 0 || d.UserID != r.userID {
		r.mu.Unlock()
		return false
	}
	if r.known && r.balance.Equal(d.NewBalance) {
		r.mu.Unlock()
		return false
	}
	u := Update{
		UserID: d.UserID,
		Old:    r.balance,
		New:    d.NewBalance,
		HadOld: r.known,
		Reason: d.Reason,
	}
	r.balance = d.NewBalance
	r.known = true
	subs := make([]func(Update), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
	return true
}

// Balance returns the cached value and whether any delta has been applied.
func (r *Reconciler) Balance() (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balance, r.known
}

// CanAfford is the local pre-check before a start intent. An unknown balance passes;
// the server has the final word.
func (r *Reconciler) CanAfford(wager decimal.Decimal) error {
	bal, known := r.Balance()
	if known && bal.LessThan(wager) {
		return errs.Validationf(errs.CodeInsufficientFunds, "wager %s exceeds balance %s", wager, bal)
	}
	return nil
}

// Subscribe registers fn for change notifications and returns its cancel func.
func (r *Reconciler) Subscribe(fn func(Update)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}
