package balance

import (
	"testing"

	"mines_client/internal/domain"
	"mines_client/internal/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delta(user int64, amount string) domain.BalanceDelta {
	return domain.BalanceDelta{UserID: user, NewBalance: decimal.RequireFromString(amount), Reason: "test"}
}

func TestApply_IgnoresOtherUsers(t *testing.T) {
	r := New(7)
	assert.False(t, r.Apply(delta(8, "50")))
	_, known := r.Balance()
	assert.False(t, known)
}

func TestApply_LastReceivedWins(t *testing.T) {
	r := New(7)

	// 90 is the newer server state but arrives first; 100 arrives last and wins.
	require.True(t, r.Apply(delta(7, "90")))
	require.True(t, r.Apply(delta(7, "100")))

	bal, known := r.Balance()
	require.True(t, known)
	assert.True(t, bal.Equal(decimal.NewFromInt(100)), "got %s", bal)
}

func TestApply_ReplacesNotAccumulates(t *testing.T) {
	r := New(1)
	r.Apply(delta(1, "10"))
	r.Apply(delta(1, "10"))
	r.Apply(delta(1, "25.50"))

	bal, _ := r.Balance()
	assert.Equal(t, "25.5", bal.String())
}

func TestApply_NotifiesOnlyOnChange(t *testing.T) {
	r := New(3)
	var updates []Update
	cancel := r.Subscribe(func(u Update) { updates = append(updates, u) })

	assert.True(t, r.Apply(delta(3, "100")))
	assert.False(t, r.Apply(delta(3, "100.00")), "numerically equal balance is not a change")
	assert.True(t, r.Apply(delta(3, "85")))

	require.Len(t, updates, 2)
	assert.False(t, updates[0].HadOld)
	assert.True(t, updates[1].Old.Equal(decimal.NewFromInt(100)))
	assert.True(t, updates[1].New.Equal(decimal.NewFromInt(85)))

	cancel()
	r.Apply(delta(3, "1"))
	assert.Len(t, updates, 2)
}

func TestSetIdentity_ForgetsBalance(t *testing.T) {
	r := New(3)
	r.Apply(delta(3, "100"))
	r.SetIdentity(4)

	_, known := r.Balance()
	assert.False(t, known)
	assert.False(t, r.Apply(delta(3, "1")))
	assert.True(t, r.Apply(delta(4, "1")))
}

func TestCanAfford(t *testing.T) {
	r := New(3)
	assert.NoError(t, r.CanAfford(decimal.NewFromInt(1000)), "unknown balance defers to the server")

	r.Apply(delta(3, "20"))
	assert.NoError(t, r.CanAfford(decimal.NewFromInt(20)))

	err := r.CanAfford(decimal.RequireFromString("20.01"))
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
