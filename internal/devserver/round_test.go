package devserver

import (
	"testing"

	"mines_client/internal/domain"
	"mines_client/internal/verify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var classic = domain.Configuration{Cells: 25, Hazards: 3}

func TestLayout_DeterministicAndValid(t *testing.T) {
	a := Layout("seed-a", classic)
	assert.Equal(t, a, Layout("seed-a", classic))
	assert.Len(t, a, 3)
	assert.NoError(t, verify.CheckLayout(classic, nil, a))
}

func TestMultiplierTable(t *testing.T) {
	table := MultiplierTable(classic)
	require.Len(t, table, 22)
	assert.Equal(t, "1.12", table[0].String())
	for i := 1; i < len(table); i++ {
		assert.True(t, table[i].GreaterThanOrEqual(table[i-1]), "step %d", i)
	}
	assert.Equal(t, "1", Multiplier(classic, 0).String())
}

func safeCells(r *Round) []int {
	var out []int
	for c := 0; c < r.Configuration.Cells; c++ {
		if !r.isHazard(c) {
			out = append(out, c)
		}
	}
	return out
}

func TestRound_RevealAndCashOut(t *testing.T) {
	r, err := NewRound("r1", 1, decimal.NewFromInt(10), classic, "seed-b")
	require.NoError(t, err)
	assert.Equal(t, verify.Commit("seed-b"), r.Commitment)

	_, err = r.CashOut()
	assert.ErrorIs(t, err, ErrNoReveals)

	cells := safeCells(r)
	hit, settled, err := r.Reveal(cells[0])
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, settled)
	assert.Equal(t, "1.12", r.Multiplier.String())

	_, _, err = r.Reveal(cells[0])
	assert.ErrorIs(t, err, ErrAlreadyOpened)

	payout, err := r.CashOut()
	require.NoError(t, err)
	assert.Equal(t, "11.2", payout.String())
	assert.False(t, r.IsActive())
}

func TestRound_Hazard(t *testing.T) {
	r, err := NewRound("r2", 1, decimal.NewFromInt(10), classic, "seed-c")
	require.NoError(t, err)

	hit, settled, err := r.Reveal(r.Hazards[0])
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, settled)
	assert.Equal(t, StatusExploded, r.Status)
	assert.True(t, r.Payout.IsZero())

	_, _, err = r.Reveal(0)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestRound_AutoCashOut(t *testing.T) {
	cfg := domain.Configuration{Cells: 4, Hazards: 2}
	r, err := NewRound("r3", 1, decimal.NewFromInt(1), cfg, "seed-d")
	require.NoError(t, err)

	cells := safeCells(r)
	_, settled, err := r.Reveal(cells[0])
	require.NoError(t, err)
	assert.False(t, settled)
	_, settled, err = r.Reveal(cells[1])
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, StatusCashedOut, r.Status)
	assert.True(t, r.Payout.IsPositive())
}
