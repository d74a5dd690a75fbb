package protocol

import (
	"encoding/json"
	"testing"

	"mines_client/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commit = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestDecode_ServerEvents(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev Inbound)
	}{
		{
			name:  "game_started",
			frame: `{"type":"game_started","payload":{"session_id":"s1","commitment_hash":"` + commit + `","wager":"10","configuration":{"cells":25,"hazards":3},"request_id":"r1"}}`,
			check: func(t *testing.T, ev Inbound) {
				e := ev.(GameStarted)
				assert.Equal(t, "s1", e.SessionID)
				assert.Equal(t, "r1", e.RequestID)
				assert.True(t, e.Wager.Equal(decimal.NewFromInt(10)))
				assert.Equal(t, domain.Configuration{Cells: 25, Hazards: 3}, e.Configuration)
			},
		},
		{
			name:  "cell_safe",
			frame: `{"type":"cell_safe","payload":{"session_id":"s1","cell_index":4,"revealed":[4],"current_multiplier":"1.12"}}`,
			check: func(t *testing.T, ev Inbound) {
				e := ev.(CellSafe)
				assert.Equal(t, 4, e.CellIndex)
				assert.Equal(t, "1.12", e.CurrentMultiplier.String())
			},
		},
		{
			name:  "cell_hazard",
			frame: `{"type":"cell_hazard","payload":{"session_id":"s1","cell_index":7,"revealed_seed":"abc","hazard_positions":[7,8,9]}}`,
			check: func(t *testing.T, ev Inbound) {
				assert.Equal(t, []int{7, 8, 9}, ev.(CellHazard).HazardPositions)
			},
		},
		{
			name:  "cashed_out",
			frame: `{"type":"cashed_out","payload":{"session_id":"s1","payout":"14.50","revealed_seed":"abc"}}`,
			check: func(t *testing.T, ev Inbound) {
				assert.True(t, ev.(CashedOut).Payout.Equal(decimal.RequireFromString("14.5")))
			},
		},
		{
			name:  "game_resumed found",
			frame: `{"type":"game_resumed","payload":{"found":true,"session":{"session_id":"s1","revealed":[2,5,9],"current_multiplier":"1.8","commitment_hash":"` + commit + `","wager":"10","configuration":{"cells":25,"hazards":3}}}}`,
			check: func(t *testing.T, ev Inbound) {
				e := ev.(GameResumed)
				require.True(t, e.Found)
				assert.Equal(t, []int{2, 5, 9}, e.Session.Revealed)
			},
		},
		{
			name:  "game_resumed none",
			frame: `{"type":"game_resumed","payload":{"found":false,"session":null}}`,
			check: func(t *testing.T, ev Inbound) {
				assert.False(t, ev.(GameResumed).Found)
			},
		},
		{
			name:  "session_error",
			frame: `{"type":"session_error","payload":{"message":"insufficient balance","code":"E_FUNDS","category":"start"}}`,
			check: func(t *testing.T, ev Inbound) {
				assert.Equal(t, domain.CategoryStart, ev.(SessionError).Category)
			},
		},
		{
			name:  "balance_delta",
			frame: `{"type":"balance_delta","payload":{"user_id":42,"new_balance":"100.25","reason":"payout"}}`,
			check: func(t *testing.T, ev Inbound) {
				e := ev.(BalanceDelta)
				assert.Equal(t, int64(42), e.UserID)
				assert.Equal(t, "100.25", e.NewBalance.String())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.NotEmpty(t, ev.RawPayload())
			tt.check(t, ev)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	frames := map[string]string{
		"malformed":             `{"type":`,
		"missing type":          `{"payload":{}}`,
		"unknown type":          `{"type":"jackpot","payload":{}}`,
		"client event":          `{"type":"reveal_cell","payload":{"session_id":"s1","cell_index":1}}`,
		"unknown field":         `{"type":"cell_safe","payload":{"session_id":"s1","cell_index":1,"current_multiplier":"1.1","bonus":true}}`,
		"multiplier below one":  `{"type":"cell_safe","payload":{"session_id":"s1","cell_index":1,"current_multiplier":"0.9"}}`,
		"negative cell":         `{"type":"cell_safe","payload":{"session_id":"s1","cell_index":-1,"current_multiplier":"1.1"}}`,
		"missing session":       `{"type":"cell_safe","payload":{"cell_index":1,"current_multiplier":"1.1"}}`,
		"non-hex commitment":    `{"type":"game_started","payload":{"session_id":"s1","commitment_hash":"zz","wager":"1","configuration":{"cells":25,"hazards":3}}}`,
		"zero wager":            `{"type":"game_started","payload":{"session_id":"s1","commitment_hash":"` + commit + `","wager":"0","configuration":{"cells":25,"hazards":3}}}`,
		"bad configuration":     `{"type":"game_started","payload":{"session_id":"s1","commitment_hash":"` + commit + `","wager":"1","configuration":{"cells":3,"hazards":3}}}`,
		"hazard without seed":   `{"type":"cell_hazard","payload":{"session_id":"s1","cell_index":1,"hazard_positions":[1]}}`,
		"hazard without layout": `{"type":"cell_hazard","payload":{"session_id":"s1","cell_index":1,"revealed_seed":"abc"}}`,
		"negative payout":       `{"type":"cashed_out","payload":{"session_id":"s1","payout":"-1","revealed_seed":"abc"}}`,
		"found without session": `{"type":"game_resumed","payload":{"found":true}}`,
		"duplicate resumed":     `{"type":"game_resumed","payload":{"found":true,"session":{"session_id":"s1","revealed":[2,2],"current_multiplier":"1.1","commitment_hash":"` + commit + `","wager":"1","configuration":{"cells":25,"hazards":3}}}}`,
		"resumed out of range":  `{"type":"game_resumed","payload":{"found":true,"session":{"session_id":"s1","revealed":[25],"current_multiplier":"1.1","commitment_hash":"` + commit + `","wager":"1","configuration":{"cells":25,"hazards":3}}}}`,
		"empty error":           `{"type":"session_error","payload":{}}`,
		"unknown category":      `{"type":"session_error","payload":{"message":"x","category":"withdraw"}}`,
		"balance without user":  `{"type":"balance_delta","payload":{"new_balance":"1"}}`,
		"negative balance":      `{"type":"balance_delta","payload":{"user_id":1,"new_balance":"-5"}}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(frame))
			require.ErrorIs(t, err, ErrRejected)
			assert.Nil(t, ev)
		})
	}
}

func TestEncode_Outbound(t *testing.T) {
	frame, err := Encode(MsgCashOut, CashOutPayload{SessionID: "s1", ExpectedMultiplier: decimal.RequireFromString("1.45")})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, MsgCashOut, env.Type)
	assert.JSONEq(t, `{"session_id":"s1","expected_multiplier":"1.45"}`, string(env.Payload))

	frame, err = Encode(MsgResumeDiscovery, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"resume_discovery","payload":{}}`, string(frame))
}

func TestCanonicalPayload(t *testing.T) {
	frame := []byte(`{"type":"cell_safe","payload":{"session_id":"s1","cell_index":4,"current_multiplier":"1.12"}}`)
	a, err := Decode(frame)
	require.NoError(t, err)
	b, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, CanonicalPayload(a), CanonicalPayload(b))

	local := CellSafe{SessionID: "s1", CellIndex: 4, CurrentMultiplier: decimal.RequireFromString("1.12")}
	assert.Nil(t, local.RawPayload())
	assert.NotEmpty(t, CanonicalPayload(local))
}

func TestEventFor(t *testing.T) {
	assert.Equal(t, MsgStartGame, EventFor(domain.CategoryStart))
	assert.Equal(t, MsgRevealCell, EventFor(domain.CategoryReveal))
	assert.Equal(t, MsgCashOut, EventFor(domain.CategoryCashOut))
	assert.Equal(t, MsgResumeDiscovery, EventFor(domain.CategoryResume))
}

func TestDecodeIntent(t *testing.T) {
	name, p, err := DecodeIntent([]byte(`{"type":"reveal_cell","payload":{"session_id":"s1","cell_index":3}}`))
	require.NoError(t, err)
	assert.Equal(t, MsgRevealCell, name)
	assert.Equal(t, RevealCellPayload{SessionID: "s1", CellIndex: 3}, p)

	name, p, err = DecodeIntent([]byte(`{"type":"resume_discovery"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgResumeDiscovery, name)
	assert.Equal(t, ResumeDiscoveryPayload{}, p)

	_, _, err = DecodeIntent([]byte(`{"type":"cell_safe","payload":{}}`))
	assert.ErrorIs(t, err, ErrRejected)
}
