package domain

import "github.com/shopspring/decimal"

// BalanceDelta - server-pushed balance snapshot for one user.
// NewBalance is the full current balance, not a difference.
type BalanceDelta struct {
	UserID     int64           `json:"user_id"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Reason     string          `json:"reason"`
}
