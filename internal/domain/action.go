package domain

import "time"

// Category - kind of client-initiated intent guarded independently
type Category string

const (
	CategoryStart   Category = "start"
	CategoryReveal  Category = "reveal"
	CategoryCashOut Category = "cashout"
	CategoryResume  Category = "resume"
)

// Categories lists every intent category.
var Categories = []Category{CategoryStart, CategoryReveal, CategoryCashOut, CategoryResume}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryStart, CategoryReveal, CategoryCashOut, CategoryResume:
		return true
	}
	return false
}

// ActionRequest is an outbound intent. It lives only while its gate is held.
type ActionRequest struct {
	Category Category
	Event    string
	Payload  any
	SentAt   time.Time
}
