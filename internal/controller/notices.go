package controller

import (
	"errors"
	"time"

	"mines_client/internal/errs"
)

const noticeLimit = 50

// Notice is an error surfaced to the user outside an intent's return value.
type Notice struct {
	ID      int64     `json:"id"`
	Kind    string    `json:"kind"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
	Sticky  bool      `json:"sticky"`
	At      time.Time `json:"at"`
}

// Notices keeps the user-visible notices. Integrity notices are sticky: they
// cannot be dismissed and are never evicted.
type Notices struct {
	seq   int64
	items []Notice
}

// Add converts err into a notice.
func (n *Notices) Add(err error, at time.Time) Notice {
	n.seq++
	kind := errs.KindOf(err)
	msg := err.Error()
	var e *errs.E
	if errors.As(err, &e) {
		msg = e.Message
	}
	item := Notice{
		ID:      n.seq,
		Kind:    kind.String(),
		Code:    errs.CodeOf(err),
		Message: msg,
		Sticky:  kind == errs.KindIntegrity,
		At:      at,
	}
	n.items = append(n.items, item)
	n.evict()
	return item
}

func (n *Notices) evict() {
	for len(n.items) > noticeLimit {
		idx := -1
		for i, it := range n.items {
			if !it.Sticky {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		n.items = append(n.items[:idx], n.items[idx+1:]...)
	}
}

// List returns a copy, oldest first.
func (n *Notices) List() []Notice {
	out := make([]Notice, len(n.items))
	copy(out, n.items)
	return out
}

// Dismiss removes a dismissible notice.
func (n *Notices) Dismiss(id int64) error {
	for i, it := range n.items {
		if it.ID != id {
			continue
		}
		if it.Sticky {
			return errs.Validation(errs.CodeStickyNotice, "integrity warnings cannot be dismissed")
		}
		n.items = append(n.items[:i], n.items[i+1:]...)
		return nil
	}
	return errs.Validationf(errs.CodeNotFound, "notice %d not found", id)
}

// HasSticky reports whether an integrity warning is showing.
func (n *Notices) HasSticky() bool {
	for _, it := range n.items {
		if it.Sticky {
			return true
		}
	}
	return false
}
