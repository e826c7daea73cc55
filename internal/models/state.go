package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BookingState is a query-time classification of bookings. It is never persisted.
type BookingState string

const (
	StateAll      BookingState = "ALL"
	StateCurrent  BookingState = "CURRENT"
	StatePast     BookingState = "PAST"
	StateFuture   BookingState = "FUTURE"
	StateWaiting  BookingState = "WAITING"
	StateRejected BookingState = "REJECTED"
)

var ErrUnknownState = errors.New("unknown state")

// ParseBookingState accepts a state filter coming from a client. Matching is
// case-insensitive and an empty value means ALL.
func ParseBookingState(raw string) (BookingState, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StateAll, nil
	}

	switch s := BookingState(strings.ToUpper(trimmed)); s {
	case StateAll, StateCurrent, StatePast, StateFuture, StateWaiting, StateRejected:
		return s, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownState, raw)
}

// Matches classifies a single booking against the state at instant now.
func (s BookingState) Matches(b *Booking, now time.Time) bool {
	switch s {
	case StateAll:
		return true
	case StateCurrent:
		return b.Start.Before(now) && b.End.After(now)
	case StatePast:
		return b.End.Before(now)
	case StateFuture:
		return b.Start.After(now)
	case StateWaiting:
		return b.Status == StatusWaiting
	case StateRejected:
		return b.Status == StatusRejected
	default:
		return false
	}
}

// BookingRole selects which side of a booking a listing is made for.
type BookingRole int

const (
	RoleBooker BookingRole = iota
	RoleOwner
)

func (r BookingRole) String() string {
	if r == RoleOwner {
		return "owner"
	}
	return "booker"
}

// BookingFilter is a fully resolved listing query.
type BookingFilter struct {
	Role   BookingRole
	UserID int64
	State  BookingState
	Now    time.Time
	Offset int
	Limit  int
}

// Subject reports whether b belongs to the filter's user on the filter's side.
func (f BookingFilter) Subject(b *Booking) bool {
	if f.Role == RoleOwner {
		return b.ItemOwnerID == f.UserID
	}
	return b.BookerID == f.UserID
}
