package models

import "time"

// BookingStatus is the persisted lifecycle status of a booking.
type BookingStatus string

const (
	StatusWaiting  BookingStatus = "WAITING"
	StatusApproved BookingStatus = "APPROVED"
	StatusRejected BookingStatus = "REJECTED"
	// StatusCanceled is part of the stored enumeration but no operation produces it yet.
	StatusCanceled BookingStatus = "CANCELED"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusApproved, StatusRejected, StatusCanceled:
		return true
	default:
		return false
	}
}

// Decided reports whether the owner can no longer approve or reject the booking.
func (s BookingStatus) Decided() bool {
	switch s {
	case StatusWaiting:
		return false
	case StatusApproved, StatusRejected, StatusCanceled:
		return true
	default:
		return true
	}
}

// DecisionStatus maps the owner's approve/reject flag to the resulting status.
func DecisionStatus(approved bool) BookingStatus {
	if approved {
		return StatusApproved
	}
	return StatusRejected
}

type Booking struct {
	ID        int64         `db:"id" json:"id"`
	Start     time.Time     `db:"start_date" json:"start"`
	End       time.Time     `db:"end_date" json:"end"`
	Status    BookingStatus `db:"status" json:"status"`
	ItemID    int64         `db:"item_id" json:"itemId"`
	BookerID  int64         `db:"booker_id" json:"bookerId"`
	Version   int64         `db:"version" json:"version"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`

	// Resolved from items/users on read, never written.
	ItemName    string `db:"item_name" json:"-"`
	ItemOwnerID int64  `db:"item_owner_id" json:"-"`
	BookerName  string `db:"booker_name" json:"-"`
}

// IsParticipant reports whether userID is the booker or the owner of the booked item.
func (b *Booking) IsParticipant(userID int64) bool {
	return b.BookerID == userID || b.ItemOwnerID == userID
}

// Completed reports whether the booking is an approved stay that ended before now.
func (b *Booking) Completed(now time.Time) bool {
	return b.Status == StatusApproved && b.End.Before(now)
}
