package models

import "time"

type Item struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Available   bool      `db:"is_available" json:"available"`
	OwnerID     int64     `db:"owner_id" json:"ownerId"`
	RequestID   *int64    `db:"request_id" json:"requestId,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}

// ItemPatch carries a partial update; nil fields are left unchanged.
type ItemPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Available   *bool   `json:"available"`
}

type Comment struct {
	ID         int64     `db:"id"`
	Text       string    `db:"text"`
	ItemID     int64     `db:"item_id"`
	AuthorID   int64     `db:"author_id"`
	AuthorName string    `db:"author_name"`
	Created    time.Time `db:"created"`
}

type ItemRequest struct {
	ID          int64     `db:"id"`
	Description string    `db:"description"`
	RequestorID int64     `db:"requestor_id"`
	Created     time.Time `db:"created"`
}
