package models

import "time"

type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// UserPatch carries a partial update; nil fields are left unchanged.
type UserPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}
