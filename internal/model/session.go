package model

import "time"

// TelegramSession is the stored, resumable login state of one platform
// account, keyed by the caller's own user identifier.
type TelegramSession struct {
	UserID        string    `db:"user_id" json:"user_id"`
	SessionString string    `db:"session_string" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
