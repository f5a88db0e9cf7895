package model

// AccountIdentity describes the platform account behind an authorized session.
type AccountIdentity struct {
	UserID   int64   `json:"user_id"`
	Username *string `json:"username"`
}
