package tgclient

import "errors"

var (
	// ErrInvalidToken is returned before any network traffic when a session
	// string cannot be decoded.
	ErrInvalidToken = errors.New("invalid session string")

	// ErrPasswordRequired means the code was accepted but the account has a
	// cloud password that must be checked next.
	ErrPasswordRequired = errors.New("account requires cloud password")

	// ErrNoParticipantList is returned for dialogs whose members cannot be
	// listed, such as private chats and basic groups.
	ErrNoParticipantList = errors.New("dialog has no fetchable participant list")

	ErrUnexpectedResponse = errors.New("unexpected platform response")
)
