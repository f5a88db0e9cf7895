package model

import "strings"

// UntitledConversation is the title used when the platform reports none.
const UntitledConversation = "Untitled"

// Conversation type tags, named after the platform entity kinds.
const (
	ConversationTypeUser             = "User"
	ConversationTypeChat             = "Chat"
	ConversationTypeChannel          = "Channel"
	ConversationTypeChatForbidden    = "ChatForbidden"
	ConversationTypeChannelForbidden = "ChannelForbidden"
)

type ConversationSummary struct {
	ID             int64                `json:"id"`
	Title          string               `json:"title"`
	Type           string               `json:"type"`
	MembersPreview []ParticipantSummary `json:"members_preview"`
	MemberCount    *int                 `json:"member_count"`
}

type ParticipantSummary struct {
	ID       int64   `json:"id"`
	Username *string `json:"username"`
	Name     string  `json:"name"`
}

// DisplayName joins given and family name, dropping whichever is unset.
func DisplayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
