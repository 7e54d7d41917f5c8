package model

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable turn within a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	TokenCount     *int
	CreatedAt      time.Time
}

// Conversation is the aggregate root for one chat session.
// When IsLogged is false no Message is ever stored for it.
type Conversation struct {
	ID               string
	SessionID        string
	ParticipantName  *string
	ParticipantEmail *string
	IsLogged         bool
	IsResolved       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Messages []Message
}

// Participant is the metadata a client may send with a session or its first message.
type Participant struct {
	Name     *string
	Email    *string
	IsLogged bool
}

func NewConversation(id, sessionID string, p Participant) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:               id,
		SessionID:        sessionID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
		IsLogged:         p.IsLogged,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ConversationSummary is a list row for the admin API.
type ConversationSummary struct {
	Conversation
	MessageCount int
}

// DailyUsage aggregates stored assistant token counts for one calendar day (UTC).
type DailyUsage struct {
	Day      time.Time
	Messages int
	Tokens   int64
}
