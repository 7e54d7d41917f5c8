package repository

import (
	"context"
	"time"

	"campus-assistant/internal/domain/model"
)

// -----------------------------
// Conversations
// -----------------------------

type ConversationRepository interface {
	// UpsertBySession inserts a conversation for the session or returns the
	// existing one untouched. It is atomic under concurrent first messages.
	UpsertBySession(ctx context.Context, tx Tx, c *model.Conversation) (*model.Conversation, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Conversation, error)
	FindBySession(ctx context.Context, tx Tx, sessionID string) (*model.Conversation, error)

	// ListRecentMessages returns at most limit messages, newest first.
	ListRecentMessages(ctx context.Context, tx Tx, conversationID string, limit int) ([]model.Message, error)
	// ListMessages returns every message of the conversation in creation order.
	ListMessages(ctx context.Context, tx Tx, conversationID string) ([]model.Message, error)
	SaveMessage(ctx context.Context, tx Tx, m *model.Message) error

	List(ctx context.Context, tx Tx, limit, offset int) ([]model.ConversationSummary, error)
	Count(ctx context.Context, tx Tx) (int, error)
	ToggleResolved(ctx context.Context, tx Tx, id string) (*model.Conversation, error)
	Delete(ctx context.Context, tx Tx, id string) error

	DailyTokenUsage(ctx context.Context, tx Tx, since time.Time) ([]model.DailyUsage, error)
}
