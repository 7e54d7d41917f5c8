package repository

import (
	"context"
	"time"

	"campus-assistant/internal/domain/model"
)

// KnowledgeRepository reads the institutional records that ground the chatbot.
type KnowledgeRepository interface {
	ListSchools(ctx context.Context, tx Tx) ([]model.School, error)
	ListPrograms(ctx context.Context, tx Tx) ([]model.Program, error)
	ListRecentNews(ctx context.Context, tx Tx, limit int) ([]model.NewsItem, error)
	ListUpcomingEvents(ctx context.Context, tx Tx, now time.Time, limit int) ([]model.Event, error)
}
