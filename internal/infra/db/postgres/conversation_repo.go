package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.ConversationRepository = (*ConversationRepo)(nil)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

const conversationCols = `id, session_id, participant_name, participant_email, is_logged, is_resolved, created_at, updated_at`

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var c model.Conversation
	if err := row.Scan(&c.ID, &c.SessionID, &c.ParticipantName, &c.ParticipantEmail, &c.IsLogged, &c.IsResolved, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertBySession relies on the unique session_id: the no-op update makes
// RETURNING yield the existing row, so concurrent first messages converge.
func (r *ConversationRepo) UpsertBySession(ctx context.Context, tx repository.Tx, c *model.Conversation) (*model.Conversation, error) {
	const q = `
INSERT INTO conversations (id, session_id, participant_name, participant_email, is_logged, is_resolved, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
ON CONFLICT (session_id) DO UPDATE SET session_id = EXCLUDED.session_id
RETURNING ` + conversationCols + `;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	out, err := scanConversation(ex.QueryRow(ctx, q, c.ID, c.SessionID, c.ParticipantName, c.ParticipantEmail, c.IsLogged, c.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}
	return out, nil
}

func (r *ConversationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	return r.findOne(ctx, tx, `SELECT `+conversationCols+` FROM conversations WHERE id = $1;`, id)
}

func (r *ConversationRepo) FindBySession(ctx context.Context, tx repository.Tx, sessionID string) (*model.Conversation, error) {
	return r.findOne(ctx, tx, `SELECT `+conversationCols+` FROM conversations WHERE session_id = $1;`, sessionID)
}

func (r *ConversationRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.Conversation, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(ex.QueryRow(ctx, q, arg))
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return c, nil
}

// Ties on created_at resolve user before assistant.
const (
	messagesAsc  = `ORDER BY created_at ASC, role DESC`
	messagesDesc = `ORDER BY created_at DESC, role ASC`
)

func (r *ConversationRepo) ListRecentMessages(ctx context.Context, tx repository.Tx, conversationID string, limit int) ([]model.Message, error) {
	q := `SELECT id, conversation_id, role, content, token_count, created_at FROM messages WHERE conversation_id = $1 ` + messagesDesc + ` LIMIT $2;`
	return r.queryMessages(ctx, tx, q, conversationID, limit)
}

func (r *ConversationRepo) ListMessages(ctx context.Context, tx repository.Tx, conversationID string) ([]model.Message, error) {
	q := `SELECT id, conversation_id, role, content, token_count, created_at FROM messages WHERE conversation_id = $1 ` + messagesAsc + `;`
	return r.queryMessages(ctx, tx, q, conversationID)
}

func (r *ConversationRepo) queryMessages(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]model.Message, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.TokenCount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// SaveMessage inserts m and bumps the conversation's updated_at. Callers
// persisting a full turn pass a transaction so both rows land together.
func (r *ConversationRepo) SaveMessage(ctx context.Context, tx repository.Tx, m *model.Message) error {
	const qi = `
INSERT INTO messages (id, conversation_id, role, content, token_count, created_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()));`
	const qu = `UPDATE conversations SET updated_at = GREATEST(updated_at, COALESCE($2, NOW())) WHERE id = $1;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	var createdAt *time.Time
	if !m.CreatedAt.IsZero() {
		createdAt = &m.CreatedAt
	}
	if _, err := ex.Exec(ctx, qi, m.ID, m.ConversationID, string(m.Role), m.Content, m.TokenCount, createdAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := ex.Exec(ctx, qu, m.ConversationID, createdAt); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]model.ConversationSummary, error) {
	const q = `
SELECT c.id, c.session_id, c.participant_name, c.participant_email, c.is_logged, c.is_resolved,
       c.created_at, c.updated_at, COUNT(m.id)
  FROM conversations c
  LEFT JOIN messages m ON m.conversation_id = c.id
 GROUP BY c.id
 ORDER BY c.updated_at DESC, c.id
 LIMIT $1 OFFSET $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]model.ConversationSummary, 0, limit)
	for rows.Next() {
		var s model.ConversationSummary
		c := &s.Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.ParticipantName, &c.ParticipantEmail, &c.IsLogged, &c.IsResolved, &c.CreatedAt, &c.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ConversationRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM conversations;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

func (r *ConversationRepo) ToggleResolved(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	q := `UPDATE conversations SET is_resolved = NOT is_resolved WHERE id = $1 RETURNING ` + conversationCols + `;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(ex.QueryRow(ctx, q, id))
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("toggle resolved: %w", err)
	}
	return c, nil
}

// Delete removes the conversation; messages go with it (ON DELETE CASCADE).
func (r *ConversationRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `DELETE FROM conversations WHERE id = $1;`, id)
	if err != nil {
		if notFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ConversationRepo) DailyTokenUsage(ctx context.Context, tx repository.Tx, since time.Time) ([]model.DailyUsage, error) {
	const q = `
SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
       COUNT(*),
       COALESCE(SUM(token_count), 0)
  FROM messages
 WHERE role = 'assistant' AND created_at >= $1
 GROUP BY day
 ORDER BY day;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("daily token usage: %w", err)
	}
	defer rows.Close()

	var out []model.DailyUsage
	for rows.Next() {
		var u model.DailyUsage
		if err := rows.Scan(&u.Day, &u.Messages, &u.Tokens); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		u.Day = time.Date(u.Day.Year(), u.Day.Month(), u.Day.Day(), 0, 0, 0, 0, time.UTC)
		out = append(out, u)
	}
	return out, rows.Err()
}
