package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.KnowledgeRepository = (*KnowledgeRepo)(nil)

// KnowledgeRepo reads institutional records. Every query has a total order
// so rendered snapshots are stable.
type KnowledgeRepo struct {
	pool *pgxpool.Pool
}

func NewKnowledgeRepo(pool *pgxpool.Pool) *KnowledgeRepo {
	return &KnowledgeRepo{pool: pool}
}

func (r *KnowledgeRepo) ListSchools(ctx context.Context, tx repository.Tx) ([]model.School, error) {
	const q = `
SELECT s.id, s.name, s.description,
       COALESCE(array_agg(p.title ORDER BY p.title) FILTER (WHERE p.id IS NOT NULL), '{}')
  FROM schools s
  LEFT JOIN programs p ON p.school_id = s.id
 GROUP BY s.id
 ORDER BY s.name, s.id;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	defer rows.Close()

	var out []model.School
	for rows.Next() {
		var s model.School
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.ProgramTitles); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *KnowledgeRepo) ListPrograms(ctx context.Context, tx repository.Tx) ([]model.Program, error) {
	const q = `
SELECT p.id, p.title, p.school_id, s.name, p.degree_level, p.overview
  FROM programs p
  JOIN schools s ON s.id = p.school_id
 ORDER BY s.name, p.title, p.id;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var out []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.Title, &p.SchoolID, &p.SchoolName, &p.DegreeLevel, &p.Overview); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *KnowledgeRepo) ListRecentNews(ctx context.Context, tx repository.Tx, limit int) ([]model.NewsItem, error) {
	const q = `
SELECT id, title, summary, published_at
  FROM news
 WHERE is_published
 ORDER BY published_at DESC, title
 LIMIT $1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	var out []model.NewsItem
	for rows.Next() {
		var n model.NewsItem
		if err := rows.Scan(&n.ID, &n.Title, &n.Summary, &n.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *KnowledgeRepo) ListUpcomingEvents(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]model.Event, error) {
	const q = `
SELECT id, title, location, event_date, description
  FROM events
 WHERE event_date > $1
 ORDER BY event_date ASC, title
 LIMIT $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Location, &e.EventDate, &e.Description); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
