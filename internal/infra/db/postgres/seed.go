package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"campus-assistant/internal/domain/ports/repository"
)

type SeedProgram struct {
	Title       string
	DegreeLevel string
	Overview    string
}

type SeedSchool struct {
	Name        string
	Description string
	Programs    []SeedProgram
}

type SeedNews struct {
	Title       string
	Summary     string
	PublishedAt time.Time
	Published   bool
}

type SeedEvent struct {
	Title       string
	Location    string
	Date        time.Time
	Description string
}

type SeedData struct {
	Schools []SeedSchool
	News    []SeedNews
	Events  []SeedEvent
}

type SeedReport struct {
	Schools, Programs, News, Events int
}

// Seed upserts data on natural keys (school name, school+title, news
// title, event title+date), so running it twice changes nothing.
func Seed(ctx context.Context, tm repository.TransactionManager, data SeedData) (SeedReport, error) {
	var rep SeedReport
	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(nil, tx)
		if err != nil {
			return err
		}
		for _, s := range data.Schools {
			var schoolID string
			err := ex.QueryRow(ctx, `
INSERT INTO schools (id, name, description) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
RETURNING id;`, uuid.NewString(), s.Name, s.Description).Scan(&schoolID)
			if err != nil {
				return fmt.Errorf("seed school %q: %w", s.Name, err)
			}
			rep.Schools++
			for _, p := range s.Programs {
				_, err := ex.Exec(ctx, `
INSERT INTO programs (id, school_id, title, degree_level, overview) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (school_id, title) DO UPDATE SET degree_level = EXCLUDED.degree_level, overview = EXCLUDED.overview;`,
					uuid.NewString(), schoolID, p.Title, p.DegreeLevel, p.Overview)
				if err != nil {
					return fmt.Errorf("seed program %q: %w", p.Title, err)
				}
				rep.Programs++
			}
		}
		for _, n := range data.News {
			_, err := ex.Exec(ctx, `
INSERT INTO news (id, title, summary, is_published, published_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (title) DO UPDATE SET summary = EXCLUDED.summary, is_published = EXCLUDED.is_published, published_at = EXCLUDED.published_at;`,
				uuid.NewString(), n.Title, n.Summary, n.Published, n.PublishedAt)
			if err != nil {
				return fmt.Errorf("seed news %q: %w", n.Title, err)
			}
			rep.News++
		}
		for _, e := range data.Events {
			_, err := ex.Exec(ctx, `
INSERT INTO events (id, title, location, event_date, description) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (title, event_date) DO UPDATE SET location = EXCLUDED.location, description = EXCLUDED.description;`,
				uuid.NewString(), e.Title, e.Location, e.Date, e.Description)
			if err != nil {
				return fmt.Errorf("seed event %q: %w", e.Title, err)
			}
			rep.Events++
		}
		return nil
	})
	return rep, err
}
