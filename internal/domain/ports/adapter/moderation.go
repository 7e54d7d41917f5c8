package adapter

import (
	"context"
	"sort"
)

type ModerationResult struct {
	Flagged    bool
	Categories map[string]bool
	Scores     map[string]float64
}

// FlaggedCategories returns the names of triggered categories, sorted.
func (r ModerationResult) FlaggedCategories() []string {
	out := make([]string, 0, len(r.Categories))
	for name, hit := range r.Categories {
		if hit {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Moderator classifies user text with an external content-safety service.
type Moderator interface {
	Moderate(ctx context.Context, text string) (ModerationResult, error)
}
