package model

import "time"

type School struct {
	ID            string
	Name          string
	Description   string
	ProgramTitles []string
}

type Program struct {
	ID          string
	Title       string
	SchoolID    string
	SchoolName  string
	DegreeLevel string
	Overview    string
}

type NewsItem struct {
	ID          string
	Title       string
	Summary     string
	PublishedAt time.Time
}

type Event struct {
	ID          string
	Title       string
	Location    string
	EventDate   time.Time
	Description string
}

// Section names a block of the knowledge snapshot.
type Section string

const (
	SectionSchools  Section = "schools"
	SectionPrograms Section = "programs"
	SectionNews     Section = "news"
	SectionEvents   Section = "events"
)

// Sections lists every section in prompt order.
var Sections = []Section{SectionSchools, SectionPrograms, SectionNews, SectionEvents}

// SectionSet records which sections a prompt should carry.
type SectionSet map[Section]bool

// Ordered returns the enabled sections in prompt order.
func (s SectionSet) Ordered() []Section {
	out := make([]Section, 0, len(Sections))
	for _, sec := range Sections {
		if s[sec] {
			out = append(out, sec)
		}
	}
	return out
}

// KnowledgeSnapshot is the request-scoped view of institutional data.
// It is never cached across requests.
type KnowledgeSnapshot struct {
	Schools  []School
	Programs []Program
	News     []NewsItem
	Events   []Event
}
