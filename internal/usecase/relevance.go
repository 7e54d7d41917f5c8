package usecase

import (
	"regexp"
	"strings"

	"campus-assistant/internal/domain/model"
)

// relevanceRule maps one keyword family to the sections it switches on.
// Keywords are matched from a word start, so "program" also hits
// "programs" and "programmes".
type relevanceRule struct {
	family   string
	keywords []string
	sections []model.Section
	pattern  *regexp.Regexp
}

// Coarse heuristic to keep prompt size down; not a ranking model.
var relevanceRules = compileRules([]relevanceRule{
	{
		family:   "programs",
		keywords: []string{"program", "programme", "degree", "course", "major", "bachelor", "master", "phd", "diploma", "stud", "curricul"},
		sections: []model.Section{model.SectionPrograms, model.SectionSchools},
	},
	{
		family:   "schools",
		keywords: []string{"school", "faculty", "faculties", "department", "college"},
		sections: []model.Section{model.SectionSchools},
	},
	{
		family:   "news",
		keywords: []string{"news", "announcement", "update", "latest"},
		sections: []model.Section{model.SectionNews},
	},
	{
		family:   "events",
		keywords: []string{"event", "calendar", "open day", "workshop", "seminar", "webinar", "orientation", "upcoming"},
		sections: []model.Section{model.SectionEvents},
	},
	{
		family:   "admissions",
		keywords: []string{"admission", "apply", "applying", "application", "requirement", "enrol", "deadline", "tuition", `fees?\b`, "scholarship"},
		sections: []model.Section{model.SectionPrograms, model.SectionSchools},
	},
})

var defaultSections = []model.Section{model.SectionPrograms, model.SectionSchools}

func compileRules(rules []relevanceRule) []relevanceRule {
	for i := range rules {
		alts := make([]string, len(rules[i].keywords))
		for j, kw := range rules[i].keywords {
			if strings.ContainsAny(kw, `\?`) {
				alts[j] = kw
				continue
			}
			alts[j] = regexp.QuoteMeta(kw)
		}
		rules[i].pattern = regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)`)
	}
	return rules
}

// Relevance is the outcome of matching one user message.
type Relevance struct {
	Sections model.SectionSet
	Families []string // matched keyword families, in rule order
}

// SelectSections decides which knowledge sections a message needs.
// Nothing matching yields programs + schools.
func SelectSections(message string) Relevance {
	text := strings.ToLower(message)
	out := Relevance{Sections: model.SectionSet{}}
	for _, r := range relevanceRules {
		if !r.pattern.MatchString(text) {
			continue
		}
		out.Families = append(out.Families, r.family)
		for _, s := range r.sections {
			out.Sections[s] = true
		}
	}
	if len(out.Sections) == 0 {
		for _, s := range defaultSections {
			out.Sections[s] = true
		}
	}
	return out
}
