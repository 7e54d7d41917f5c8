package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"campus-assistant/internal/config"
	pg "campus-assistant/internal/infra/db/postgres"
	"campus-assistant/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()
	_ = godotenv.Load()

	// ---- Config ----
	cfg, err := config.Load(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, cfg.Database.URL, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	rep, err := pg.Seed(ctx, pg.NewTxManager(pool), catalog(time.Now().UTC()))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().
		Int("schools", rep.Schools).
		Int("programs", rep.Programs).
		Int("news", rep.News).
		Int("events", rep.Events).
		Msg("seeding complete")
}

// catalog returns the demo institution. Dates hang off the academic year
// containing now, so reruns within a year upsert the same rows.
func catalog(now time.Time) pg.SeedData {
	year := now.Year()
	if now.Month() < time.September {
		year--
	}
	at := func(y int, m time.Month, d, h int) time.Time { return time.Date(y, m, d, h, 0, 0, 0, time.UTC) }

	return pg.SeedData{
		Schools: []pg.SeedSchool{
			{
				Name:        "School of Computing and Informatics",
				Description: "Undergraduate and postgraduate study in software, data and computer systems.",
				Programs: []pg.SeedProgram{
					{Title: "BSc Computer Science", DegreeLevel: "bachelor", Overview: "Algorithms, systems programming, databases and a final-year project with an industry partner."},
					{Title: "BSc Software Engineering", DegreeLevel: "bachelor", Overview: "Requirements, design, testing and delivery of large software systems in team settings."},
					{Title: "BSc Information Technology", DegreeLevel: "bachelor", Overview: "Networks, cloud infrastructure, security fundamentals and IT service management."},
					{Title: "MSc Data Science", DegreeLevel: "master", Overview: "Statistical learning, data engineering and applied machine learning over one calendar year."},
				},
			},
			{
				Name:        "School of Business and Economics",
				Description: "Programs in management, finance and applied economics.",
				Programs: []pg.SeedProgram{
					{Title: "Bachelor of Commerce", DegreeLevel: "bachelor", Overview: "Accounting, finance, marketing and management with a capstone consultancy project."},
					{Title: "MBA", DegreeLevel: "master", Overview: "Evening and weekend study for working professionals, with electives in strategy and finance."},
				},
			},
			{
				Name:        "School of Engineering",
				Description: "Accredited engineering degrees with laboratory and field work.",
				Programs: []pg.SeedProgram{
					{Title: "BEng Civil Engineering", DegreeLevel: "bachelor", Overview: "Structures, geotechnics, water resources and construction management."},
					{Title: "BEng Electrical and Electronic Engineering", DegreeLevel: "bachelor", Overview: "Circuits, power systems, signal processing and embedded design."},
				},
			},
		},
		News: []pg.SeedNews{
			{Title: "Applications open for the next intake", Summary: "Online applications for all undergraduate programs are now open.", PublishedAt: at(year, time.September, 15, 9), Published: true},
			{Title: "New computing laboratory opens", Summary: "The School of Computing and Informatics opened a 120-seat lab with GPU workstations.", PublishedAt: at(year, time.October, 2, 9), Published: true},
			{Title: "Scholarship results announced", Summary: "Merit scholarship recipients have been notified by email.", PublishedAt: at(year+1, time.January, 20, 9), Published: true},
			{Title: "Draft: campus master plan", Summary: "Internal draft, not for publication.", PublishedAt: at(year+1, time.February, 1, 9), Published: false},
		},
		Events: []pg.SeedEvent{
			{Title: "Open Day", Location: "Main Campus, Great Hall", Date: at(year, time.November, 14, 9), Description: "Campus tours, program talks and meetings with admissions staff."},
			{Title: "Computing Careers Fair", Location: "School of Computing and Informatics, Atrium", Date: at(year+1, time.March, 12, 10), Description: "Employers recruiting interns and graduates."},
			{Title: "Postgraduate Information Evening", Location: "Online", Date: at(year+1, time.April, 23, 17), Description: "Entry requirements, funding and application deadlines for master's programs."},
			{Title: "Graduation Ceremony", Location: "Main Campus, Great Hall", Date: at(year+1, time.July, 9, 10), Description: "Conferral of degrees for the graduating class."},
		},
	}
}
