package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-events/internal/catalog"
	"ms-events/internal/dbresult"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type EventCreator interface {
	Create(ctx context.Context, in models.CreateEventInput) dbresult.Result[models.EventView]
}

type sampleEvent struct {
	fullName  string
	shortName string
	date      string
	venues    []string
	sportID   int
}

var sampleEvents = []sampleEvent{
	{"Real Madrid vs Barcelona", "RM vs BAR", "2025-01-01", []string{"Venue 1"}, 1},
	{"Real Madrid vs Atletico Madrid", "RM vs ATM", "2025-01-02", []string{"Venue 2"}, 1},
	{"Los Angeles Lakers vs New York Knicks", "LAL vs NYK", "2025-01-02", []string{"Venue 2"}, 2},
	{"Charlotte Hornets vs Washington Wizards", "CHA vs WAS", "2025-01-03", []string{"Venue 3"}, 2},
	{"Wimbledon Semi Finals", "WIM Semi", "2025-01-03", []string{"Venue 3", "Venue 4"}, 3},
	{"Australian Open Semi Finals", "AO Semi", "2025-01-04", []string{"Venue 5", "Venue 6"}, 3},
	{"Atlanta Falcons vs Carolina Panthers", "ATL vs CAR", "2025-01-04", []string{"Venue 4"}, 4},
	{"New York Jets vs Buffalo Bills", "NYJ vs BUF", "2025-01-04", []string{"Venue 4"}, 4},
	{"Chicago Cubs vs Milwaukee Brewers", "CHC vs MIL", "2025-01-04", []string{"Venue 4"}, 5},
	{"Los Angeles Dodgers vs San Francisco Giants", "LAD vs SF", "2025-01-04", []string{"Venue 4"}, 5},
	{"Toronto Maple Leafs vs Montreal Canadiens", "TOR vs MTL", "2025-01-04", []string{"Venue 4"}, 6},
	{"Edmonton Oilers vs Calgary Flames", "EDM vs CGY", "2025-01-04", []string{"Venue 4"}, 6},
}

// Seed inserts the sample events through creator when the events table is
// empty. It returns how many events were created.
func Seed(ctx context.Context, db bun.IDB, sports *catalog.Catalog, creator EventCreator, log *logger.Logger) (int, error) {
	if log == nil {
		log = logger.Discard()
	}

	existing, err := db.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	if existing > 0 {
		log.Info("SEED", fmt.Sprintf("Skipping seed, %d events already present", existing))
		return 0, nil
	}

	created := 0
	for _, e := range sampleEvents {
		sport, ok := sports.ByID(e.sportID)
		if !ok {
			log.Warn("SEED", fmt.Sprintf("Skipping %q, sport %d not in catalog", e.shortName, e.sportID))
			continue
		}
		res := creator.Create(ctx, models.CreateEventInput{
			FullName:   e.fullName,
			ShortName:  e.shortName,
			SportType:  sport.Name,
			Date:       e.date,
			VenueNames: e.venues,
		})
		if !res.Success {
			return created, fmt.Errorf("failed to seed %q: %s", e.shortName, res.Error)
		}
		created++
	}

	log.Info("SEED", fmt.Sprintf("Seeded %d events", created))
	return created, nil
}
