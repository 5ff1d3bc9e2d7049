package venues

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"ms-events/internal/dbresult"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

// Resolution is positionally aligned with the names passed to Resolve.
// VenueNames holds the stored spelling of each venue.
type Resolution struct {
	VenueIDs   []int64  `json:"venueIds"`
	VenueNames []string `json:"venueNames"`
	// Created is the number of venue rows this call asked the store to add.
	Created int `json:"-"`
}

type Resolver struct {
	Logger *logger.Logger
}

func NewResolver(log *logger.Logger) *Resolver {
	return &Resolver{Logger: log}
}

// Resolve maps venue names to persisted venue ids, creating the venues that
// do not exist yet. Matching ignores case. Lookup is one batch select and
// creation one batch upsert on the unique name key, so concurrent callers
// resolving the same new name end up with the same row.
//
// db may be a transaction; nothing is committed here.
func (r *Resolver) Resolve(ctx context.Context, db bun.IDB, names []string) dbresult.Result[Resolution] {
	return dbresult.Handle("Failed to resolve venues", func() dbresult.Result[Resolution] {
		out := Resolution{
			VenueIDs:   make([]int64, 0, len(names)),
			VenueNames: make([]string, 0, len(names)),
		}
		if len(names) == 0 {
			return dbresult.Success(out)
		}

		keys := make([]string, len(names))
		unique := make([]string, 0, len(names))
		spelling := make(map[string]string, len(names))
		for i, name := range names {
			key := models.VenueKey(name)
			if key == "" {
				return dbresult.Validation[Resolution]("Venue name cannot be empty")
			}
			keys[i] = key
			if _, seen := spelling[key]; !seen {
				spelling[key] = strings.TrimSpace(name)
				unique = append(unique, key)
			}
		}

		var existing []models.Venue
		err := db.NewSelect().
			Model(&existing).
			Column("id", "name", "name_key").
			Where("name_key IN (?)", bun.In(unique)).
			Scan(ctx)
		if err != nil {
			return dbresult.StoreFailure[Resolution](err, "Failed to resolve venues")
		}

		byKey := make(map[string]models.Venue, len(unique))
		for _, v := range existing {
			byKey[v.NameKey] = v
		}

		missing := make([]models.Venue, 0, len(unique))
		for _, key := range unique {
			if _, ok := byKey[key]; !ok {
				missing = append(missing, models.Venue{Name: spelling[key], NameKey: key})
			}
		}

		if len(missing) > 0 {
			// A conflicting row was inserted by someone else after our select.
			// The no-op update makes RETURNING hand back that row.
			_, err := db.NewInsert().
				Model(&missing).
				On("CONFLICT (name_key) DO UPDATE").
				Set("name_key = EXCLUDED.name_key").
				Returning("id, name, name_key").
				Exec(ctx)
			if err != nil {
				return dbresult.StoreFailure[Resolution](err, "Failed to create venue")
			}
			for _, v := range missing {
				if v.ID == 0 {
					return dbresult.Failure[Resolution]("Failed to create venue")
				}
				byKey[v.NameKey] = v
			}
			if r.Logger != nil {
				r.Logger.LogDatabase("UPSERT", "venues", fmt.Sprintf("%d venue(s) created", len(missing)))
			}
		}

		for _, key := range keys {
			v, ok := byKey[key]
			if !ok {
				return dbresult.Failure[Resolution]("Failed to create venue")
			}
			out.VenueIDs = append(out.VenueIDs, v.ID)
			out.VenueNames = append(out.VenueNames, v.Name)
		}
		out.Created = len(missing)

		return dbresult.Success(out)
	})
}
