package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-events/internal/catalog"
	"ms-events/internal/dbresult"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/venues"
)

type VenueResolver interface {
	Resolve(ctx context.Context, db bun.IDB, names []string) dbresult.Result[venues.Resolution]
}

type VenueProjector interface {
	VenueMap(ctx context.Context) dbresult.Result[map[int64]string]
}

// venueInvalidator is implemented by projectors that cache the venue map.
type venueInvalidator interface {
	Invalidate(ctx context.Context)
}

// Repository owns the events table. It never caches events.
type Repository struct {
	DB       *bun.DB
	Catalog  *catalog.Catalog
	Resolver VenueResolver
	Venues   VenueProjector
	Logger   *logger.Logger
}

func NewRepository(db *bun.DB, sports *catalog.Catalog, resolver VenueResolver, projector VenueProjector, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.Discard()
	}
	return &Repository{
		DB:       db,
		Catalog:  sports,
		Resolver: resolver,
		Venues:   projector,
		Logger:   log,
	}
}

// Create resolves the sport type and venues and inserts the event. Venue
// creation and the insert share one transaction.
func (r *Repository) Create(ctx context.Context, in models.CreateEventInput) dbresult.Result[models.EventView] {
	return dbresult.Handle("Failed to create event", func() dbresult.Result[models.EventView] {
		sport, ok := r.Catalog.ByName(in.SportType)
		if !ok {
			return dbresult.Validation[models.EventView](fmt.Sprintf("Invalid sport type: %q is not recognized", in.SportType))
		}
		date, err := ParseDate(in.Date)
		if err != nil {
			return dbresult.Validation[models.EventView](fmt.Sprintf("Invalid date: %q", in.Date))
		}

		var resolved venues.Resolution
		res := runInTx(ctx, r.DB, func(ctx context.Context, tx bun.Tx) dbresult.Result[models.EventView] {
			venuesRes := r.Resolver.Resolve(ctx, tx, in.VenueNames)
			if !venuesRes.Success {
				return dbresult.Forward[models.EventView](venuesRes)
			}
			resolved = venuesRes.Data

			row := models.Event{
				FullName:    in.FullName,
				ShortName:   in.ShortName,
				Description: in.Description,
				SportTypeID: sport.ID,
				Date:        date,
				VenueIDs:    resolved.VenueIDs,
			}
			if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
				return dbresult.StoreFailure[models.EventView](err, "Unable to create event. Please try again or check your input.")
			}
			if row.ID == 0 {
				return dbresult.Failure[models.EventView]("Unable to create event. Please try again or check your input.")
			}
			return dbresult.Success(row.ViewWith(resolved.VenueNames))
		})
		if !res.Success {
			r.Logger.Warn("EVENT", fmt.Sprintf("Create failed: %s", res.Error))
			return res
		}

		r.afterVenueChange(ctx, resolved)
		r.Logger.LogEvent("CREATE", res.Data.ID, res.Data.FullName)
		return res
	})
}

// Update replaces every field of an existing event. The sport type id is
// taken as given. The returned view carries the caller's venue names.
func (r *Repository) Update(ctx context.Context, in models.UpdateEventInput) dbresult.Result[models.EventView] {
	return dbresult.Handle("Failed to update event", func() dbresult.Result[models.EventView] {
		date, err := ParseDate(in.Date)
		if err != nil {
			return dbresult.Validation[models.EventView](fmt.Sprintf("Invalid date: %q", in.Date))
		}

		var resolved venues.Resolution
		res := runInTx(ctx, r.DB, func(ctx context.Context, tx bun.Tx) dbresult.Result[models.EventView] {
			venuesRes := r.Resolver.Resolve(ctx, tx, in.Venues)
			if !venuesRes.Success {
				return dbresult.Forward[models.EventView](venuesRes)
			}
			resolved = venuesRes.Data

			row := models.Event{
				ID:          in.ID,
				FullName:    in.FullName,
				ShortName:   in.ShortName,
				Description: in.Description,
				SportTypeID: in.SportTypeID,
				Date:        date,
				VenueIDs:    resolved.VenueIDs,
			}
			result, err := tx.NewUpdate().
				Model(&row).
				Column("full_name", "short_name", "description", "sport_type_id", "date", "venue_ids", "search_key").
				WherePK().
				Exec(ctx)
			if err != nil {
				return dbresult.StoreFailure[models.EventView](err, "Unable to update event. The event may not exist or you may not have permission.")
			}
			if n, err := result.RowsAffected(); err != nil || n == 0 {
				return dbresult.Failure[models.EventView]("Unable to update event. The event may not exist or you may not have permission.")
			}
			return dbresult.Success(row.ViewWith(in.Venues))
		})
		if !res.Success {
			r.Logger.Warn("EVENT", fmt.Sprintf("Update of %d failed: %s", in.ID, res.Error))
			return res
		}

		r.afterVenueChange(ctx, resolved)
		r.Logger.LogEvent("UPDATE", res.Data.ID, res.Data.FullName)
		return res
	})
}

// Delete checks the event exists before deleting it, so callers can tell a
// missing event from one that could not be removed.
func (r *Repository) Delete(ctx context.Context, id int64) dbresult.Result[struct{}] {
	return dbresult.Handle("Failed to delete event", func() dbresult.Result[struct{}] {
		exists, err := r.DB.NewSelect().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exists(ctx)
		if err != nil {
			return dbresult.Failure[struct{}]("Unable to verify event exists")
		}
		if !exists {
			return dbresult.NotFound[struct{}]("Event not found. It may have been deleted or does not exist.")
		}

		result, err := r.DB.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return dbresult.StoreFailure[struct{}](err, "Unable to delete event. Please try again.")
		}
		if n, err := result.RowsAffected(); err != nil || n == 0 {
			return dbresult.Failure[struct{}]("Event could not be deleted. You may not have permission to delete this event.")
		}

		r.Logger.LogEvent("DELETE", id, "event deleted")
		return dbresult.Success(struct{}{})
	})
}

// List returns events ordered by date, optionally filtered by a
// case-insensitive search over the names and description and by sport type.
// The search text is matched as given, surrounding whitespace included.
func (r *Repository) List(ctx context.Context, filters models.EventFilters) dbresult.Result[[]models.EventView] {
	return dbresult.Handle("Failed to fetch events", func() dbresult.Result[[]models.EventView] {
		var rows []models.Event
		q := r.DB.NewSelect().
			Model(&rows).
			Order("date ASC", "id ASC")

		if filters.Search != "" {
			pattern := "%" + escapeLike(strings.ToLower(filters.Search)) + "%"
			q = q.Where(`search_key LIKE ? ESCAPE '\'`, pattern)
		}
		if filters.SportTypeID != nil {
			q = q.Where("sport_type_id = ?", *filters.SportTypeID)
		}

		if err := q.Scan(ctx); err != nil {
			return dbresult.StoreFailure[[]models.EventView](err, "Failed to fetch events")
		}
		if len(rows) == 0 {
			return dbresult.Success([]models.EventView{})
		}

		venueMap := r.Venues.VenueMap(ctx)
		if !venueMap.Success {
			return venueFailure[[]models.EventView](venueMap)
		}

		out := make([]models.EventView, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.View(venueMap.Data))
		}
		return dbresult.Success(out)
	})
}

func (r *Repository) Get(ctx context.Context, id int64) dbresult.Result[models.EventView] {
	return dbresult.Handle("Failed to fetch event", func() dbresult.Result[models.EventView] {
		var row models.Event
		err := r.DB.NewSelect().
			Model(&row).
			Where("id = ?", id).
			Limit(1).
			Scan(ctx)
		found := dbresult.FromStore(row, err, "Event not found")
		if !found.Success {
			return dbresult.Forward[models.EventView](found)
		}

		venueMap := r.Venues.VenueMap(ctx)
		if !venueMap.Success {
			return venueFailure[models.EventView](venueMap)
		}
		return dbresult.Success(found.Data.View(venueMap.Data))
	})
}

// venueFailure forwards a failed venue map load, kind included. A blank
// message is replaced.
func venueFailure[T any](venueMap dbresult.Result[map[int64]string]) dbresult.Result[T] {
	res := dbresult.Forward[T](venueMap)
	if strings.TrimSpace(res.Error) == "" {
		res.Error = "Unable to load venue information"
	}
	if res.Kind == dbresult.KindNone {
		res.Kind = dbresult.KindStore
	}
	return res
}

func (r *Repository) afterVenueChange(ctx context.Context, resolved venues.Resolution) {
	if resolved.Created == 0 {
		return
	}
	if inv, ok := r.Venues.(venueInvalidator); ok {
		inv.Invalidate(ctx)
	}
}

var errRollback = errors.New("rollback")

// runInTx commits when fn succeeds and rolls back when it returns a failed
// result, handing that result back unchanged.
func runInTx[T any](ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) dbresult.Result[T]) dbresult.Result[T] {
	var out dbresult.Result[T]
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		out = fn(ctx, tx)
		if !out.Success {
			return errRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		return dbresult.StoreFailure[T](err, "Unable to save changes")
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts ISO-8601 timestamps with or without zone and seconds,
// and plain dates. The result is in UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
