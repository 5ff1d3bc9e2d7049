package venues

import (
	"context"

	"github.com/uptrace/bun"

	"ms-events/internal/dbresult"
	"ms-events/internal/models"
)

// Projector reads the venue table for the read paths.
type Projector struct {
	DB bun.IDB
}

func NewProjector(db bun.IDB) *Projector {
	return &Projector{DB: db}
}

// VenueMap loads every venue in one query and indexes names by id.
func (p *Projector) VenueMap(ctx context.Context) dbresult.Result[map[int64]string] {
	return dbresult.Handle("Failed to fetch venues", func() dbresult.Result[map[int64]string] {
		var all []models.Venue
		err := p.DB.NewSelect().
			Model(&all).
			Column("id", "name").
			Scan(ctx)
		if err != nil {
			return dbresult.StoreFailure[map[int64]string](err, "Failed to fetch venues")
		}

		venueMap := make(map[int64]string, len(all))
		for _, v := range all {
			venueMap[v.ID] = v.Name
		}
		return dbresult.Success(venueMap)
	})
}

// List returns all venues ordered by name.
func (p *Projector) List(ctx context.Context) dbresult.Result[[]models.Venue] {
	return dbresult.Handle("Failed to fetch venues", func() dbresult.Result[[]models.Venue] {
		all := make([]models.Venue, 0)
		err := p.DB.NewSelect().
			Model(&all).
			Column("id", "name").
			Order("name ASC", "id ASC").
			Scan(ctx)
		return dbresult.FromStore(all, err, "Failed to fetch venues")
	})
}
