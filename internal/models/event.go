package models

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Event is the persisted row. VenueIDs keeps insertion order, which is also
// the display order.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	FullName    string    `bun:"full_name,notnull" json:"fullName"`
	ShortName   string    `bun:"short_name,notnull" json:"shortName"`
	Description string    `bun:"description,nullzero" json:"description"`
	SportTypeID int       `bun:"sport_type_id,notnull" json:"sportTypeId"`
	Date        time.Time `bun:"date,notnull" json:"date"`
	VenueIDs    []int64   `bun:"venue_ids,notnull" json:"venueIds"`
	SearchKey   string    `bun:"search_key,notnull" json:"-"`
}

var _ bun.BeforeAppendModelHook = (*Event)(nil)

func (e *Event) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		e.SearchKey = EventSearchKey(e.FullName, e.ShortName, e.Description)
	}
	return nil
}

// EventSearchKey is the text matched by event search: the names and the
// description, lower-cased in Go so matching does not depend on the
// database's case folding.
func EventSearchKey(fullName, shortName, description string) string {
	return strings.ToLower(fullName + "\n" + shortName + "\n" + description)
}

// EventView is an Event with venue ids replaced by venue names. It is built
// on read and never written back.
type EventView struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"fullName"`
	ShortName   string    `json:"shortName"`
	Description string    `json:"description"`
	SportTypeID int       `json:"sportTypeId"`
	Date        time.Time `json:"date"`
	Venues      []string  `json:"venues"`
}

// View projects the row, resolving each venue id through names. Ids with no
// entry are dropped.
func (e Event) View(names map[int64]string) EventView {
	venues := make([]string, 0, len(e.VenueIDs))
	for _, id := range e.VenueIDs {
		if name, ok := names[id]; ok && name != "" {
			venues = append(venues, name)
		}
	}
	return e.ViewWith(venues)
}

// ViewWith projects the row using venue names the caller already has.
func (e Event) ViewWith(venues []string) EventView {
	if venues == nil {
		venues = []string{}
	}
	return EventView{
		ID:          e.ID,
		FullName:    e.FullName,
		ShortName:   e.ShortName,
		Description: e.Description,
		SportTypeID: e.SportTypeID,
		Date:        e.Date,
		Venues:      venues,
	}
}

type CreateEventInput struct {
	FullName    string   `json:"fullName"`
	ShortName   string   `json:"shortName"`
	Description string   `json:"description"`
	SportType   string   `json:"sportType"`
	Date        string   `json:"date"`
	VenueNames  []string `json:"venueNames"`
}

// UpdateEventInput replaces every field of the event identified by ID.
type UpdateEventInput struct {
	ID          int64    `json:"id"`
	FullName    string   `json:"fullName"`
	ShortName   string   `json:"shortName"`
	Description string   `json:"description"`
	SportTypeID int      `json:"sportTypeId"`
	Date        string   `json:"date"`
	Venues      []string `json:"venues"`
}

type EventFilters struct {
	Search      string
	SportTypeID *int
}

// EventDeleted is the payload published when an event is removed.
type EventDeleted struct {
	ID int64 `json:"id"`
}
