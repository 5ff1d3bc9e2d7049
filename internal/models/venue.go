package models

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
)

// Venue names are unique ignoring case; NameKey holds the lower-cased name
// and carries the unique constraint.
type Venue struct {
	bun.BaseModel `bun:"table:venues"`

	ID      int64  `bun:"id,pk,autoincrement" json:"id"`
	Name    string `bun:"name,notnull" json:"name"`
	NameKey string `bun:"name_key,notnull,unique" json:"-"`
}

var _ bun.BeforeAppendModelHook = (*Venue)(nil)

func (v *Venue) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		v.NameKey = VenueKey(v.Name)
	}
	return nil
}

// VenueKey is the case-insensitive lookup key for a venue name. Surrounding
// whitespace is not significant.
func VenueKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
