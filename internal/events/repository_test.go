package events_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-events/internal/catalog"
	"ms-events/internal/dbresult"
	"ms-events/internal/events"
	"ms-events/internal/models"
	"ms-events/internal/venues"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// countingProjector wraps a projector and records how often it was asked
// for the venue map.
type countingProjector struct {
	inner       events.VenueProjector
	calls       int
	invalidated int
}

func (p *countingProjector) VenueMap(ctx context.Context) dbresult.Result[map[int64]string] {
	p.calls++
	return p.inner.VenueMap(ctx)
}

func (p *countingProjector) Invalidate(ctx context.Context) {
	p.invalidated++
}

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, model := range []interface{}{(*models.Venue)(nil), (*models.Event)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func setupRepository(t *testing.T) (*events.Repository, *bun.DB, *countingProjector) {
	bunDB := setupTestDB(t)
	sports, err := catalog.Default()
	require.NoError(t, err)

	projector := &countingProjector{inner: venues.NewProjector(bunDB)}
	repo := events.NewRepository(bunDB, sports, venues.NewResolver(nil), projector, nil)
	return repo, bunDB, projector
}

func countRows(t *testing.T, db *bun.DB, model interface{}) int {
	n, err := db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func createEvent(t *testing.T, repo *events.Repository, fullName, shortName, description, sport, date string, venueNames ...string) models.EventView {
	res := repo.Create(context.Background(), models.CreateEventInput{
		FullName:    fullName,
		ShortName:   shortName,
		Description: description,
		SportType:   sport,
		Date:        date,
		VenueNames:  venueNames,
	})
	require.True(t, res.Success, res.Error)
	return res.Data
}

func TestCreateAndGetEvent(t *testing.T) {
	repo, db, _ := setupRepository(t)

	created := createEvent(t, repo,
		"Los Angeles Lakers vs. Boston Celtics", "LAL v BOS", "Rivalry night",
		"Basketball", "2025-03-01T19:30:00Z", "Crypto.com Arena")

	assert.NotZero(t, created.ID)
	assert.Equal(t, 2, created.SportTypeID)
	assert.Equal(t, []string{"Crypto.com Arena"}, created.Venues)
	assert.True(t, created.Date.Equal(time.Date(2025, 3, 1, 19, 30, 0, 0, time.UTC)))

	got := repo.Get(context.Background(), created.ID)
	require.True(t, got.Success, got.Error)
	assert.Equal(t, created.ID, got.Data.ID)
	assert.Equal(t, "Los Angeles Lakers vs. Boston Celtics", got.Data.FullName)
	assert.Equal(t, "LAL v BOS", got.Data.ShortName)
	assert.Equal(t, "Rivalry night", got.Data.Description)
	assert.Equal(t, []string{"Crypto.com Arena"}, got.Data.Venues)
	assert.True(t, got.Data.Date.Equal(created.Date))

	assert.Equal(t, 1, countRows(t, db, (*models.Venue)(nil)))
}

func TestCreateUsesStoredVenueNames(t *testing.T) {
	repo, _, projector := setupRepository(t)

	first := createEvent(t, repo, "Game 1", "G1", "", "Soccer", "2025-01-01", "Santiago Bernabeu")
	assert.Equal(t, 1, projector.invalidated)

	second := createEvent(t, repo, "Game 2", "G2", "", "Soccer", "2025-01-02", "SANTIAGO BERNABEU")
	assert.Equal(t, []string{"Santiago Bernabeu"}, second.Venues)
	assert.Equal(t, first.Venues, second.Venues)
	// No venue created, nothing to invalidate
	assert.Equal(t, 1, projector.invalidated)
}

func TestCreateKeepsVenueOrderAndDuplicates(t *testing.T) {
	repo, _, _ := setupRepository(t)

	created := createEvent(t, repo, "Wimbledon Semi Finals", "WIM Semi", "", "Tennis", "2025-07-10T13:00",
		"Centre Court", "Court 1", "Centre Court")
	assert.Equal(t, []string{"Centre Court", "Court 1", "Centre Court"}, created.Venues)

	got := repo.Get(context.Background(), created.ID)
	require.True(t, got.Success, got.Error)
	assert.Equal(t, []string{"Centre Court", "Court 1", "Centre Court"}, got.Data.Venues)
}

func TestCreateWithInvalidSportType(t *testing.T) {
	repo, db, _ := setupRepository(t)

	res := repo.Create(context.Background(), models.CreateEventInput{
		FullName:   "Curling Finals",
		ShortName:  "CF",
		SportType:  "Curling",
		Date:       "2025-02-01",
		VenueNames: []string{"Ice Rink"},
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Curling")
	assert.Equal(t, `Invalid sport type: "Curling" is not recognized`, res.Error)
	assert.Equal(t, dbresult.KindValidation, res.Kind)
	assert.Equal(t, 0, countRows(t, db, (*models.Event)(nil)))
	assert.Equal(t, 0, countRows(t, db, (*models.Venue)(nil)))
}

func TestCreateWithInvalidDate(t *testing.T) {
	repo, db, _ := setupRepository(t)

	res := repo.Create(context.Background(), models.CreateEventInput{
		FullName:  "Game",
		ShortName: "G",
		SportType: "Hockey",
		Date:      "next tuesday",
	})

	assert.False(t, res.Success)
	assert.Equal(t, `Invalid date: "next tuesday"`, res.Error)
	assert.Equal(t, dbresult.KindValidation, res.Kind)
	assert.Equal(t, 0, countRows(t, db, (*models.Event)(nil)))
}

func TestCreateForwardsVenueFailureAndRollsBack(t *testing.T) {
	repo, db, _ := setupRepository(t)

	res := repo.Create(context.Background(), models.CreateEventInput{
		FullName:   "Game",
		ShortName:  "G",
		SportType:  "Football",
		Date:       "2025-09-07",
		VenueNames: []string{"Arrowhead", ""},
	})

	assert.False(t, res.Success)
	assert.Equal(t, "Venue name cannot be empty", res.Error)
	assert.Equal(t, dbresult.KindValidation, res.Kind)
	assert.Equal(t, 0, countRows(t, db, (*models.Venue)(nil)))
	assert.Equal(t, 0, countRows(t, db, (*models.Event)(nil)))
}

func TestUpdateEvent(t *testing.T) {
	repo, _, _ := setupRepository(t)
	created := createEvent(t, repo, "Game", "G", "old", "Baseball", "2025-04-01T18:00:00Z", "Wrigley Field")

	res := repo.Update(context.Background(), models.UpdateEventInput{
		ID:          created.ID,
		FullName:    "Chicago Cubs vs Milwaukee Brewers",
		ShortName:   "CHC vs MIL",
		Description: "",
		SportTypeID: 5,
		Date:        "2025-04-02T19:05:00Z",
		Venues:      []string{"wrigley field", "American Family Field"},
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, created.ID, res.Data.ID)
	assert.Equal(t, "Chicago Cubs vs Milwaukee Brewers", res.Data.FullName)
	// The view echoes the caller's venue names
	assert.Equal(t, []string{"wrigley field", "American Family Field"}, res.Data.Venues)

	got := repo.Get(context.Background(), created.ID)
	require.True(t, got.Success, got.Error)
	assert.Equal(t, "CHC vs MIL", got.Data.ShortName)
	assert.Equal(t, "", got.Data.Description)
	assert.Equal(t, []string{"Wrigley Field", "American Family Field"}, got.Data.Venues)
	assert.True(t, got.Data.Date.Equal(time.Date(2025, 4, 2, 19, 5, 0, 0, time.UTC)))
}

func TestUpdateMissingEventRollsBackVenues(t *testing.T) {
	repo, db, projector := setupRepository(t)

	res := repo.Update(context.Background(), models.UpdateEventInput{
		ID:          999,
		FullName:    "Ghost",
		ShortName:   "GH",
		SportTypeID: 1,
		Date:        "2025-01-01",
		Venues:      []string{"Nowhere Stadium"},
	})

	assert.False(t, res.Success)
	assert.Equal(t, "Unable to update event. The event may not exist or you may not have permission.", res.Error)
	assert.Equal(t, 0, countRows(t, db, (*models.Venue)(nil)))
	assert.Equal(t, 0, projector.invalidated)
}

func TestDeleteEvent(t *testing.T) {
	repo, db, _ := setupRepository(t)
	created := createEvent(t, repo, "Game", "G", "", "Soccer", "2025-01-01", "Camp Nou")

	res := repo.Delete(context.Background(), created.ID)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 0, countRows(t, db, (*models.Event)(nil)))

	// Venues are not owned by the event
	assert.Equal(t, 1, countRows(t, db, (*models.Venue)(nil)))

	again := repo.Delete(context.Background(), created.ID)
	assert.False(t, again.Success)
	assert.Equal(t, dbresult.KindNotFound, again.Kind)
	assert.Equal(t, "Event not found. It may have been deleted or does not exist.", again.Error)
}

func TestGetEventNotFound(t *testing.T) {
	repo, _, projector := setupRepository(t)

	res := repo.Get(context.Background(), 42)

	assert.False(t, res.Success)
	assert.Equal(t, "Event not found", res.Error)
	assert.Equal(t, dbresult.KindNotFound, res.Kind)
	assert.Equal(t, 0, projector.calls)
}

func seedListEvents(t *testing.T, repo *events.Repository) {
	createEvent(t, repo, "Los Angeles Lakers vs New York Knicks", "LAL vs NYK", "", "Basketball", "2025-01-02", "Crypto.com Arena")
	createEvent(t, repo, "Real Madrid vs Barcelona", "RM vs BAR", "El Clasico", "Soccer", "2025-01-01", "Santiago Bernabeu")
	createEvent(t, repo, "Charlotte Hornets vs Washington Wizards", "CHA vs WAS", "", "Basketball", "2025-01-03", "Spectrum Center")
	createEvent(t, repo, "Exhibition", "EXH", "Lakers legends charity match", "Soccer", "2025-01-04", "Rose Bowl")
}

func TestListOrdersByDate(t *testing.T) {
	repo, _, projector := setupRepository(t)
	seedListEvents(t, repo)

	res := repo.List(context.Background(), models.EventFilters{})

	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 4)
	assert.Equal(t, "RM vs BAR", res.Data[0].ShortName)
	assert.Equal(t, "LAL vs NYK", res.Data[1].ShortName)
	assert.Equal(t, "CHA vs WAS", res.Data[2].ShortName)
	assert.Equal(t, "EXH", res.Data[3].ShortName)
	assert.Equal(t, []string{"Santiago Bernabeu"}, res.Data[0].Venues)
	// One projector call for the whole batch
	assert.Equal(t, 1, projector.calls)
}

func TestListSearch(t *testing.T) {
	repo, _, _ := setupRepository(t)
	seedListEvents(t, repo)

	res := repo.List(context.Background(), models.EventFilters{Search: "Lakers"})
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "LAL vs NYK", res.Data[0].ShortName)
	assert.Equal(t, "EXH", res.Data[1].ShortName)

	// Case-insensitive, matches the short name
	res = repo.List(context.Background(), models.EventFilters{Search: "rm vs"})
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Real Madrid vs Barcelona", res.Data[0].FullName)

	// LIKE wildcards in the search text are literal
	res = repo.List(context.Background(), models.EventFilters{Search: "%"})
	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.Data)
}

func TestListSearchFoldsNonASCII(t *testing.T) {
	repo, _, _ := setupRepository(t)
	createEvent(t, repo, "ÉCOLE Derby", "ÉCO", "", "Soccer", "2025-02-01", "Stade Vélodrome")
	createEvent(t, repo, "Other Game", "OG", "", "Soccer", "2025-02-02", "Stade Vélodrome")

	for _, search := range []string{"ÉCOLE", "école", "École derby", "éco"} {
		res := repo.List(context.Background(), models.EventFilters{Search: search})
		require.True(t, res.Success, res.Error)
		require.Len(t, res.Data, 1, search)
		assert.Equal(t, "ÉCOLE Derby", res.Data[0].FullName)
	}
}

func TestListSearchMatchesWhitespaceLiterally(t *testing.T) {
	repo, _, _ := setupRepository(t)
	seedListEvents(t, repo)

	res := repo.List(context.Background(), models.EventFilters{Search: "   "})
	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.Data)

	res = repo.List(context.Background(), models.EventFilters{Search: " vs "})
	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Data, 3)
}

func TestListSearchFollowsUpdates(t *testing.T) {
	repo, _, _ := setupRepository(t)
	created := createEvent(t, repo, "Old Title", "OLD", "", "Tennis", "2025-03-01", "Court 1")

	res := repo.Update(context.Background(), models.UpdateEventInput{
		ID:          created.ID,
		FullName:    "Wimbledon Final",
		ShortName:   "WIM",
		Description: "Centre court",
		SportTypeID: 3,
		Date:        "2025-03-02",
		Venues:      []string{"Court 1"},
	})
	require.True(t, res.Success, res.Error)

	found := repo.List(context.Background(), models.EventFilters{Search: "centre COURT"})
	require.True(t, found.Success, found.Error)
	require.Len(t, found.Data, 1)
	assert.Equal(t, created.ID, found.Data[0].ID)

	stale := repo.List(context.Background(), models.EventFilters{Search: "old title"})
	require.True(t, stale.Success, stale.Error)
	assert.Empty(t, stale.Data)
}

func TestListSportTypeFilter(t *testing.T) {
	repo, _, _ := setupRepository(t)
	seedListEvents(t, repo)

	basketball := 2
	res := repo.List(context.Background(), models.EventFilters{SportTypeID: &basketball})
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 2)
	for _, e := range res.Data {
		assert.Equal(t, 2, e.SportTypeID)
	}

	// Both filters combine with AND
	res = repo.List(context.Background(), models.EventFilters{Search: "Lakers", SportTypeID: &basketball})
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "LAL vs NYK", res.Data[0].ShortName)
}

func TestListEmptySkipsVenueProjector(t *testing.T) {
	repo, _, projector := setupRepository(t)

	res := repo.List(context.Background(), models.EventFilters{Search: "nothing matches"})

	require.True(t, res.Success, res.Error)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Equal(t, 0, projector.calls)
}

func TestListDropsUnknownVenueIDs(t *testing.T) {
	repo, db, _ := setupRepository(t)
	created := createEvent(t, repo, "Game", "G", "", "Hockey", "2025-01-04", "Scotiabank Arena")

	_, err := db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("venue_ids = ?", `[1, 77]`).
		Where("id = ?", created.ID).
		Exec(context.Background())
	require.NoError(t, err)

	res := repo.List(context.Background(), models.EventFilters{})
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 1)
	assert.Equal(t, []string{"Scotiabank Arena"}, res.Data[0].Venues)
}

func TestListVenueProjectorFailure(t *testing.T) {
	repo, _, _ := setupRepository(t)
	createEvent(t, repo, "Game", "G", "", "Hockey", "2025-01-04", "Bell Centre")

	repo.Venues = failingProjector{}
	res := repo.List(context.Background(), models.EventFilters{})

	assert.False(t, res.Success)
	assert.Equal(t, "venues unavailable", res.Error)

	get := repo.Get(context.Background(), 1)
	assert.False(t, get.Success)
	assert.Equal(t, "venues unavailable", get.Error)
}

func TestVenueProjectorFailureKeepsKind(t *testing.T) {
	repo, _, _ := setupRepository(t)
	created := createEvent(t, repo, "Game", "G", "", "Hockey", "2025-01-04", "Bell Centre")

	repo.Venues = panickingProjectorGuarded{}
	res := repo.List(context.Background(), models.EventFilters{})
	assert.False(t, res.Success)
	assert.Equal(t, "venue map exploded", res.Error)
	assert.Equal(t, dbresult.KindUnexpected, res.Kind)

	get := repo.Get(context.Background(), created.ID)
	assert.False(t, get.Success)
	assert.Equal(t, "venue map exploded", get.Error)
	assert.Equal(t, dbresult.KindUnexpected, get.Kind)

	repo.Venues = blankFailureProjector{}
	res = repo.List(context.Background(), models.EventFilters{})
	assert.False(t, res.Success)
	assert.Equal(t, "Unable to load venue information", res.Error)
	assert.Equal(t, dbresult.KindStore, res.Kind)
}

// panickingProjectorGuarded panics inside its own guard, so the failure
// reaches the repository as an unexpected-kind result.
type panickingProjectorGuarded struct{}

func (panickingProjectorGuarded) VenueMap(ctx context.Context) dbresult.Result[map[int64]string] {
	return dbresult.Handle("Failed to fetch venues", func() dbresult.Result[map[int64]string] {
		panic("venue map exploded")
	})
}

type blankFailureProjector struct{}

func (blankFailureProjector) VenueMap(ctx context.Context) dbresult.Result[map[int64]string] {
	return dbresult.Failure[map[int64]string]("")
}

type failingProjector struct{}

func (failingProjector) VenueMap(ctx context.Context) dbresult.Result[map[int64]string] {
	return dbresult.Failure[map[int64]string]("venues unavailable")
}

func TestRepositoryRecoversPanics(t *testing.T) {
	repo, _, _ := setupRepository(t)
	createEvent(t, repo, "Game", "G", "", "Hockey", "2025-01-04", "Bell Centre")

	repo.Venues = panickingProjector{}
	res := repo.List(context.Background(), models.EventFilters{})

	assert.False(t, res.Success)
	assert.Equal(t, "map exploded", res.Error)
	assert.Equal(t, dbresult.KindUnexpected, res.Kind)
}

type panickingProjector struct{}

func (panickingProjector) VenueMap(ctx context.Context) dbresult.Result[map[int64]string] {
	panic("map exploded")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-01", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-01-01T10:30", time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"2025-01-01T10:30:15", time.Date(2025, 1, 1, 10, 30, 15, 0, time.UTC)},
		{"2025-01-01T10:30:00Z", time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"2025-01-01T10:30:00.500+02:00", time.Date(2025, 1, 1, 8, 30, 0, 500000000, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := events.ParseDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := events.ParseDate("01/02/2025")
	assert.Error(t, err)
	_, err = events.ParseDate("")
	assert.Error(t, err)
}
