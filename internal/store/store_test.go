package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/model"
)

var t0 = time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)

func area(id int64) *int64 { return &id }

func fixtureQuotes() []Quote {
	night := model.MustDate("2025-12-01")
	return []Quote{
		{DestinationID: 1, AreaID: area(4), LodgingID: "b", LodgingName: "Bay Hotel", Date: night, Price: 12000, Currency: "usd", Available: true, RecordedAt: t0},
		{DestinationID: 1, AreaID: area(4), LodgingID: "a", LodgingName: "Anchor", Date: night, Price: 9000, Currency: "USD", Available: true, RecordedAt: t0},
		// newer price for a
		{DestinationID: 1, AreaID: area(4), LodgingID: "a", LodgingName: "Anchor", Date: night, Price: 9500, Currency: "USD", Available: true, RecordedAt: t0.Add(time.Hour)},
		// c sold out after first being offered
		{DestinationID: 1, AreaID: area(5), LodgingID: "c", LodgingName: "Cove", Date: night, Price: 8000, Currency: "USD", Available: true, RecordedAt: t0},
		{DestinationID: 1, AreaID: area(5), LodgingID: "c", LodgingName: "Cove", Date: night, Price: 8000, Currency: "USD", Available: false, RecordedAt: t0.Add(time.Hour)},
		// other currency, other destination, other night
		{DestinationID: 1, AreaID: area(4), LodgingID: "d", LodgingName: "Dune", Date: night, Price: 7000, Currency: "EUR", Available: true, RecordedAt: t0},
		{DestinationID: 2, AreaID: area(4), LodgingID: "e", LodgingName: "Elm", Date: night, Price: 7000, Currency: "USD", Available: true, RecordedAt: t0},
		{DestinationID: 1, AreaID: area(4), LodgingID: "f", LodgingName: "Fern", Date: night.AddDays(1), Price: 7000, Currency: "USD", Available: true, RecordedAt: t0},
		{DestinationID: 1, LodgingID: "g", LodgingName: "Gull", Date: night, Price: 15000, Currency: "USD", Available: true, RecordedAt: t0},
	}
}

// catalogContract runs the same lookups against every Catalog backend.
func catalogContract(t *testing.T, c Catalog) {
	t.Helper()
	ctx := context.Background()
	night := model.MustDate("2025-12-01")

	got, err := c.Query(ctx, 1, nil, night, "usd")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "g"}, ids(got))
	assert.Equal(t, model.Money(9500), got[0].Price)
	assert.Equal(t, "USD", got[0].Currency)
	assert.Equal(t, night, got[0].Date)
	assert.Equal(t, "Anchor", got[0].LodgingName)

	got, err = c.Query(ctx, 1, area(4), night, "USD")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))

	got, err = c.Query(ctx, 1, area(5), night, "USD")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Query(ctx, 1, nil, night, "EUR")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(got))

	got, err = c.Query(ctx, 3, nil, night, "USD")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, c.Ping(ctx))
}

func ids(qs []model.PriceQuote) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.LodgingID
	}
	return out
}

func TestMemoryCatalog(t *testing.T) {
	m := NewMemory()
	m.Add(fixtureQuotes()...)
	assert.Equal(t, len(fixtureQuotes()), m.Len())
	catalogContract(t, m)
}

func TestMemoryLaterAddWinsOnEqualTimestamps(t *testing.T) {
	m := NewMemory()
	night := model.MustDate("2025-12-01")
	m.Add(
		Quote{DestinationID: 1, LodgingID: "a", LodgingName: "A", Date: night, Price: 100, Currency: "USD", Available: true, RecordedAt: t0},
		Quote{DestinationID: 1, LodgingID: "a", LodgingName: "A", Date: night, Price: 200, Currency: "USD", Available: true, RecordedAt: t0},
	)
	got, err := m.Query(context.Background(), 1, nil, night, "USD")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Money(200), got[0].Price)
}

func TestMemoryQueryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Query(ctx, 1, nil, model.MustDate("2025-12-01"), "USD")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, db.Dialect())

	n, err := db.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "migrations are applied once")

	require.NoError(t, db.Insert(ctx, fixtureQuotes()...))
	catalogContract(t, db)
}

func TestRebind(t *testing.T) {
	s := &SQL{dialect: DialectSQLite}
	assert.Equal(t, "a = ?1 AND b = ?12", s.rebind("a = $1 AND b = $12"))
	p := &SQL{dialect: DialectPostgres}
	assert.Equal(t, "a = $1", p.rebind("a = $1"))
}
