//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresCatalog(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	_, err = db.db.ExecContext(ctx, `TRUNCATE price_quotes`)
	require.NoError(t, err)
	require.NoError(t, db.Insert(ctx, fixtureQuotes()...))
	catalogContract(t, db)
}
