package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"tripnav/internal/model"
	"tripnav/internal/store/migrations"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQL is a price catalog backed by a price_quotes table in Postgres or SQLite.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

func NewPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return open(ctx, db, DialectPostgres)
}

// NewSQLite opens (creating if needed) a SQLite database file.
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	return open(ctx, db, DialectSQLite)
}

func open(ctx context.Context, db *sql.DB, d Dialect) (*SQL, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", d, err)
	}
	return &SQL{db: db, dialect: d}, nil
}

func (s *SQL) Dialect() Dialect { return s.dialect }

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies the embedded *.up.sql files newer than the recorded schema
// version. It returns the number of files applied.
func (s *SQL) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at_ms BIGINT NOT NULL
	)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	dir, err := fs.Sub(migrations.FS, string(s.dialect))
	if err != nil {
		return 0, err
	}
	entries, err := fs.ReadDir(dir, ".")
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	applied := 0
	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		body, err := fs.ReadFile(dir, name)
		if err != nil {
			return applied, err
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return applied, err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_migrations (version, applied_at_ms) VALUES ($1, $2)`), version, time.Now().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Insert records quotes in one transaction.
func (s *SQL) Insert(ctx context.Context, quotes ...Quote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO price_quotes
		(destination_id, area_id, lodging_id, lodging_name, night, price_cents, currency, is_available, recorded_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, q := range quotes {
		recorded := q.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now()
		}
		var area any
		if q.AreaID != nil {
			area = *q.AreaID
		}
		if _, err := stmt.ExecContext(ctx, q.DestinationID, area, q.LodgingID, q.LodgingName, q.Date.String(),
			int64(q.Price), strings.ToUpper(q.Currency), q.Available, recorded.UnixMilli()); err != nil {
			return fmt.Errorf("insert %s/%s: %w", q.LodgingID, q.Date, err)
		}
	}
	return tx.Commit()
}

const latestQuotesSQL = `
SELECT lodging_id, lodging_name, price_cents, currency
FROM (
	SELECT lodging_id, lodging_name, price_cents, currency, is_available,
		ROW_NUMBER() OVER (PARTITION BY lodging_id ORDER BY recorded_at_ms DESC, id DESC) AS rn
	FROM price_quotes
	WHERE destination_id = $1
		AND (CAST($2 AS BIGINT) IS NULL OR area_id = CAST($2 AS BIGINT))
		AND night = $3
		AND currency = $4
) latest
WHERE rn = 1 AND is_available
ORDER BY lodging_id`

// Query returns the latest recorded quote per lodging, leaving out lodgings
// whose latest quote marks them unavailable.
func (s *SQL) Query(ctx context.Context, destinationID int64, areaID *int64, date model.Date, currency string) ([]model.PriceQuote, error) {
	var area any
	if areaID != nil {
		area = *areaID
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(latestQuotesSQL), destinationID, area, date.String(), strings.ToUpper(currency))
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()
	out := []model.PriceQuote{}
	for rows.Next() {
		var (
			q     model.PriceQuote
			cents int64
		)
		if err := rows.Scan(&q.LodgingID, &q.LodgingName, &cents, &q.Currency); err != nil {
			return nil, err
		}
		q.Price = model.Money(cents)
		q.Date = date
		out = append(out, q)
	}
	return out, rows.Err()
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind turns $N placeholders into SQLite's ?N form.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}
