package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/pricewatch/internal/domain"
)

// Postgres is the durable Store used in production.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to the database and ensures the snapshots schema
// exists.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	s := &Postgres{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) initSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			id           BIGSERIAL PRIMARY KEY,
			url          TEXT NOT NULL,
			platform     TEXT NOT NULL,
			title        TEXT,
			price        DOUBLE PRECISION NOT NULL,
			currency     TEXT NOT NULL DEFAULT 'BRL',
			collected_at TIMESTAMPTZ NOT NULL,
			parse_status TEXT NOT NULL DEFAULT 'ok',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_url_collected
			ON snapshots (url, collected_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("init snapshots schema: %w", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.db.Close()
}

// SaveSnapshot runs the duplicate check and the insert in one transaction
// so concurrent workers cannot both insert inside the dedup window.
func (s *Postgres) SaveSnapshot(ctx context.Context, snap domain.PriceSnapshot) (bool, error) {
	if !valid(snap) {
		return false, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// Row locks cannot serialize the empty-window case: when no snapshot
	// exists yet there is no row to lock, and two transactions would both
	// pass the check and insert. The advisory lock keyed on the URL holds
	// until commit and makes check-then-insert exclusive per URL.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, snap.URL); err != nil {
		return false, err
	}

	var id int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM snapshots
		 WHERE url = $1
		 AND ABS(EXTRACT(EPOCH FROM (collected_at - $2::timestamptz))) < $3
		 LIMIT 1`,
		snap.URL, snap.CollectedAt, DedupWindow.Seconds(),
	).Scan(&id)
	if err == nil {
		return false, nil // duplicate inside the window
	}
	if err != pgx.ErrNoRows {
		return false, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO snapshots (url, platform, title, price, currency, collected_at, parse_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.URL, snap.Platform, snap.Title, snap.Price, snap.Currency, snap.CollectedAt, string(snap.ParseStatus),
	)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// GetHistory returns snapshots for a URL, newest first, capped at LimitCap.
func (s *Postgres) GetHistory(ctx context.Context, url string, limit int) ([]domain.PriceSnapshot, error) {
	rows, err := s.db.Query(ctx,
		`SELECT url, platform, title, price, currency, collected_at, parse_status
		 FROM snapshots
		 WHERE url = $1
		 ORDER BY collected_at DESC
		 LIMIT $2`,
		url, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceSnapshot
	for rows.Next() {
		var snap domain.PriceSnapshot
		var status string
		if err := rows.Scan(&snap.URL, &snap.Platform, &snap.Title, &snap.Price,
			&snap.Currency, &snap.CollectedAt, &status); err != nil {
			return nil, err
		}
		snap.ParseStatus = domain.ParseStatus(status)
		out = append(out, snap)
	}
	return out, rows.Err()
}
