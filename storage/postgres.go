// Package storage implements the leaderboard store on PostgreSQL. The
// connection pool is bounded to the worker count; callers block in the
// pool when every connection is busy.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artndx/game-server/game/app"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS retired_players (
	id SERIAL PRIMARY KEY,
	name varchar(100) NOT NULL,
	score integer NOT NULL,
	time double precision NOT NULL
);
CREATE INDEX IF NOT EXISTS retired_players_rating
	ON retired_players (score DESC, time ASC, name ASC);
`

// Store is a pgx-backed leaderboard.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and bounds the pool to poolSize
// connections.
func New(ctx context.Context, dbURL string, poolSize int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if poolSize < 1 {
		poolSize = 1
	}
	cfg.MaxConns = int32(poolSize)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Bootstrap creates the leaderboard table when it does not exist yet.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create retired_players: %w", err)
	}
	return nil
}

// InsertRetired appends one leaderboard row.
func (s *Store) InsertRetired(ctx context.Context, rec app.RetiredRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO retired_players (name, score, time) VALUES ($1, $2, $3)`,
		rec.Name, rec.Score, rec.PlayTime)
	if err != nil {
		return fmt.Errorf("insert retired player: %w", err)
	}
	return nil
}

// SelectTop returns one page ordered by score descending, then play time
// ascending, then name ascending.
func (s *Store) SelectTop(ctx context.Context, start, maxItems int) ([]app.RetiredRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, score, time FROM retired_players
		 ORDER BY score DESC, time ASC, name ASC
		 LIMIT $1 OFFSET $2`,
		maxItems, start)
	if err != nil {
		return nil, fmt.Errorf("select retired players: %w", err)
	}
	defer rows.Close()

	var result []app.RetiredRecord
	for rows.Next() {
		var rec app.RetiredRecord
		if err := rows.Scan(&rec.Name, &rec.Score, &rec.PlayTime); err != nil {
			return nil, fmt.Errorf("scan retired player: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retired players: %w", err)
	}
	return result, nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}
