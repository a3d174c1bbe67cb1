package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"edu-arena/internal/rendezvous"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate primary key.
const uniqueViolation = "23505"

type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(databaseURL string) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresRegistry{db: db}, nil
}

func createTables(db *sql.DB) error {
	createPeersTable := `
	CREATE TABLE IF NOT EXISTS peers (
		id VARCHAR(64) PRIMARY KEY,
		url TEXT NOT NULL,
		token VARCHAR(36) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	createIndexes := `
	CREATE INDEX IF NOT EXISTS idx_peers_created_at ON peers(created_at);
	`

	if _, err := db.Exec(createPeersTable); err != nil {
		return err
	}
	if _, err := db.Exec(createIndexes); err != nil {
		return err
	}

	return nil
}

func (r *PostgresRegistry) Register(ctx context.Context, reg rendezvous.Registration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO peers (id, url, token, created_at) VALUES ($1, $2, $3, $4)`,
		reg.ID, reg.URL, reg.Token, reg.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return rendezvous.ErrIDTaken
		}
		return err
	}
	return nil
}

func (r *PostgresRegistry) Lookup(ctx context.Context, id string) (rendezvous.Registration, error) {
	var reg rendezvous.Registration
	err := r.db.QueryRowContext(ctx,
		`SELECT id, url, token, created_at FROM peers WHERE id = $1`, id,
	).Scan(&reg.ID, &reg.URL, &reg.Token, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rendezvous.Registration{}, rendezvous.ErrNotFound
		}
		return rendezvous.Registration{}, err
	}
	return reg, nil
}

func (r *PostgresRegistry) Release(ctx context.Context, id, token string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT token FROM peers WHERE id = $1 FOR UPDATE`, id).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rendezvous.ErrNotFound
		}
		return err
	}
	if stored != token {
		return rendezvous.ErrTokenMismatch
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM peers WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRegistry) List(ctx context.Context) ([]rendezvous.Registration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, created_at
		FROM peers
		ORDER BY created_at DESC
		LIMIT 50
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []rendezvous.Registration
	for rows.Next() {
		var reg rendezvous.Registration
		if err := rows.Scan(&reg.ID, &reg.URL, &reg.CreatedAt); err != nil {
			return nil, err
		}
		peers = append(peers, reg)
	}
	return peers, rows.Err()
}

func (r *PostgresRegistry) Close() error {
	return r.db.Close()
}
