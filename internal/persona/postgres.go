package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the persona_profiles table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS persona_profiles (
    participant_id TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    chamber        TEXT NOT NULL DEFAULT '',
    affiliation    TEXT NOT NULL DEFAULT '',
    background     TEXT NOT NULL DEFAULT '',
    style          TEXT NOT NULL DEFAULT '',
    positions      JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_persona_profiles_name ON persona_profiles(name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
// Positions are serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] using the given connection or
// pool. The caller is responsible for calling [PostgresStore.Migrate] to
// ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the persona_profiles table and
// index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("persona: migrate: %w", err)
	}
	return nil
}

// GetProfile implements [Store].
func (s *PostgresStore) GetProfile(ctx context.Context, participantID string) (*Profile, error) {
	const query = `
		SELECT participant_id, name, chamber, affiliation, background, style, positions,
		       created_at, updated_at
		FROM   persona_profiles
		WHERE  participant_id = $1`

	var (
		p             Profile
		positionsJSON []byte
	)
	err := s.db.QueryRow(ctx, query, participantID).Scan(
		&p.ParticipantID, &p.Name, &p.Chamber, &p.Affiliation,
		&p.Background, &p.Style, &positionsJSON,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("persona: get %q: %w", participantID, err)
	}

	if err := json.Unmarshal(positionsJSON, &p.Positions); err != nil {
		return nil, fmt.Errorf("persona: unmarshal positions: %w", err)
	}
	return &p, nil
}

// PutProfile implements [Store]. Creates or replaces the profile.
func (s *PostgresStore) PutProfile(ctx context.Context, profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	positions := profile.Positions
	if positions == nil {
		positions = map[string]string{}
	}
	positionsJSON, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("persona: marshal positions: %w", err)
	}

	const query = `
		INSERT INTO persona_profiles
		    (participant_id, name, chamber, affiliation, background, style, positions)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (participant_id) DO UPDATE SET
		    name        = EXCLUDED.name,
		    chamber     = EXCLUDED.chamber,
		    affiliation = EXCLUDED.affiliation,
		    background  = EXCLUDED.background,
		    style       = EXCLUDED.style,
		    positions   = EXCLUDED.positions,
		    updated_at  = now()
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		profile.ParticipantID, profile.Name, profile.Chamber, profile.Affiliation,
		profile.Background, profile.Style, positionsJSON,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("persona: put %q: %w", profile.ParticipantID, err)
	}
	return nil
}

// DeleteProfile implements [Store].
func (s *PostgresStore) DeleteProfile(ctx context.Context, participantID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM persona_profiles WHERE participant_id = $1`, participantID); err != nil {
		return fmt.Errorf("persona: delete %q: %w", participantID, err)
	}
	return nil
}

// ListProfiles implements [Store].
func (s *PostgresStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	const query = `
		SELECT participant_id, name, chamber, affiliation, background, style, positions,
		       created_at, updated_at
		FROM   persona_profiles
		ORDER  BY participant_id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("persona: list: %w", err)
	}

	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Profile, error) {
		var (
			p             Profile
			positionsJSON []byte
		)
		if err := row.Scan(
			&p.ParticipantID, &p.Name, &p.Chamber, &p.Affiliation,
			&p.Background, &p.Style, &positionsJSON,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return Profile{}, err
		}
		if err := json.Unmarshal(positionsJSON, &p.Positions); err != nil {
			return Profile{}, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("persona: collect rows: %w", err)
	}
	return profiles, nil
}
