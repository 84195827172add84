// Package postgres provides a PostgreSQL-backed [profilestore.Store].
//
// Each record is one row keyed by (document_id, segment_id). The full
// profile and prosody parameters are kept as JSONB; the headline values
// (polarity, dominant emotion, sarcasm probability, speed) are also stored in
// plain columns so they can be aggregated in SQL.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Save(ctx, rec)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlProfiles = `
CREATE TABLE IF NOT EXISTS emotion_profiles (
    document_id          TEXT         NOT NULL,
    segment_id           TEXT         NOT NULL,
    segment_type         TEXT         NOT NULL,
    depth                SMALLINT     NOT NULL,
    start_pos            INTEGER      NOT NULL,
    end_pos              INTEGER      NOT NULL,
    text                 TEXT         NOT NULL,
    polarity             REAL         NOT NULL,
    dominant_emotion     TEXT         NOT NULL DEFAULT '',
    sarcasm_probability  REAL         NOT NULL DEFAULT 0,
    speed                REAL         NOT NULL DEFAULT 1,
    profile              JSONB        NOT NULL,
    prosody              JSONB        NOT NULL,
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (document_id, segment_id)
);

CREATE INDEX IF NOT EXISTS idx_emotion_profiles_order
    ON emotion_profiles (document_id, start_pos, depth);

CREATE INDEX IF NOT EXISTS idx_emotion_profiles_dominant
    ON emotion_profiles (dominant_emotion);
`

// Migrate creates the emotion_profiles table and its indexes. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlProfiles); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
