package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/narrata/internal/profilestore"
)

var _ profilestore.Store = (*Store)(nil)

// Store is a PostgreSQL-backed [profilestore.Store]. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Save implements [profilestore.Store].
func (s *Store) Save(ctx context.Context, r profilestore.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	profile, err := json.Marshal(r.Profile)
	if err != nil {
		return fmt.Errorf("profile store: encode profile: %w", err)
	}
	params, err := json.Marshal(r.Prosody)
	if err != nil {
		return fmt.Errorf("profile store: encode prosody: %w", err)
	}

	var dominant string
	if d, ok := r.Profile.Dominant(); ok {
		dominant = string(d.Type)
	}
	seg := r.Profile.Segment

	const q = `
		INSERT INTO emotion_profiles
		    (document_id, segment_id, segment_type, depth, start_pos, end_pos, text,
		     polarity, dominant_emotion, sarcasm_probability, speed, profile, prosody, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (document_id, segment_id) DO UPDATE SET
		    segment_type        = EXCLUDED.segment_type,
		    depth               = EXCLUDED.depth,
		    start_pos           = EXCLUDED.start_pos,
		    end_pos             = EXCLUDED.end_pos,
		    text                = EXCLUDED.text,
		    polarity            = EXCLUDED.polarity,
		    dominant_emotion    = EXCLUDED.dominant_emotion,
		    sarcasm_probability = EXCLUDED.sarcasm_probability,
		    speed               = EXCLUDED.speed,
		    profile             = EXCLUDED.profile,
		    prosody             = EXCLUDED.prosody,
		    created_at          = EXCLUDED.created_at`

	_, err = s.pool.Exec(ctx, q,
		r.DocumentID,
		r.Profile.SegmentID,
		string(seg.Type),
		seg.Type.Level(),
		seg.StartPos,
		seg.EndPos,
		seg.Text,
		r.Profile.Sentiment.Polarity,
		dominant,
		r.Profile.Sarcasm.Probability,
		r.Prosody.Speed,
		profile,
		params,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("profile store: save %s/%s: %w", r.DocumentID, r.Profile.SegmentID, err)
	}
	return nil
}

// List implements [profilestore.Store].
func (s *Store) List(ctx context.Context, documentID string) ([]profilestore.Record, error) {
	const q = `
		SELECT document_id, profile, prosody, created_at
		FROM   emotion_profiles
		WHERE  document_id = $1
		ORDER  BY start_pos, depth`

	rows, err := s.pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("profile store: list: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (profilestore.Record, error) {
		var (
			r               profilestore.Record
			profile, params []byte
		)
		if err := row.Scan(&r.DocumentID, &profile, &params, &r.CreatedAt); err != nil {
			return profilestore.Record{}, err
		}
		if err := json.Unmarshal(profile, &r.Profile); err != nil {
			return profilestore.Record{}, fmt.Errorf("decode profile: %w", err)
		}
		if err := json.Unmarshal(params, &r.Prosody); err != nil {
			return profilestore.Record{}, fmt.Errorf("decode prosody: %w", err)
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("profile store: scan rows: %w", err)
	}
	if records == nil {
		records = []profilestore.Record{}
	}
	return records, nil
}
