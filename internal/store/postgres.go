package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"coldchain-monitor/pipeline/internal/config"
	"coldchain-monitor/pipeline/internal/domain"
)

// PGStore wraps the readings/alerts/actions tables. It holds two pools:
// a small one for the read-heavy trend queries and a larger one for the
// dispatch appends, so neither load can starve the other.
type PGStore struct {
	read  *pgxpool.Pool
	write *pgxpool.Pool
}

func NewPGStore(ctx context.Context, cfg *config.Config) (*PGStore, error) {
	read, err := newPool(ctx, cfg, cfg.DBReadConns)
	if err != nil {
		return nil, fmt.Errorf("read pool: %w", err)
	}

	write, err := newPool(ctx, cfg, cfg.DBWriteConns)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("write pool: %w", err)
	}

	return &PGStore{read: read, write: write}, nil
}

func newPool(ctx context.Context, cfg *config.Config, maxConns int32) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		maxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}

func (s *PGStore) Close() {
	s.read.Close()
	s.write.Close()
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.read.Ping(ctx); err != nil {
		return err
	}
	return s.write.Ping(ctx)
}

// InsertReading appends one history row. Append-only: a redelivered
// reading inserts a duplicate row rather than failing.
func (s *PGStore) InsertReading(ctx context.Context, r domain.Reading) error {
	query := `
		INSERT INTO readings
			(entity_id, sensor_id, value, observed_at, recorded_at)
		VALUES
			($1, $2, $3, $4, NOW())
	`
	_, err := s.write.Exec(ctx, query, r.EntityID, r.SensorID, r.Value, r.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert reading for %s: %w", r.EntityID, err)
	}
	return nil
}

// RecentValues returns up to max values for an entity observed within the
// window, newest first.
func (s *PGStore) RecentValues(ctx context.Context, entityID string, window time.Duration, max int) ([]float64, error) {
	query := `
		SELECT value
		FROM readings
		WHERE entity_id = $1 AND observed_at > $2
		ORDER BY observed_at DESC
		LIMIT $3
	`
	rows, err := s.read.Query(ctx, query, entityID, time.Now().Add(-window), max)
	if err != nil {
		return nil, fmt.Errorf("recent values for %s: %w", entityID, err)
	}
	defer rows.Close()

	values := make([]float64, 0, max)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan recent value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent values for %s: %w", entityID, err)
	}
	return values, nil
}

func (s *PGStore) InsertAlert(ctx context.Context, a domain.Alert) error {
	query := `
		INSERT INTO alerts
			(entity_id, value, threshold_used, classification, action_taken, message, created_at, resolved)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, false)
	`
	_, err := s.write.Exec(ctx, query,
		a.EntityID,
		a.Value,
		a.ThresholdUsed,
		string(a.Classification),
		string(a.ActionTaken),
		a.Message,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert for %s: %w", a.EntityID, err)
	}
	return nil
}

func (s *PGStore) InsertCorrection(ctx context.Context, c domain.CorrectionRequest) error {
	query := `
		INSERT INTO actions
			(entity_id, action_type, current_value, target_value, status, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6)
	`
	_, err := s.write.Exec(ctx, query,
		c.EntityID,
		string(c.ActionType),
		c.CurrentValue,
		c.TargetValue,
		string(c.Status),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert correction for %s: %w", c.EntityID, err)
	}
	return nil
}
