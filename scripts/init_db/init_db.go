package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		getEnv("DB_USER", "coldchain_user"),
		getEnv("DB_PASSWORD", "coldchain_password"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "coldchain_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	stepExtensions(ctx, conn)
	stepReadingsTable(ctx, conn)
	stepAlertsTable(ctx, conn)
	stepActionsTable(ctx, conn)
	stepIndexes(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_thresholds/seed_thresholds.go")
}

func stepExtensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Extensions ──────────────────────────────────")
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

func stepReadingsTable(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── readings table ──────────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS readings (
			-- Sensor clock vs server clock: unit clocks drift,
			-- recorded_at is always accurate
			observed_at  TIMESTAMPTZ      NOT NULL,
			recorded_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			entity_id    TEXT             NOT NULL,
			sensor_id    TEXT             NOT NULL,

			value        DOUBLE PRECISION NOT NULL
		);
	`, "readings table created")

	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'readings',
			'observed_at',
			if_not_exists => TRUE
		);
	`, "readings converted to hypertable")
}

func stepAlertsTable(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── alerts table ────────────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alerts (
			id              BIGSERIAL        PRIMARY KEY,
			entity_id       TEXT             NOT NULL,
			value           DOUBLE PRECISION NOT NULL,

			-- NULL for trend alerts, which cross no single threshold
			threshold_used  DOUBLE PRECISION,

			classification  TEXT             NOT NULL,
			action_taken    TEXT             NOT NULL,
			message         TEXT             NOT NULL DEFAULT '',

			created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			resolved        BOOLEAN          NOT NULL DEFAULT false,
			resolved_at     TIMESTAMPTZ,

			CONSTRAINT chk_classification CHECK (
				classification IN ('NORMAL', 'WARNING', 'CRITICAL', 'TREND_ANOMALY')
			)
		);
	`, "alerts table created")
}

func stepActionsTable(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── actions table ───────────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS actions (
			id             BIGSERIAL        PRIMARY KEY,
			entity_id      TEXT             NOT NULL,
			action_type    TEXT             NOT NULL,
			current_value  DOUBLE PRECISION NOT NULL,
			target_value   DOUBLE PRECISION NOT NULL,
			status         TEXT             NOT NULL DEFAULT 'PENDING',
			created_at     TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			executed_at    TIMESTAMPTZ,

			CONSTRAINT chk_status CHECK (
				status IN ('PENDING', 'EXECUTED')
			)
		);
	`, "actions table created")
}

func stepIndexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Indexes ─────────────────────────────────────")

	indexes := []struct {
		name string
		sql  string
	}{
		{
			// Trend queries: latest N values per entity inside a window
			name: "idx_readings_entity_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_readings_entity_time
				ON readings (entity_id, observed_at DESC);`,
		},
		{
			name: "idx_alerts_entity_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_entity_time
				ON alerts (entity_id, created_at DESC);`,
		},
		{
			name: "idx_actions_status",
			sql: `CREATE INDEX IF NOT EXISTS idx_actions_status
				ON actions (status, created_at DESC);`,
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql, idx.name)
	}
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	if _, err := conn.Exec(ctx, sql); err != nil {
		log.Fatalf("✗ %s failed: %v", label, err)
	}
	fmt.Printf("✓ %s\n", label)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
