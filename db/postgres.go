package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"twabWinners/prize"
	"twabWinners/winners"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	// PostgresPool is the global PostgreSQL connection pool
	PostgresPool *pgxpool.Pool
)

// RunRecord is one completed winner computation in the run ledger
type RunRecord struct {
	RunID          string           `json:"runId"`
	ChainID        int64            `json:"chainId"`
	PrizePool      string           `json:"prizePool"`
	Vault          string           `json:"vault"`
	DrawID         int64            `json:"drawId"`
	BlockNumber    *string          `json:"blockNumber,omitempty"`
	IgnoreCanaries bool             `json:"ignoreCanaries"`
	UserCount      int              `json:"userCount"`
	WinnerCount    int              `json:"winnerCount"`
	PrizeCount     int              `json:"prizeCount"`
	DurationMs     int64            `json:"durationMs"`
	CreatedAt      time.Time        `json:"createdAt"`
	Winners        []winners.Winner `json:"winners,omitempty"`
}

// NewRunRecord builds the ledger entry for a finished computation under a
// fresh run id
func NewRunRecord(req winners.Request, res *winners.Result) *RunRecord {
	record := &RunRecord{
		RunID:          uuid.New().String(),
		ChainID:        req.ChainID,
		PrizePool:      req.PrizePool.Hex(),
		Vault:          req.Vault.Hex(),
		DrawID:         int64(res.Snapshot.LastAwardedDrawID),
		IgnoreCanaries: req.IgnoreCanaries,
		UserCount:      len(req.Users),
		WinnerCount:    len(res.Winners),
		DurationMs:     res.Duration.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
		Winners:        res.Winners,
	}
	if req.BlockNumber != nil {
		block := req.BlockNumber.String()
		record.BlockNumber = &block
	}
	for _, w := range res.Winners {
		record.PrizeCount += w.Count()
	}
	return record
}

// InitPostgres initializes the PostgreSQL connection pool
func InitPostgres(databaseURL string) error {
	log.Info().Msg("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 5 * time.Minute

	PostgresPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := PostgresPool.Ping(ctx); err != nil {
		PostgresPool.Close()
		PostgresPool = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("✅ PostgreSQL connected successfully")

	if err := applySchema(context.Background()); err != nil {
		PostgresPool.Close()
		PostgresPool = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// applySchema runs after a successful ping; tests replace it
var applySchema = InitSchema

// ClosePostgres closes the PostgreSQL connection pool
func ClosePostgres() {
	if PostgresPool != nil {
		log.Info().Msg("🔌 Closing PostgreSQL connection...")
		PostgresPool.Close()
		PostgresPool = nil
	}
}

// InitSchema creates the database tables if they don't exist
func InitSchema(ctx context.Context) error {
	log.Info().Msg("📋 Initializing database schema...")

	runsSchema := `
	CREATE TABLE IF NOT EXISTS winner_runs (
		run_id TEXT PRIMARY KEY,
		chain_id BIGINT NOT NULL,
		prize_pool TEXT NOT NULL,
		vault TEXT NOT NULL,
		draw_id BIGINT NOT NULL,
		block_number TEXT,
		ignore_canaries BOOLEAN NOT NULL DEFAULT FALSE,
		user_count INTEGER NOT NULL,
		winner_count INTEGER NOT NULL,
		prize_count INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	-- Lookups by pool and draw
	CREATE INDEX IF NOT EXISTS idx_winner_runs_pool_draw ON winner_runs(prize_pool, draw_id);

	CREATE INDEX IF NOT EXISTS idx_winner_runs_created_at ON winner_runs(created_at DESC);
	`

	if _, err := PostgresPool.Exec(ctx, runsSchema); err != nil {
		return fmt.Errorf("failed to create winner_runs table: %w", err)
	}

	prizesSchema := `
	CREATE TABLE IF NOT EXISTS winner_prizes (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES winner_runs(run_id) ON DELETE CASCADE,
		user_address TEXT NOT NULL,
		tier SMALLINT NOT NULL,
		prize_index BIGINT NOT NULL,
		UNIQUE(run_id, user_address, tier, prize_index)
	);

	CREATE INDEX IF NOT EXISTS idx_winner_prizes_user ON winner_prizes(user_address);
	`

	if _, err := PostgresPool.Exec(ctx, prizesSchema); err != nil {
		return fmt.Errorf("failed to create winner_prizes table: %w", err)
	}

	log.Info().Msg("✅ Database schema initialized")
	return nil
}

/* =========================
   RUN LEDGER
========================= */

// StoreRun writes a run and all of its winning prize slots in one transaction
func StoreRun(ctx context.Context, record *RunRecord) error {
	if PostgresPool == nil {
		log.Warn().Msg("⚠️  PostgreSQL not initialized, skipping run storage")
		return nil
	}

	err := pgx.BeginFunc(ctx, PostgresPool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO winner_runs
			(run_id, chain_id, prize_pool, vault, draw_id, block_number, ignore_canaries,
			 user_count, winner_count, prize_count, duration_ms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		if _, err := tx.Exec(ctx, query,
			record.RunID,
			record.ChainID,
			record.PrizePool,
			record.Vault,
			record.DrawID,
			record.BlockNumber,
			record.IgnoreCanaries,
			record.UserCount,
			record.WinnerCount,
			record.PrizeCount,
			record.DurationMs,
			record.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		rows := make([][]interface{}, 0, record.PrizeCount)
		for _, w := range record.Winners {
			for tier, indices := range w.Prizes {
				for _, idx := range indices {
					rows = append(rows, []interface{}{record.RunID, w.User.Hex(), int16(tier), int64(idx)})
				}
			}
		}
		if len(rows) == 0 {
			return nil
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"winner_prizes"},
			[]string{"run_id", "user_address", "tier", "prize_index"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("failed to copy winner prizes: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	log.Info().
		Str("runId", record.RunID).
		Int64("drawId", record.DrawID).
		Int("winners", record.WinnerCount).
		Int("prizes", record.PrizeCount).
		Msg("✅ Stored winner run")
	return nil
}

const runColumns = `
	run_id, chain_id, prize_pool, vault, draw_id, block_number, ignore_canaries,
	user_count, winner_count, prize_count, duration_ms, created_at
`

func scanRun(row pgx.Row) (*RunRecord, error) {
	var record RunRecord
	err := row.Scan(
		&record.RunID,
		&record.ChainID,
		&record.PrizePool,
		&record.Vault,
		&record.DrawID,
		&record.BlockNumber,
		&record.IgnoreCanaries,
		&record.UserCount,
		&record.WinnerCount,
		&record.PrizeCount,
		&record.DurationMs,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetRun retrieves a run with its winners by run id
func GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	if PostgresPool == nil {
		return nil, nil
	}

	record, err := scanRun(PostgresPool.QueryRow(ctx, `SELECT `+runColumns+` FROM winner_runs WHERE run_id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Run not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	query := `
		SELECT user_address, tier, prize_index
		FROM winner_prizes
		WHERE run_id = $1
	`
	rows, err := PostgresPool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query winner prizes: %w", err)
	}
	defer rows.Close()

	agg := winners.NewAggregate()
	var wins []prize.WinRecord
	for rows.Next() {
		var user string
		var tier int16
		var idx int64
		if err := rows.Scan(&user, &tier, &idx); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		wins = append(wins, prize.WinRecord{User: common.HexToAddress(user), Tier: uint8(tier), PrizeIndex: uint32(idx)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	agg.Add(wins)
	record.Winners = agg.Winners()
	return record, nil
}

// GetRecentRuns retrieves the N most recent runs without their winners
func GetRecentRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if PostgresPool == nil {
		return []*RunRecord{}, nil
	}

	rows, err := PostgresPool.Query(ctx, `SELECT `+runColumns+` FROM winner_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	records := []*RunRecord{}
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// DeleteRun removes a run and its prizes
func DeleteRun(ctx context.Context, runID string) error {
	if PostgresPool == nil {
		return nil
	}
	if _, err := PostgresPool.Exec(ctx, `DELETE FROM winner_runs WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheckPostgres performs a PostgreSQL health check
func HealthCheckPostgres(ctx context.Context) error {
	if PostgresPool == nil {
		return errors.New("PostgreSQL connection pool not initialized")
	}
	return PostgresPool.Ping(ctx)
}
