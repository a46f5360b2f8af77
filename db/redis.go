package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"twabWinners/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	// RedisClient is the global Redis client instance
	RedisClient *redis.Client
)

// RunSummary is the notification published when a run completes
type RunSummary struct {
	RunID       string    `json:"runId"`
	ChainID     int64     `json:"chainId"`
	PrizePool   string    `json:"prizePool"`
	Vault       string    `json:"vault"`
	DrawID      int64     `json:"drawId"`
	Winners     int       `json:"winners"`
	Prizes      int       `json:"prizes"`
	DurationMs  int64     `json:"durationMs"`
	CompletedAt time.Time `json:"completedAt"`
}

// Summary returns the notification for a stored run
func (r *RunRecord) Summary() *RunSummary {
	return &RunSummary{
		RunID:       r.RunID,
		ChainID:     r.ChainID,
		PrizePool:   r.PrizePool,
		Vault:       r.Vault,
		DrawID:      r.DrawID,
		Winners:     r.WinnerCount,
		Prizes:      r.PrizeCount,
		DurationMs:  r.DurationMs,
		CompletedAt: r.CreatedAt,
	}
}

// InitRedis initializes the Redis client connection
func InitRedis(addr, password string, database int) error {
	log.Info().Msg("🔌 Connecting to Redis...")

	RedisClient = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           database,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		RedisClient.Close()
		RedisClient = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", addr).Msg("✅ Redis connected successfully")
	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		log.Info().Msg("🔌 Closing Redis connection...")
		return RedisClient.Close()
	}
	return nil
}

/* =========================
   RUN NOTIFICATIONS
   Redis Key: twab:run:{runId} -> RunSummary JSON
   Channel:   twab:runs
========================= */

// PublishRun stores the run summary with a TTL and announces it on the runs channel
func PublishRun(ctx context.Context, summary *RunSummary) error {
	if RedisClient == nil {
		log.Warn().Msg("⚠️  Redis not initialized, skipping run notification")
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	key := fmt.Sprintf(config.RedisRunSummaryKey, summary.RunID)
	if err := RedisClient.Set(ctx, key, data, config.RunSummaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to store run summary: %w", err)
	}
	if err := RedisClient.Publish(ctx, config.RedisRunsChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish run summary: %w", err)
	}

	log.Info().Str("runId", summary.RunID).Int("winners", summary.Winners).Msg("📣 Published run")
	return nil
}

// GetRunSummary retrieves a recent run summary
func GetRunSummary(ctx context.Context, runID string) (*RunSummary, error) {
	if RedisClient == nil {
		return nil, nil
	}

	data, err := RedisClient.Get(ctx, fmt.Sprintf(config.RedisRunSummaryKey, runID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Expired or never published
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return &summary, nil
}

// SubscribeRuns calls handle for every run published until ctx is done
func SubscribeRuns(ctx context.Context, handle func(*RunSummary)) error {
	if RedisClient == nil {
		return errors.New("redis not initialized")
	}

	sub := RedisClient.Subscribe(ctx, config.RedisRunsChannel)
	defer sub.Close()

	// Wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", config.RedisRunsChannel, err)
	}
	log.Info().Str("channel", config.RedisRunsChannel).Msg("📡 Subscribed to run notifications")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var summary RunSummary
			if err := json.Unmarshal([]byte(msg.Payload), &summary); err != nil {
				log.Warn().Err(err).Msg("⚠️  Failed to unmarshal run notification")
				continue
			}
			handle(&summary)
		}
	}
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheck performs a Redis health check
func HealthCheck(ctx context.Context) error {
	if RedisClient == nil {
		return errors.New("redis client not initialized")
	}
	return RedisClient.Ping(ctx).Err()
}
