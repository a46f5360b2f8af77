package ws

import (
	"context"
	"time"

	"twabWinners/config"
	"twabWinners/db"

	"github.com/rs/zerolog/log"
)

// RunCompletedMessage is pushed to "runs" subscribers for every finished run
type RunCompletedMessage struct {
	Type string         `json:"type"`
	Data *db.RunSummary `json:"data"`
}

// BroadcastRun pushes a finished run to the runs channel
func BroadcastRun(summary *db.RunSummary) {
	Broadcast(config.WSRunsChannel, RunCompletedMessage{Type: "run_completed", Data: summary})
}

// StartRunFeed relays run notifications from Redis to subscribers until ctx
// is done, resubscribing after connection failures
func StartRunFeed(ctx context.Context) {
	go func() {
		for {
			err := db.SubscribeRuns(ctx, BroadcastRun)
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("⚠️  Run feed subscription ended, retrying in 5s")

			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
}

// sendInitialData sends the recent runs when a client subscribes
func (c *ClientConnection) sendInitialData(channel string) {
	if channel != config.WSRunsChannel {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runs, err := db.GetRecentRuns(ctx, config.RecentRunsLimit)
	if err != nil {
		log.Warn().Err(err).Str("client", c.ID).Msg("⚠️  Failed to load recent runs")
		return
	}
	c.sendJSON(map[string]interface{}{
		"type": "recent_runs",
		"runs": runs,
	})
}
