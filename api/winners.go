package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"twabWinners/config"
	"twabWinners/db"
	"twabWinners/winners"
	"twabWinners/ws"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

// WinnersRequest is the body of POST /api/winners
type WinnersRequest struct {
	ChainID            int64    `json:"chainId"`
	RPCURL             string   `json:"rpcUrl,omitempty"`
	PrizePoolAddress   string   `json:"prizePoolAddress"`
	VaultAddress       string   `json:"vaultAddress"`
	UserAddresses      []string `json:"userAddresses"`
	IgnoreCanaries     bool     `json:"ignoreCanaries"`
	BlockNumber        string   `json:"blockNumber,omitempty"` // decimal
	MulticallBatchSize int      `json:"multicallBatchSize,omitempty"`
	Debug              bool     `json:"debug"`
}

// WinnersResponse is returned by POST /api/winners
type WinnersResponse struct {
	Success bool             `json:"success"`
	RunID   string           `json:"runId"`
	DrawID  uint32           `json:"drawId"`
	Winners []winners.Winner `json:"winners"`
}

// RunResponse is returned by GET /api/winners/{runId}
type RunResponse struct {
	Success bool          `json:"success"`
	Run     *db.RunRecord `json:"run"`
}

// RunsResponse is returned by GET /api/winners
type RunsResponse struct {
	Success bool            `json:"success"`
	Runs    []*db.RunRecord `json:"runs"`
}

func (r *WinnersRequest) toRequest() (winners.Request, error) {
	chainID, rpcURL, err := resolveEndpoint(r.ChainID, r.RPCURL)
	if err != nil {
		return winners.Request{}, err
	}
	pool, err := parseAddress("prizePoolAddress", poolOrDefault(r.PrizePoolAddress))
	if err != nil {
		return winners.Request{}, err
	}
	vault, err := parseAddress("vaultAddress", r.VaultAddress)
	if err != nil {
		return winners.Request{}, err
	}
	if len(r.UserAddresses) > config.MaxUsersPerRequest {
		return winners.Request{}, fmt.Errorf("at most %d user addresses per request", config.MaxUsersPerRequest)
	}
	users := make([]common.Address, len(r.UserAddresses))
	for i, u := range r.UserAddresses {
		if users[i], err = parseAddress(fmt.Sprintf("userAddresses[%d]", i), u); err != nil {
			return winners.Request{}, err
		}
	}
	block, err := parseBlock(r.BlockNumber)
	if err != nil {
		return winners.Request{}, err
	}
	if r.MulticallBatchSize < 0 {
		return winners.Request{}, fmt.Errorf("invalid multicallBatchSize %d", r.MulticallBatchSize)
	}

	s := currentSettings()
	batchSize := r.MulticallBatchSize
	if batchSize == 0 {
		batchSize = s.MulticallBatchSize
	}
	return winners.Request{
		ChainID:            chainID,
		RPCURL:             rpcURL,
		PrizePool:          pool,
		Vault:              vault,
		Users:              users,
		IgnoreCanaries:     r.IgnoreCanaries,
		BlockNumber:        block,
		MulticallBatchSize: batchSize,
		Debug:              r.Debug,
		RPCRateLimit:       s.RPCRateLimit,
		RPCRateBurst:       s.RPCRateBurst,
	}, nil
}

/* =========================
   WINNERS ENDPOINTS
========================= */

// HandleComputeWinners computes the winners of the last awarded draw
// POST /api/winners
func HandleComputeWinners(w http.ResponseWriter, r *http.Request) {
	var body WinnersRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req, err := body.toRequest()
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ComputeTimeout)
	defer cancel()

	caller, closeConn, err := connect(ctx, req.ChainID, req.RPCURL)
	if err != nil {
		sendComputeError(w, err)
		return
	}
	defer closeConn()

	engine := winners.NewEngine(caller, winners.WithLogger(log.Logger))
	res, err := engine.Run(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("pool", req.PrizePool.Hex()).Msg("❌ Winner computation failed")
		sendComputeError(w, err)
		return
	}

	record := db.NewRunRecord(req, res)
	recordRun(record)

	log.Info().
		Str("runId", record.RunID).
		Uint32("drawId", res.Snapshot.LastAwardedDrawID).
		Int("winners", record.WinnerCount).
		Int("prizes", record.PrizeCount).
		Dur("took", res.Duration).
		Msg("🏆 Winners computed")

	sendJSON(w, http.StatusOK, WinnersResponse{
		Success: true,
		RunID:   record.RunID,
		DrawID:  res.Snapshot.LastAwardedDrawID,
		Winners: res.Winners,
	})
}

// recordRun stores the run in the ledger and notifies subscribers. Failures
// are logged; the computed result is still returned to the caller.
func recordRun(record *db.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := db.StoreRun(ctx, record); err != nil {
		log.Error().Err(err).Str("runId", record.RunID).Msg("❌ Failed to store run")
	}

	summary := record.Summary()
	if db.RedisClient == nil {
		ws.BroadcastRun(summary)
		return
	}
	if err := db.PublishRun(ctx, summary); err != nil {
		log.Error().Err(err).Str("runId", record.RunID).Msg("❌ Failed to publish run")
		ws.BroadcastRun(summary)
	}
}

// HandleGetRun returns a recorded run with its winners
// GET /api/winners/{runId}
func HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if db.PostgresPool == nil {
		sendError(w, http.StatusServiceUnavailable, "Run ledger unavailable")
		return
	}

	runID := r.PathValue("runId")
	record, err := db.GetRun(r.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("❌ Failed to get run")
		sendError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}
	if record == nil {
		sendError(w, http.StatusNotFound, "Run not found")
		return
	}
	sendJSON(w, http.StatusOK, RunResponse{Success: true, Run: record})
}

// HandleRecentRuns lists the most recent runs
// GET /api/winners
func HandleRecentRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := db.GetRecentRuns(r.Context(), config.RecentRunsLimit)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to list runs")
		sendError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}
	sendJSON(w, http.StatusOK, RunsResponse{Success: true, Runs: runs})
}
