package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"twabWinners/config"
	"twabWinners/db"
	"twabWinners/prizepool"
	"twabWinners/winners"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Routes registers every endpoint on mux
func Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/winners", HandleComputeWinners)
	mux.HandleFunc("GET /api/winners", HandleRecentRuns)
	mux.HandleFunc("GET /api/winners/{runId}", HandleGetRun)
	mux.HandleFunc("GET /api/verify", HandleVerify)
	mux.HandleFunc("GET /api/tiers", HandleTiers)
	mux.HandleFunc("GET /api/health", HandleHealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
}

/* =========================
   VERIFY ENDPOINT
========================= */

// VerifyResponse is returned by GET /api/verify
type VerifyResponse struct {
	Success bool `json:"success"`
	*winners.Verification
	ChainID             int64  `json:"chainId"`
	OddsDecimal         string `json:"oddsDecimal"`
	VaultPortionDecimal string `json:"vaultPortionDecimal"`
}

// HandleVerify recomputes one prize slot from live chain data
// GET /api/verify?chainId=&rpcUrl=&prizePool=&vault=&user=&tier=&prizeIndex=&block=
func HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	chainID, rpcURL, pool, block, err := parseEndpointQuery(q.Get("chainId"), q.Get("rpcUrl"), q.Get("prizePool"), q.Get("block"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	vault, err := parseAddress("vault", q.Get("vault"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := parseAddress("user", q.Get("user"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	tier, err := parseUint("tier", q.Get("tier"), 8)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	prizeIndex, err := parseUint("prizeIndex", q.Get("prizeIndex"), 32)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ComputeTimeout)
	defer cancel()

	caller, closeConn, err := connect(ctx, chainID, rpcURL)
	if err != nil {
		sendComputeError(w, err)
		return
	}
	defer closeConn()

	v, err := winners.NewEngine(caller, winners.WithLogger(log.Logger), winners.WithBatchSize(currentSettings().MulticallBatchSize)).Verify(ctx, winners.VerifyRequest{
		PrizePool:   pool,
		Vault:       vault,
		User:        user,
		Tier:        uint8(tier),
		PrizeIndex:  uint32(prizeIndex),
		BlockNumber: block,
	})
	if err != nil {
		sendComputeError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, VerifyResponse{
		Success:             true,
		Verification:        v,
		ChainID:             chainID,
		OddsDecimal:         config.FixedPointToDecimal(v.TierParameters.Odds).String(),
		VaultPortionDecimal: config.FixedPointToDecimal(v.VaultPortion).String(),
	})
}

/* =========================
   TIERS ENDPOINT
========================= */

// TierResponse is one row of GET /api/tiers
type TierResponse struct {
	winners.TierSummary
	OddsDecimal         string `json:"oddsDecimal"`
	VaultPortionDecimal string `json:"vaultPortionDecimal"`
}

// TiersResponse is returned by GET /api/tiers
type TiersResponse struct {
	Success  bool                `json:"success"`
	Snapshot *prizepool.Snapshot `json:"snapshot"`
	Tiers    []TierResponse      `json:"tiers"`
}

// HandleTiers lists the tiers of the last awarded draw
// GET /api/tiers?chainId=&rpcUrl=&prizePool=&vault=&block=
func HandleTiers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	chainID, rpcURL, pool, block, err := parseEndpointQuery(q.Get("chainId"), q.Get("rpcUrl"), q.Get("prizePool"), q.Get("block"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	vault, err := parseAddress("vault", q.Get("vault"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ComputeTimeout)
	defer cancel()

	caller, closeConn, err := connect(ctx, chainID, rpcURL)
	if err != nil {
		sendComputeError(w, err)
		return
	}
	defer closeConn()

	snapshot, tiers, err := winners.NewEngine(caller, winners.WithLogger(log.Logger), winners.WithBatchSize(currentSettings().MulticallBatchSize)).DescribeTiers(ctx, pool, vault, block)
	if err != nil {
		sendComputeError(w, err)
		return
	}

	response := TiersResponse{
		Success:  true,
		Snapshot: snapshot,
		Tiers:    make([]TierResponse, 0, len(tiers)),
	}
	for _, t := range tiers {
		response.Tiers = append(response.Tiers, TierResponse{
			TierSummary:         t,
			OddsDecimal:         config.FixedPointToDecimal(t.Odds).String(),
			VaultPortionDecimal: config.FixedPointToDecimal(t.VaultPortion).String(),
		})
	}
	sendJSON(w, http.StatusOK, response)
}

func parseEndpointQuery(chainParam, rpcURL, poolParam, blockParam string) (int64, string, common.Address, *big.Int, error) {
	var chainID int64
	if chainParam != "" {
		v, err := strconv.ParseInt(chainParam, 10, 64)
		if err != nil {
			return 0, "", common.Address{}, nil, fmt.Errorf("invalid chainId %q", chainParam)
		}
		chainID = v
	}
	chainID, rpcURL, err := resolveEndpoint(chainID, rpcURL)
	if err != nil {
		return 0, "", common.Address{}, nil, err
	}
	pool, err := parseAddress("prizePool", poolOrDefault(poolParam))
	if err != nil {
		return 0, "", common.Address{}, nil, err
	}
	block, err := parseBlock(blockParam)
	if err != nil {
		return 0, "", common.Address{}, nil, err
	}
	return chainID, rpcURL, pool, block, nil
}

/* =========================
   HEALTH CHECK ENDPOINT
========================= */

// HandleHealthCheck handles health check requests
// GET /api/health
func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	redisHealth := "ok"
	if err := db.HealthCheck(ctx); err != nil {
		redisHealth = "error: " + err.Error()
	}

	postgresHealth := "ok"
	if err := db.HealthCheckPostgres(ctx); err != nil {
		postgresHealth = "error: " + err.Error()
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"redis":    redisHealth,
		"postgres": postgresHealth,
		"chainId":  currentSettings().ChainID,
		"message":  "Health check completed",
	})
}
