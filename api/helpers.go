package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"sync"

	"twabWinners/config"
	"twabWinners/contract"

	"github.com/ethereum/go-ethereum/common"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

var (
	settings      config.Settings
	settingsMutex sync.RWMutex
)

// Configure sets the defaults used when a request leaves the chain or RPC
// endpoint out
func Configure(s config.Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settings = s
}

func currentSettings() config.Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settings
}

// connect opens a paced node connection; tests replace it with a fake chain
var connect = func(ctx context.Context, chainID int64, rpcURL string) (contract.Caller, func(), error) {
	client, err := contract.Dial(ctx, chainID, rpcURL)
	if err != nil {
		return nil, nil, err
	}
	s := currentSettings()
	caller := contract.NewThrottledCaller(client.Network.Name, client, s.RPCRateLimit, s.RPCRateBurst)
	return caller, client.Close, nil
}

// resolveEndpoint fills in the configured chain and RPC URL
func resolveEndpoint(chainID int64, rpcURL string) (int64, string, error) {
	s := currentSettings()
	if chainID == 0 {
		chainID = s.ChainID
	}
	if rpcURL == "" {
		rpcURL = s.RPCURL
	}
	if rpcURL == "" {
		return 0, "", errors.New("rpcUrl is required")
	}
	return chainID, rpcURL, nil
}

// poolOrDefault falls back to the configured prize pool
func poolOrDefault(address string) string {
	if address == "" {
		return currentSettings().PrizePoolAddress
	}
	return address
}

func sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, ErrorResponse{
		Success: false,
		Error:   message,
	})
}

// sendComputeError maps engine failures to a status code
func sendComputeError(w http.ResponseWriter, err error) {
	var fetchErr *contract.FetchError
	switch {
	case errors.Is(err, contract.ErrUnsupportedChain), errors.Is(err, contract.ErrChainMismatch):
		sendError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &fetchErr):
		sendError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		sendError(w, http.StatusGatewayTimeout, "computation timed out")
	default:
		sendError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s must be a 20-byte hex address", field)
	}
	return common.HexToAddress(value), nil
}

// parseBlock reads an optional decimal block number
func parseBlock(value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	block, ok := new(big.Int).SetString(value, 10)
	if !ok || block.Sign() < 0 {
		return nil, fmt.Errorf("invalid block number %q", value)
	}
	return block, nil
}

func parseUint(field, value string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(value, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, value)
	}
	return v, nil
}
