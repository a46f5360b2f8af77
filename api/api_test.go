package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"twabWinners/config"
	"twabWinners/contract"
	"twabWinners/contract/contracttest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr   = common.HexToAddress("0xF35fE10ffd0a9672d0095c435fd8767A7fe29B55")
	controller = common.HexToAddress("0x499a9F249ec4c8Ea190bebbFD96f9A83bf4F6E52")
	vault      = common.HexToAddress("0x7b0949204e7Da1B0beD6d4CCb68497F51621b574")
	userA      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	userB      = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// serve routes requests to a fake chain for draw 19 with four tiers
func serve(t *testing.T) (*http.ServeMux, *contracttest.PrizePool) {
	t.Helper()

	wrn, _ := new(big.Int).SetString("26530114669438130968955460922440721463514287408443924397818115294892275447627", 10)
	supply, _ := new(big.Int).SetString("11734719059822959415", 10)

	pool := &contracttest.PrizePool{
		TwabController:      controller,
		WinningRandomNumber: wrn,
		LastAwardedDrawID:   19,
		Tiers: []contracttest.Tier{
			{PrizeCount: 1, Odds: big.NewInt(1e17), AccrualDraws: 8},
			{PrizeCount: 4, Odds: big.NewInt(5e17), AccrualDraws: 4},
			{PrizeCount: 16, Odds: big.NewInt(1e18), AccrualDraws: 1},
			{PrizeCount: 16, Odds: big.NewInt(1e18), AccrualDraws: 1},
		},
		VaultPortion:     big.NewInt(1e18),
		FirstDrawOpensAt: 1_700_000_000,
		DrawPeriod:       86_400,
		Revert:           map[string]bool{},
	}
	twabs := &contracttest.TwabController{
		TotalSupply: supply,
		Balances: map[common.Address]*big.Int{
			userA: new(big.Int).Set(supply),
			userB: new(big.Int).Div(supply, big.NewInt(2)),
		},
	}
	chain := contracttest.NewChain()
	pool.Install(chain, poolAddr)
	twabs.Install(chain, controller)

	Configure(config.Settings{ChainID: 10, RPCURL: "http://node.invalid"})
	original := connect
	connect = func(ctx context.Context, chainID int64, rpcURL string) (contract.Caller, func(), error) {
		if _, ok := config.SupportedNetworks[chainID]; !ok {
			return nil, nil, fmt.Errorf("%w: %d", contract.ErrUnsupportedChain, chainID)
		}
		return chain, func() {}, nil
	}
	t.Cleanup(func() { connect = original })

	mux := http.NewServeMux()
	Routes(mux)
	return mux, pool
}

func do(t *testing.T, mux *http.ServeMux, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestComputeWinners(t *testing.T) {
	mux, _ := serve(t)

	rec, out := do(t, mux, http.MethodPost, "/api/winners", WinnersRequest{
		PrizePoolAddress: poolAddr.Hex(),
		VaultAddress:     vault.Hex(),
		UserAddresses:    []string{userA.Hex(), userB.Hex()},
		IgnoreCanaries:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp WinnersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, uint32(19), resp.DrawID)
	require.Len(t, resp.Winners, 2)
	assert.Equal(t, userA, resp.Winners[0].User)
	assert.Equal(t, []uint32{1, 3}, resp.Winners[0].Prizes[1])
	assert.Equal(t, []uint32{2, 3}, resp.Winners[1].Prizes[1])
	assert.Equal(t, true, out["success"])
}

func TestComputeWinnersBadRequests(t *testing.T) {
	mux, _ := serve(t)

	cases := []struct {
		name string
		body WinnersRequest
		want string
	}{
		{"bad pool", WinnersRequest{PrizePoolAddress: "0x1234", VaultAddress: vault.Hex()}, "prizePoolAddress"},
		{"bad user", WinnersRequest{PrizePoolAddress: poolAddr.Hex(), VaultAddress: vault.Hex(), UserAddresses: []string{"alice"}}, "userAddresses[0]"},
		{"bad block", WinnersRequest{PrizePoolAddress: poolAddr.Hex(), VaultAddress: vault.Hex(), BlockNumber: "-5"}, "block number"},
		{"unknown chain", WinnersRequest{ChainID: 999, PrizePoolAddress: poolAddr.Hex(), VaultAddress: vault.Hex()}, "unsupported chain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := do(t, mux, http.MethodPost, "/api/winners", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, out["success"])
			assert.Contains(t, out["error"], tc.want)
		})
	}
}

func TestComputeWinnersFetchFailure(t *testing.T) {
	mux, pool := serve(t)
	pool.Revert["getWinningRandomNumber"] = true

	rec, out := do(t, mux, http.MethodPost, "/api/winners", WinnersRequest{
		PrizePoolAddress: poolAddr.Hex(),
		VaultAddress:     vault.Hex(),
		UserAddresses:    []string{userA.Hex()},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, out["error"], "getWinningRandomNumber")
}

func TestVerify(t *testing.T) {
	mux, _ := serve(t)

	q := url.Values{}
	q.Set("prizePool", poolAddr.Hex())
	q.Set("vault", vault.Hex())
	q.Set("user", userB.Hex())
	q.Set("tier", "1")
	q.Set("prizeIndex", "2")

	rec, _ := do(t, mux, http.MethodGet, "/api/verify?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success     bool   `json:"success"`
		DrawID      uint32 `json:"drawId"`
		OddsDecimal string `json:"oddsDecimal"`
		Check       struct {
			Won bool `json:"won"`
		} `json:"check"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, uint32(19), resp.DrawID)
	assert.Equal(t, "0.5", resp.OddsDecimal)
	assert.True(t, resp.Check.Won)

	q.Set("tier", "300")
	rec, _ = do(t, mux, http.MethodGet, "/api/verify?"+q.Encode(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTiers(t *testing.T) {
	mux, _ := serve(t)

	rec, _ := do(t, mux, http.MethodGet, "/api/tiers?prizePool="+poolAddr.Hex()+"&vault="+vault.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TiersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tiers, 4)
	assert.Equal(t, "0.1", resp.Tiers[0].OddsDecimal)
	assert.Equal(t, "1", resp.Tiers[0].VaultPortionDecimal)
	assert.True(t, resp.Tiers[3].Canary)
	assert.Equal(t, uint32(19), resp.Snapshot.LastAwardedDrawID)
}

func TestRunLedgerUnavailable(t *testing.T) {
	mux, _ := serve(t)

	rec, out := do(t, mux, http.MethodGet, "/api/winners/some-run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, out["success"])
}

func TestHealthCheck(t *testing.T) {
	mux, _ := serve(t)

	rec, out := do(t, mux, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, out["redis"], "error")
	assert.Contains(t, out["postgres"], "error")
}
