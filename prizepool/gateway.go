// Package prizepool reads draw and tier state from a prize pool contract.
package prizepool

import (
	"context"
	"fmt"
	"math/big"

	"twabWinners/config"
	"twabWinners/contract"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the draw-wide prize pool state a computation starts from
type Snapshot struct {
	PrizePool               common.Address `json:"prizePool"`
	TwabController          common.Address `json:"twabController"`
	WinningRandomNumber     *big.Int       `json:"winningRandomNumber"`
	LastAwardedDrawID       uint32         `json:"lastAwardedDrawId"`
	LastAwardedDrawClosedAt uint64         `json:"lastAwardedDrawClosedAt"`
	NumTiers                uint8          `json:"numberOfTiers"`
}

// IsCanary reports whether tier is one of the trailing canary tiers
func (s *Snapshot) IsCanary(tier uint8) bool {
	return int(tier) >= int(s.NumTiers)-config.CanaryTierCount
}

// TierParameters is the on-chain configuration of one tier for the last
// awarded draw
type TierParameters struct {
	Tier           uint8    `json:"tier"`
	PrizeCount     uint32   `json:"prizeCount"`
	Odds           *big.Int `json:"odds"`
	AccrualDraws   uint32   `json:"accrualDraws"`
	StartDrawID    uint32   `json:"startDrawId"`
	StartTimestamp uint64   `json:"startTimestamp"`
}

// StartDrawID is the first draw of a tier's accrual period. It never goes
// below the first draw, even when the accrual period is longer than the
// pool's history.
func StartDrawID(lastAwardedDrawID, accrualDraws uint32) uint32 {
	start := int64(lastAwardedDrawID) - int64(accrualDraws) + 1
	if start < config.MinStartDrawID {
		return config.MinStartDrawID
	}
	return uint32(start)
}

// Gateway reads prize pool state through Multicall3
type Gateway struct {
	mc *contract.Multicaller
}

// NewGateway creates a prize pool gateway over mc
func NewGateway(mc *contract.Multicaller) *Gateway {
	return &Gateway{mc: mc}
}

// FetchPoolSnapshot reads the TWAB controller, winning random number, last
// awarded draw and tier count in one batch, then the closing time of the
// last awarded draw.
func (g *Gateway) FetchPoolSnapshot(ctx context.Context, pool common.Address, block *big.Int) (*Snapshot, error) {
	results, err := g.aggregate(ctx, pool, block, []callSpec{
		{method: "twabController"},
		{method: "getWinningRandomNumber"},
		{method: "getLastAwardedDrawId"},
		{method: "numberOfTiers"},
	})
	if err != nil {
		return nil, err
	}

	s := &Snapshot{PrizePool: pool}
	if s.TwabController, err = contract.Value[common.Address](results[0]); err != nil {
		return nil, contract.NewFetchError(pool, "twabController", err)
	}
	if s.WinningRandomNumber, err = contract.Value[*big.Int](results[1]); err != nil {
		return nil, contract.NewFetchError(pool, "getWinningRandomNumber", err)
	}
	lastAwarded, err := contract.Value[*big.Int](results[2])
	if err != nil {
		return nil, contract.NewFetchError(pool, "getLastAwardedDrawId", err)
	}
	s.LastAwardedDrawID = uint32(lastAwarded.Uint64())
	if s.NumTiers, err = contract.Value[uint8](results[3]); err != nil {
		return nil, contract.NewFetchError(pool, "numberOfTiers", err)
	}

	closed, err := g.aggregate(ctx, pool, block, []callSpec{
		{method: "drawClosesAt", args: []interface{}{drawArg(s.LastAwardedDrawID)}},
	})
	if err != nil {
		return nil, err
	}
	closedAt, err := contract.Value[*big.Int](closed[0])
	if err != nil {
		return nil, contract.NewFetchError(pool, "drawClosesAt", err)
	}
	s.LastAwardedDrawClosedAt = closedAt.Uint64()
	return s, nil
}

// FetchTierParameters reads prize count, odds and accrual duration for every
// tier, then the opening time of each tier's start draw. Tiers are returned
// in order 0..numTiers-1. Any failed read fails the whole call.
func (g *Gateway) FetchTierParameters(ctx context.Context, pool common.Address, numTiers uint8, lastAwardedDrawID uint32, block *big.Int) ([]TierParameters, error) {
	if numTiers == 0 {
		return nil, nil
	}

	specs := make([]callSpec, 0, 3*int(numTiers))
	for t := uint8(0); t < numTiers; t++ {
		specs = append(specs,
			callSpec{method: "getTierPrizeCount", args: []interface{}{t}},
			callSpec{method: "getTierOdds", args: []interface{}{t, numTiers}},
			callSpec{method: "getTierAccrualDurationInDraws", args: []interface{}{t}},
		)
	}
	results, err := g.aggregate(ctx, pool, block, specs)
	if err != nil {
		return nil, err
	}

	tiers := make([]TierParameters, numTiers)
	for t := range tiers {
		r := results[3*t : 3*t+3]
		tp := TierParameters{Tier: uint8(t)}
		if tp.PrizeCount, err = contract.Value[uint32](r[0]); err != nil {
			return nil, tierError(pool, "getTierPrizeCount", t, err)
		}
		if tp.Odds, err = contract.Value[*big.Int](r[1]); err != nil {
			return nil, tierError(pool, "getTierOdds", t, err)
		}
		accrual, err := contract.Value[*big.Int](r[2])
		if err != nil {
			return nil, tierError(pool, "getTierAccrualDurationInDraws", t, err)
		}
		tp.AccrualDraws = uint32(accrual.Uint64())
		tp.StartDrawID = StartDrawID(lastAwardedDrawID, tp.AccrualDraws)
		tiers[t] = tp
	}

	specs = specs[:0]
	for _, tp := range tiers {
		specs = append(specs, callSpec{method: "drawOpensAt", args: []interface{}{drawArg(tp.StartDrawID)}})
	}
	results, err = g.aggregate(ctx, pool, block, specs)
	if err != nil {
		return nil, err
	}
	for t := range tiers {
		opensAt, err := contract.Value[*big.Int](results[t])
		if err != nil {
			return nil, tierError(pool, "drawOpensAt", t, err)
		}
		tiers[t].StartTimestamp = opensAt.Uint64()
	}
	return tiers, nil
}

// FetchVaultPortion reads the vault's share of contributions over
// [startDrawID, endDrawID], 1e18 fixed point
func (g *Gateway) FetchVaultPortion(ctx context.Context, pool, vault common.Address, startDrawID, endDrawID uint32, block *big.Int) (*big.Int, error) {
	results, err := g.aggregate(ctx, pool, block, []callSpec{
		{method: "getVaultPortion", args: []interface{}{vault, drawArg(startDrawID), drawArg(endDrawID)}},
	})
	if err != nil {
		return nil, err
	}
	portion, err := contract.Value[*big.Int](results[0])
	if err != nil {
		return nil, contract.NewFetchError(pool, "getVaultPortion", err)
	}
	return portion, nil
}

type callSpec struct {
	method string
	args   []interface{}
}

func (g *Gateway) aggregate(ctx context.Context, pool common.Address, block *big.Int, specs []callSpec) ([]contract.Result, error) {
	calls := make([]contract.Call, len(specs))
	for i, s := range specs {
		call, err := contract.NewCall(pool, contract.PrizePoolABI, s.method, s.args...)
		if err != nil {
			return nil, err
		}
		calls[i] = call
	}
	results, err := g.mc.Aggregate(ctx, calls, block)
	if err != nil {
		return nil, contract.NewFetchError(pool, specs[0].method, err)
	}
	return results, nil
}

// drawArg encodes a draw id for a uint24 parameter
func drawArg(drawID uint32) *big.Int {
	return new(big.Int).SetUint64(uint64(drawID))
}

func tierError(pool common.Address, method string, tier int, err error) error {
	return contract.NewFetchError(pool, fmt.Sprintf("%s(%d)", method, tier), err)
}
