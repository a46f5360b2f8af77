package winners

import (
	"context"
	"fmt"
	"math/big"

	"twabWinners/contract"
	"twabWinners/prize"
	"twabWinners/prizepool"
	"twabWinners/twab"

	"github.com/ethereum/go-ethereum/common"
)

// VerifyRequest names a single prize slot of the last awarded draw
type VerifyRequest struct {
	PrizePool   common.Address
	Vault       common.Address
	User        common.Address
	Tier        uint8
	PrizeIndex  uint32
	BlockNumber *big.Int
}

// Verification is a prize slot outcome with the on-chain inputs it was
// derived from
type Verification struct {
	DrawID           uint32                   `json:"drawId"`
	TierParameters   prizepool.TierParameters `json:"tierParameters"`
	Window           twab.Window              `json:"window"`
	VaultPortion     *big.Int                 `json:"vaultPortion"`
	VaultTotalSupply *big.Int                 `json:"vaultTotalSupply"`
	Check            *prize.PrizeCheck        `json:"check"`
}

// TierSummary is one tier's parameters with the vault's portion over its
// accrual period
type TierSummary struct {
	prizepool.TierParameters
	VaultPortion *big.Int `json:"vaultPortion"`
	Canary       bool     `json:"canary"`
}

// Verify recomputes one prize slot from live chain data
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*Verification, error) {
	mc := contract.NewMulticaller(e.caller, e.batchSize)
	pools := prizepool.NewGateway(mc)

	snapshot, err := pools.FetchPoolSnapshot(ctx, req.PrizePool, req.BlockNumber)
	if err != nil {
		return nil, err
	}
	if req.Tier >= snapshot.NumTiers {
		return nil, fmt.Errorf("tier %d out of range, pool has %d tiers", req.Tier, snapshot.NumTiers)
	}
	tiers, err := pools.FetchTierParameters(ctx, req.PrizePool, snapshot.NumTiers, snapshot.LastAwardedDrawID, req.BlockNumber)
	if err != nil {
		return nil, err
	}
	tp := tiers[req.Tier]

	portion, err := pools.FetchVaultPortion(ctx, req.PrizePool, req.Vault, tp.StartDrawID, snapshot.LastAwardedDrawID, req.BlockNumber)
	if err != nil {
		return nil, err
	}

	window := twab.Window{Start: tp.StartTimestamp, End: snapshot.LastAwardedDrawClosedAt}
	balances, err := twab.NewGateway(mc, e.log).FetchTwabs(ctx, snapshot.TwabController, req.Vault, []common.Address{req.User}, window, req.BlockNumber)
	if err != nil {
		return nil, err
	}
	if len(balances.Users) == 0 {
		return nil, contract.NewFetchError(snapshot.TwabController, "getTwabBetween", contract.ErrCallFailed)
	}

	check, err := prize.VerifyPrize(prize.TierDraw{
		DrawID:              snapshot.LastAwardedDrawID,
		Vault:               req.Vault,
		Tier:                tp.Tier,
		PrizeCount:          tp.PrizeCount,
		Odds:                tp.Odds,
		VaultPortion:        portion,
		VaultTotalSupply:    balances.VaultTotalSupply,
		WinningRandomNumber: snapshot.WinningRandomNumber,
	}, req.User, balances.Users[0].Twab, req.PrizeIndex)
	if err != nil {
		return nil, err
	}

	return &Verification{
		DrawID:           snapshot.LastAwardedDrawID,
		TierParameters:   tp,
		Window:           window,
		VaultPortion:     portion,
		VaultTotalSupply: balances.VaultTotalSupply,
		Check:            check,
	}, nil
}

// DescribeTiers reads every tier of the last awarded draw with the vault's
// portion for it
func (e *Engine) DescribeTiers(ctx context.Context, pool, vault common.Address, block *big.Int) (*prizepool.Snapshot, []TierSummary, error) {
	mc := contract.NewMulticaller(e.caller, e.batchSize)
	pools := prizepool.NewGateway(mc)

	snapshot, err := pools.FetchPoolSnapshot(ctx, pool, block)
	if err != nil {
		return nil, nil, err
	}
	tiers, err := pools.FetchTierParameters(ctx, pool, snapshot.NumTiers, snapshot.LastAwardedDrawID, block)
	if err != nil {
		return nil, nil, err
	}

	summaries := make([]TierSummary, len(tiers))
	for i, tp := range tiers {
		portion, err := pools.FetchVaultPortion(ctx, pool, vault, tp.StartDrawID, snapshot.LastAwardedDrawID, block)
		if err != nil {
			return nil, nil, err
		}
		summaries[i] = TierSummary{TierParameters: tp, VaultPortion: portion, Canary: snapshot.IsCanary(tp.Tier)}
	}
	return snapshot, summaries, nil
}
