package prize

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PrizeCheck is the full derivation of a single prize slot outcome
type PrizeCheck struct {
	User        common.Address `json:"user"`
	Tier        uint8          `json:"tier"`
	PrizeIndex  uint32         `json:"prizeIndex"`
	Balance     *big.Int       `json:"balance"`
	Entropy     *big.Int       `json:"entropy"`
	Draw        *big.Int       `json:"draw,omitempty"`
	WinningZone *big.Int       `json:"winningZone"`
	Won         bool           `json:"won"`
}

// VerifyPrize recomputes one prize slot and returns every intermediate
// value, so an outcome can be checked by hand against the prize pool.
// Given the same inputs it always returns the same result.
func VerifyPrize(d TierDraw, user common.Address, balance *big.Int, prizeIndex uint32) (*PrizeCheck, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if prizeIndex >= d.PrizeCount {
		return nil, fmt.Errorf("prize index %d out of range for tier %d with %d prizes", prizeIndex, d.Tier, d.PrizeCount)
	}

	entropy, err := PseudoRandomNumber(d.DrawID, d.Vault, user, d.Tier, prizeIndex, d.WinningRandomNumber)
	if err != nil {
		return nil, err
	}

	check := &PrizeCheck{
		User:        user,
		Tier:        d.Tier,
		PrizeIndex:  prizeIndex,
		Balance:     new(big.Int).Set(balance),
		Entropy:     entropy.ToBig(),
		WinningZone: WinningZone(balance, d.VaultPortion, d.Odds),
	}
	if d.VaultTotalSupply.Sign() == 0 {
		return check, nil
	}

	supply, err := toWord(d.VaultTotalSupply)
	if err != nil {
		return nil, fmt.Errorf("vault total supply: %w", err)
	}
	draw, err := Uniform(entropy, supply)
	if err != nil {
		return nil, err
	}
	check.Draw = draw.ToBig()
	check.Won = check.Draw.Cmp(check.WinningZone) < 0
	return check, nil
}
