package prize

import (
	"errors"
	"fmt"
	"math/big"

	"twabWinners/config"
	"twabWinners/twab"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// WinRecord is one winning prize slot
type WinRecord struct {
	User       common.Address `json:"user"`
	Tier       uint8          `json:"tier"`
	PrizeIndex uint32         `json:"prizeIndex"`
}

// TierDraw holds the draw-wide and tier-wide inputs of the win check
type TierDraw struct {
	DrawID              uint32
	Vault               common.Address
	Tier                uint8
	PrizeCount          uint32
	Odds                *big.Int // 1e18 fixed point
	VaultPortion        *big.Int // 1e18 fixed point
	VaultTotalSupply    *big.Int
	WinningRandomNumber *big.Int
}

func (d TierDraw) validate() error {
	switch {
	case d.Odds == nil:
		return errors.New("tier odds not set")
	case d.VaultPortion == nil:
		return errors.New("vault portion not set")
	case d.VaultTotalSupply == nil:
		return errors.New("vault total supply not set")
	case d.WinningRandomNumber == nil:
		return errors.New("winning random number not set")
	}
	return nil
}

// WinningZone is the part of [0, totalSupply) a balance wins with:
// ((balance * vaultPortion) / 1e18) * odds / 1e18, truncating after each step.
func WinningZone(balance, vaultPortion, odds *big.Int) *big.Int {
	zone := new(big.Int).Mul(balance, vaultPortion)
	zone.Quo(zone, config.FixedPointOne)
	zone.Mul(zone, odds)
	return zone.Quo(zone, config.FixedPointOne)
}

// IsWinner reports whether entropy picks a winner. An empty vault has no winners.
func IsWinner(entropy *uint256.Int, balance, totalSupply, vaultPortion, odds *big.Int) (bool, error) {
	if totalSupply.Sign() == 0 {
		return false, nil
	}
	supply, err := toWord(totalSupply)
	if err != nil {
		return false, fmt.Errorf("vault total supply: %w", err)
	}
	draw, err := Uniform(entropy, supply)
	if err != nil {
		return false, err
	}
	return draw.ToBig().Cmp(WinningZone(balance, vaultPortion, odds)) < 0, nil
}

// ComputeWins checks every prize slot of the tier for each user and returns
// the winning ones, ordered by user then prize index.
func ComputeWins(d TierDraw, balances []twab.UserTwab) ([]WinRecord, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.VaultTotalSupply.Sign() == 0 || d.PrizeCount == 0 {
		return nil, nil
	}

	supply, err := toWord(d.VaultTotalSupply)
	if err != nil {
		return nil, fmt.Errorf("vault total supply: %w", err)
	}
	wrn, err := toWord(d.WinningRandomNumber)
	if err != nil {
		return nil, fmt.Errorf("winning random number: %w", err)
	}

	p := newPreimage(d.DrawID, d.Vault, d.Tier, wrn)
	hasher := crypto.NewKeccakState()
	entropy := new(uint256.Int)

	var wins []WinRecord
	for _, b := range balances {
		if b.Twab == nil {
			continue
		}
		zone := WinningZone(b.Twab, d.VaultPortion, d.Odds)
		if zone.Sign() <= 0 {
			continue
		}
		// A zone past 2^256 is above every draw
		zoneWord, everySlot := uint256.FromBig(zone)

		p.SetUser(b.User)
		for i := uint32(0); i < d.PrizeCount; i++ {
			p.SetPrizeIndex(i)
			h := crypto.HashData(hasher, p[:])
			entropy.SetBytes32(h[:])

			draw, err := Uniform(entropy, supply)
			if err != nil {
				return nil, err
			}
			if everySlot || draw.Lt(zoneWord) {
				wins = append(wins, WinRecord{User: b.User, Tier: d.Tier, PrizeIndex: i})
			}
		}
	}
	return wins, nil
}
