package contracttest

import (
	"fmt"
	"math/big"
	"sync"

	"twabWinners/contract"

	"github.com/ethereum/go-ethereum/common"
)

// Tier is the on-chain configuration of one fake tier
type Tier struct {
	PrizeCount   uint32
	Odds         *big.Int
	AccrualDraws uint32
}

// PrizePool is a fake prize pool contract
type PrizePool struct {
	TwabController      common.Address
	WinningRandomNumber *big.Int
	LastAwardedDrawID   uint32
	Tiers               []Tier

	// Default vault portion, overridden per vault by VaultPortions
	VaultPortion  *big.Int
	VaultPortions map[common.Address]*big.Int

	// Draw d opens at FirstDrawOpensAt + (d-1)*DrawPeriod
	FirstDrawOpensAt uint64
	DrawPeriod       uint64

	// Methods listed here revert
	Revert map[string]bool
}

// DrawOpensAt returns the fake opening timestamp of drawID
func (p *PrizePool) DrawOpensAt(drawID uint32) uint64 {
	return p.FirstDrawOpensAt + uint64(drawID-1)*p.DrawPeriod
}

// DrawClosesAt returns the fake closing timestamp of drawID
func (p *PrizePool) DrawClosesAt(drawID uint32) uint64 {
	return p.DrawOpensAt(drawID) + p.DrawPeriod
}

// Install registers the pool at addr on chain
func (p *PrizePool) Install(chain *Chain, addr common.Address) {
	chain.Register(addr, contract.PrizePoolABI, p.Handle)
}

// Handle answers prize pool reads
func (p *PrizePool) Handle(method string, args []interface{}) ([]interface{}, error) {
	if p.Revert[method] {
		return nil, ErrRevert
	}

	switch method {
	case "twabController":
		return []interface{}{p.TwabController}, nil
	case "getWinningRandomNumber":
		return []interface{}{p.WinningRandomNumber}, nil
	case "getLastAwardedDrawId":
		return []interface{}{big.NewInt(int64(p.LastAwardedDrawID))}, nil
	case "numberOfTiers":
		return []interface{}{uint8(len(p.Tiers))}, nil
	case "drawOpensAt":
		drawID := uint32(args[0].(*big.Int).Uint64())
		return []interface{}{new(big.Int).SetUint64(p.DrawOpensAt(drawID))}, nil
	case "drawClosesAt":
		drawID := uint32(args[0].(*big.Int).Uint64())
		return []interface{}{new(big.Int).SetUint64(p.DrawClosesAt(drawID))}, nil
	case "getTierPrizeCount":
		tier, err := p.tier(args[0].(uint8))
		if err != nil {
			return nil, err
		}
		return []interface{}{tier.PrizeCount}, nil
	case "getTierOdds":
		tier, err := p.tier(args[0].(uint8))
		if err != nil {
			return nil, err
		}
		return []interface{}{tier.Odds}, nil
	case "getTierAccrualDurationInDraws":
		tier, err := p.tier(args[0].(uint8))
		if err != nil {
			return nil, err
		}
		return []interface{}{big.NewInt(int64(tier.AccrualDraws))}, nil
	case "getVaultPortion":
		vault := args[0].(common.Address)
		if portion, ok := p.VaultPortions[vault]; ok {
			return []interface{}{portion}, nil
		}
		return []interface{}{p.VaultPortion}, nil
	}
	return nil, fmt.Errorf("contracttest: prize pool method %s not implemented", method)
}

func (p *PrizePool) tier(t uint8) (Tier, error) {
	if int(t) >= len(p.Tiers) {
		return Tier{}, ErrRevert
	}
	return p.Tiers[t], nil
}

// Window is a TWAB query range
type Window struct {
	Start, End uint64
}

// TwabController is a fake TWAB controller. Balances are the same for every
// window.
type TwabController struct {
	TotalSupply *big.Int
	Balances    map[common.Address]*big.Int

	// Users whose getTwabBetween reverts
	RevertUsers map[common.Address]bool
	// Makes getTotalSupplyTwabBetween revert
	RevertTotalSupply bool

	mu      sync.Mutex
	windows map[Window]int
}

// Install registers the controller at addr on chain
func (tc *TwabController) Install(chain *Chain, addr common.Address) {
	chain.Register(addr, contract.TwabControllerABI, tc.Handle)
}

// TotalSupplyQueries returns how often the vault total supply was read for w
func (tc *TwabController) TotalSupplyQueries(w Window) int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.windows[w]
}

// Handle answers TWAB controller reads
func (tc *TwabController) Handle(method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "getTotalSupplyTwabBetween":
		w := Window{Start: args[1].(*big.Int).Uint64(), End: args[2].(*big.Int).Uint64()}
		tc.mu.Lock()
		if tc.windows == nil {
			tc.windows = make(map[Window]int)
		}
		tc.windows[w]++
		tc.mu.Unlock()

		if tc.RevertTotalSupply {
			return nil, ErrRevert
		}
		return []interface{}{tc.TotalSupply}, nil
	case "getTwabBetween":
		user := args[1].(common.Address)
		if tc.RevertUsers[user] {
			return nil, ErrRevert
		}
		balance, ok := tc.Balances[user]
		if !ok {
			balance = new(big.Int)
		}
		return []interface{}{balance}, nil
	}
	return nil, fmt.Errorf("contracttest: twab controller method %s not implemented", method)
}
