package twab

import (
	"context"
	"fmt"
	"math/big"

	"twabWinners/contract"
	"twabWinners/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const (
	totalSupplyMethod = "getTotalSupplyTwabBetween"
	userTwabMethod    = "getTwabBetween"
)

// Window is a TWAB averaging period in unix seconds
type Window struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

func (w Window) String() string {
	return fmt.Sprintf("%d-%d", w.Start, w.End)
}

// UserTwab is one user's average balance over a window
type UserTwab struct {
	User common.Address `json:"user"`
	Twab *big.Int       `json:"twab"`
}

// Balances is everything read for one window
type Balances struct {
	VaultTotalSupply *big.Int
	Users            []UserTwab
}

// Gateway reads average balances from a TWAB controller
type Gateway struct {
	mc  *contract.Multicaller
	log zerolog.Logger
}

// NewGateway creates a TWAB gateway over mc
func NewGateway(mc *contract.Multicaller, log zerolog.Logger) *Gateway {
	return &Gateway{mc: mc, log: log}
}

// FetchTwabs reads the vault's total supply TWAB and every user's TWAB for w.
// The total supply is required. A user whose read fails is left out of the
// result, since their balance is unknown rather than zero.
func (g *Gateway) FetchTwabs(ctx context.Context, controller, vault common.Address, users []common.Address, w Window, block *big.Int) (*Balances, error) {
	start, end := new(big.Int).SetUint64(w.Start), new(big.Int).SetUint64(w.End)

	calls := make([]contract.Call, 0, len(users)+1)
	call, err := contract.NewCall(controller, contract.TwabControllerABI, totalSupplyMethod, vault, start, end)
	if err != nil {
		return nil, err
	}
	calls = append(calls, call)
	for _, user := range users {
		call, err := contract.NewCall(controller, contract.TwabControllerABI, userTwabMethod, vault, user, start, end)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}

	metrics.TwabWindowFetches.Inc()
	results, err := g.mc.Aggregate(ctx, calls, block)
	if err != nil {
		return nil, contract.NewFetchError(vault, totalSupplyMethod, err)
	}

	totalSupply, err := contract.Value[*big.Int](results[0])
	if err != nil {
		return nil, contract.NewFetchError(vault, totalSupplyMethod, err)
	}

	balances := &Balances{
		VaultTotalSupply: totalSupply,
		Users:            make([]UserTwab, 0, len(users)),
	}
	for i, r := range results[1:] {
		twab, err := contract.Value[*big.Int](r)
		if err != nil {
			metrics.DroppedUsers.Inc()
			g.log.Debug().Err(err).Str("user", users[i].Hex()).Stringer("window", w).Msg("dropping user with unreadable twab")
			continue
		}
		balances.Users = append(balances.Users, UserTwab{User: users[i], Twab: twab})
	}

	g.log.Debug().
		Stringer("window", w).
		Str("totalSupply", totalSupply.String()).
		Int("users", len(balances.Users)).
		Int("dropped", len(users)-len(balances.Users)).
		Msg("fetched twab window")
	return balances, nil
}
