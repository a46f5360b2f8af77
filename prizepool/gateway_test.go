package prizepool_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"twabWinners/contract"
	"twabWinners/contract/contracttest"
	"twabWinners/prizepool"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr   = common.HexToAddress("0xF35fE10ffd0a9672d0095c435fd8767A7fe29B55")
	controller = common.HexToAddress("0x499a9F249ec4c8Ea190bebbFD96f9A83bf4F6E52")
	vault      = common.HexToAddress("0x7b0949204e7Da1B0beD6d4CCb68497F51621b574")
	otherVault = common.HexToAddress("0xcE4a8E5cFe1e4e2a1b8E7F3b1bd4fE3e2Dc5b9e1")
)

func fakePool() *contracttest.PrizePool {
	return &contracttest.PrizePool{
		TwabController:      controller,
		WinningRandomNumber: big.NewInt(123456789),
		LastAwardedDrawID:   19,
		Tiers: []contracttest.Tier{
			{PrizeCount: 1, Odds: big.NewInt(1e17), AccrualDraws: 30},
			{PrizeCount: 4, Odds: big.NewInt(5e17), AccrualDraws: 4},
			{PrizeCount: 16, Odds: big.NewInt(1e18), AccrualDraws: 1},
		},
		VaultPortion:     big.NewInt(25e16),
		VaultPortions:    map[common.Address]*big.Int{otherVault: big.NewInt(1e18)},
		FirstDrawOpensAt: 1_700_000_000,
		DrawPeriod:       86_400,
		Revert:           map[string]bool{},
	}
}

func newGateway(pool *contracttest.PrizePool) (*prizepool.Gateway, *contracttest.Chain) {
	chain := contracttest.NewChain()
	pool.Install(chain, poolAddr)
	return prizepool.NewGateway(contract.NewMulticaller(chain, 0)), chain
}

func TestStartDrawID(t *testing.T) {
	cases := []struct {
		last, accrual, want uint32
	}{
		{19, 1, 19},
		{19, 4, 16},
		{19, 19, 1},
		{19, 30, 1},
		{1, 0, 2},
		{0, 5, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, prizepool.StartDrawID(tc.last, tc.accrual), "last %d accrual %d", tc.last, tc.accrual)
	}
}

func TestFetchPoolSnapshot(t *testing.T) {
	pool := fakePool()
	gw, chain := newGateway(pool)

	s, err := gw.FetchPoolSnapshot(context.Background(), poolAddr, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, &prizepool.Snapshot{
		PrizePool:               poolAddr,
		TwabController:          controller,
		WinningRandomNumber:     big.NewInt(123456789),
		LastAwardedDrawID:       19,
		LastAwardedDrawClosedAt: pool.DrawClosesAt(19),
		NumTiers:                3,
	}, s)
	assert.Equal(t, 2, chain.Batches())
	for _, b := range chain.Blocks() {
		assert.Equal(t, big.NewInt(100), b)
	}
}

func TestSnapshotIsCanary(t *testing.T) {
	s := &prizepool.Snapshot{NumTiers: 5}
	assert.False(t, s.IsCanary(0))
	assert.False(t, s.IsCanary(2))
	assert.True(t, s.IsCanary(3))
	assert.True(t, s.IsCanary(4))
}

func TestFetchPoolSnapshotFailures(t *testing.T) {
	for _, method := range []string{"twabController", "getWinningRandomNumber", "getLastAwardedDrawId", "numberOfTiers", "drawClosesAt"} {
		t.Run(method, func(t *testing.T) {
			pool := fakePool()
			pool.Revert[method] = true
			gw, _ := newGateway(pool)

			_, err := gw.FetchPoolSnapshot(context.Background(), poolAddr, nil)
			var fetchErr *contract.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, poolAddr, fetchErr.Address)
			assert.Equal(t, method, fetchErr.Field)
			assert.ErrorIs(t, err, contract.ErrCallFailed)
		})
	}

	t.Run("transport", func(t *testing.T) {
		gw, chain := newGateway(fakePool())
		chain.Err = errors.New("dial tcp: i/o timeout")
		_, err := gw.FetchPoolSnapshot(context.Background(), poolAddr, nil)
		require.ErrorContains(t, err, "i/o timeout")
	})
}

func TestFetchTierParameters(t *testing.T) {
	pool := fakePool()
	gw, chain := newGateway(pool)

	tiers, err := gw.FetchTierParameters(context.Background(), poolAddr, 3, 19, nil)
	require.NoError(t, err)
	require.Len(t, tiers, 3)

	assert.Equal(t, prizepool.TierParameters{
		Tier: 0, PrizeCount: 1, Odds: big.NewInt(1e17), AccrualDraws: 30,
		StartDrawID: 1, StartTimestamp: pool.DrawOpensAt(1),
	}, tiers[0])
	assert.Equal(t, prizepool.TierParameters{
		Tier: 1, PrizeCount: 4, Odds: big.NewInt(5e17), AccrualDraws: 4,
		StartDrawID: 16, StartTimestamp: pool.DrawOpensAt(16),
	}, tiers[1])
	assert.Equal(t, prizepool.TierParameters{
		Tier: 2, PrizeCount: 16, Odds: big.NewInt(1e18), AccrualDraws: 1,
		StartDrawID: 19, StartTimestamp: pool.DrawOpensAt(19),
	}, tiers[2])

	assert.Equal(t, 2, chain.Batches())
	assert.Equal(t, 3, chain.Calls("getTierOdds"))
	assert.Equal(t, 3, chain.Calls("drawOpensAt"))
}

func TestFetchTierParametersFailures(t *testing.T) {
	for _, method := range []string{"getTierPrizeCount", "getTierOdds", "getTierAccrualDurationInDraws", "drawOpensAt"} {
		t.Run(method, func(t *testing.T) {
			pool := fakePool()
			pool.Revert[method] = true
			gw, _ := newGateway(pool)

			tiers, err := gw.FetchTierParameters(context.Background(), poolAddr, 3, 19, nil)
			assert.Nil(t, tiers)
			var fetchErr *contract.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, method+"(0)", fetchErr.Field)
		})
	}

	t.Run("tier out of range", func(t *testing.T) {
		gw, _ := newGateway(fakePool())
		_, err := gw.FetchTierParameters(context.Background(), poolAddr, 4, 19, nil)
		var fetchErr *contract.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "getTierPrizeCount(3)", fetchErr.Field)
	})
}

func TestFetchVaultPortion(t *testing.T) {
	gw, _ := newGateway(fakePool())

	portion, err := gw.FetchVaultPortion(context.Background(), poolAddr, vault, 16, 19, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(25e16), portion)

	portion, err = gw.FetchVaultPortion(context.Background(), poolAddr, otherVault, 16, 19, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1e18), portion)
}
