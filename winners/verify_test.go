package winners_test

import (
	"context"
	"math/big"
	"testing"

	"twabWinners/contract"
	"twabWinners/winners"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAgreesWithRun(t *testing.T) {
	f := newFixture()
	engine := winners.NewEngine(f.chain)

	for _, tc := range []struct {
		tier  uint8
		index uint32
		won   bool
	}{
		{tier: 1, index: 2, won: true},
		{tier: 1, index: 0, won: false},
		{tier: 3, index: 4, won: false},
		{tier: 3, index: 5, won: true},
	} {
		v, err := engine.Verify(context.Background(), winners.VerifyRequest{
			PrizePool:  poolAddr,
			Vault:      vault,
			User:       userB,
			Tier:       tc.tier,
			PrizeIndex: tc.index,
		})
		require.NoError(t, err)
		assert.Equal(t, tc.won, v.Check.Won, "tier %d index %d", tc.tier, tc.index)
		assert.Equal(t, uint32(19), v.DrawID)
		assert.Equal(t, totalSupply, v.VaultTotalSupply)
		assert.Equal(t, f.pool.DrawClosesAt(19), v.Window.End)
	}
}

func TestVerifyErrors(t *testing.T) {
	f := newFixture()
	engine := winners.NewEngine(f.chain)

	_, err := engine.Verify(context.Background(), winners.VerifyRequest{PrizePool: poolAddr, Vault: vault, User: userA, Tier: 4})
	require.ErrorContains(t, err, "out of range")

	_, err = engine.Verify(context.Background(), winners.VerifyRequest{PrizePool: poolAddr, Vault: vault, User: userA, Tier: 1, PrizeIndex: 4})
	require.ErrorContains(t, err, "prize index")

	_, err = engine.Verify(context.Background(), winners.VerifyRequest{PrizePool: poolAddr, Vault: vault, User: userD, Tier: 1})
	require.ErrorIs(t, err, contract.ErrCallFailed)
}

func TestDescribeTiers(t *testing.T) {
	f := newFixture()
	f.pool.VaultPortion = big.NewInt(25e16)

	snapshot, tiers, err := winners.NewEngine(f.chain).DescribeTiers(context.Background(), poolAddr, vault, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), snapshot.NumTiers)
	require.Len(t, tiers, 4)
	for i, tier := range tiers {
		assert.Equal(t, uint8(i), tier.Tier)
		assert.Equal(t, big.NewInt(25e16), tier.VaultPortion)
		assert.Equal(t, i >= 2, tier.Canary)
	}
	assert.Equal(t, uint32(4), tiers[1].PrizeCount)
}
