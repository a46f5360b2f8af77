package contract_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"twabWinners/config"
	"twabWinners/contract"

	"github.com/ethereum/go-ethereum"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCaller struct {
	calls int
	err   error
}

func (c *countingCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []byte{0x01}, nil
}

func TestThrottledCallerForwards(t *testing.T) {
	next := &countingCaller{}
	caller := contract.NewThrottledCaller("test", next, 1000, 10)

	out, err := caller.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "closed", caller.State())
}

func TestThrottledCallerOpensAfterFailures(t *testing.T) {
	next := &countingCaller{err: errors.New("connection refused")}
	caller := contract.NewThrottledCaller("test", next, 1000, 10)

	for i := 0; i < config.BreakerConsecutiveFailures; i++ {
		_, err := caller.CallContract(context.Background(), ethereum.CallMsg{}, nil)
		require.ErrorContains(t, err, "connection refused")
	}
	assert.Equal(t, "open", caller.State())

	_, err := caller.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, config.BreakerConsecutiveFailures, next.calls)
}

func TestThrottledCallerCancellationKeepsBreakerClosed(t *testing.T) {
	next := &countingCaller{err: context.Canceled}
	caller := contract.NewThrottledCaller("test", next, 1000, 10)

	for i := 0; i < config.BreakerConsecutiveFailures+1; i++ {
		_, err := caller.CallContract(context.Background(), ethereum.CallMsg{}, nil)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", caller.State())
}

func TestThrottledCallerCancelledWait(t *testing.T) {
	caller := contract.NewThrottledCaller("test", &countingCaller{}, 1000, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := caller.CallContract(ctx, ethereum.CallMsg{}, nil)
	assert.ErrorContains(t, err, "rate limiter")
}
