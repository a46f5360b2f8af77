package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"twabWinners/config"
	"twabWinners/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ThrottledCaller paces node reads with a token bucket and stops sending
// them while the node keeps failing.
type ThrottledCaller struct {
	next    Caller
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewThrottledCaller wraps next with a limiter of rps requests per second
func NewThrottledCaller(name string, next Caller, rps float64, burst int) *ThrottledCaller {
	if rps <= 0 {
		rps = config.DefaultRPCRateLimit
	}
	if burst <= 0 {
		burst = config.DefaultRPCRateBurst
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("⚠️  RPC circuit breaker state changed")
		},
		// Cancellation is the caller giving up, not the node failing
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	}

	return &ThrottledCaller{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// CallContract waits for a token and forwards the call through the breaker
func (t *ThrottledCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	metrics.RPCThrottleWait.Observe(time.Since(start).Seconds())

	out, err := t.breaker.Execute(func() (interface{}, error) {
		return t.next.CallContract(ctx, call, blockNumber)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// State reports the breaker state, for health checks
func (t *ThrottledCaller) State() string {
	return t.breaker.State().String()
}
