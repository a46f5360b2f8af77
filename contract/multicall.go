package contract

import (
	"context"
	"fmt"
	"math/big"

	"twabWinners/config"
	"twabWinners/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// Caller is the read-only slice of a node client the gateways need.
// *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call is one contract read packed into an aggregate3 batch
type Call struct {
	Target common.Address
	Method string
	Data   []byte
	abi    *abi.ABI
}

// NewCall packs method and args against contractABI
func NewCall(target common.Address, contractABI *abi.ABI, method string, args ...interface{}) (Call, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return Call{Target: target, Method: method, Data: data, abi: contractABI}, nil
}

// Result is the outcome of one Call
type Result struct {
	Call    Call
	Success bool
	Data    []byte
}

// Err is nil when the call succeeded
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%s: %w", r.Call.Method, ErrCallFailed)
}

// Value unpacks the single return value of a successful call as T.
// uint8/uint32 outputs decode to their Go types, other widths to *big.Int.
func Value[T any](r Result) (T, error) {
	var zero T
	if !r.Success {
		return zero, r.Err()
	}
	out, err := r.Call.abi.Unpack(r.Call.Method, r.Data)
	if err != nil {
		return zero, fmt.Errorf("failed to unpack %s: %w", r.Call.Method, err)
	}
	if len(out) != 1 {
		return zero, fmt.Errorf("%s returned %d values, expected 1", r.Call.Method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T, expected %T", r.Call.Method, out[0], zero)
	}
	return v, nil
}

// Multicall3Call mirrors the Multicall3.Call3 struct
type Multicall3Call struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Multicall3Result mirrors the Multicall3.Result struct
type Multicall3Result struct {
	Success    bool
	ReturnData []byte
}

// Multicaller packs reads into Multicall3 aggregate3 calls
type Multicaller struct {
	caller    Caller
	address   common.Address
	batchSize int
}

// NewMulticaller creates a multicaller sending at most batchSize calldata
// bytes per aggregate3 call. batchSize <= 0 selects the default.
func NewMulticaller(caller Caller, batchSize int) *Multicaller {
	if batchSize <= 0 {
		batchSize = config.DefaultMulticallBatchSize
	}
	return &Multicaller{
		caller:    caller,
		address:   common.HexToAddress(config.Multicall3Address),
		batchSize: batchSize,
	}
}

// Aggregate executes calls at block (nil for latest) and returns one Result
// per call, in order. Reverts are reported per result; an error means a
// whole batch could not be executed.
func (m *Multicaller) Aggregate(ctx context.Context, calls []Call, block *big.Int) ([]Result, error) {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxMulticallInFlight)
	for _, b := range splitBatches(calls, m.batchSize) {
		g.Go(func() error {
			return m.aggregate(gctx, calls[b.start:b.end], results[b.start:b.end], block)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type batch struct {
	start, end int
}

// splitBatches groups consecutive calls so that each group's calldata stays
// within maxBytes. A single oversized call gets a batch of its own.
func splitBatches(calls []Call, maxBytes int) []batch {
	var batches []batch
	start, size := 0, 0
	for i, c := range calls {
		if i > start && size+len(c.Data) > maxBytes {
			batches = append(batches, batch{start: start, end: i})
			start, size = i, 0
		}
		size += len(c.Data)
	}
	if start < len(calls) {
		batches = append(batches, batch{start: start, end: len(calls)})
	}
	return batches
}

func (m *Multicaller) aggregate(ctx context.Context, calls []Call, out []Result, block *big.Int) error {
	packed := make([]Multicall3Call, len(calls))
	for i, c := range calls {
		packed[i] = Multicall3Call{Target: c.Target, AllowFailure: true, CallData: c.Data}
	}

	input, err := Multicall3ABI.Pack("aggregate3", packed)
	if err != nil {
		return fmt.Errorf("failed to pack aggregate3: %w", err)
	}

	to := m.address
	raw, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, block)
	if err != nil {
		return fmt.Errorf("aggregate3 call failed: %w", err)
	}
	metrics.MulticallBatches.Inc()
	metrics.MulticallCalls.Add(float64(len(calls)))

	decoded, err := Multicall3ABI.Unpack("aggregate3", raw)
	if err != nil {
		return fmt.Errorf("failed to unpack aggregate3: %w", err)
	}
	returned := *abi.ConvertType(decoded[0], new([]Multicall3Result)).(*[]Multicall3Result)
	if len(returned) != len(calls) {
		return fmt.Errorf("aggregate3 returned %d results for %d calls", len(returned), len(calls))
	}

	for i, c := range calls {
		out[i] = Result{Call: c, Success: returned[i].Success, Data: returned[i].ReturnData}
		if !returned[i].Success {
			metrics.MulticallFailures.Inc()
		}
	}
	return nil
}
