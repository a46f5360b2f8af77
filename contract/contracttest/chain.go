// Package contracttest provides an in-memory node that answers Multicall3
// aggregate3 reads against fake contracts.
package contracttest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"twabWinners/config"
	"twabWinners/contract"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrRevert is returned by handlers to make a call revert
var ErrRevert = errors.New("execution reverted")

// Handler answers one decoded contract call
type Handler func(method string, args []interface{}) ([]interface{}, error)

type registration struct {
	abi     *abi.ABI
	handler Handler
}

// Chain implements contract.Caller
type Chain struct {
	mu        sync.Mutex
	contracts map[common.Address]registration
	calls     map[string]int
	batches   int
	blocks    []*big.Int

	// Err, when set, fails every aggregate3 request
	Err error
}

// NewChain creates an empty chain
func NewChain() *Chain {
	return &Chain{
		contracts: make(map[common.Address]registration),
		calls:     make(map[string]int),
	}
}

// Register installs a fake contract at addr
func (c *Chain) Register(addr common.Address, contractABI *abi.ABI, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = registration{abi: contractABI, handler: h}
}

// Calls returns how many times method was executed
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Batches returns the number of aggregate3 requests served
func (c *Chain) Batches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches
}

// Blocks returns the block numbers requested, in arrival order
func (c *Chain) Blocks() []*big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*big.Int(nil), c.blocks...)
}

// CallContract serves aggregate3 requests sent to the Multicall3 address
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	if msg.To == nil || *msg.To != common.HexToAddress(config.Multicall3Address) {
		return nil, fmt.Errorf("contracttest: only aggregate3 is supported, got call to %v", msg.To)
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("contracttest: short calldata")
	}

	method, err := contract.Multicall3ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[0], new([]contract.Multicall3Call)).(*[]contract.Multicall3Call)

	c.mu.Lock()
	c.batches++
	c.blocks = append(c.blocks, blockNumber)
	c.mu.Unlock()

	results := make([]contract.Multicall3Result, len(calls))
	for i, call := range calls {
		data, err := c.execute(call.Target, call.CallData)
		if err != nil {
			if !call.AllowFailure {
				return nil, err
			}
			results[i] = contract.Multicall3Result{Success: false}
			continue
		}
		results[i] = contract.Multicall3Result{Success: true, ReturnData: data}
	}
	return method.Outputs.Pack(results)
}

func (c *Chain) execute(target common.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	reg, ok := c.contracts[target]
	c.mu.Unlock()
	if !ok || len(data) < 4 {
		return nil, ErrRevert
	}

	method, err := reg.abi.MethodById(data[:4])
	if err != nil {
		return nil, ErrRevert
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls[method.Name]++
	c.mu.Unlock()

	out, err := reg.handler(method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}
