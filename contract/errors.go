package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain id")
	ErrChainMismatch    = errors.New("rpc endpoint reports a different chain id")
	ErrCallFailed       = errors.New("contract call reverted")
)

// FetchError reports a required read that could not be completed.
// Address and Field identify the contract and the value being read.
type FetchError struct {
	Address common.Address
	Field   string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not query %s on %s: %v", e.Field, e.Address.Hex(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with the contract address and field being read
func NewFetchError(address common.Address, field string, err error) *FetchError {
	return &FetchError{Address: address, Field: field, Err: err}
}
