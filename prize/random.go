package prize

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrZeroUpperBound is returned by Uniform when asked for a value in [0, 0)
var ErrZeroUpperBound = errors.New("uniform: upper bound must be greater than zero")

// preimageSize is abi.encode(uint24, address, address, uint8, uint32, uint256)
const preimageSize = 6 * 32

// preimage is the hash input for one (user, tier, prize index) pick.
// Words that are fixed for a tier are written once; SetUser and SetPrizeIndex
// overwrite only their own word.
type preimage [preimageSize]byte

func newPreimage(drawID uint32, vault common.Address, tier uint8, winningRandomNumber *uint256.Int) *preimage {
	var p preimage
	binary.BigEndian.PutUint32(p[28:32], drawID)
	copy(p[44:64], vault.Bytes())
	p[127] = tier
	wrn := winningRandomNumber.Bytes32()
	copy(p[160:192], wrn[:])
	return &p
}

func (p *preimage) SetUser(user common.Address) {
	copy(p[76:96], user.Bytes())
}

func (p *preimage) SetPrizeIndex(prizeIndex uint32) {
	binary.BigEndian.PutUint32(p[156:160], prizeIndex)
}

// PseudoRandomNumber derives the per-pick entropy the prize pool uses:
// keccak256(abi.encode(drawId, vault, user, tier, prizeIndex, winningRandomNumber)).
func PseudoRandomNumber(drawID uint32, vault, user common.Address, tier uint8, prizeIndex uint32, winningRandomNumber *big.Int) (*uint256.Int, error) {
	wrn, err := toWord(winningRandomNumber)
	if err != nil {
		return nil, fmt.Errorf("winning random number: %w", err)
	}
	p := newPreimage(drawID, vault, tier, wrn)
	p.SetUser(user)
	p.SetPrizeIndex(prizeIndex)
	return new(uint256.Int).SetBytes32(crypto.Keccak256(p[:])), nil
}

// Uniform maps entropy onto [0, upperBound) without modulo bias. Values below
// 2^256 mod upperBound are re-hashed until one lands in the unbiased range.
func Uniform(entropy, upperBound *uint256.Int) (*uint256.Int, error) {
	if upperBound.IsZero() {
		return nil, ErrZeroUpperBound
	}

	// (type(uint256).max - upperBound + 1) % upperBound
	min := new(uint256.Int).SetAllOne()
	min.Sub(min, upperBound)
	min.AddUint64(min, 1)
	min.Mod(min, upperBound)

	random := entropy.Clone()
	for random.Lt(min) {
		word := random.Bytes32()
		random.SetBytes32(crypto.Keccak256(word[:]))
	}
	return random.Mod(random, upperBound), nil
}

func toWord(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, errors.New("value is nil")
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("value %s is negative", v)
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %s overflows 256 bits", v)
	}
	return word, nil
}
