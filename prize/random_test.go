package prize

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testVault = common.HexToAddress("0x7b0949204e7Da1B0beD6d4CCb68497F51621b574")
	testUser  = common.HexToAddress("0xF80A46eeD4A3a6C3d4bF9a2C5D9F9cF6c8214475")
	testWRN   = mustBig("26530114669438130968955460922440721463514287408443924397818115294892275447627")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		panic("bad big int " + s)
	}
	return v
}

func mustType(t *testing.T, name string) abi.Type {
	ty, err := abi.NewType(name, "", nil)
	require.NoError(t, err)
	return ty
}

func TestPseudoRandomNumberKnownVector(t *testing.T) {
	entropy, err := PseudoRandomNumber(19, testVault, testUser, 9, 0, testWRN)
	require.NoError(t, err)
	assert.Equal(t, "0x153f2073e3db813009872054d33ad29cb662045dbf210a6d03090987ef9432ee", entropy.Hex())
	assert.Equal(t, "9610105165602785568786361410580863429994118051948413887814893537798319780590", entropy.Dec())
}

func TestPseudoRandomNumberMatchesABIEncoding(t *testing.T) {
	args := abi.Arguments{
		{Type: mustType(t, "uint24")},
		{Type: mustType(t, "address")},
		{Type: mustType(t, "address")},
		{Type: mustType(t, "uint8")},
		{Type: mustType(t, "uint32")},
		{Type: mustType(t, "uint256")},
	}

	cases := []struct {
		drawID     uint32
		tier       uint8
		prizeIndex uint32
	}{
		{1, 0, 0},
		{19, 9, 0},
		{19, 3, 15},
		{1<<24 - 1, 255, 1<<32 - 1},
	}
	for _, tc := range cases {
		packed, err := args.Pack(big.NewInt(int64(tc.drawID)), testVault, testUser, tc.tier, tc.prizeIndex, testWRN)
		require.NoError(t, err)
		require.Len(t, packed, preimageSize)

		got, err := PseudoRandomNumber(tc.drawID, testVault, testUser, tc.tier, tc.prizeIndex, testWRN)
		require.NoError(t, err)
		want := crypto.Keccak256Hash(packed)
		assert.Equal(t, want.Bytes(), got.PaddedBytes(32), "draw %d tier %d index %d", tc.drawID, tc.tier, tc.prizeIndex)
	}
}

func TestPseudoRandomNumberRejectsBadRandomNumber(t *testing.T) {
	_, err := PseudoRandomNumber(1, testVault, testUser, 0, 0, nil)
	require.Error(t, err)

	_, err = PseudoRandomNumber(1, testVault, testUser, 0, 0, big.NewInt(-1))
	require.ErrorContains(t, err, "negative")

	_, err = PseudoRandomNumber(1, testVault, testUser, 0, 0, new(big.Int).Lsh(big.NewInt(1), 256))
	require.ErrorContains(t, err, "overflows")
}

func TestUniform(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	halfPlusOne := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	halfPlusOne.AddUint64(halfPlusOne, 1)

	cases := []struct {
		name    string
		entropy *uint256.Int
		bound   *uint256.Int
		want    string
	}{
		{"bound of one", uint256.NewInt(0), uint256.NewInt(1), "0"},
		{"max modulo max", max, max, "0"},
		{"no rehash needed", uint256.NewInt(5), max, "5"},
		// min is 2^255 - 1 here, so zero is re-hashed four times
		{"rehash below min", uint256.NewInt(0), halfPlusOne, "25788440537618343400620519648651346119524723250536322652702011525983496303928"},
		{"power of two has no bias", uint256.NewInt(1000), uint256.NewInt(256), "232"},
		{"known draw", mustWord("9610105165602785568786361410580863429994118051948413887814893537798319780590"), uint256.NewInt(11734719059822959415), "11535010554058015630"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entropy := tc.entropy.Clone()
			got, err := Uniform(tc.entropy, tc.bound)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Dec())
			assert.Equal(t, entropy, tc.entropy, "entropy must not be modified")
		})
	}
}

func TestUniformZeroBound(t *testing.T) {
	_, err := Uniform(uint256.NewInt(7), uint256.NewInt(0))
	require.ErrorIs(t, err, ErrZeroUpperBound)
}

func TestUniformStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomWord := func() *uint256.Int {
		var b [32]byte
		rng.Read(b[:])
		return new(uint256.Int).SetBytes32(b[:])
	}

	bounds := []*uint256.Int{
		uint256.NewInt(1),
		uint256.NewInt(2),
		uint256.NewInt(3),
		uint256.NewInt(1e18),
		new(uint256.Int).Sub(new(uint256.Int).SetAllOne(), uint256.NewInt(1)),
		new(uint256.Int).SetAllOne(),
	}
	for i := 0; i < 20; i++ {
		bounds = append(bounds, randomWord())
	}

	for _, bound := range bounds {
		if bound.IsZero() {
			continue
		}
		for i := 0; i < 25; i++ {
			entropy := randomWord()
			got, err := Uniform(entropy, bound)
			require.NoError(t, err)
			require.True(t, got.Lt(bound), "uniform(%s, %s) = %s", entropy.Dec(), bound.Dec(), got.Dec())

			// Agrees with the plain big.Int formulation
			assert.Equal(t, referenceUniform(entropy.ToBig(), bound.ToBig()).String(), got.ToBig().String())
		}
	}
}

func referenceUniform(entropy, bound *big.Int) *big.Int {
	space := new(big.Int).Lsh(big.NewInt(1), 256)
	min := new(big.Int).Sub(space, bound)
	min.Mod(min, bound)
	for entropy.Cmp(min) < 0 {
		entropy = new(big.Int).SetBytes(crypto.Keccak256(common.BigToHash(entropy).Bytes()))
	}
	return new(big.Int).Mod(entropy, bound)
}

func mustWord(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}
