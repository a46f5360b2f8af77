package contract

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFiles embed.FS

// ABIFile structure
type ABIFile struct {
	ABI json.RawMessage `json:"abi"`
}

var (
	// PrizePoolABI covers the prize pool read methods used for draw and tier data
	PrizePoolABI = mustLoadABI("PrizePool")

	// TwabControllerABI covers the time-weighted average balance reads
	TwabControllerABI = mustLoadABI("TwabController")

	// Multicall3ABI covers aggregate3
	Multicall3ABI = mustLoadABI("Multicall3")
)

// LoadABI parses an embedded ABI file by contract name
func LoadABI(name string) (abi.ABI, error) {
	abiBytes, err := abiFiles.ReadFile("abi/" + name + ".json")
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read ABI file: %w", err)
	}

	var abiFile ABIFile
	if err := json.Unmarshal(abiBytes, &abiFile); err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI JSON: %w", err)
	}

	contractABI, err := abi.JSON(strings.NewReader(string(abiFile.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return contractABI, nil
}

func mustLoadABI(name string) *abi.ABI {
	parsed, err := LoadABI(name)
	if err != nil {
		panic(fmt.Sprintf("contract: %s: %v", name, err))
	}
	return &parsed
}
