package config

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

/* =========================
   NETWORK CONFIGURATION
========================= */

// Network describes a chain the service can read prize pools from
type Network struct {
	ChainID int64
	Name    string
}

// SupportedNetworks maps chain id to network name
var SupportedNetworks = map[int64]Network{
	1:        {ChainID: 1, Name: "mainnet"},
	10:       {ChainID: 10, Name: "optimism"},
	8453:     {ChainID: 8453, Name: "base"},
	42161:    {ChainID: 42161, Name: "arbitrum"},
	11155111: {ChainID: 11155111, Name: "sepolia"},
	11155420: {ChainID: 11155420, Name: "optimism-sepolia"},
	84532:    {ChainID: 84532, Name: "base-sepolia"},
	421614:   {ChainID: 421614, Name: "arbitrum-sepolia"},
}

const (
	// Multicall3 is deployed at the same address on every supported network
	Multicall3Address = "0xcA11bde05977b3631167028862bE2a173976CA11"

	// Maximum calldata bytes packed into one aggregate3 call
	DefaultMulticallBatchSize = 1024

	// Multicall batches in flight per Aggregate call
	MaxMulticallInFlight = 4

	DialTimeout = 15 * time.Second
)

/* =========================
   PRIZE POOL PROTOCOL
========================= */

const (
	// The last two tiers are canaries
	CanaryTierCount = 2

	// Lowest draw id a tier's accrual window may open at
	MinStartDrawID = 1

	// Largest draw id representable as uint24 on-chain
	MaxDrawID = 1<<24 - 1
)

var (
	// Fixed-point scale used for odds and vault portions
	FixedPointOne = big.NewInt(1e18)
)

/* =========================
   COMPUTATION LIMITS
========================= */

const (
	// Per-chunk budget of users x prize slots
	ChunkWorkBudget = 1_000_000

	// Upper bound on users per chunk
	MaxChunkSize = 10_000

	// Tier tasks running at once
	MaxTierConcurrency = 8
)

/* =========================
   RPC THROTTLING
========================= */

const (
	DefaultRPCRateLimit = 25.0 // requests per second
	DefaultRPCRateBurst = 10

	BreakerMaxRequests         = 1
	BreakerInterval            = 60 * time.Second
	BreakerTimeout             = 30 * time.Second
	BreakerConsecutiveFailures = 5
)

/* =========================
   SERVER CONFIGURATION
========================= */

const (
	DefaultServerAddr = "0.0.0.0:8080"

	// Upper bound on user addresses accepted by POST /api/winners
	MaxUsersPerRequest = 100_000

	// Runs returned by the ledger listing
	RecentRunsLimit = 50

	ComputeTimeout = 5 * time.Minute
)

/* =========================
   REDIS CONFIGURATION
========================= */

const (
	// Pub/sub channel for completed runs
	RedisRunsChannel = "twab:runs"

	// Key: twab:run:{runId} -> run summary JSON
	RedisRunSummaryKey = "twab:run:%s"
	RunSummaryTTL      = 24 * time.Hour
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSRunsChannel     = "runs"
	WSSendBufferSize  = 64
	WSWriteDeadline   = 10 * time.Second
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
)

/* =========================
   HELPER FUNCTIONS
========================= */

// FixedPointToDecimal renders a 1e18-scaled value (odds, vault portion) as a decimal
func FixedPointToDecimal(value *big.Int) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -18)
}

// DecimalToFixedPoint converts a decimal such as "0.25" into its 1e18-scaled form
func DecimalToFixedPoint(value decimal.Decimal) *big.Int {
	return value.Shift(18).BigInt()
}
