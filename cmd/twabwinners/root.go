package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"twabWinners/config"
	"twabWinners/contract"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	rpcURL    string
	chainID   int64
	pool      string
	block     string
	batchSize int
	debug     bool

	rateLimit   float64
	rateBurst   int
	databaseURL string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{
		chainID:   10,
		batchSize: config.DefaultMulticallBatchSize,
		rateLimit: config.DefaultRPCRateLimit,
		rateBurst: config.DefaultRPCRateBurst,
	}

	root := &cobra.Command{
		Use:           "twabwinners",
		Short:         "Compute prize pool winners from time-weighted balances",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.applyEnv(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.rpcURL, "rpc", "", "RPC endpoint URL (default $RPC_URL)")
	flags.Int64Var(&opts.chainID, "chain-id", opts.chainID, "chain id served by the RPC endpoint (default $CHAIN_ID)")
	flags.StringVar(&opts.pool, "pool", "", "prize pool address (default $PRIZE_POOL_ADDRESS)")
	flags.StringVar(&opts.block, "block", "", "block number to read at (default latest)")
	flags.IntVar(&opts.batchSize, "batch-size", opts.batchSize, "calldata bytes per multicall batch")
	flags.BoolVar(&opts.debug, "debug", false, "log per-user failures")

	root.AddCommand(newComputeCmd(opts))
	root.AddCommand(newVerifyCmd(opts))
	root.AddCommand(newTiersCmd(opts))
	return root
}

// applyEnv fills flags left unset from the environment and sets the log level
func (o *globalOptions) applyEnv(cmd *cobra.Command) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("rpc") {
		o.rpcURL = settings.RPCURL
	}
	if !flags.Changed("chain-id") {
		o.chainID = settings.ChainID
	}
	if !flags.Changed("pool") {
		o.pool = settings.PrizePoolAddress
	}
	if !flags.Changed("batch-size") {
		o.batchSize = settings.MulticallBatchSize
	}
	o.rateLimit = settings.RPCRateLimit
	o.rateBurst = settings.RPCRateBurst
	o.databaseURL = settings.DatabaseURL

	level := "info"
	if o.debug {
		level = "debug"
	}
	return config.ConfigureLogging(level)
}

// endpoint validates the options every subcommand needs
func (o *globalOptions) endpoint() (common.Address, *big.Int, error) {
	if o.rpcURL == "" {
		return common.Address{}, nil, errors.New("--rpc or RPC_URL is required")
	}
	if !common.IsHexAddress(o.pool) {
		return common.Address{}, nil, fmt.Errorf("--pool must be a 20-byte hex address, got %q", o.pool)
	}
	block, err := parseBlock(o.block)
	if err != nil {
		return common.Address{}, nil, err
	}
	return common.HexToAddress(o.pool), block, nil
}

// dial opens a paced connection to the configured node
func (o *globalOptions) dial(ctx context.Context) (contract.Caller, func(), error) {
	client, err := contract.Dial(ctx, o.chainID, o.rpcURL)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("network", client.Network.Name).Msg("🔌 Connected to node")
	return contract.NewThrottledCaller(client.Network.Name, client, o.rateLimit, o.rateBurst), client.Close, nil
}

func parseBlock(value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	block, ok := new(big.Int).SetString(value, 10)
	if !ok || block.Sign() < 0 {
		return nil, fmt.Errorf("invalid block number %q", value)
	}
	return block, nil
}

func parseAddress(flag, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("--%s must be a 20-byte hex address, got %q", flag, value)
	}
	return common.HexToAddress(value), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
