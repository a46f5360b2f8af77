package main

import (
	"context"
	"time"

	"twabWinners/db"
	"twabWinners/winners"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type computeOutput struct {
	RunID          string           `json:"runId,omitempty"`
	ChainID        int64            `json:"chainId"`
	PrizePool      string           `json:"prizePool"`
	Vault          string           `json:"vault"`
	DrawID         uint32           `json:"drawId"`
	IgnoreCanaries bool             `json:"ignoreCanaries"`
	Duration       string           `json:"duration"`
	Winners        []winners.Winner `json:"winners"`
}

func newComputeCmd(opts *globalOptions) *cobra.Command {
	var (
		vault          string
		users          []string
		usersFile      string
		ignoreCanaries bool
		record         bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the winners of the last awarded draw for a vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, block, err := opts.endpoint()
			if err != nil {
				return err
			}
			vaultAddr, err := parseAddress("vault", vault)
			if err != nil {
				return err
			}
			userAddrs, err := loadUsers(users, usersFile)
			if err != nil {
				return err
			}

			req := winners.Request{
				ChainID:            opts.chainID,
				RPCURL:             opts.rpcURL,
				PrizePool:          pool,
				Vault:              vaultAddr,
				Users:              userAddrs,
				IgnoreCanaries:     ignoreCanaries,
				BlockNumber:        block,
				MulticallBatchSize: opts.batchSize,
				Debug:              opts.debug,
				RPCRateLimit:       opts.rateLimit,
				RPCRateBurst:       opts.rateBurst,
			}

			log.Info().
				Str("pool", pool.Hex()).
				Str("vault", vaultAddr.Hex()).
				Int("users", len(userAddrs)).
				Msg("🎲 Computing winners")

			res, err := winners.ComputeWinners(cmd.Context(), req, winners.WithLogger(log.Logger))
			if err != nil {
				return err
			}

			out := computeOutput{
				ChainID:        opts.chainID,
				PrizePool:      pool.Hex(),
				Vault:          vaultAddr.Hex(),
				DrawID:         res.Snapshot.LastAwardedDrawID,
				IgnoreCanaries: ignoreCanaries,
				Duration:       res.Duration.Round(time.Millisecond).String(),
				Winners:        res.Winners,
			}
			if record {
				out.RunID, err = recordRun(cmd.Context(), opts.databaseURL, db.NewRunRecord(req, res))
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&vault, "vault", "", "vault address")
	flags.StringSliceVar(&users, "users", nil, "comma separated user addresses")
	flags.StringVar(&usersFile, "users-file", "", "file with one user address per line")
	flags.BoolVar(&ignoreCanaries, "ignore-canaries", false, "skip the canary tiers")
	flags.BoolVar(&record, "record", false, "store the run in the PostgreSQL ledger")
	_ = cmd.MarkFlagRequired("vault")
	return cmd
}

// recordRun stores record in the run ledger and returns its id
func recordRun(ctx context.Context, databaseURL string, record *db.RunRecord) (string, error) {
	if err := db.InitPostgres(databaseURL); err != nil {
		return "", err
	}
	defer db.ClosePostgres()

	if err := db.StoreRun(ctx, record); err != nil {
		return "", err
	}
	log.Info().Str("runId", record.RunID).Msg("💾 Run recorded")
	return record.RunID, nil
}
