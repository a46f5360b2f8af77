package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"twabWinners/config"
	"twabWinners/winners"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newTiersCmd(opts *globalOptions) *cobra.Command {
	var vault string

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Print the tier parameters of the last awarded draw",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, block, err := opts.endpoint()
			if err != nil {
				return err
			}
			vaultAddr, err := parseAddress("vault", vault)
			if err != nil {
				return err
			}

			caller, closeConn, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer closeConn()

			snapshot, tiers, err := winners.NewEngine(caller, winners.WithLogger(log.Logger), winners.WithBatchSize(opts.batchSize)).DescribeTiers(cmd.Context(), pool, vaultAddr, block)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			closedAt := time.Unix(int64(snapshot.LastAwardedDrawClosedAt), 0).UTC()
			fmt.Fprintf(out, "draw %d closed %s, %d tiers\n\n", snapshot.LastAwardedDrawID, closedAt.Format(time.RFC3339), snapshot.NumTiers)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tPRIZES\tODDS\tACCRUAL\tSTART DRAW\tVAULT PORTION\tCANARY")
			for _, t := range tiers {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%s\t%t\n",
					t.Tier,
					t.PrizeCount,
					config.FixedPointToDecimal(t.Odds),
					t.AccrualDraws,
					t.StartDrawID,
					config.FixedPointToDecimal(t.VaultPortion).StringFixed(6),
					t.Canary,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "vault address")
	_ = cmd.MarkFlagRequired("vault")
	return cmd
}
