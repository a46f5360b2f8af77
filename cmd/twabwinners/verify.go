package main

import (
	"fmt"
	"text/tabwriter"

	"twabWinners/config"
	"twabWinners/winners"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	var (
		vault      string
		user       string
		tier       uint8
		prizeIndex uint32
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute whether a user won one prize slot of the last awarded draw",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, block, err := opts.endpoint()
			if err != nil {
				return err
			}
			vaultAddr, err := parseAddress("vault", vault)
			if err != nil {
				return err
			}
			userAddr, err := parseAddress("user", user)
			if err != nil {
				return err
			}

			caller, closeConn, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer closeConn()

			v, err := winners.NewEngine(caller, winners.WithLogger(log.Logger), winners.WithBatchSize(opts.batchSize)).Verify(cmd.Context(), winners.VerifyRequest{
				PrizePool:   pool,
				Vault:       vaultAddr,
				User:        userAddr,
				Tier:        tier,
				PrizeIndex:  prizeIndex,
				BlockNumber: block,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "draw\t%d\n", v.DrawID)
			fmt.Fprintf(tw, "tier\t%d (prize %d of %d)\n", tier, prizeIndex, v.TierParameters.PrizeCount)
			fmt.Fprintf(tw, "window\t%s\n", v.Window)
			fmt.Fprintf(tw, "odds\t%s\n", config.FixedPointToDecimal(v.TierParameters.Odds))
			fmt.Fprintf(tw, "vault portion\t%s\n", config.FixedPointToDecimal(v.VaultPortion))
			fmt.Fprintf(tw, "vault supply twab\t%s\n", v.VaultTotalSupply)
			fmt.Fprintf(tw, "user twab\t%s\n", v.Check.Balance)
			fmt.Fprintf(tw, "entropy\t%s\n", v.Check.Entropy)
			if v.Check.Draw != nil {
				fmt.Fprintf(tw, "draw value\t%s\n", v.Check.Draw)
			}
			fmt.Fprintf(tw, "winning zone\t%s\n", v.Check.WinningZone)
			fmt.Fprintf(tw, "won\t%t\n", v.Check.Won)
			return tw.Flush()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&vault, "vault", "", "vault address")
	flags.StringVar(&user, "user", "", "user address")
	flags.Uint8Var(&tier, "tier", 0, "tier")
	flags.Uint32Var(&prizeIndex, "index", 0, "prize index within the tier")
	flags.BoolVar(&asJSON, "json", false, "print the verification as JSON")
	_ = cmd.MarkFlagRequired("vault")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
