package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sells-group/truthstamp/internal/model"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the three protocol components",
	Long:  "Initializes the claim registry, expert registry, and review consensus with the signing key as admin, stores the consensus parameters from config, and binds the partner addresses.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, admin, err := withIdentity(cmd.Context())
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(ctx, "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		if err := p.Bootstrap(ctx, admin, cfg.Protocol); err != nil {
			return err
		}

		contracts := p.Contracts()
		out := map[string]any{
			"admin":     admin,
			"contracts": contracts,
			"params":    cfg.Protocol,
		}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "Admin:\t%s\n", admin)
			fmt.Fprintf(w, "%s:\t%s\n", model.ContractClaimRegistry, contracts.ClaimRegistry)
			fmt.Fprintf(w, "%s:\t%s\n", model.ContractExpertRegistry, contracts.ExpertRegistry)
			fmt.Fprintf(w, "%s:\t%s\n", model.ContractReviewConsensus, contracts.ReviewConsensus)
			fmt.Fprintf(w, "Min reviews:\t%d\n", cfg.Protocol.MinReviews)
			fmt.Fprintf(w, "Reward / slash:\t%d%% / %d%%\n", cfg.Protocol.RewardPercentage, cfg.Protocol.SlashPercentage)
		})
	},
}

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Inspect and rebind protocol components",
}

var contractShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a component's admin and partner bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		c, err := p.Contract(cmd.Context(), model.ContractName(args[0]))
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), c, func(w io.Writer) {
			fmt.Fprintf(w, "Name:\t%s\n", c.Name)
			fmt.Fprintf(w, "Admin:\t%s\n", c.Admin)
			for _, name := range slices.Sorted(maps.Keys(c.Partners)) {
				fmt.Fprintf(w, "Partner %s:\t%s\n", name, c.Partners[name])
			}
		})
	},
}

var contractBindCmd = &cobra.Command{
	Use:   "bind <name> <partner> <address>",
	Short: "Rebind a partner address (admin only)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, admin, err := withIdentity(cmd.Context())
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(ctx, "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		name, partner := model.ContractName(args[0]), model.ContractName(args[1])
		if err := p.SetPartner(ctx, admin, name, partner, model.Address(args[2])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Bound %s.%s to %s\n", name, partner, args[2])
		return nil
	},
}

func init() {
	contractCmd.AddCommand(contractShowCmd, contractBindCmd)
	rootCmd.AddCommand(initCmd, contractCmd)
}
