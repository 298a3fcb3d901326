package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/truthstamp/internal/auth"
	"github.com/sells-group/truthstamp/internal/model"
)

var expertCmd = &cobra.Command{
	Use:   "expert",
	Short: "Register and inspect staked experts",
}

// -- expert register --

var expertRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the signing key as an expert",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, addr, err := withIdentity(cmd.Context())
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(ctx, "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		name, _ := cmd.Flags().GetString("name")
		bio, _ := cmd.Flags().GetString("bio")
		categories, _ := cmd.Flags().GetStringSlice("category")
		stake, _ := cmd.Flags().GetInt64("stake")

		if _, err := p.RegisterExpert(ctx, addr, name, bio, categories, stake); err != nil {
			return err
		}
		e, err := p.GetExpert(ctx, addr)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), e, func(w io.Writer) { writeExpert(w, e) })
	},
}

// targetAddress returns the address argument, or the signing key's address
// when none is given.
func targetAddress(args []string) (model.Address, error) {
	if len(args) > 0 {
		return model.Address(args[0]), nil
	}
	key, err := auth.LoadKey(keyPath())
	if err != nil {
		return "", err
	}
	return key.Address(), nil
}

// -- expert show --

var expertShowCmd = &cobra.Command{
	Use:   "show [address]",
	Short: "Show an expert (default: the signing key)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := targetAddress(args)
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		e, err := p.GetExpert(cmd.Context(), addr)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), e, func(w io.Writer) { writeExpert(w, e) })
	},
}

// -- expert stake --

var expertStakeCmd = &cobra.Command{
	Use:   "stake <amount>",
	Short: "Deposit more stroops as collateral",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		ctx, addr, err := withIdentity(cmd.Context())
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(ctx, "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		if err := p.AddStake(ctx, addr, amount); err != nil {
			return err
		}
		e, err := p.GetExpert(ctx, addr)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), e, func(w io.Writer) { writeExpert(w, e) })
	},
}

// -- expert accuracy --

var expertAccuracyCmd = &cobra.Command{
	Use:   "accuracy [address]",
	Short: "Print an expert's correct-review percentage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := targetAddress(args)
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		acc, err := p.Accuracy(cmd.Context(), addr)
		if err != nil {
			return err
		}
		out := map[string]any{"address": addr, "accuracy": acc}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "%s\t%d%%\n", addr, acc)
		})
	},
}

func init() {
	expertRegisterCmd.Flags().String("name", "", "display name")
	expertRegisterCmd.Flags().String("bio", "", "short biography")
	expertRegisterCmd.Flags().StringSlice("category", nil, "expertise category (repeatable)")
	expertRegisterCmd.Flags().Int64("stake", model.MinStakeGeneral, "stake in stroops")
	_ = expertRegisterCmd.MarkFlagRequired("name")

	expertCmd.AddCommand(expertRegisterCmd, expertShowCmd, expertStakeCmd, expertAccuracyCmd)
	rootCmd.AddCommand(expertCmd)
}
