package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/truthstamp/internal/store"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Submit and inspect claims",
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, eris.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, eris.Errorf("invalid amount %q (stroops)", s)
	}
	return v, nil
}

// -- claim submit --

var claimSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a claim for review",
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

		text, _ := cmd.Flags().GetString("text")
		category, _ := cmd.Flags().GetString("category")
		sources, _ := cmd.Flags().GetStringSlice("source")

		id, err := p.SubmitClaim(ctx, addr, text, category, sources)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), map[string]uint64{"claim_id": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Claim %d submitted.\n", id)
		})
	},
}

// -- claim show --

var claimShowCmd = &cobra.Command{
	Use:   "show <claim-id>",
	Short: "Show a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		c, err := p.GetClaim(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), c, func(w io.Writer) { writeClaim(w, c) })
	},
}

// -- claim list --

var claimListCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims in id order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		start, _ := cmd.Flags().GetUint64("start")
		limit, _ := cmd.Flags().GetUint64("limit")

		claims, err := p.ListClaims(cmd.Context(), start, limit)
		if err != nil {
			return err
		}
		if len(claims) == 0 && outputFormat == "table" {
			fmt.Fprintln(os.Stderr, "No claims found.")
			return nil
		}
		return render(cmd.OutOrStdout(), claims, func(w io.Writer) { writeClaims(w, claims) })
	},
}

// -- claim topup --

var claimTopupCmd = &cobra.Command{
	Use:   "topup <claim-id> <amount>",
	Short: "Add stroops to a claim's stake pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
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

		if err := p.AddToStakePool(ctx, addr, id, amount); err != nil {
			return err
		}
		c, err := p.GetClaim(ctx, id)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), c, func(w io.Writer) {
			fmt.Fprintf(w, "Claim %d stake pool is now %s.\n", c.ID, formatAmount(c.StakePool))
		})
	},
}

// -- claim transfers --

var claimTransfersCmd = &cobra.Command{
	Use:   "transfers <claim-id>",
	Short: "List the value movements recorded for a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		transfers, err := p.Transfers(cmd.Context(), store.TransferFilter{ClaimID: id})
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), transfers, func(w io.Writer) { writeTransfers(w, transfers) })
	},
}

func init() {
	claimSubmitCmd.Flags().String("text", "", "claim text")
	claimSubmitCmd.Flags().String("category", "", "claim category")
	claimSubmitCmd.Flags().StringSlice("source", nil, "supporting source URL (repeatable)")
	_ = claimSubmitCmd.MarkFlagRequired("text")

	claimListCmd.Flags().Uint64("start", 0, "list claims with ids after this one")
	claimListCmd.Flags().Uint64("limit", 50, "max claims to return")

	claimCmd.AddCommand(claimSubmitCmd, claimShowCmd, claimListCmd, claimTopupCmd, claimTransfersCmd)
	rootCmd.AddCommand(claimCmd)
}
