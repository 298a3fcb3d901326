package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/truthstamp/internal/model"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Submit reviews and inspect consensus",
}

// -- review submit --

var reviewSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Review a claim with a staked verdict",
	RunE: func(cmd *cobra.Command, _ []string) error {
		claimID, _ := cmd.Flags().GetUint64("claim")
		rawVerdict, _ := cmd.Flags().GetString("verdict")
		reasoning, _ := cmd.Flags().GetString("reasoning")
		confidence, _ := cmd.Flags().GetUint32("confidence")
		stake, _ := cmd.Flags().GetInt64("stake")

		verdict, err := model.ParseVerdict(rawVerdict)
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

		id, err := p.SubmitReview(ctx, addr, claimID, verdict, reasoning, confidence, stake)
		if err != nil {
			return err
		}
		state, err := p.State(ctx, claimID)
		if err != nil {
			return err
		}
		out := map[string]any{"review_id": id, "claim_id": claimID, "state": state}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "Review %d submitted; claim %d is %s.\n", id, claimID, state)
		})
	},
}

// -- review show --

var reviewShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show a review",
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

		r, err := p.GetReview(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), r, func(w io.Writer) {
			writeReviews(w, []model.Review{*r})
			fmt.Fprintf(w, "\nReasoning:\t%s\n", r.Reasoning)
		})
	},
}

// -- review list --

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the reviews of a claim or an expert",
	RunE: func(cmd *cobra.Command, _ []string) error {
		claimID, _ := cmd.Flags().GetUint64("claim")
		expert, _ := cmd.Flags().GetString("expert")
		if (claimID == 0) == (expert == "") {
			return eris.New("exactly one of --claim or --expert is required")
		}

		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		var reviews []model.Review
		if claimID > 0 {
			reviews, err = p.ClaimReviews(cmd.Context(), claimID)
		} else {
			reviews, err = p.ExpertReviews(cmd.Context(), model.Address(expert))
		}
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), reviews, func(w io.Writer) { writeReviews(w, reviews) })
	},
}

// -- review consensus --

var reviewConsensusCmd = &cobra.Command{
	Use:   "consensus <claim-id>",
	Short: "Show the stake-weighted consensus of a claim",
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

		c, err := p.Consensus(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), c, func(w io.Writer) { writeConsensus(w, c) })
	},
}

// -- review state --

var reviewStateCmd = &cobra.Command{
	Use:   "state <claim-id>",
	Short: "Print where a claim is in the review lifecycle",
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

		state, err := p.State(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := map[string]any{"claim_id": id, "state": state}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "%d\t%s\n", id, state)
		})
	},
}

// -- distribute --

var distributeCmd = &cobra.Command{
	Use:   "distribute <claim-id>",
	Short: "Settle rewards and slashes for a claim (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, admin, err := withIdentity(cmd.Context())
		if err != nil {
			return err
		}
		p, closeFn, err := openProtocol(ctx, "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		d, err := p.DistributeRewards(ctx, admin, id)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), d, func(w io.Writer) { writeDistribution(w, d) })
	},
}

func init() {
	reviewSubmitCmd.Flags().Uint64("claim", 0, "claim id")
	reviewSubmitCmd.Flags().String("verdict", "", "true or false")
	reviewSubmitCmd.Flags().String("reasoning", "", "why the claim is true or false")
	reviewSubmitCmd.Flags().Uint32("confidence", 50, "confidence from 0 to 100")
	reviewSubmitCmd.Flags().Int64("stake", 0, "stake in stroops")
	_ = reviewSubmitCmd.MarkFlagRequired("claim")
	_ = reviewSubmitCmd.MarkFlagRequired("verdict")

	reviewListCmd.Flags().Uint64("claim", 0, "list reviews of this claim")
	reviewListCmd.Flags().String("expert", "", "list reviews written by this address")

	reviewCmd.AddCommand(reviewSubmitCmd, reviewShowCmd, reviewListCmd, reviewConsensusCmd, reviewStateCmd)
	rootCmd.AddCommand(reviewCmd, distributeCmd)
}
