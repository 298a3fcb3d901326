package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/truthstamp/internal/model"
)

const stroopsPerXLM = 10_000_000

// render writes v in the selected output format. table draws the
// human-readable form.
func render(out io.Writer, v any, table func(w io.Writer)) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return eris.Errorf("unknown output format %q", outputFormat)
	}
}

// formatAmount renders stroops as XLM with seven decimals.
func formatAmount(stroops int64) string {
	sign := ""
	if stroops < 0 {
		sign = "-"
		stroops = -stroops
	}
	return fmt.Sprintf("%s%d.%07d XLM", sign, stroops/stroopsPerXLM, stroops%stroopsPerXLM)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func writeClaim(w io.Writer, c *model.Claim) {
	fmt.Fprintf(w, "ID:\t%d\n", c.ID)
	fmt.Fprintf(w, "Submitter:\t%s\n", c.Submitter)
	fmt.Fprintf(w, "Text:\t%s\n", c.Text)
	fmt.Fprintf(w, "Category:\t%s\n", c.Category)
	fmt.Fprintf(w, "Sources:\t%s\n", strings.Join(c.Sources, ", "))
	fmt.Fprintf(w, "Status:\t%s\n", c.Status)
	fmt.Fprintf(w, "Stake pool:\t%s\n", formatAmount(c.StakePool))
	fmt.Fprintf(w, "Reviews:\t%d\n", c.ReviewCount)
	fmt.Fprintf(w, "Created:\t%s\n", formatTime(c.CreatedAt))
}

func writeClaims(w io.Writer, claims []model.Claim) {
	fmt.Fprintln(w, "ID\tSTATUS\tCATEGORY\tREVIEWS\tSTAKE POOL\tTEXT")
	for _, c := range claims {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.Status, c.Category, c.ReviewCount, formatAmount(c.StakePool), truncate(c.Text, 48))
	}
}

func writeExpert(w io.Writer, e *model.Expert) {
	fmt.Fprintf(w, "Address:\t%s\n", e.Address)
	fmt.Fprintf(w, "Name:\t%s\n", e.Name)
	fmt.Fprintf(w, "Categories:\t%s\n", strings.Join(e.Categories, ", "))
	fmt.Fprintf(w, "Staked:\t%s\n", formatAmount(e.StakedAmount))
	fmt.Fprintf(w, "Level:\t%s\n", e.Level)
	fmt.Fprintf(w, "Reputation:\t%d (%s)\n", e.ReputationPoints, e.ReputationLevel)
	fmt.Fprintf(w, "Reviews:\t%d (%d correct)\n", e.TotalReviews, e.CorrectReviews)
	fmt.Fprintf(w, "Earnings:\t%s\n", formatAmount(e.TotalEarnings))
	fmt.Fprintf(w, "Registered:\t%s\n", formatTime(e.RegisteredAt))
}

func writeReviews(w io.Writer, reviews []model.Review) {
	fmt.Fprintln(w, "ID\tCLAIM\tEXPERT\tVERDICT\tCONFIDENCE\tSTAKE\tREWARDED")
	for _, r := range reviews {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%s\t%t\n",
			r.ID, r.ClaimID, truncate(string(r.Expert), 16), r.Verdict, r.Confidence, formatAmount(r.StakeAmount), r.Rewarded)
	}
}

func writeConsensus(w io.Writer, c *model.ConsensusResult) {
	fmt.Fprintf(w, "Claim:\t%d\n", c.ClaimID)
	fmt.Fprintf(w, "Verdict:\t%s\n", c.FinalVerdict)
	fmt.Fprintf(w, "Stake true:\t%s\n", formatAmount(c.TotalStakeTrue))
	fmt.Fprintf(w, "Stake false:\t%s\n", formatAmount(c.TotalStakeFalse))
	fmt.Fprintf(w, "Confidence:\t%d%%\n", c.ConfidencePercentage)
	fmt.Fprintf(w, "Distributed:\t%t\n", c.Distributed)
	fmt.Fprintf(w, "Computed:\t%s\n", formatTime(c.ComputedAt))
}

func writeDistribution(w io.Writer, d *model.Distribution) {
	fmt.Fprintf(w, "Claim %d settled as %s: pool %s, winning stake %s, losing stake %s\n\n",
		d.ClaimID, d.FinalVerdict, formatAmount(d.TotalRewardPool), formatAmount(d.TotalWinningStake), formatAmount(d.TotalLosingStake))
	fmt.Fprintln(w, "REVIEW\tEXPERT\tCORRECT\tREWARD\tSLASHED\tPOINTS")
	for _, p := range d.Payouts {
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%+d\n",
			p.ReviewID, truncate(string(p.Expert), 16), p.Correct, formatAmount(p.Reward), formatAmount(p.Slashed), p.PointsChange)
	}
}

func writeTransfers(w io.Writer, transfers []model.Transfer) {
	fmt.Fprintln(w, "KIND\tFROM\tTO\tAMOUNT\tREVIEW\tAT")
	for _, t := range transfers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			t.Kind, truncate(string(t.From), 16), truncate(string(t.To), 16), formatAmount(t.Amount), t.ReviewID, formatTime(t.At))
	}
}

func writeEvents(w io.Writer, events []model.Event) {
	fmt.Fprintln(w, "SEQ\tKIND\tENTITY\tAT")
	for _, ev := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ev.Seq, ev.Kind, truncate(ev.EntityID, 24), formatTime(ev.At))
	}
}
