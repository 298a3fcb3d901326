package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List committed protocol events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, closeFn, err := openProtocol(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer closeFn()

		kind, _ := cmd.Flags().GetString("kind")
		entity, _ := cmd.Flags().GetString("entity")
		after, _ := cmd.Flags().GetInt64("after")
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := p.Events(cmd.Context(), store.EventFilter{
			Kind:     model.EventKind(kind),
			EntityID: entity,
			AfterSeq: after,
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), events, func(w io.Writer) { writeEvents(w, events) })
	},
}

func init() {
	eventsCmd.Flags().String("kind", "", "filter by event kind")
	eventsCmd.Flags().String("entity", "", "filter by entity id")
	eventsCmd.Flags().Int64("after", 0, "only events with a higher sequence number")
	eventsCmd.Flags().Int("limit", 100, "max events to return")
	rootCmd.AddCommand(eventsCmd)
}
