package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/truthstamp/internal/config"
)

var (
	cfg          *config.Config
	keyFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "truthstamp",
	Short: "Stake-weighted fact-checking ledger",
	Long:  "Submits claims, registers staked experts, collects reviews, and settles rewards and slashes once reviewers reach consensus.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "signing key file (default from config identity.key_file)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, or yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
