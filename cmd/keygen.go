package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/truthstamp/internal/auth"
)

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 signing key",
	Long:  "Writes a new signing key to the key file and prints its address. The address identifies the key holder in every operation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := keyPath()
		if _, err := os.Stat(path); err == nil && !keygenForce {
			return eris.Errorf("key file %s already exists (use --force to overwrite)", path)
		}

		key, err := auth.GenerateKey()
		if err != nil {
			return err
		}
		if err := key.Save(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), key.Address())
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the address of the signing key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := auth.LoadKey(keyPath())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key.Address())
		return nil
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "overwrite an existing key file")
	rootCmd.AddCommand(keygenCmd, whoamiCmd)
}
