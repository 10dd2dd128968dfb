// Command learnloopctl is the operator CLI for a LearnLoop deployment.
//
//	learnloopctl set-role admin@x.com admin   promote the first admin
//	learnloopctl issue-token --email a@x.com  mint a bearer token for testing
//	learnloopctl ensure-indexes               create mongo unique indexes
//
// It reads the same environment (and .env) as the server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/learnloop/internal/config"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "learnloopctl",
	Short:         "Administer a LearnLoop API deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setRoleCmd, issueTokenCmd, ensureIndexesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
