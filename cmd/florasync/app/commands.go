// Package app wires configuration, storage, provider clients, and the
// sync engines into the florasync command line interface.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:               "florasync",
	DisableAutoGenTag: true,
	Short:             "Botanical data ingestion service",
	Long: `florasync ingests botanical reference data from third-party plant APIs
into a content database as reviewable drafts. Ingestion is checkpointed,
rate limited, and guarded by per-provider circuit breakers so unreliable
upstreams never take the platform down with them.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	for _, flag := range []string{"config", "debug"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// newLogger builds the process logger. Debug mode switches to the
// human-readable development encoder.
func newLogger() (*zap.SugaredLogger, error) {
	if viper.GetBool("debug") {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		return log.Sugar(), nil
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log.Sugar(), nil
}
