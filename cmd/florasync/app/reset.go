package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <provider>",
	Short: "Reset a provider's stats, circuit breaker, and rate limiter",
	Long: `Reset a provider's request counters, circuit breaker, and rate
limiter windows. With --checkpoint, the sync checkpoint is deleted too,
so the next import starts over from page one.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func init() {
	resetCmd.Flags().Bool("checkpoint", false, "Also delete the sync checkpoint")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	name := args[0]
	client, ok := c.clients[name]
	if !ok {
		return fmt.Errorf("unknown provider '%s'", name)
	}

	client.Reset()
	fmt.Printf("reset stats for provider %s\n", name)

	withCheckpoint, err := cmd.Flags().GetBool("checkpoint")
	if err != nil {
		return err
	}
	if withCheckpoint {
		if err := c.checkpoints.Reset(ctx, name); err != nil {
			return fmt.Errorf("failed to reset checkpoint: %w", err)
		}
		fmt.Printf("deleted checkpoint for provider %s\n", name)
	}
	return nil
}
