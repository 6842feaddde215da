package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/florasync/florasync/internal/checkpoint"
	"github.com/florasync/florasync/internal/health"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/resilience"
)

var statusCmd = &cobra.Command{
	Use:   "status [provider]",
	Short: "Show provider stats, health, circuit, and checkpoint state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

// providerStatus is the full state snapshot printed per provider
type providerStatus struct {
	Name       string                     `json:"name"`
	Configured bool                       `json:"configured"`
	Stats      provider.RequestStats      `json:"stats"`
	Health     health.Score               `json:"health"`
	Circuit    resilience.BreakerSnapshot `json:"circuit"`
	Checkpoint *checkpoint.Checkpoint     `json:"checkpoint,omitempty"`
}

func runStatus(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	names := c.runner.Providers()
	if len(args) == 1 {
		if _, ok := c.clients[args[0]]; !ok {
			return fmt.Errorf("unknown provider '%s'", args[0])
		}
		names = args
	}

	statuses := make([]providerStatus, 0, len(names))
	for _, name := range names {
		client := c.clients[name]
		stats := client.Stats()

		cp, err := c.checkpoints.Get(ctx, name)
		if err != nil {
			c.log.Warnw("checkpoint read failed", "provider", name, "error", err)
		}

		statuses = append(statuses, providerStatus{
			Name:       name,
			Configured: client.IsConfigured(),
			Stats:      stats,
			Health:     health.Compute(stats),
			Circuit:    client.CircuitState(),
			Checkpoint: cp,
		})
	}

	printJSON(statuses)
	return nil
}
