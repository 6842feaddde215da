package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [provider]",
	Short: "Run one bulk import batch",
	Long: `Run one bulk import batch for the named provider, or for every
configured provider when none is given. Each run consumes at most the
configured pages-per-run budget and commits the checkpoint after every
page, so interrupted runs resume where they left off.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var enrichCmd = &cobra.Command{
	Use:   "enrich <provider>",
	Short: "Run one enrichment batch",
	Long: `Revisit a bounded batch of stale or never-synced records for the
named provider and refresh them from the upstream API.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func runImport(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	if len(args) == 1 {
		report, err := c.runner.RunImport(ctx, args[0])
		printJSON(report)
		return err
	}

	reports, err := c.runner.RunAllImports(ctx)
	printJSON(reports)
	return err
}

func runEnrich(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	report, err := c.runner.RunEnrichment(ctx, args[0])
	printJSON(report)
	return err
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
