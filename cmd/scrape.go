package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run a one-shot scrape and print the run report",
	}
	cmd.AddCommand(newScrapeCategoriesCmd())
	cmd.AddCommand(newScrapeProductsCmd())
	return cmd
}

func newScrapeCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Scrape category links from the configured entry page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), func(ctx context.Context, svc *services) (any, error) {
				return svc.coordinator.ScrapeCategories(ctx)
			})
		},
	}
}

func newScrapeProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products <category-slug>",
		Short: "Scrape product listings for a stored category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), func(ctx context.Context, svc *services) (any, error) {
				return svc.coordinator.ScrapeProducts(ctx, args[0])
			})
		},
	}
}

func runScrape(ctx context.Context, run func(context.Context, *services) (any, error)) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	report, runErr := run(ctx, svc)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		return fmt.Errorf("encode run report: %w", encErr)
	}
	if runErr != nil {
		return fmt.Errorf("scrape run: %w", runErr)
	}
	return nil
}
