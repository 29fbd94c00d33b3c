package main

import (
	"context"
	"fmt"
	"os"

	"coursechat/internal/config"
	"coursechat/internal/querylog"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query log totals and recent queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if _, err := os.Stat(cfg.QueryLog.DBPath); err != nil {
				if !cfg.QueryLog.Enabled {
					fmt.Println("Query logging is disabled (set querylog.enabled to true).")
					return nil
				}
				fmt.Printf("No query log at %s yet.\n", cfg.QueryLog.DBPath)
				return nil
			}

			store, err := querylog.NewStore(cfg.QueryLog.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open query log: %w", err)
			}
			defer store.Close()

			ctx := context.Background()
			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}

			fmt.Printf("Queries:      %d\n", stats.TotalQueries)
			fmt.Printf("Sessions:     %d\n", stats.Sessions)
			fmt.Printf("Avg latency:  %.0fms\n", stats.AvgLatencyMs)
			if !stats.LastQueryAt.IsZero() {
				fmt.Printf("Last query:   %s\n", stats.LastQueryAt.Format("2006-01-02 15:04:05"))
			}

			entries, err := store.Recent(ctx, recent)
			if err != nil {
				return fmt.Errorf("read recent queries: %w", err)
			}
			if len(entries) == 0 {
				return nil
			}

			fmt.Println("\nRecent queries:")
			for _, e := range entries {
				question := e.Question
				if len(question) > 60 {
					question = question[:57] + "..."
				}
				fmt.Printf("  %s  %-12s %4dms  %q\n",
					e.CreatedAt.Format("2006-01-02 15:04"), e.Provider, e.LatencyMs, question)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent queries to show")
	return cmd
}
