package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coursechat/internal/config"

	"github.com/spf13/cobra"
)

func ingestCmd() *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Index course documents into the vector store",
		Long: `Parses, chunks, and embeds every supported document in the folder.
Courses already in the catalog are skipped; --recreate drops the index and
rebuilds it from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := setupLogger(cfg)

			dir := cfg.Docs.Path
			if len(args) > 0 {
				dir = args[0]
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("docs folder not found: %s", dir)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pipe, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer pipe.store.Close()

			courses, chunks, err := pipe.ingestor.AddCourseFolder(ctx, dir, recreate)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", dir, err)
			}

			total, err := pipe.store.CourseCount(ctx)
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}

			fmt.Printf("Added %d course(s), %d chunk(s) from %s\n", courses, chunks, dir)
			fmt.Printf("Catalog now holds %d course(s)\n", total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop the index and rebuild it from scratch")
	return cmd
}
