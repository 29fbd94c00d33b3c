package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"coursechat/internal/agent"
	"coursechat/internal/channel"
	"coursechat/internal/config"
	"coursechat/internal/domain"
	"coursechat/internal/embedding"
	"coursechat/internal/knowledge"
	"coursechat/internal/provider"
	"coursechat/internal/querylog"
	"coursechat/internal/tool"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var docsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket API",
		Long:  "Starts the query API, ingesting any new course documents from the docs folder first. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(docsDir)
		},
	}
	cmd.Flags().StringVar(&docsDir, "docs", "", "course documents folder to ingest at startup (default: docs.path from config)")
	return cmd
}

func runServe(docsDir string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer pipe.store.Close()

	// Index new documents before answering queries, mirroring `ingest`.
	if docsDir == "" {
		docsDir = cfg.Docs.Path
	}
	if info, err := os.Stat(docsDir); err == nil && info.IsDir() {
		courses, chunks, err := pipe.ingestor.AddCourseFolder(ctx, docsDir, false)
		if err != nil {
			log.Warn("startup ingestion failed", "dir", docsDir, "err", err)
		} else if courses > 0 {
			log.Info("startup ingestion complete", "courses", courses, "chunks", chunks)
		}
	} else {
		log.Info("docs folder not found, skipping startup ingestion", "dir", docsDir)
	}

	provFactory := provider.NewFactory(cfg, log)
	prov, err := provFactory.DefaultProvider()
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := prov.Healthy(ctx); err != nil {
		log.Warn("provider unhealthy at startup", "provider", prov.Name(), "err", err)
	}

	toolReg := tool.NewRegistry(log)
	toolReg.Register(tool.NewCourseSearchTool(pipe.store, cfg.Search.MaxResults, log))

	pcfg := cfg.Providers[cfg.General.Provider]
	orch := agent.NewOrchestrator(agent.OrchestratorConfig{
		Provider:  prov,
		Tools:     toolReg,
		Model:     pcfg.Model,
		MaxTokens: pcfg.MaxTokens,
		Logger:    log,
	})

	var recorder domain.QueryRecorder
	if cfg.QueryLog.Enabled {
		qlog, err := querylog.NewStore(cfg.QueryLog.DBPath, log)
		if err != nil {
			log.Warn("query log unavailable", "path", cfg.QueryLog.DBPath, "err", err)
		} else {
			defer qlog.Close()
			recorder = qlog
		}
	}

	coordinator := agent.NewCoordinator(agent.CoordinatorConfig{
		Sessions:     agent.NewSessionStore(cfg.Session.MaxHistory, log),
		Orchestrator: orch,
		Recorder:     recorder,
		Logger:       log,
	})

	ws := channel.NewWebSocket(channel.WebSocketConfig{
		Querier:    coordinator,
		CORSOrigin: cfg.Server.CORSOrigin,
		Logger:     log,
	})
	web := channel.NewWeb(channel.WebConfig{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		CORSOrigin: cfg.Server.CORSOrigin,
		Querier:    coordinator,
		Catalog:    pipe.store,
		WebSocket:  ws,
		Logger:     log,
		Version:    version,
	})

	log.Info("serving", "provider", prov.Name(), "model", pcfg.Model)
	return web.Start(ctx)
}

// pipeline bundles the retrieval side of the system: the vector store and
// the ingestor that fills it.
type pipeline struct {
	store    *knowledge.Store
	ingestor *knowledge.Ingestor
}

func buildPipeline(cfg *config.Config, log *slog.Logger) (*pipeline, error) {
	embedder := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.APIBase,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
		Logger:    log,
	})

	store, err := knowledge.NewStore(knowledge.StoreConfig{
		Host:     cfg.Qdrant.Host,
		Port:     cfg.Qdrant.Port,
		Embedder: embedder,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	ingestor, err := knowledge.NewIngestor(knowledge.IngestorConfig{
		Index: store,
		Processor: knowledge.NewProcessor(knowledge.ProcessorConfig{
			MaxChars:     cfg.Chunking.MaxChars,
			OverlapChars: cfg.Chunking.OverlapChars,
			Logger:       log,
		}),
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	return &pipeline{store: store, ingestor: ingestor}, nil
}
