package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nidhogg/pgrag/internal/config"
	"github.com/nidhogg/pgrag/internal/embedding"
	"github.com/nidhogg/pgrag/internal/rag"
	"github.com/nidhogg/pgrag/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// pipeline is the part of rag.Orchestrator the command drives.
type pipeline interface {
	IngestFile(ctx context.Context, path string) (int64, error)
	Search(ctx context.Context, query string, topK int) ([]store.Result, error)
}

// pipelineFactory builds a pipeline from validated configuration.
type pipelineFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline, error)

func newRootCmd(build pipelineFactory) *cobra.Command {
	var (
		cfgFile    string
		verbose    bool
		ingestPath string
		query      string
		topK       int
	)

	cmd := &cobra.Command{
		Use:   "pgrag",
		Short: "Minimal retrieval demo on PostgreSQL + pgvector",
		Long: `pgrag embeds newline-separated texts and stores them in a pgvector
table, then answers similarity queries against that table.

  pgrag --ingest slack.txt
  pgrag --query "How do vectors work?"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ingestPath == "" && query == "" {
				return cmd.Help()
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			p, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ingestPath != "" {
				n, err := p.IngestFile(ctx, ingestPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Inserted %d rows\n", n)
				return nil
			}

			results, err := p.Search(ctx, query, topK)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rag.FormatResults(results))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("CONFIG_PATH"), "config file path (default: built-in template over environment)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	cmd.Flags().StringVar(&ingestPath, "ingest", "", "path to newline-separated texts to load")
	cmd.Flags().StringVar(&query, "query", "", "run a similarity search")
	cmd.Flags().IntVarP(&topK, "top-k", "k", rag.DefaultTopK, "maximum number of search results")
	cmd.MarkFlagsMutuallyExclusive("ingest", "query")

	return cmd
}

// newPipeline wires the configured embedding provider and pgvector store.
func newPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline, error) {
	provider, err := embedding.NewProvider(ctx, embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
		TaskType:  cfg.Embedding.TaskType,
	})
	if err != nil {
		return nil, err
	}
	pace := time.Duration(cfg.Embedding.PaceMS) * time.Millisecond
	batcher := embedding.NewBatcher(provider, cfg.Embedding.BatchSize, pace, logger)

	st, err := store.New(store.Config{
		DSN:    cfg.DSN(),
		Table:  cfg.Database.Table,
		Metric: store.Metric(cfg.Database.Metric),
	}, logger)
	if err != nil {
		return nil, err
	}
	return rag.NewOrchestrator(batcher, st, logger), nil
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}
