package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/docsearch-mcp/internal/config"
	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/layout"
	logging "github.com/dshills/docsearch-mcp/internal/slog"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// app holds what every subcommand needs once configuration is loaded
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	layout *layout.Layout
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:   "docsearch",
		Short: "Semantic search over versioned documentation",
		Long: `docsearch downloads a documentation tree for a given SDK version,
converts it to markdown, embeds it and answers similarity queries, either
from the command line or as an MCP server on stdio.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			level, err := cfg.Level()
			if err != nil {
				return err
			}
			if verbose {
				level = slog.LevelDebug
			}

			// Stdout belongs to the MCP transport and command output
			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			a.layout = layout.New(cfg.Storage.Root)
			return nil
		},
	}
	root.SetVersionTemplate(fmt.Sprintf(
		"docsearch {{.Version}}\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
		buildTime, storage.BuildMode, storage.DriverName))

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (default ./"+config.DefaultFile+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newInitCmd(a),
		newVersionsCmd(a),
		newSearchCmd(a),
	)
	return root
}

// vectorIndex builds the persisted index stack: embedder, SQLite storage
// and the logging decorator. When credentials are missing and lenient is
// set, the returned index reports the configuration error on use instead.
func (a *app) vectorIndex(lenient bool) (storage.VectorIndex, func(), error) {
	emb, err := embedder.New(a.cfg.EmbedderConfig())
	if err != nil {
		var cfgErr *types.ConfigError
		if lenient && errors.As(err, &cfgErr) {
			a.logger.Warn("embedder not configured; searches will fail until it is", "setting", cfgErr.Setting)
			return unconfiguredIndex{err: err}, func() {}, nil
		}
		return nil, nil, err
	}
	a.logger.Debug("embedder ready", "provider", emb.Provider(), "model", emb.Model(), "dimension", emb.Dimension())

	idx := logging.NewLoggingVectorIndex(storage.NewSQLiteIndex(emb), a.logger)
	return idx, func() { _ = emb.Close() }, nil
}

// unconfiguredIndex stands in for the vector index when no embedder could
// be created
type unconfiguredIndex struct {
	err error
}

func (u unconfiguredIndex) Build(context.Context, []types.Passage) (storage.Handle, error) {
	return nil, u.err
}

func (u unconfiguredIndex) Save(context.Context, storage.Handle, string) error {
	return u.err
}

func (u unconfiguredIndex) Load(context.Context, string) (storage.Handle, error) {
	return nil, u.err
}
