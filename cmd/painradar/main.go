package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/painradar/painradar/internal/config"
	"github.com/painradar/painradar/internal/embedding"
	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/notifications"
	"github.com/painradar/painradar/internal/pipeline"
	"github.com/painradar/painradar/internal/sources"
	"github.com/painradar/painradar/internal/storage"
)

var version = "dev"

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "painradar",
	Short:        "Market pain reports from public discussions",
	Long:         "painradar collects forum, Q&A, issue tracker and article posts about a topic and scores how much pain people voice about it.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables from .env file if it exists
		if err := godotenv.Load(); err != nil {
			logrus.Debug("No .env file found, using environment variables")
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logrus.SetLevel(logrus.InfoLevel)
		if cfg.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(forgetCmd)
}

// app holds the wired components shared by the commands
type app struct {
	service *pipeline.Service
	store   storage.StorageInterface
}

func (a *app) Close() {
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.Errorf("Failed to close report store: %v", err)
		}
	}
}

func loadLexicon() (*lexicon.Lexicon, error) {
	if cfg.LexiconPath == "" {
		return lexicon.Default(), nil
	}
	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("loading lexicon: %w", err)
	}
	return lex, nil
}

func newPipeline() (*pipeline.Pipeline, error) {
	lex, err := loadLexicon()
	if err != nil {
		return nil, err
	}
	model := embedding.NewModel(embedding.OllamaLoader(cfg.EmbeddingModel, cfg.OllamaURL))
	return pipeline.New(cfg, lex, model, sources.Enabled(sources.FromConfig(cfg, lex))), nil
}

func newApp(ctx context.Context) (*app, error) {
	p, err := newPipeline()
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	var notifier notifications.NotificationInterface
	if cfg.NotificationsEnabled() {
		notifier = notifications.NewService(cfg)
	}

	return &app{
		service: pipeline.NewService(p, storage.NewReportStore(store), notifier, cfg.FreshnessWindow),
		store:   store,
	}, nil
}
