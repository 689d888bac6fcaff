package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"industryinsider/internal/config"
	"industryinsider/internal/contextutil"
	"industryinsider/internal/logging"
	"industryinsider/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var root = &cobra.Command{
		Use:           "ingest",
		Short:         "Scrape articles and load them into the vector store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(extractCMD(), loadCMD())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration and opens the log file of cat. The returned
// context carries the logger.
func setup(ctx context.Context, cat logging.Category) (context.Context, *config.Config, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closer, err := logging.Setup(logging.Options{
		Root:     cfg.LogDir,
		MaxSize:  cfg.LogFileSize,
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Stdout:   os.Stdout,
		Category: cat,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	return contextutil.WithLogger(ctx, logger), cfg, closer, nil
}

// openDB opens and migrates the article database.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := storage.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "database initialized", "path", path)
	return db, nil
}
