// Package cmd provides the CLI commands for boqctl.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/config"
	"github.com/JonMunkholm/tenderdesk/internal/core"
	"github.com/JonMunkholm/tenderdesk/internal/logging"
	"github.com/JonMunkholm/tenderdesk/internal/store/postgres"
)

var (
	logLevel  string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "boqctl",
	Short: "Manage tender bills of quantities and bid comparisons",
	Long: `boqctl imports bills of quantities and bid rate sheets, and builds the
bid comparison matrix for a tender.

Commands that read or write tenders connect to the database named by
DATABASE_URL (a .env file in the working directory is honoured).

Examples:
  boqctl check boq.csv
  boqctl import T-2024-001 boq.xlsx
  boqctl compare T-2024-001 --baseline estimate -o comparison.xlsx`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(os.Stderr, logLevel, logFormat))
	},
}

// Execute runs the CLI. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(loadEnv)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(tendersCmd)
	rootCmd.AddCommand(tenderCmd)
	rootCmd.AddCommand(bidCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadEnv() {
	// A missing .env is normal
	_ = godotenv.Load()
}

// backend is the database-backed service a command works against.
type backend struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	store   *postgres.Store
	service *core.Service
}

func (b *backend) Close() { b.pool.Close() }

// openBackend loads configuration from the environment and connects to
// the database.
func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	pool, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	locked, _ := cfg.Import.LockedStatuses()
	baseline, _ := cfg.Comparison.Baseline()
	store := postgres.New(pool)

	return &backend{
		cfg:   cfg,
		pool:  pool,
		store: store,
		service: core.NewService(store, core.Options{
			Limiter:         core.NewImportLimiter(1, cfg.Import.MaxWaitTime),
			Guard:           core.GuardBidStatuses(locked...),
			DefaultBaseline: baseline,
			MaxFileSize:     cfg.Import.MaxFileSize,
			ImportTimeout:   cfg.Import.Timeout,
		}),
	}, nil
}

// openInput opens a file argument; "-" reads standard input.
func openInput(cmd *cobra.Command, path, format string) (core.ImportSource, func(), error) {
	src := core.ImportSource{Name: path}
	if format != "" {
		f, err := core.ParseFormat(format)
		if err != nil {
			return src, nil, err
		}
		src.Format = f
	}
	if path == "-" {
		src.Name = ""
		src.Reader = cmd.InOrStdin()
		return src, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return src, nil, err
	}
	src.Reader = f
	return src, func() { f.Close() }, nil
}

// withOutput runs write against the -o file, or standard output when path
// is empty. A failed write removes the partial file.
func withOutput(cmd *cobra.Command, path string, write func(w io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}
