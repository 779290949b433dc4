// Command scrape is the gridiron-data ingestion CLI.
//
// Usage:
//
//	gridiron-scrape full --letters A,B --max-players 100
//	gridiron-scrape full --storage postgres --no-resume
//	gridiron-scrape index --letters A
//	gridiron-scrape players --max-players 50
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gridironlab/gridiron-data/internal/config"
	"github.com/gridironlab/gridiron-data/internal/extract"
	"github.com/gridironlab/gridiron-data/internal/fetch"
	"github.com/gridironlab/gridiron-data/internal/index"
	"github.com/gridironlab/gridiron-data/internal/scrape"
	"github.com/gridironlab/gridiron-data/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// errInterrupted marks a run cut short by the user.
var errInterrupted = errors.New("interrupted")

// errThreshold marks a run that completed below the success threshold.
var errThreshold = errors.New("success threshold not met")

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "gridiron-scrape",
		Short:         "Player statistics scraper for the reference site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(fullCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(playersCmd())

	if err := root.Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			logger.Warn("Scraping interrupted by user")
			os.Exit(130)
		}
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

// sharedFlags are the options common to all scrape subcommands.
type sharedFlags struct {
	letters     []string
	maxPlayers  int
	noResume    bool
	storage     string
	dataDir     string
	concurrency int
}

func (f *sharedFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.letters, "letters", nil, "Letters to scrape (e.g. A,B,C); empty = full alphabet")
	cmd.Flags().IntVar(&f.maxPlayers, "max-players", 0, "Maximum number of players to scrape; 0 = all")
	cmd.Flags().BoolVar(&f.noResume, "no-resume", false, "Start fresh instead of skipping already-persisted players")
	cmd.Flags().StringVar(&f.storage, "storage", "", "Storage backend: file or postgres (default from STORAGE_MODE)")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Data directory for file storage (default from DATA_DIR)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Concurrent fetch ceiling (default from MAX_CONCURRENT_REQUESTS)")
}

func fullCmd() *cobra.Command {
	var flags sharedFlags
	cmd := &cobra.Command{
		Use:   "full",
		Short: "Run the complete process: index discovery, player scraping, summary report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(&flags, func(ctx context.Context, s *scrape.Scraper) error {
				start := time.Now()
				result := s.RunFull(ctx, flags.letters, flags.maxPlayers, !flags.noResume)
				logger.Info("Full scrape finished",
					"duration", time.Since(start).Round(time.Second), "summary", result.Summary())
				logErrors(result.Errors)
				if !result.Success() {
					return fmt.Errorf("%w: %.1f%% < %.0f%%",
						errThreshold, result.SuccessRate()*100, scrape.SuccessThreshold*100)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func indexCmd() *cobra.Command {
	var flags sharedFlags
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Only scrape the player index pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(&flags, func(ctx context.Context, s *scrape.Scraper) error {
				start := time.Now()
				refs, err := s.RunIndex(ctx, flags.letters)
				if err != nil {
					return fmt.Errorf("index discovery: %w", err)
				}
				logger.Info("Index scrape finished",
					"duration", time.Since(start).Round(time.Second), "players", len(refs))
				if len(refs) == 0 {
					return fmt.Errorf("no player URLs found")
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func playersCmd() *cobra.Command {
	var flags sharedFlags
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Only scrape player pages, using a previously saved index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(&flags, func(ctx context.Context, s *scrape.Scraper) error {
				start := time.Now()
				result := s.RunPlayers(ctx, flags.maxPlayers, !flags.noResume)
				logger.Info("Player scrape finished",
					"duration", time.Since(start).Round(time.Second), "summary", result.Summary())
				logErrors(result.Errors)
				if !result.Success() {
					return fmt.Errorf("%w: %.1f%% < %.0f%%",
						errThreshold, result.SuccessRate()*100, scrape.SuccessThreshold*100)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runScrape handles config loading, storage construction, pipeline wiring,
// and context cancellation.
func runScrape(flags *sharedFlags, fn func(ctx context.Context, s *scrape.Scraper) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, flags)

	if err := validateLetters(flags.letters); err != nil {
		return err
	}
	for i, l := range flags.letters {
		flags.letters[i] = strings.ToUpper(l)
	}

	st, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to storage backend: %w", err)
	}
	defer closeStore()

	limiter := fetch.NewLimiter(cfg.MinRequestInterval)
	client, err := fetch.NewClient(fetch.Options{
		UserAgents: config.UserAgents,
		Headers:    config.BaseHeaders,
		Proxies:    cfg.Proxies,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
	}, limiter, logger)
	if err != nil {
		return fmt.Errorf("create fetch client: %w", err)
	}

	discovery := index.NewDiscovery(client, st, cfg.BaseURL, logger)
	assembler := extract.NewAssembler(config.DefaultCaptionRules(), logger)
	scraper := scrape.New(client, discovery, assembler, st, cfg.Concurrency, logger)

	logger.Info("Starting scraper",
		"storage", cfg.StorageMode, "concurrency", cfg.Concurrency,
		"min_interval", cfg.MinRequestInterval, "max_retries", cfg.MaxRetries)

	err = fn(ctx, scraper)
	if ctx.Err() != nil {
		return errInterrupted
	}
	return err
}

func applyFlags(cfg *config.Config, flags *sharedFlags) {
	if flags.storage != "" {
		cfg.StorageMode = strings.ToLower(flags.storage)
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.concurrency > 0 {
		cfg.Concurrency = flags.concurrency
	}
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StorageMode {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
		pg, err := store.NewPostgresStore(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "file":
		fs, err := store.NewFileStore(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageMode)
	}
}

func validateLetters(letters []string) error {
	valid := map[string]struct{}{}
	for _, l := range config.Alphabet {
		valid[l] = struct{}{}
	}
	for _, l := range letters {
		if _, ok := valid[strings.ToUpper(l)]; !ok {
			return fmt.Errorf("invalid letter %q", l)
		}
	}
	return nil
}

func logErrors(errs []string) {
	const maxShown = 5
	for i, e := range errs {
		if i == maxShown {
			logger.Warn("More errors omitted", "count", len(errs)-maxShown)
			break
		}
		logger.Error("Scrape error", "error", e)
	}
}
