package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rakaly/cli/internal/catalog"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/resilience"
	"github.com/rakaly/cli/internal/tokens"
	"github.com/rakaly/cli/internal/watch"
)

var (
	watchOutDir    string
	watchFrequency string
	watchFormat    string
	watchDebounce  time.Duration
	watchCatalog   string
	watchVersion   string
)

var watchCmd = &cobra.Command{
	Use:   "watch <input>",
	Short: "Snapshot a save file as the campaign progresses",
	Long:  "Copies the save to <out-dir>/<stem>_<date><ext> whenever its in-game date enters a new day, month, quarter, year or decade. Runs until interrupted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("watch"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := watchOptions(args[0])
		if err != nil {
			return err
		}

		store, err := openCatalog(ctx, watchCatalog)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close() //nolint:errcheck
			bcfg := resilience.BreakerFromConfig(cfg.Catalog.BreakerThreshold, cfg.Catalog.BreakerCooldownSecs)
			bcfg.OnStateChange = func(from, to resilience.BreakerState) {
				zap.L().Warn("catalog breaker", zap.String("from", from.String()), zap.String("to", to.String()))
			}
			opts.Recorder = store
			opts.Breaker = resilience.NewBreaker(bcfg)
		}

		eng, err := watch.New(opts)
		if err != nil {
			return err
		}
		return eng.Run(ctx)
	},
}

func watchOptions(input string) (watch.Options, error) {
	opts := watch.Options{
		Input:  input,
		OutDir: watchOutDir,
		Retry:  resilience.FromConfig(cfg.Watch.RetryAttempts, cfg.Watch.RetryBackoffMs),
	}
	opts.Retry.OnRetry = resilience.RetryLogger("watch", input)

	g, err := watchGame(input)
	if err != nil {
		return opts, err
	}
	version, err := game.ParseVersion(watchVersion)
	if err != nil {
		return opts, err
	}
	caps, err := game.Lookup(g, version)
	if err != nil {
		return opts, err
	}
	reg, err := tokens.LoadDir(cfg.Tokens.Dir)
	if err != nil {
		return opts, err
	}
	opts.Extractor = &watch.DateExtractor{Caps: caps, Resolver: reg.For(g, version)}

	if watchFrequency != "" {
		if opts.Frequency, err = watch.ParseFrequency(watchFrequency); err != nil {
			return opts, err
		}
	}
	opts.Debounce = watchDebounce
	if opts.Debounce == 0 {
		opts.Debounce = time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	}
	return opts, nil
}

func watchGame(input string) (game.Game, error) {
	if watchFormat != "" {
		return game.Parse(watchFormat)
	}
	return game.FromPath(input)
}

// openCatalog opens the catalog named by dsn, or the configured one when
// dsn is empty. It returns nil when no catalog is configured. A dsn with a
// postgres:// scheme selects Postgres; anything else is a SQLite path.
func openCatalog(ctx context.Context, dsn string) (catalog.Store, error) {
	driver := cfg.Catalog.Driver
	if dsn != "" {
		driver = "sqlite"
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			driver = "postgres"
		}
	} else {
		dsn = cfg.Catalog.DSN
	}
	if driver == "" {
		return nil, nil
	}
	if dsn == "" {
		return nil, eris.Errorf("catalog: %s needs a dsn", driver)
	}
	st, err := catalog.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("catalog opened", zap.String("driver", driver))
	return st, nil
}

// snapshotSource is the key snapshots of input are cataloged under.
func snapshotSource(input string) (string, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", eris.Wrapf(err, "resolve %s", input)
	}
	return abs, nil
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutDir, "out-dir", "o", "", "snapshot directory (default <parent>/<stem>)")
	watchCmd.Flags().StringVar(&watchFrequency, "frequency", "", "snapshot frequency: daily, monthly, quarterly, yearly or decade (default per game)")
	watchCmd.Flags().StringVar(&watchFormat, "format", "", "game of the input; detected from the extension when omitted")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period after the last change (default from config)")
	watchCmd.Flags().StringVar(&watchVersion, "game-version", "", "game version selecting the token dictionary")
	watchCmd.Flags().StringVar(&watchCatalog, "catalog", "", "catalog database: a SQLite path or postgres:// URL (default from config)")
	rootCmd.AddCommand(watchCmd)
}
