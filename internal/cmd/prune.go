package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/namelens/draftprune/internal/config"
	"github.com/namelens/draftprune/internal/core"
	"github.com/namelens/draftprune/internal/core/draftable"
	"github.com/namelens/draftprune/internal/core/engine"
	apperrors "github.com/namelens/draftprune/internal/errors"
	"github.com/namelens/draftprune/internal/observability"
	"github.com/namelens/draftprune/internal/output"
)

var (
	pruneNoConfirm    bool
	pruneDeleteID     string
	pruneListOnly     bool
	pruneOutputFormat string
)

func registerPruneFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int("batch-size", config.DefaultBatchSize, "Number of comparisons to fetch per batch")
	flags.BoolVar(&pruneNoConfirm, "no-confirm", false, "Skip confirmation prompts (auto-confirm every batch)")
	flags.String("api-key", "", "Draftable API key (default from config or DRAFTPRUNE_API_KEY)")
	flags.Int("rate-limit", config.DefaultMaxCalls, "Maximum API calls per minute")
	flags.StringVar(&pruneDeleteID, "delete-id", "", "Delete a single comparison by identifier")
	flags.BoolVar(&pruneListOnly, "list-only", false, "Only list comparisons, do not delete")
	flags.StringVar(&pruneOutputFormat, "output-format", string(output.FormatText), "Batch listing format: text|table|json|yaml")
	flags.String("base-url", config.DefaultBaseURL, "Draftable API base URL")
	flags.String("rate-limit-backend", config.BackendMemory, "Rate limit backend: memory|redis")
	flags.String("redis-addr", config.DefaultRedisAddr, "Redis address for the redis rate limit backend")
	flags.Bool("journal", false, "Record delete attempts in the local journal")

	_ = viper.BindPFlag("batch_size", flags.Lookup("batch-size"))
	_ = viper.BindPFlag("api.key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("rate_limit.max_calls", flags.Lookup("rate-limit"))
	_ = viper.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("rate_limit.backend", flags.Lookup("rate-limit-backend"))
	_ = viper.BindPFlag("redis.addr", flags.Lookup("redis-addr"))
	_ = viper.BindPFlag("journal.enabled", flags.Lookup("journal"))
}

// selectMode applies the flag precedence: --delete-id wins over --list-only,
// and deleting page by page is the default.
func selectMode(deleteID string, listOnly bool) core.Mode {
	switch {
	case strings.TrimSpace(deleteID) != "":
		return core.ModeSingleDelete
	case listOnly:
		return core.ModeList
	default:
		return core.ModeDelete
	}
}

func runPrune(cmd *cobra.Command, args []string) error {
	// Interrupts keep their default behaviour: a run that is killed, even
	// while waiting on the limiter, is simply started again.
	runID := uuid.NewString()
	ctx := apperrors.WithRunID(cmd.Context(), runID)
	logger := observability.CLILogger

	cfg, err := config.Load(ctx)
	if err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Invalid configuration", err)
	}

	format, err := output.ParseFormat(pruneOutputFormat, output.FormatText)
	if err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Invalid output format", apperrors.NewInvalidInputError(err.Error()))
	}

	if cfg.UsesPlaceholderKey() {
		logger.Warn("No API key configured, requests will be rejected",
			zap.String("hint", "pass --api-key or set DRAFTPRUNE_API_KEY"))
	}

	limiter, closeLimiter, err := buildLimiter(ctx, cfg)
	if err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Invalid rate limit", err)
	}
	defer closeLimiter()

	client := draftable.New(cfg.API.BaseURL, cfg.API.Key, limiter, cfg.API.Timeout)
	client.UserAgent = fmt.Sprintf("%s/%s", config.AppName, versionInfo.Version)

	out := cmd.OutOrStdout()
	driver := &engine.Driver{
		Service:     client,
		Confirm:     newPrompter(cmd.InOrStdin(), out).Confirm,
		Render:      output.PageWriter(format),
		Logger:      logger,
		Out:         out,
		BatchSize:   cfg.BatchSize,
		AutoConfirm: pruneNoConfirm,
		RunID:       runID,
	}

	if cfg.Journal.Enabled {
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			logger.Warn("Journal unavailable, continuing without it", zap.Error(err))
		} else {
			defer db.Close() // nolint:errcheck // best-effort cleanup
			driver.Journal = db
		}
	}

	mode := selectMode(pruneDeleteID, pruneListOnly)
	logger.Debug("Starting run",
		zap.String("run_id", runID),
		zap.String("mode", string(mode)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("rate_limit", cfg.RateLimit.MaxCalls),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
	)

	summary := driver.Run(ctx, mode, pruneDeleteID)
	writeSummary(out, summary)

	logger.Debug("Run finished",
		zap.String("run_id", runID),
		zap.String("stop", string(summary.Stop)),
		zap.Int("pages", summary.Pages),
		zap.Int("deleted", summary.Deleted),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return nil
}

func writeSummary(w io.Writer, summary core.Summary) {
	_, _ = fmt.Fprintf(w, "\n%s\n", output.SummaryLine(summary))
	if summary.Failed > 0 || summary.Skipped > 0 {
		_, _ = fmt.Fprintf(w, "Failed: %d, skipped: %d\n", summary.Failed, summary.Skipped)
	}
}

// buildLimiter returns the limiter shared by every API call of the run and a
// cleanup for any connection it holds.
func buildLimiter(ctx context.Context, cfg *config.Config) (engine.Limiter, func(), error) {
	noop := func() {}

	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			observability.CLILogger.Warn("Redis unreachable, rate limit will fall back to this process",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		}
		window, err := engine.NewRedisWindow(client, cfg.Redis.Key, cfg.RateLimit.MaxCalls, cfg.RateLimit.Window)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		window.Logger = observability.CLILogger
		return window, func() { _ = client.Close() }, nil
	default:
		window, err := engine.NewSlidingWindow(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window)
		if err != nil {
			return nil, noop, err
		}
		return window, noop, nil
	}
}
