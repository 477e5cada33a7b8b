package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/calibration"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/clv"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/edge"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/feed"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/intake"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/scanner"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/settler"
)

func scanCommand(a *app) *cobra.Command {
	var (
		sports   []string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate current odds and record qualifying opportunities",
		Long: `Scan reads the latest odds snapshot for each sport, blends the model's
probability with the market, and upserts the best qualifying selection per
match. Sports are scanned in parallel.`,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			rdb, err := a.redis(ctx)
			if err != nil {
				return err
			}

			src := feed.NewRedis(rdb, a.cfg.Providers.KeyPrefix)
			s := scanner.New(a.cfg, edge.NewEngine(a.cfg.Edge), scanner.Deps{
				Odds:        src,
				Model:       src,
				Splits:      src,
				Ratings:     intake.NewRatings(src, a.matcher(), a.cfg.Providers.Timeout, a.log),
				Store:       st,
				Calibration: calibration.NewService(st, calibration.NewRedisCache(rdb), a.cfg.Calibration, a.log),
				Events:      a.publisher(rdb),
				Metrics:     a.metrics,
			}, a.log)

			if len(sports) == 0 {
				sports = a.cfg.Sports
			}
			return a.loop(ctx, "scan", interval, func(ctx context.Context) error {
				_, err := s.RunAll(ctx, sports)
				return err
			})
		}),
	}

	cmd.Flags().StringSliceVar(&sports, "sport", nil, "sport keys to scan (default: configured sports)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the pass at this interval until interrupted")
	return cmd
}

func settleCommand(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Grade pending opportunities whose games have started",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			rdb, err := a.redis(ctx)
			if err != nil {
				return err
			}

			src := feed.NewRedis(rdb, a.cfg.Providers.KeyPrefix)
			s := settler.New(a.cfg, st, src, a.matcher(), a.publisher(rdb), a.metrics, a.log)
			return a.loop(ctx, "settle", interval, func(ctx context.Context) error {
				_, err := s.Run(ctx)
				return err
			})
		}),
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the pass at this interval until interrupted")
	return cmd
}

func clvCommand(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "clv",
		Short: "Record closing odds for opportunities about to start",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			rdb, err := a.redis(ctx)
			if err != nil {
				return err
			}

			t := clv.New(a.cfg, st, feed.NewRedis(rdb, a.cfg.Providers.KeyPrefix), a.matcher(), a.metrics, a.log)
			return a.loop(ctx, "clv", interval, func(ctx context.Context) error {
				_, err := t.Run(ctx)
				return err
			})
		}),
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the pass at this interval until interrupted")
	return cmd
}
