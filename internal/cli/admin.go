package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/api"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/calibration"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
)

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator API and metrics",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}

			h := api.NewHandler(st, a.cfg.Edge, a.log)
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           api.NewRouter(h, a.cfg.Server, a.metrics.Handler(), a.log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("api listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("api server: %w", err)
			case <-ctx.Done():
			}

			a.log.Info("shutting down api")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("api shutdown: %w", err)
			}
			return nil
		}),
	}
}

func purgeCommand(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete pending opportunities whose kickoff is long past",
		Long: `Purge removes PENDING opportunities whose kickoff is older than
--older-than. These are rows the settlement pass could never match. Settled
rows are never deleted.`,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}

			cutoff := time.Now().Add(-olderThan)
			n, err := st.PurgeStalePending(ctx, cutoff)
			if err != nil {
				return err
			}
			a.log.Info("stale pending opportunities purged", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d pending opportunities with kickoff before %s\n", n, cutoff.UTC().Format(time.RFC3339))
			return nil
		}),
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "minimum age of the kickoff")
	return cmd
}

func calibrateCommand(a *app) *cobra.Command {
	var sports []string

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Recompute per-sport calibration factors from settled history",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}

			var cache contracts.FactorCache
			if rdb, err := a.redis(ctx); err != nil {
				a.log.Warn("redis unavailable, factors will not be cached", zap.Error(err))
			} else {
				cache = calibration.NewRedisCache(rdb)
			}
			svc := calibration.NewService(st, cache, a.cfg.Calibration, a.log)

			if len(sports) == 0 {
				sports = a.cfg.Sports
			}
			var errs []error
			for _, sport := range sports {
				f, err := svc.Refresh(ctx, sport)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s factor=%.4f samples=%d\n", sport, f.Factor, f.Samples)
			}
			return errors.Join(errs...)
		}),
	}

	cmd.Flags().StringSliceVar(&sports, "sport", nil, "sport keys to recompute (default: configured sports)")
	return cmd
}

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger schema",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			a.log.Info("schema up to date")
			return nil
		}),
	}
}
