// Package cli defines the edge-ledger commands.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/logger"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/metrics"
)

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:   "edge-ledger",
		Short: "Detect, record and settle positive-edge wagers",
		Long: `edge-ledger blends model probabilities with bookmaker prices, records
qualifying opportunities, captures closing lines and grades results.

Each pass is a short batch job; --interval repeats it until interrupted.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is normal outside local development
			_ = godotenv.Load()

			if configPath == "" {
				configPath = os.Getenv("EDGE_LEDGER_CONFIG")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log, err := logger.New("edge-ledger", cfg.Log.Env)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}

			a.cfg = cfg
			a.log = log
			a.metrics = metrics.New()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $EDGE_LEDGER_CONFIG)")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while a pass loops")

	root.AddCommand(scanCommand(a))
	root.AddCommand(settleCommand(a))
	root.AddCommand(clvCommand(a))
	root.AddCommand(serveCommand(a))
	root.AddCommand(purgeCommand(a))
	root.AddCommand(calibrateCommand(a))
	root.AddCommand(migrateCommand(a))
	return root
}
