// Command cashflowctl runs ledger maintenance and reports from the shell
// against the same store the server uses.
package main

import (
	"context"
	"os"

	"cashflow/internal/backend"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	applog "cashflow/internal/log"
	"cashflow/internal/services"
)

func main() {
	cfg, logger := cli.MustBootstrap(applog.ComponentCLI)
	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	root := newRootCmd(cfg, storeOpener(cfg, logger))
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// storeOpener builds the service graph without caches or event publishing.
// One-shot commands have nothing to invalidate and nobody to notify.
func storeOpener(cfg *config.Config, logger *applog.Logger) opener {
	return func(ctx context.Context) (*backend.App, func() error, error) {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		bcfg.Cache = backend.NoCache
		bcfg.AMQPURL = ""
		res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
		if err != nil {
			return nil, nil, err
		}
		return backend.NewApp(res, services.SystemClock, cfg.StoreTimeout), res.Cleanup, nil
	}
}
