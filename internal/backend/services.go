package backend

import (
	"time"

	"cashflow/internal/services"
)

// App is the service graph shared by the server and the CLI.
type App struct {
	Processor *services.RecurringProcessor
	Entries   *services.EntryService
	Queries   *services.QueryService
	Reports   *services.ReportService
	Catalog   *services.CatalogService
}

// NewApp wires the services over res. Every write purges res.Caches and,
// when a publisher is configured, emits a change event.
func NewApp(res *BackendResult, clock services.Clock, storeTimeout time.Duration) *App {
	cfg := services.ProcessorConfig{
		Clock:        clock,
		StoreTimeout: storeTimeout,
		Publisher:    res.Publisher,
		Purgers:      []services.Purger{res.Caches},
	}
	processor := services.NewRecurringProcessor(res.Store, cfg)
	return &App{
		Processor: processor,
		Entries:   services.NewEntryService(res.Store, processor, cfg),
		Queries:   services.NewQueryService(res.Store, processor, storeTimeout),
		Reports:   services.NewReportService(res.Store, processor, res.Caches, cfg),
		Catalog:   services.NewCatalogService(res.Store, res.Store, cfg),
	}
}
