package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/sheets"
)

// TotalsSource computes monthly totals. *services.ReportService implements it.
type TotalsSource interface {
	MonthlyTotals(ctx context.Context, year int, month *int) ([]core.MonthTotal, error)
}

// ExportWorker keeps the spreadsheet export in step with the ledger: every
// entry change re-exports the monthly totals of the years it touched.
type ExportWorker struct {
	source   TotalsSource
	exporter sheets.TotalsExporter
}

func NewExportWorker(source TotalsSource, exporter sheets.TotalsExporter) *ExportWorker {
	return &ExportWorker{source: source, exporter: exporter}
}

// HandleEntryChanged exports every year named by msg. A returned error
// requeues the message, so failures that a retry cannot fix are logged
// and dropped instead.
func (w *ExportWorker) HandleEntryChanged(ctx context.Context, msg *amqp.EntryChangedMessage) error {
	slog.InfoContext(ctx, "Processing entry change",
		applog.FieldMessageID, msg.MessageID,
		applog.FieldEntryID, msg.EntryID,
		"action", msg.Action,
		"years", msg.Years)

	var errs []error
	for _, year := range msg.Years {
		if err := w.ExportYear(ctx, year); err != nil {
			if errors.Is(err, core.ErrValidation) {
				slog.WarnContext(ctx, "Dropping export of invalid year",
					applog.FieldMessageID, msg.MessageID,
					applog.FieldYear, year,
					applog.FieldError, err)
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportYear writes the year's totals unless the export already holds
// the same figures.
func (w *ExportWorker) ExportYear(ctx context.Context, year int) error {
	totals, err := w.source.MonthlyTotals(ctx, year, nil)
	if err != nil {
		return fmt.Errorf("compute totals for %d: %w", year, err)
	}

	current, err := w.exporter.ReadMonthlyTotals(ctx, year)
	if err != nil {
		// Writing is still correct without the comparison.
		slog.WarnContext(ctx, "Failed to read exported totals",
			applog.FieldYear, year,
			applog.FieldError, err)
	} else if sheets.Equal(current, nonEmpty(totals)) {
		slog.DebugContext(ctx, "Export up to date", applog.FieldYear, year)
		return nil
	}

	ref, err := w.exporter.WriteMonthlyTotals(ctx, year, nonEmpty(totals))
	if err != nil {
		return fmt.Errorf("write totals for %d: %w", year, err)
	}
	slog.InfoContext(ctx, "Successfully exported monthly totals",
		applog.FieldYear, year,
		"sheets_ref", ref)
	return nil
}

// StartupExport re-exports the given years once. It recovers changes
// whose messages were lost while the worker was down.
func (w *ExportWorker) StartupExport(ctx context.Context, years ...int) error {
	var errs []error
	for _, year := range years {
		if err := w.ExportYear(ctx, year); err != nil {
			slog.ErrorContext(ctx, "Startup export failed",
				applog.FieldYear, year,
				applog.FieldError, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// nonEmpty drops months without any movement; the export leaves them blank.
func nonEmpty(totals []core.MonthTotal) []core.MonthTotal {
	out := make([]core.MonthTotal, 0, len(totals))
	for _, t := range totals {
		if t.Income.Cents != 0 || t.Expense.Cents != 0 {
			out = append(out, t)
		}
	}
	return out
}
