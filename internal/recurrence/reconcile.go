package recurrence

import (
	"cashflow/internal/core"
)

// Component names this package in annotated errors.
const Component = "recurrence"

// Result is the outcome of reconciling one parent against its materialized
// children.
type Result struct {
	// OccurrencesToCreate are grid dates up to the cutoff without a child, ascending.
	OccurrencesToCreate []core.Date
	// Existing are grid dates that already have a child, ascending.
	Existing []core.Date
	// Extra are materialized dates that are not on the grid. They are
	// reported, never removed.
	Extra []core.Date
	// NextDueDate is the first grid date after the cutoff. Zero for
	// disabled parents.
	NextDueDate core.Date
}

// Reconcile walks parent's recurrence grid from its anchor up to and
// including cutoff and reports which occurrences are missing.
//
// Matching is by exact date equality. A disabled parent yields no new
// occurrences, including one already due for the current period.
func Reconcile(parent core.Entry, materialized []core.Date, cutoff core.Date) (Result, error) {
	window := core.Window(parent.CreatedAt, cutoff)
	if !parent.IsRecurring {
		return Result{}, core.Annotate(Component, window, core.Invalid("isRecurring", "entry is not a recurring rule"))
	}
	if parent.TransactionID != nil {
		return Result{}, core.Annotate(Component, window, &core.ValidationError{
			Field: "transactionId", Reason: "a recurring rule cannot have a parent", Err: core.ErrNestedRecurring,
		})
	}
	if parent.RecurringBaseInterval < 1 {
		return Result{}, core.Annotate(Component, window, core.Invalid("recurringBaseInterval", "must be at least 1"))
	}
	if parent.CreatedAt.IsZero() || cutoff.IsZero() {
		return Result{}, core.Annotate(Component, window, core.Invalid("createdAt", "anchor and cutoff are required"))
	}
	stepper, err := StepperFor(parent.RecurringType)
	if err != nil {
		return Result{}, core.Annotate(Component, window, err)
	}

	have := make(map[string]struct{}, len(materialized))
	for _, d := range materialized {
		have[d.String()] = struct{}{}
	}

	var res Result
	onGrid := make(map[string]struct{}, len(materialized))
	anchor := parent.CreatedAt
	n := 0
	for ; ; n++ {
		d := stepper.Step(anchor, n, parent.RecurringBaseInterval)
		if d.After(cutoff.Time) {
			if !parent.RecurringDisabled {
				res.NextDueDate = d
			}
			break
		}
		key := d.String()
		onGrid[key] = struct{}{}
		if _, ok := have[key]; ok {
			res.Existing = append(res.Existing, d)
			continue
		}
		if !parent.RecurringDisabled {
			res.OccurrencesToCreate = append(res.OccurrencesToCreate, d)
		}
	}

	// Children dated after the cutoff are checked against the grid beyond it.
	latest := cutoff
	for _, d := range materialized {
		if d.After(latest.Time) {
			latest = d
		}
	}
	for latest.After(cutoff.Time) {
		d := stepper.Step(anchor, n, parent.RecurringBaseInterval)
		if d.After(latest.Time) {
			break
		}
		onGrid[d.String()] = struct{}{}
		n++
	}

	for _, d := range materialized {
		if _, ok := onGrid[d.String()]; !ok {
			res.Extra = append(res.Extra, d)
		}
	}
	return res, nil
}
