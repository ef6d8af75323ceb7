// Package recurrence computes the occurrence grid of recurring rules.
//
// Each recurring type has its own Stepper strategy that encapsulates the
// calendar arithmetic for one unit (day, week, month, year). Occurrence n is
// always derived from the anchor directly, never from occurrence n-1, so a
// rule anchored on the 31st returns to the 31st after a short month.
package recurrence

import (
	"fmt"
	"sync"
	"time"

	"cashflow/internal/core"
)

// Stepper is the strategy interface for one recurring unit.
type Stepper interface {
	// Step returns the date n*interval units after anchor.
	Step(anchor core.Date, n, interval int) core.Date
}

// DailyStepper steps by calendar days.
type DailyStepper struct{}

func (DailyStepper) Step(anchor core.Date, n, interval int) core.Date {
	return anchor.AddDays(n * interval)
}

// WeeklyStepper steps by 7-day weeks.
type WeeklyStepper struct{}

func (WeeklyStepper) Step(anchor core.Date, n, interval int) core.Date {
	return anchor.AddDays(7 * n * interval)
}

// MonthlyStepper steps by calendar months, clamping to the last day of
// shorter months.
type MonthlyStepper struct{}

func (MonthlyStepper) Step(anchor core.Date, n, interval int) core.Date {
	return addMonthsClamped(anchor, n*interval)
}

// YearlyStepper steps by calendar years. Feb 29 anchors land on Feb 28 in
// non-leap years.
type YearlyStepper struct{}

func (YearlyStepper) Step(anchor core.Date, n, interval int) core.Date {
	return addMonthsClamped(anchor, 12*n*interval)
}

func addMonthsClamped(anchor core.Date, months int) core.Date {
	// Day 1 never overflows, so time.Date only normalizes month into year.
	first := time.Date(anchor.Year(), time.Month(anchor.Month()+months), 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), int(first.Month())
	day := anchor.Day()
	if last := core.DaysInMonth(y, m); day > last {
		day = last
	}
	return core.NewDate(y, m, day)
}

var (
	mu       sync.RWMutex
	steppers = map[core.RecurringType]Stepper{
		core.Daily:   DailyStepper{},
		core.Weekly:  WeeklyStepper{},
		core.Monthly: MonthlyStepper{},
		core.Yearly:  YearlyStepper{},
	}
)

// StepperFor returns the stepper registered for a recurring type.
func StepperFor(rt core.RecurringType) (Stepper, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := steppers[rt]
	if !ok {
		return nil, &core.ValidationError{
			Field:  "recurringType",
			Reason: fmt.Sprintf("unknown recurring type: %s", rt),
		}
	}
	return s, nil
}

// Register installs a stepper for a recurring type, replacing any existing one.
func Register(rt core.RecurringType, s Stepper) {
	mu.Lock()
	defer mu.Unlock()
	steppers[rt] = s
}
