package memory

import (
	"context"
	"fmt"
	"sync"

	"cashflow/internal/core"
	ports "cashflow/internal/sheets"
)

var _ ports.TotalsExporter = (*Store)(nil)

// Store keeps exported totals in process. It stands in for Sheets when no
// spreadsheet is configured.
type Store struct {
	mu     sync.Mutex
	years  map[int][]core.MonthTotal
	writes int
}

func New() *Store {
	return &Store{years: make(map[int][]core.MonthTotal)}
}

func (s *Store) WriteMonthlyTotals(_ context.Context, year int, totals []core.MonthTotal) (string, error) {
	if year < 1 || year > 9999 {
		return "", fmt.Errorf("invalid year: %d", year)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.years[year] = append([]core.MonthTotal(nil), totals...)
	s.writes++
	return fmt.Sprintf("mem:%d:%d", year, s.writes), nil
}

func (s *Store) ReadMonthlyTotals(_ context.Context, year int) ([]core.MonthTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MonthTotal(nil), s.years[year]...), nil
}

// Writes returns how many exports were stored.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
