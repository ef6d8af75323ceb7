package analytics

import (
	"errors"
	"math/rand"
	"testing"

	"cashflow/internal/core"
)

func entry(id int64, typ core.TransactionType, cents int64, d core.Date, category int64) core.Entry {
	e := core.Entry{
		ID:        id,
		Type:      typ,
		Amount:    core.Money{Cents: cents},
		Currency:  core.DefaultCurrency,
		CreatedAt: d,
	}
	if category > 0 {
		e.CategoryID = &category
	}
	return e
}

func TestAggregate_MonthlyNet(t *testing.T) {
	entries := []core.Entry{
		entry(1, core.Expense, 100, core.NewDate(2025, 1, 5), 0),
		entry(2, core.Expense, 200, core.NewDate(2025, 1, 20), 0),
		entry(3, core.Income, 300, core.NewDate(2025, 1, 10), 0),
	}

	buckets, err := Aggregate(entries, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31), Month, false)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("len(buckets) = %d, want 1", len(buckets))
	}
	b := buckets[0]
	if b.Income.Cents != 300 || b.Expense.Cents != 300 || b.Net() != 0 {
		t.Errorf("bucket = income %d expense %d net %d, want 300/300/0", b.Income.Cents, b.Expense.Cents, b.Net())
	}
}

func TestAggregate_WeekStartsMonday(t *testing.T) {
	// 2025-01-01 is a Wednesday.
	buckets, err := Aggregate(nil, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 19), Week, false)
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]string{
		{"2025-01-01", "2025-01-05"},
		{"2025-01-06", "2025-01-12"},
		{"2025-01-13", "2025-01-19"},
	}
	if len(buckets) != len(want) {
		t.Fatalf("len(buckets) = %d, want %d", len(buckets), len(want))
	}
	for i, w := range want {
		if buckets[i].Start.String() != w[0] || buckets[i].End.String() != w[1] {
			t.Errorf("bucket %d = %v..%v, want %s..%s", i, buckets[i].Start, buckets[i].End, w[0], w[1])
		}
	}
}

func TestAggregate_Granularities(t *testing.T) {
	start, end := core.NewDate(2024, 12, 30), core.NewDate(2025, 2, 2)
	tests := []struct {
		g    Granularity
		want int
	}{
		{Day, 35},
		{Week, 5},
		{Month, 3},
		{Year, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			buckets, err := Aggregate(nil, start, end, tt.g, false)
			if err != nil {
				t.Fatal(err)
			}
			if len(buckets) != tt.want {
				t.Errorf("Aggregate(%s) buckets = %d, want %d", tt.g, len(buckets), tt.want)
			}
			for i := 1; i < len(buckets); i++ {
				if buckets[i].Start.String() != buckets[i-1].End.AddDays(1).String() {
					t.Errorf("gap between bucket %d and %d", i-1, i)
				}
			}
		})
	}
}

func TestAggregate_Partition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := core.NewDate(2024, 1, 1)
	for round := 0; round < 50; round++ {
		var entries []core.Entry
		for i := 0; i < 200; i++ {
			typ := core.Income
			if rng.Intn(2) == 0 {
				typ = core.Expense
			}
			d := base.AddDays(rng.Intn(800))
			entries = append(entries, entry(int64(i+1), typ, int64(rng.Intn(100000)+1), d, int64(rng.Intn(4))))
		}
		start := base.AddDays(rng.Intn(300))
		end := start.AddDays(rng.Intn(400))

		var wantIncome, wantExpense int64
		for _, e := range entries {
			if inWindow(e.CreatedAt, start, end) {
				if e.Type == core.Income {
					wantIncome += e.Amount.Cents
				} else {
					wantExpense += e.Amount.Cents
				}
			}
		}

		for _, g := range []Granularity{Day, Week, Month, Year} {
			buckets, err := Aggregate(entries, start, end, g, true)
			if err != nil {
				t.Fatal(err)
			}
			var income, expense, byCategory int64
			for _, b := range buckets {
				income += b.Income.Cents
				expense += b.Expense.Cents
				for _, c := range b.ByCategory {
					byCategory += c.Amount.Cents
				}
			}
			if income != wantIncome || expense != wantExpense {
				t.Fatalf("round %d %s: income %d expense %d, want %d %d", round, g, income, expense, wantIncome, wantExpense)
			}
			if byCategory != wantIncome+wantExpense {
				t.Fatalf("round %d %s: category sums %d, want %d", round, g, byCategory, wantIncome+wantExpense)
			}
		}
	}
}

func TestAggregate_SkipsParentsAndOutOfWindow(t *testing.T) {
	parent := entry(1, core.Expense, 5000, core.NewDate(2025, 3, 1), 0)
	parent.IsRecurring = true
	parent.RecurringType = core.Monthly
	parent.RecurringBaseInterval = 1
	entries := []core.Entry{
		parent,
		entry(2, core.Expense, 5000, core.NewDate(2025, 3, 1), 0),
		entry(3, core.Income, 700, core.NewDate(2025, 2, 28), 0),
		entry(4, core.Income, 900, core.NewDate(2025, 4, 1), 0),
	}
	buckets, err := Aggregate(entries, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31), Month, false)
	if err != nil {
		t.Fatal(err)
	}
	if buckets[0].Expense.Cents != 5000 || buckets[0].Income.Cents != 0 {
		t.Errorf("bucket = %+v, want only the realized expense", buckets[0])
	}
}

func TestAggregate_Categories(t *testing.T) {
	entries := []core.Entry{
		entry(1, core.Expense, 100, core.NewDate(2025, 1, 5), 2),
		entry(2, core.Expense, 50, core.NewDate(2025, 1, 6), 2),
		entry(3, core.Expense, 30, core.NewDate(2025, 1, 7), 0),
		entry(4, core.Income, 900, core.NewDate(2025, 1, 8), 1),
	}
	buckets, err := Aggregate(entries, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31), Month, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []CategoryAmount{
		{CategoryID: 1, Type: core.Income, Amount: core.Money{Cents: 900}},
		{CategoryID: 0, Type: core.Expense, Amount: core.Money{Cents: 30}},
		{CategoryID: 2, Type: core.Expense, Amount: core.Money{Cents: 150}},
	}
	got := buckets[0].ByCategory
	if len(got) != len(want) {
		t.Fatalf("ByCategory = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ByCategory[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	rows := Rows(buckets, true)
	if len(rows) != 3 || rows[1].Category == nil || *rows[1].Category != 0 {
		t.Errorf("Rows() = %+v", rows)
	}
	if dense := Rows(buckets, false); len(dense) != 2 || dense[0].Type != core.Income || dense[0].Value != 900 {
		t.Errorf("Rows(false) = %+v", dense)
	}
}

func TestAggregate_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		start, end core.Date
		g          Granularity
	}{
		{"reversed window", core.NewDate(2025, 2, 1), core.NewDate(2025, 1, 1), Month},
		{"missing start", core.Date{}, core.NewDate(2025, 1, 1), Month},
		{"bad granularity", core.NewDate(2025, 1, 1), core.NewDate(2025, 2, 1), "HOUR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(nil, tt.start, tt.end, tt.g, false)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("Aggregate() error = %v, want validation error", err)
			}
			var opErr *core.OpError
			if !errors.As(err, &opErr) || opErr.Component != Component {
				t.Errorf("error not annotated: %v", err)
			}
		})
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity("week"); err != nil || g != Week {
		t.Fatalf("ParseGranularity(week) = %v, %v", g, err)
	}
	if _, err := ParseGranularity("fortnight"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
