package analytics

import (
	"sort"

	"cashflow/internal/core"
)

// CategoryAmount is the sum of one transaction type for one category inside a bucket.
type CategoryAmount struct {
	CategoryID int64
	Type       core.TransactionType
	Amount     core.Money
}

// Bucket is one calendar period of an aggregation. Start and End are
// clipped to the requested window.
type Bucket struct {
	Start      core.Date
	End        core.Date
	Income     core.Money
	Expense    core.Money
	ByCategory []CategoryAmount
}

// Net is income minus expense for the bucket.
func (b Bucket) Net() int64 {
	return b.Income.Cents - b.Expense.Cents
}

type categoryKey struct {
	id  int64
	typ core.TransactionType
}

// Aggregate partitions [start, end] by granularity and sums entries into
// the period containing their date. Entries outside the window and
// recurring parents are skipped. With withCategory set each bucket also
// carries per-category sums keyed by category id, 0 for uncategorized.
func Aggregate(entries []core.Entry, start, end core.Date, g Granularity, withCategory bool) ([]Bucket, error) {
	if err := validateWindow(start, end, g); err != nil {
		return nil, core.Annotate(Component, core.Window(start, end), err)
	}

	buckets := periods(start, end, g)
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[g.Floor(b.Start).String()] = i
	}

	var perCategory []map[categoryKey]int64
	if withCategory {
		perCategory = make([]map[categoryKey]int64, len(buckets))
	}

	for _, e := range entries {
		if e.IsParent() || !inWindow(e.CreatedAt, start, end) {
			continue
		}
		i := index[g.Floor(e.CreatedAt).String()]
		b := &buckets[i]
		switch e.Type {
		case core.Income:
			b.Income.Cents += e.Amount.Cents
		case core.Expense:
			b.Expense.Cents += e.Amount.Cents
		default:
			continue
		}
		if withCategory {
			if perCategory[i] == nil {
				perCategory[i] = make(map[categoryKey]int64)
			}
			perCategory[i][categoryKey{id: e.CategoryKey(), typ: e.Type}] += e.Amount.Cents
		}
	}

	for i := range perCategory {
		if len(perCategory[i]) == 0 {
			continue
		}
		rows := make([]CategoryAmount, 0, len(perCategory[i]))
		for k, v := range perCategory[i] {
			rows = append(rows, CategoryAmount{CategoryID: k.id, Type: k.typ, Amount: core.Money{Cents: v}})
		}
		sort.Slice(rows, func(a, b int) bool {
			if rows[a].Type != rows[b].Type {
				return rows[a].Type == core.Income
			}
			return rows[a].CategoryID < rows[b].CategoryID
		})
		buckets[i].ByCategory = rows
	}
	return buckets, nil
}

// Row is the flat transport form of a bucket: one value per type, and per
// category when categories were requested.
type Row struct {
	Date     core.Date
	Type     core.TransactionType
	Value    int64
	Category *int64
}

// Rows flattens buckets. Without category detail every bucket yields an
// income and an expense row, zero or not, so the series stays dense.
func Rows(buckets []Bucket, withCategory bool) []Row {
	var out []Row
	for _, b := range buckets {
		if !withCategory {
			out = append(out,
				Row{Date: b.Start, Type: core.Income, Value: b.Income.Cents},
				Row{Date: b.Start, Type: core.Expense, Value: b.Expense.Cents},
			)
			continue
		}
		for _, c := range b.ByCategory {
			id := c.CategoryID
			out = append(out, Row{Date: b.Start, Type: c.Type, Value: c.Amount.Cents, Category: &id})
		}
	}
	return out
}
