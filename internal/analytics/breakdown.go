package analytics

import (
	"sort"

	"cashflow/internal/core"
)

// DefaultMergeThreshold is the share, in percent, below which a category is
// folded into the uncategorized slice.
const DefaultMergeThreshold = 5

// Breakdown totals one transaction type per category over the whole window
// and folds every category under threshold percent of the total into
// category 0. Slices come back by descending value, ties by category id,
// colored by rank from the palette. Names are left for the caller to resolve.
func Breakdown(entries []core.Entry, start, end core.Date, typ core.TransactionType, threshold int) ([]core.CategorySlice, error) {
	window := core.Window(start, end)
	if err := validateWindow(start, end, Day); err != nil {
		return nil, core.Annotate(Component, window, err)
	}
	if !typ.Valid() {
		return nil, core.Annotate(Component, window, core.Invalid("transactionType", "must be INCOME or EXPENSE"))
	}
	if threshold < 0 || threshold > 100 {
		return nil, core.Annotate(Component, window, core.Invalid("threshold", "must be between 0 and 100"))
	}

	totals := make(map[int64]int64)
	var total int64
	for _, e := range entries {
		if e.IsParent() || e.Type != typ || !inWindow(e.CreatedAt, start, end) {
			continue
		}
		totals[e.CategoryKey()] += e.Amount.Cents
		total += e.Amount.Cents
	}
	if total == 0 {
		return []core.CategorySlice{}, nil
	}

	merged := make(map[int64]int64, len(totals))
	for id, v := range totals {
		if id == core.UncategorizedID || v*100 < total*int64(threshold) {
			merged[core.UncategorizedID] += v
			continue
		}
		merged[id] = v
	}

	slices := make([]core.CategorySlice, 0, len(merged))
	for id, v := range merged {
		slices = append(slices, core.CategorySlice{
			CategoryID:       id,
			Value:            core.Money{Cents: v},
			ShareBasisPoints: v * 10000 / total,
		})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Value.Cents != slices[j].Value.Cents {
			return slices[i].Value.Cents > slices[j].Value.Cents
		}
		return slices[i].CategoryID < slices[j].CategoryID
	})
	for i := range slices {
		slices[i].Color = core.Palette[i%len(core.Palette)]
		if slices[i].CategoryID == core.UncategorizedID {
			slices[i].Name = core.UncategorizedName
		}
	}
	return slices, nil
}
