package paging

import (
	"errors"
	"testing"

	"cashflow/internal/core"
)

func entries(n int) []core.Entry {
	out := make([]core.Entry, n)
	for i := 0; i < n; i++ {
		out[i] = core.Entry{
			ID:        int64(i + 1),
			Type:      core.Expense,
			Amount:    core.Money{Cents: int64(100 * ((i % 5) + 1))},
			CreatedAt: core.NewDate(2025, 1, 1).AddDays(i / 2), // pairs share a date
		}
	}
	return out
}

func ids(es []core.Entry) []int64 {
	out := make([]int64, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestPage_FirstPage(t *testing.T) {
	all := entries(25)
	o := OrderFor(core.NewestFirst)

	res := Page(all, o, 10, nil, false)
	if len(res.Items) != 10 {
		t.Fatalf("len(Items) = %d, want 10", len(res.Items))
	}
	if res.NextCursorID == nil || *res.NextCursorID != res.Items[9].ID {
		t.Fatalf("NextCursorID = %v, want id of 10th item %d", res.NextCursorID, res.Items[9].ID)
	}
	if res.Count != nil {
		t.Errorf("Count = %d, want omitted", *res.Count)
	}
	// Newest first, id breaks the tie between entries sharing a date.
	if res.Items[0].ID != 25 || res.Items[1].ID != 24 || res.Items[2].ID != 23 {
		t.Errorf("order = %v", ids(res.Items))
	}
}

func TestPage_WalksWholeSet(t *testing.T) {
	all := entries(25)
	for _, opt := range []core.SortOption{core.NewestFirst, core.OldestFirst, core.HighestAmount, core.LowestAmount} {
		t.Run(string(opt), func(t *testing.T) {
			o := OrderFor(opt)
			seen := map[int64]bool{}
			var after *Boundary
			pages := 0
			for {
				res := Page(all, o, 7, after, true)
				if *res.Count != 25 {
					t.Fatalf("Count = %d, want 25", *res.Count)
				}
				for _, e := range res.Items {
					if seen[e.ID] {
						t.Fatalf("entry %d returned twice", e.ID)
					}
					seen[e.ID] = true
				}
				pages++
				if res.NextCursorID == nil {
					break
				}
				after = res.NextBoundary
			}
			if len(seen) != 25 || pages != 4 {
				t.Errorf("saw %d entries over %d pages, want 25 over 4", len(seen), pages)
			}
		})
	}
}

func TestPage_StableAgainstInsertsAndDeletes(t *testing.T) {
	all := entries(20)
	o := OrderFor(core.NewestFirst)
	first := Page(all, o, 5, nil, false)
	second := Page(all, o, 5, first.NextBoundary, false)

	// An entry that sorts after the first page's boundary must not change
	// what the first page returned.
	later := append(append([]core.Entry{}, all...), core.Entry{ID: 99, CreatedAt: core.NewDate(2024, 6, 1), Amount: core.Money{Cents: 1}})
	again := Page(later, o, 5, nil, false)
	if !equalIDs(ids(first.Items), ids(again.Items)) || *again.NextCursorID != *first.NextCursorID {
		t.Errorf("first page changed after insert: %v vs %v", ids(first.Items), ids(again.Items))
	}

	// Deleting the cursor item itself does not shift the next page.
	var without []core.Entry
	for _, e := range all {
		if e.ID != *first.NextCursorID {
			without = append(without, e)
		}
	}
	resumed := Page(without, o, 5, first.NextBoundary, false)
	if !equalIDs(ids(second.Items), ids(resumed.Items)) {
		t.Errorf("page after deleted cursor = %v, want %v", ids(resumed.Items), ids(second.Items))
	}
}

func TestPage_EndOfSet(t *testing.T) {
	res := Page(entries(4), OrderFor(core.OldestFirst), 10, nil, false)
	if len(res.Items) != 4 || res.NextCursorID != nil {
		t.Errorf("Page() = %d items cursor %v, want 4 items and no cursor", len(res.Items), res.NextCursorID)
	}
	empty := Page(nil, OrderFor(core.OldestFirst), 10, nil, true)
	if empty.Items == nil || len(empty.Items) != 0 || *empty.Count != 0 {
		t.Errorf("Page(nil) = %+v", empty)
	}
}

func TestClampTake(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, MaxTake},
		{-4, 1},
		{1, 1},
		{30, 30},
		{31, 30},
		{500, 30},
	}
	for _, tt := range tests {
		if got := ClampTake(tt.in); got != tt.want {
			t.Errorf("ClampTake(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBoundaryToken(t *testing.T) {
	o := OrderFor(core.HighestAmount)
	b := Boundary{ID: 42, Key: 12345}
	got, err := DecodeBoundary(o, EncodeBoundary(o, b))
	if err != nil || got != b {
		t.Fatalf("DecodeBoundary() = %+v, %v, want %+v", got, err, b)
	}

	if _, err := DecodeBoundary(OrderFor(core.NewestFirst), EncodeBoundary(o, b)); !errors.Is(err, core.ErrValidation) {
		t.Errorf("token for another order accepted: %v", err)
	}
	if _, err := DecodeBoundary(o, "%%%"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("garbage token accepted: %v", err)
	}
}

func TestDateOfKey(t *testing.T) {
	o := OrderFor(core.NewestFirst)
	e := core.Entry{CreatedAt: core.NewDate(2025, 3, 31)}
	if got := DateOfKey(o.KeyOf(e)); got.String() != "2025-03-31" {
		t.Errorf("DateOfKey(KeyOf()) = %v", got)
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
