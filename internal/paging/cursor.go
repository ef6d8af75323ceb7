// Package paging implements keyset pagination over entries.
//
// Every order is a single sort key plus the entry id as tiebreaker, both in
// the same direction. A page starts strictly after a Boundary, never at an
// offset, so inserts and deletes elsewhere in the set do not shift it.
package paging

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cashflow/internal/core"
)

// MaxTake caps the page size.
const MaxTake = 30

type Key string

const (
	KeyCreatedAt Key = "created_at"
	KeyAmount    Key = "amount"
)

// Order is a sort key and direction.
type Order struct {
	Key  Key
	Desc bool
}

// OrderFor maps a sort option to its order. Unknown options sort newest first.
func OrderFor(opt core.SortOption) Order {
	switch opt {
	case core.OldestFirst:
		return Order{Key: KeyCreatedAt}
	case core.HighestAmount:
		return Order{Key: KeyAmount, Desc: true}
	case core.LowestAmount:
		return Order{Key: KeyAmount}
	default:
		return Order{Key: KeyCreatedAt, Desc: true}
	}
}

// Boundary is the position of the last item seen: its sort key value and id.
type Boundary struct {
	ID  int64
	Key int64
}

const secondsPerDay = 24 * 60 * 60

// KeyOf returns e's sort key value. Dates are days since the Unix epoch.
func (o Order) KeyOf(e core.Entry) int64 {
	if o.Key == KeyAmount {
		return e.Amount.Cents
	}
	return e.CreatedAt.Unix() / secondsPerDay
}

// DateOfKey converts a created_at key value back to a date.
func DateOfKey(k int64) core.Date {
	return core.Date{Time: core.NewDate(1970, 1, 1).AddDate(0, 0, int(k))}
}

// BoundaryOf returns the boundary that e marks under o.
func (o Order) BoundaryOf(e core.Entry) Boundary {
	return Boundary{ID: e.ID, Key: o.KeyOf(e)}
}

// Less reports whether a sorts before b.
func (o Order) Less(a, b core.Entry) bool {
	return o.before(o.BoundaryOf(a), o.BoundaryOf(b))
}

// After reports whether e sorts strictly after the boundary.
func (o Order) After(e core.Entry, b Boundary) bool {
	return o.before(b, o.BoundaryOf(e))
}

func (o Order) before(a, b Boundary) bool {
	if a.Key != b.Key {
		if o.Desc {
			return a.Key > b.Key
		}
		return a.Key < b.Key
	}
	if o.Desc {
		return a.ID > b.ID
	}
	return a.ID < b.ID
}

// ClampTake bounds take to [1, MaxTake]. Zero means "not given" and yields MaxTake.
func ClampTake(take int) int {
	switch {
	case take == 0:
		return MaxTake
	case take < 1:
		return 1
	case take > MaxTake:
		return MaxTake
	}
	return take
}

// Result is one page.
type Result struct {
	Items        []core.Entry
	NextCursorID *int64
	// NextBoundary and NextToken are set together with NextCursorID.
	NextBoundary *Boundary
	NextToken    string
	Count        *int
}

// Page sorts items by o and returns up to take of them strictly after the
// boundary. With withCount set, Count is the size of the whole ordered set.
func Page(items []core.Entry, o Order, take int, after *Boundary, withCount bool) Result {
	take = ClampTake(take)
	sorted := make([]core.Entry, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return o.Less(sorted[i], sorted[j]) })

	start := 0
	if after != nil {
		start = sort.Search(len(sorted), func(i int) bool { return o.After(sorted[i], *after) })
	}
	end := start + take
	if end > len(sorted) {
		end = len(sorted)
	}

	res := Finish(sorted[start:end], o, take)
	if withCount {
		n := len(sorted)
		res.Count = &n
	}
	return res
}

// Finish builds a Result from an already ordered, already limited page.
// The cursor is only set when the page is full.
func Finish(page []core.Entry, o Order, take int) Result {
	res := Result{Items: page}
	if res.Items == nil {
		res.Items = []core.Entry{}
	}
	if len(page) == take && take > 0 {
		last := page[len(page)-1]
		id := last.ID
		b := o.BoundaryOf(last)
		res.NextCursorID = &id
		res.NextBoundary = &b
		res.NextToken = EncodeBoundary(o, b)
	}
	return res
}

// EncodeBoundary renders b as an opaque token tied to the order key.
func EncodeBoundary(o Order, b Boundary) string {
	raw := fmt.Sprintf("%s:%d:%d", o.Key, b.Key, b.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeBoundary parses a token produced by EncodeBoundary for the same order key.
func DecodeBoundary(o Order, token string) (Boundary, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Boundary{}, core.Invalid("cursor", "malformed token")
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return Boundary{}, core.Invalid("cursor", "malformed token")
	}
	if Key(parts[0]) != o.Key {
		return Boundary{}, core.Invalid("cursor", "token belongs to a different sort order")
	}
	key, err1 := strconv.ParseInt(parts[1], 10, 64)
	id, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		return Boundary{}, core.Invalid("cursor", "malformed token")
	}
	return Boundary{ID: id, Key: key}, nil
}
