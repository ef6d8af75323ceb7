package analytics

import "cashflow/internal/core"

// BalanceHistory returns the running balance at the end of each bucket.
// The series opens with the balance of every realized entry dated before start.
func BalanceHistory(entries []core.Entry, start, end core.Date, g Granularity) ([]core.BalancePoint, error) {
	buckets, err := Aggregate(entries, start, end, g, false)
	if err != nil {
		return nil, err
	}

	var running int64
	for _, e := range entries {
		if !e.IsParent() && e.CreatedAt.Before(start.Time) {
			running += e.Signed()
		}
	}

	points := make([]core.BalancePoint, len(buckets))
	for i, b := range buckets {
		running += b.Net()
		points[i] = core.BalancePoint{Date: b.End, Balance: running}
	}
	return points, nil
}
