package http

import (
	"strings"

	"cashflow/internal/analytics"
	"cashflow/internal/core"
	"cashflow/internal/filter"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/paging"
)

// Money crosses the API as integer cents, dates as YYYY-MM-DD.

type entryRequest struct {
	Type                  string     `json:"type"`
	AmountMinor           int64      `json:"amountMinor"`
	Currency              string     `json:"currency"`
	Description           string     `json:"description"`
	CategoryID            *int64     `json:"categoryId"`
	CreatedAt             *core.Date `json:"createdAt"`
	IsRecurring           bool       `json:"isRecurring"`
	RecurringType         string     `json:"recurringType"`
	RecurringBaseInterval *int       `json:"recurringBaseInterval"`
	RecurringDisabled     bool       `json:"recurringDisabled"`
}

func (in entryRequest) entry() core.Entry {
	e := core.Entry{
		Type:                  core.TransactionType(strings.ToUpper(strings.TrimSpace(in.Type))),
		Amount:                core.Money{Cents: in.AmountMinor},
		Currency:              core.Currency(strings.ToUpper(strings.TrimSpace(in.Currency))),
		Description:           strings.TrimSpace(in.Description),
		CategoryID:            in.CategoryID,
		IsRecurring:           in.IsRecurring,
		RecurringType:         core.RecurringType(strings.ToUpper(strings.TrimSpace(in.RecurringType))),
		RecurringBaseInterval: 1,
		RecurringDisabled:     in.RecurringDisabled,
	}
	if in.RecurringBaseInterval != nil {
		e.RecurringBaseInterval = *in.RecurringBaseInterval
	}
	if in.CreatedAt != nil {
		e.CreatedAt = *in.CreatedAt
	}
	return e
}

type entryResponse struct {
	ID                    int64     `json:"id"`
	Type                  string    `json:"type"`
	AmountMinor           int64     `json:"amountMinor"`
	Currency              string    `json:"currency"`
	Description           string    `json:"description"`
	CategoryID            *int64    `json:"categoryId"`
	CreatedAt             core.Date `json:"createdAt"`
	IsRecurring           bool      `json:"isRecurring"`
	RecurringType         string    `json:"recurringType,omitempty"`
	RecurringBaseInterval int       `json:"recurringBaseInterval,omitempty"`
	RecurringDisabled     bool      `json:"recurringDisabled"`
	TransactionID         *int64    `json:"transactionId,omitempty"`
}

func toEntry(e core.Entry) entryResponse {
	out := entryResponse{
		ID:            e.ID,
		Type:          string(e.Type),
		AmountMinor:   e.Amount.Cents,
		Currency:      string(e.Currency),
		Description:   e.Description,
		CategoryID:    e.CategoryID,
		CreatedAt:     e.CreatedAt,
		IsRecurring:   e.IsRecurring,
		TransactionID: e.TransactionID,
	}
	if e.IsRecurring {
		out.RecurringType = string(e.RecurringType)
		out.RecurringBaseInterval = e.RecurringBaseInterval
		out.RecurringDisabled = e.RecurringDisabled
	}
	return out
}

func toEntries(items []core.Entry) []entryResponse {
	out := make([]entryResponse, len(items))
	for i, e := range items {
		out[i] = toEntry(e)
	}
	return out
}

type pageResponse struct {
	Entries  []entryResponse `json:"entries"`
	CursorID *int64          `json:"cursorId,omitempty"`
	Cursor   string          `json:"cursor,omitempty"`
	Count    *int            `json:"count,omitempty"`
}

func toPage(res paging.Result) pageResponse {
	return pageResponse{
		Entries:  toEntries(res.Items),
		CursorID: res.NextCursorID,
		Cursor:   res.NextToken,
		Count:    res.Count,
	}
}

type disabledRequest struct {
	Disabled *bool `json:"disabled"`
}

type scheduledSummaryResponse struct {
	TotalCount   int   `json:"totalCount"`
	TotalIncome  int64 `json:"totalIncome"`
	TotalExpense int64 `json:"totalExpense"`
}

type monthTotalResponse struct {
	Month   int   `json:"month"`
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
}

type monthlyResponse struct {
	Year   int                  `json:"year"`
	Totals []monthTotalResponse `json:"totals"`
}

func toMonthly(year int, totals []core.MonthTotal) monthlyResponse {
	out := monthlyResponse{Year: year, Totals: make([]monthTotalResponse, len(totals))}
	for i, t := range totals {
		out.Totals[i] = monthTotalResponse{Month: t.Month, Income: t.Income.Cents, Expense: t.Expense.Cents, Net: t.Net()}
	}
	return out
}

type breakdownRow struct {
	Date     core.Date `json:"date"`
	Type     string    `json:"type"`
	Value    int64     `json:"value"`
	Category *int64    `json:"category,omitempty"`
}

type breakdownResponse struct {
	Data []breakdownRow `json:"data"`
}

func toBreakdown(rows []analytics.Row) breakdownResponse {
	out := breakdownResponse{Data: make([]breakdownRow, len(rows))}
	for i, r := range rows {
		out.Data[i] = breakdownRow{Date: r.Date, Type: string(r.Type), Value: r.Value, Category: r.Category}
	}
	return out
}

type sliceResponse struct {
	CategoryID       int64  `json:"categoryId"`
	Name             string `json:"name"`
	Value            int64  `json:"value"`
	ShareBasisPoints int64  `json:"shareBasisPoints"`
	Color            string `json:"color,omitempty"`
}

type slicesResponse struct {
	Slices []sliceResponse `json:"slices"`
}

func toSlices(slices []core.CategorySlice) slicesResponse {
	out := slicesResponse{Slices: make([]sliceResponse, len(slices))}
	for i, s := range slices {
		out.Slices[i] = sliceResponse{
			CategoryID:       s.CategoryID,
			Name:             s.Name,
			Value:            s.Value.Cents,
			ShareBasisPoints: s.ShareBasisPoints,
			Color:            string(s.Color),
		}
	}
	return out
}

type balancePoint struct {
	Date    core.Date `json:"date"`
	Balance int64     `json:"balance"`
}

type balanceResponse struct {
	Points []balancePoint `json:"points"`
}

func toBalance(points []core.BalancePoint) balanceResponse {
	out := balanceResponse{Points: make([]balancePoint, len(points))}
	for i, p := range points {
		out.Points[i] = balancePoint{Date: p.Date, Balance: p.Balance}
	}
	return out
}

type capitalResponse struct {
	AvailableCapital int64     `json:"availableCapital"`
	AsOf             core.Date `json:"asOf"`
	Balance          int64     `json:"balance"`
	DueObligations   int64     `json:"dueObligations"`
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func (in categoryRequest) category() core.Category {
	return core.Category{
		Name:  strings.TrimSpace(in.Name),
		Color: core.Color(strings.ToUpper(strings.TrimSpace(in.Color))),
		Icon:  strings.TrimSpace(in.Icon),
	}
}

type categoryResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Icon       string    `json:"icon"`
	CreatedAt  core.Date `json:"createdAt"`
	UsageCount int       `json:"usageCount"`
}

func toCategory(c core.Category) categoryResponse {
	return categoryResponse{
		ID:         c.ID,
		Name:       c.Name,
		Color:      string(c.Color),
		Icon:       c.Icon,
		CreatedAt:  c.CreatedAt,
		UsageCount: c.UsageCount,
	}
}

type filterResponse struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Icon            string     `json:"icon"`
	MinPrice        *int64     `json:"minPrice,omitempty"`
	MaxPrice        *int64     `json:"maxPrice,omitempty"`
	DateFrom        *core.Date `json:"dateFrom,omitempty"`
	DateTo          *core.Date `json:"dateTo,omitempty"`
	SearchText      string     `json:"searchText,omitempty"`
	TransactionType string     `json:"transactionType,omitempty"`
	SortOption      string     `json:"sortOption"`
	CategoryIDs     []int64    `json:"categoryIds"`
}

func toFilter(f core.Filter) filterResponse {
	out := filterResponse{
		ID:          f.ID,
		Title:       f.Title,
		Icon:        f.Icon,
		MinPrice:    f.Spec.MinPrice,
		MaxPrice:    f.Spec.MaxPrice,
		DateFrom:    f.Spec.DateFrom,
		DateTo:      f.Spec.DateTo,
		SearchText:  f.Spec.SearchText,
		SortOption:  string(f.Spec.SortOption),
		CategoryIDs: f.Spec.CategoryIDs,
	}
	if f.Spec.TransactionType != nil {
		out.TransactionType = string(*f.Spec.TransactionType)
	}
	if out.CategoryIDs == nil {
		out.CategoryIDs = []int64{}
	}
	return out
}

// filterRequest is the JSON shape accepted by the filter endpoints.
type filterRequest = filter.Input

type metricsResponse struct {
	Requests struct {
		Total          int64 `json:"total"`
		ServerErrors   int64 `json:"serverErrors"`
		LastDurationUs int64 `json:"lastDurationUs"`
	} `json:"requests"`
	RateLimit struct {
		Hits    int64 `json:"hits"`
		Clients int64 `json:"clients"`
	} `json:"rateLimit"`
	Security struct {
		SuspiciousRequests int64 `json:"suspiciousRequests"`
		InvalidIPAttempts  int64 `json:"invalidIpAttempts"`
	} `json:"security"`
}

func toMetrics(t trace.Metrics, rl ratelimit.Metrics, sec security.DetectionMetrics) metricsResponse {
	var out metricsResponse
	out.Requests.Total = t.TotalRequests
	out.Requests.ServerErrors = t.ServerErrors
	out.Requests.LastDurationUs = t.LastDurationUs
	out.RateLimit.Hits = rl.TotalHits
	out.RateLimit.Clients = rl.ClientCount
	out.Security.SuspiciousRequests = sec.SuspiciousRequests
	out.Security.InvalidIPAttempts = sec.InvalidIPAttempts
	return out
}
