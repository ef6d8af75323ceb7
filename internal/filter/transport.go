package filter

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"cashflow/internal/core"
)

// ParseIDs reads category ids from repeated values, comma separated values
// or a mix of both. Anything that is not a positive integer is dropped.
func ParseIDs(values []string) []int64 {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return NormalizeIDs(ids)
}

// CategoryIDList decodes either a JSON array (numbers or numeric strings)
// or a single comma separated string.
type CategoryIDList []int64

func (l *CategoryIDList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = ParseIDs([]string{s})
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return core.Invalid("categoryIds", "must be an array or a comma separated string")
	}
	values := make([]string, 0, len(raw))
	for _, r := range raw {
		values = append(values, strings.Trim(string(r), `"`))
	}
	*l = ParseIDs(values)
	return nil
}

// Input is the JSON shape of a filter in create and update requests.
type Input struct {
	Title           string         `json:"title"`
	Icon            string         `json:"icon"`
	MinPrice        *int64         `json:"minPrice,omitempty"`
	MaxPrice        *int64         `json:"maxPrice,omitempty"`
	DateFrom        *core.Date     `json:"dateFrom,omitempty"`
	DateTo          *core.Date     `json:"dateTo,omitempty"`
	SearchText      string         `json:"searchText,omitempty"`
	TransactionType string         `json:"transactionType,omitempty"`
	SortOption      string         `json:"sortOption,omitempty"`
	CategoryIDs     CategoryIDList `json:"categoryIds,omitempty"`
}

// Filter converts the input into a validated core.Filter.
func (in Input) Filter() (core.Filter, error) {
	spec := core.FilterSpec{
		MinPrice:    in.MinPrice,
		MaxPrice:    in.MaxPrice,
		DateFrom:    in.DateFrom,
		DateTo:      in.DateTo,
		SearchText:  strings.TrimSpace(in.SearchText),
		CategoryIDs: NormalizeIDs(in.CategoryIDs),
	}
	if in.TransactionType != "" {
		t, err := core.ParseTransactionType(in.TransactionType)
		if err != nil {
			return core.Filter{}, err
		}
		spec.TransactionType = &t
	}
	sort, err := core.ParseSortOption(in.SortOption)
	if err != nil {
		return core.Filter{}, err
	}
	spec.SortOption = sort

	icon := strings.TrimSpace(in.Icon)
	if icon == "" {
		icon = "filter"
	}
	f := core.Filter{Title: strings.TrimSpace(in.Title), Icon: icon, Spec: spec}
	if err := f.Validate(); err != nil {
		return core.Filter{}, err
	}
	return f, nil
}

// FromQuery reads an ad-hoc filter from list query parameters:
// amountMin, amountMax, dateFrom, dateTo, title, transactionType, sortBy
// and categoryIds. Unset parameters stay unset.
func FromQuery(q url.Values) (core.FilterSpec, error) {
	var spec core.FilterSpec
	var err error
	if spec.MinPrice, err = optionalCents(q, "amountMin"); err != nil {
		return spec, err
	}
	if spec.MaxPrice, err = optionalCents(q, "amountMax"); err != nil {
		return spec, err
	}
	if spec.DateFrom, err = optionalDate(q, "dateFrom"); err != nil {
		return spec, err
	}
	if spec.DateTo, err = optionalDate(q, "dateTo"); err != nil {
		return spec, err
	}
	spec.SearchText = strings.TrimSpace(q.Get("title"))
	if v := strings.TrimSpace(q.Get("transactionType")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			return spec, err
		}
		spec.TransactionType = &t
	}
	if v := strings.TrimSpace(q.Get("sortBy")); v != "" {
		opt, err := core.ParseSortOption(v)
		if err != nil {
			return spec, err
		}
		spec.SortOption = opt
	}
	spec.CategoryIDs = ParseIDs(q["categoryIds"])
	return spec, nil
}

func optionalCents(q url.Values, key string) (*int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, core.Invalid(key, "must be an integer number of cents")
	}
	return &n, nil
}

func optionalDate(q url.Values, key string) (*core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, core.Invalid(key, "must be a YYYY-MM-DD date")
	}
	return &d, nil
}
