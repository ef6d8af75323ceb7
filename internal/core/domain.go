package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Daily   RecurringType = "DAILY"
	Weekly  RecurringType = "WEEKLY"
	Monthly RecurringType = "MONTHLY"
	Yearly  RecurringType = "YEARLY"
)

const (
	NewestFirst   SortOption = "NEWEST_FIRST"
	OldestFirst   SortOption = "OLDEST_FIRST"
	HighestAmount SortOption = "HIGHEST_AMOUNT"
	LowestAmount  SortOption = "LOWEST_AMOUNT"
)

const (
	// UncategorizedID is the sentinel category for entries without a
	// category and for merged small categories.
	UncategorizedID int64 = 0
	// UncategorizedName labels the sentinel category.
	UncategorizedName = "Andere"

	// RuleCreationWindow bounds how far in the past a recurring rule may be anchored
	// when it is created.
	RuleCreationWindow = 30 * 24 * time.Hour

	maxDescriptionLen  = 500
	maxCategoryNameLen = 50
	maxFilterTitleLen  = 100
)

type (
	TransactionType string
	RecurringType   string
	SortOption      string
	Currency        string
	Color           string

	Money struct {
		Cents int64
	}

	// Entry is a financial transaction. With IsRecurring set it is a parent
	// rule; with TransactionID set it is an occurrence materialized from one.
	Entry struct {
		ID                    int64
		Type                  TransactionType
		Amount                Money
		Currency              Currency
		Description           string
		CategoryID            *int64
		CreatedAt             Date
		IsRecurring           bool
		RecurringType         RecurringType
		RecurringBaseInterval int
		RecurringDisabled     bool
		TransactionID         *int64
	}

	Category struct {
		ID         int64
		Name       string
		Color      Color
		Icon       string
		CreatedAt  Date
		UsageCount int
	}

	// FilterSpec is the canonical, transport-independent filter shape.
	FilterSpec struct {
		MinPrice        *int64
		MaxPrice        *int64
		DateFrom        *Date
		DateTo          *Date
		SearchText      string
		TransactionType *TransactionType
		SortOption      SortOption
		CategoryIDs     []int64
	}

	// Filter is a named, persisted FilterSpec.
	Filter struct {
		ID    int64
		Title string
		Icon  string
		Spec  FilterSpec
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNestedRecurring = errors.New("recurring rule cannot reference a parent")
)

var currencies = map[Currency]struct{}{
	"EUR": {}, "USD": {}, "GBP": {}, "CHF": {}, "JPY": {},
	"SEK": {}, "NOK": {}, "DKK": {}, "PLN": {}, "CZK": {},
}

// DefaultCurrency is applied to entries created without one.
const DefaultCurrency Currency = "EUR"

// Palette is the ordered set of category colors. Breakdown slices are
// colored by rank from this list.
var Palette = []Color{
	"BLUE", "GREEN", "ORANGE", "PURPLE", "RED",
	"TEAL", "YELLOW", "PINK", "INDIGO", "GRAY",
}

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

// ParseTransactionType accepts either case. An empty string is an error;
// callers treat "unset" before calling.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", Invalid("transactionType", "must be INCOME or EXPENSE")
	}
	return t, nil
}

func (r RecurringType) Valid() bool {
	switch r {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func ParseRecurringType(s string) (RecurringType, error) {
	r := RecurringType(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", Invalid("recurringType", "must be one of DAILY, WEEKLY, MONTHLY, YEARLY")
	}
	return r, nil
}

func (s SortOption) Valid() bool {
	switch s {
	case NewestFirst, OldestFirst, HighestAmount, LowestAmount:
		return true
	}
	return false
}

// ParseSortOption maps an empty value to NewestFirst.
func ParseSortOption(s string) (SortOption, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return NewestFirst, nil
	}
	opt := SortOption(s)
	if !opt.Valid() {
		return "", Invalid("sortOption", "unknown sort option "+s)
	}
	return opt, nil
}

func (c Currency) Valid() bool {
	_, ok := currencies[c]
	return ok
}

func (c Color) Valid() bool {
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return &ValidationError{Field: "amountMinor", Reason: "must be a positive number of cents", Err: ErrInvalidAmount}
	}
	return nil
}

// Signed returns the amount with expenses negative.
func (e Entry) Signed() int64 {
	if e.Type == Expense {
		return -e.Amount.Cents
	}
	return e.Amount.Cents
}

// CategoryKey returns the category id, or UncategorizedID when unset.
func (e Entry) CategoryKey() int64 {
	if e.CategoryID == nil {
		return UncategorizedID
	}
	return *e.CategoryID
}

// IsParent reports whether the entry is a recurring rule rather than a
// postable transaction.
func (e Entry) IsParent() bool { return e.IsRecurring }

func (e Entry) IsOccurrence() bool { return e.TransactionID != nil }

func (e Entry) Validate() error {
	if !e.Type.Valid() {
		return Invalid("type", "must be INCOME or EXPENSE")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Currency.Valid() {
		return Invalid("currency", "unsupported currency "+string(e.Currency))
	}
	if utf8.RuneCountInString(e.Description) > maxDescriptionLen {
		return Invalid("description", "too long (max 500 characters)")
	}
	if err := e.CreatedAt.Validate(); err != nil {
		return &ValidationError{Field: "createdAt", Reason: err.Error(), Err: err}
	}
	if e.CategoryID != nil && *e.CategoryID <= 0 {
		return Invalid("categoryId", "must be positive")
	}
	if !e.IsRecurring {
		return nil
	}
	if e.TransactionID != nil {
		return &ValidationError{Field: "transactionId", Reason: "a recurring rule cannot have a parent", Err: ErrNestedRecurring}
	}
	if !e.RecurringType.Valid() {
		return Invalid("recurringType", "required for recurring entries")
	}
	if e.RecurringBaseInterval < 1 {
		return Invalid("recurringBaseInterval", "must be at least 1")
	}
	return nil
}

// ValidateRule applies the creation-time checks for a new recurring rule:
// its anchor may not lie more than RuleCreationWindow before now.
func (e Entry) ValidateRule(now time.Time) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !e.IsRecurring {
		return nil
	}
	earliest := DateOf(now.Add(-RuleCreationWindow))
	if e.CreatedAt.Before(earliest.Time) {
		return Invalid("createdAt", "a recurring rule must start within the last 30 days")
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return Invalid("name", "cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLen {
		return Invalid("name", "too long (max 50 characters)")
	}
	if !c.Color.Valid() {
		return Invalid("color", "not in palette")
	}
	if strings.TrimSpace(c.Icon) == "" {
		return Invalid("icon", "cannot be empty")
	}
	return nil
}

// Validate checks the ranges of a FilterSpec. Normalization of the other
// fields happens in the filter package.
func (s FilterSpec) Validate() error {
	if s.MinPrice != nil && *s.MinPrice < 0 {
		return Invalid("minPrice", "cannot be negative")
	}
	if s.MaxPrice != nil && *s.MaxPrice < 0 {
		return Invalid("maxPrice", "cannot be negative")
	}
	if s.MinPrice != nil && s.MaxPrice != nil && *s.MinPrice > *s.MaxPrice {
		return Invalid("minPrice", "greater than maxPrice")
	}
	if s.DateFrom != nil && s.DateTo != nil && s.DateFrom.After(s.DateTo.Time) {
		return Invalid("dateFrom", "after dateTo")
	}
	if s.TransactionType != nil && !s.TransactionType.Valid() {
		return Invalid("transactionType", "must be INCOME or EXPENSE")
	}
	if s.SortOption != "" && !s.SortOption.Valid() {
		return Invalid("sortOption", "unknown sort option "+string(s.SortOption))
	}
	return nil
}

func (f Filter) Validate() error {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return Invalid("title", "cannot be empty")
	}
	if utf8.RuneCountInString(title) > maxFilterTitleLen {
		return Invalid("title", "too long (max 100 characters)")
	}
	if strings.TrimSpace(f.Icon) == "" {
		return Invalid("icon", "cannot be empty")
	}
	return f.Spec.Validate()
}
