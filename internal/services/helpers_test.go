package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/storage/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(y, m, d int) *testClock {
	return &testClock{now: time.Date(y, time.Month(m), d, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, days)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.EntryChangedMessage
}

func (p *recordingPublisher) PublishEntryChanged(_ context.Context, msg *amqp.EntryChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) actions() []amqp.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.Action, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Action
	}
	return out
}

type countingPurger struct {
	mu sync.Mutex
	n  int
}

func (p *countingPurger) Purge(context.Context) {
	p.mu.Lock()
	p.n++
	p.mu.Unlock()
}

func (p *countingPurger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

type fixture struct {
	store     *memory.Store
	clock     *testClock
	publisher *recordingPublisher
	purger    *countingPurger
	processor *RecurringProcessor
	entries   *EntryService
	queries   *QueryService
	reports   *ReportService
	catalog   *CatalogService
}

func newFixture(t *testing.T, clock *testClock) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(),
		clock:     clock,
		publisher: &recordingPublisher{},
		purger:    &countingPurger{},
	}
	cfg := ProcessorConfig{
		Clock:        clock.Now,
		StoreTimeout: time.Second,
		Publisher:    f.publisher,
		Purgers:      []Purger{f.purger},
	}
	f.processor = NewRecurringProcessor(f.store, cfg)
	f.entries = NewEntryService(f.store, f.processor, cfg)
	f.queries = NewQueryService(f.store, f.processor, time.Second)
	f.reports = NewReportService(f.store, f.processor, nil, cfg)
	f.catalog = NewCatalogService(f.store, f.store, cfg)
	return f
}

func standalone(typ core.TransactionType, cents int64, d core.Date) core.Entry {
	return core.Entry{
		Type:      typ,
		Amount:    core.Money{Cents: cents},
		Currency:  core.DefaultCurrency,
		CreatedAt: d,
	}
}

func recurring(typ core.TransactionType, cents int64, rt core.RecurringType, anchor core.Date) core.Entry {
	e := standalone(typ, cents, anchor)
	e.IsRecurring = true
	e.RecurringType = rt
	e.RecurringBaseInterval = 1
	return e
}

func withInterval(e core.Entry, n int) core.Entry {
	e.RecurringBaseInterval = n
	return e
}

// seedRule stores a rule directly, bypassing the creation window check.
func seedRule(t *testing.T, f *fixture, e core.Entry) core.Entry {
	t.Helper()
	created, err := f.store.CreateEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	return created
}

func dateStrings(ds []core.Date) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
