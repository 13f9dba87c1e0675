package supply

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return m.err
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []shared.DomainEvent
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockUsageRecordRepository is a mock implementation of supply.UsageRecordRepository
type MockUsageRecordRepository struct {
	mock.Mock
}

func (m *MockUsageRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*supply.UsageRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supply.UsageRecord), args.Error(1)
}

func (m *MockUsageRecordRepository) FindAll(ctx context.Context, filter shared.Filter) ([]supply.UsageRecord, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]supply.UsageRecord), args.Error(1)
}

func (m *MockUsageRecordRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageRecordRepository) Save(ctx context.Context, record *supply.UsageRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockUsageRecordRepository) SaveWithLock(ctx context.Context, record *supply.UsageRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockUsageRecordRepository) SaveWithReturn(ctx context.Context, record *supply.UsageRecord, ev *supply.ReturnEvent) error {
	return m.Called(ctx, record, ev).Error(0)
}

func (m *MockUsageRecordRepository) UsageTotals(ctx context.Context, window supply.Window, filter supply.ReconciliationFilter) ([]supply.UsageTotal, error) {
	args := m.Called(ctx, window, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]supply.UsageTotal), args.Error(1)
}

// MockReturnEventRepository is a mock implementation of supply.ReturnEventRepository
type MockReturnEventRepository struct {
	mock.Mock
}

func (m *MockReturnEventRepository) FindAll(ctx context.Context, filter shared.Filter) ([]supply.ReturnEvent, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]supply.ReturnEvent), args.Error(1)
}

func (m *MockReturnEventRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReturnEventRepository) FindByUsageRecord(ctx context.Context, recordID uuid.UUID) ([]supply.ReturnEvent, error) {
	args := m.Called(ctx, recordID)
	return args.Get(0).([]supply.ReturnEvent), args.Error(1)
}

// MockDispensedSource is a mock implementation of supply.DispensedSource
type MockDispensedSource struct {
	mock.Mock
}

func (m *MockDispensedSource) FetchDispensed(ctx context.Context, window supply.Window, filter supply.ReconciliationFilter) (supply.DispensedBatch, error) {
	args := m.Called(ctx, window, filter)
	return args.Get(0).(supply.DispensedBatch), args.Error(1)
}

// memUsageRepo is an in-memory ledger with version-guarded writes
type memUsageRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*supply.UsageRecord
	returns []supply.ReturnEvent
}

func newMemUsageRepo() *memUsageRepo {
	return &memUsageRepo{records: make(map[uuid.UUID]*supply.UsageRecord)}
}

func cloneRecord(r *supply.UsageRecord) *supply.UsageRecord {
	c := *r
	c.Lines = append([]supply.UsageLineEntry(nil), r.Lines...)
	c.ClearEvents()
	return &c
}

func (r *memUsageRepo) FindByID(_ context.Context, id uuid.UUID) (*supply.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, shared.NewNotFoundError("usage record", id.String())
	}
	return cloneRecord(rec), nil
}

func (r *memUsageRepo) FindAll(_ context.Context, filter shared.Filter) ([]supply.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []supply.UsageRecord
	for _, rec := range r.records {
		if rec.Voided {
			continue
		}
		out = append(out, *cloneRecord(rec))
	}
	return out, nil
}

func (r *memUsageRepo) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	all, _ := r.FindAll(ctx, filter)
	return int64(len(all)), nil
}

func (r *memUsageRepo) Save(_ context.Context, record *supply.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = cloneRecord(record)
	return nil
}

func (r *memUsageRepo) SaveWithLock(_ context.Context, record *supply.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(record)
}

func (r *memUsageRepo) SaveWithReturn(_ context.Context, record *supply.UsageRecord, ev *supply.ReturnEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.update(record); err != nil {
		return err
	}
	r.returns = append(r.returns, *ev)
	return nil
}

func (r *memUsageRepo) update(record *supply.UsageRecord) error {
	stored, ok := r.records[record.ID]
	if !ok {
		return shared.NewNotFoundError("usage record", record.ID.String())
	}
	if stored.Version != record.Version {
		return shared.NewConflictError("usage record", record.ID.String(), record.Version)
	}
	record.Version++
	r.records[record.ID] = cloneRecord(record)
	return nil
}

func (r *memUsageRepo) UsageTotals(_ context.Context, window supply.Window, filter supply.ReconciliationFilter) ([]supply.UsageTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCode := make(map[string]*supply.UsageTotal)
	var order []string
	for _, rec := range r.records {
		if rec.Voided || !window.Contains(rec.UsageDateTime) {
			continue
		}
		if filter.DepartmentCode != "" && !strings.EqualFold(filter.DepartmentCode, rec.DepartmentCode) {
			continue
		}
		for _, l := range rec.Lines {
			t, ok := byCode[l.SupplyCode]
			if !ok {
				t = &supply.UsageTotal{SupplyCode: l.SupplyCode}
				byCode[l.SupplyCode] = t
				order = append(order, l.SupplyCode)
			}
			t.QuantityUsed += l.QuantityUsed
			t.QuantityReturned += l.QuantityReturned
		}
	}
	out := make([]supply.UsageTotal, 0, len(order))
	for _, code := range order {
		out = append(out, *byCode[code])
	}
	return out, nil
}

func (r *memUsageRepo) returnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.returns)
}

type mapCatalog map[string]supply.CatalogEntry

func (m mapCatalog) Resolve(ctx context.Context, code string) (*supply.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.NewDependencyTimeoutError(supply.SourceCatalog, err)
	}
	e, ok := m[code]
	if !ok {
		return nil, shared.NewNotFoundError("supply", code)
	}
	return &e, nil
}

func testCatalog() mapCatalog {
	return mapCatalog{
		"SUP-001": {Code: "SUP-001", Name: "Gauze 4x4", Category: "dressing", Unit: "pack", UnitPrice: decimal.RequireFromString("5.00"), Active: true},
		"SUP-002": {Code: "SUP-002", Name: "Syringe 5ml", Category: "injection", Unit: "piece", UnitPrice: decimal.RequireFromString("12.50"), Active: true},
	}
}

// timeoutCatalog always reports a catalog timeout
type timeoutCatalog struct{}

func (timeoutCatalog) Resolve(context.Context, string) (*supply.CatalogEntry, error) {
	return nil, shared.NewDependencyTimeoutError(supply.SourceCatalog, context.DeadlineExceeded)
}

// recordingMetrics remembers the calls it received
type recordingMetrics struct {
	noopMetrics
	mu             sync.Mutex
	conflicts      []string
	returns        int
	submitted      int
	reconciliation []bool
}

func (m *recordingMetrics) RecordConflict(_ context.Context, op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = append(m.conflicts, op)
}

func (m *recordingMetrics) RecordReturn(context.Context, string, string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns++
}

func (m *recordingMetrics) RecordUsageSubmitted(context.Context, string, int, decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted++
}

func (m *recordingMetrics) RecordReconciliation(_ context.Context, _ string, _, _ int, complete bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciliation = append(m.reconciliation, complete)
}

var usageTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func submitRequest(lines ...LineRequest) SubmitUsageRequest {
	return SubmitUsageRequest{
		PatientHN:        "HN0001",
		PatientNameEN:    "Somchai Jaidee",
		UsageDateTime:    usageTime,
		UsageType:        "OPD",
		DepartmentCode:   "ER",
		RecordedByUserID: "nurse-01",
		Supplies:         lines,
	}
}

func mustCalculator() *supply.BillingCalculator {
	calc, err := supply.NewBillingCalculator(supply.DefaultTaxPolicy())
	if err != nil {
		panic(err)
	}
	return calc
}
