package handler

import (
	"context"

	"github.com/google/uuid"
	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) Submit(ctx context.Context, req appsupply.SubmitUsageRequest) (*appsupply.UsageRecordResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.UsageRecordResponse), args.Error(1)
}

func (m *MockUsageService) Amend(ctx context.Context, id uuid.UUID, expectedVersion int, lines []appsupply.LineRequest, actor string) (*appsupply.UsageRecordResponse, error) {
	args := m.Called(ctx, id, expectedVersion, lines, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.UsageRecordResponse), args.Error(1)
}

func (m *MockUsageService) Get(ctx context.Context, id uuid.UUID) (*appsupply.UsageRecordResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.UsageRecordResponse), args.Error(1)
}

func (m *MockUsageService) List(ctx context.Context, filter appsupply.UsageListFilter) ([]appsupply.UsageRecordResponse, int64, shared.Filter, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, shared.Filter{}, args.Error(3)
	}
	return args.Get(0).([]appsupply.UsageRecordResponse), args.Get(1).(int64), args.Get(2).(shared.Filter), args.Error(3)
}

func (m *MockUsageService) TransitionBilling(ctx context.Context, id uuid.UUID, status, actor string) (*appsupply.UsageRecordResponse, error) {
	args := m.Called(ctx, id, status, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.UsageRecordResponse), args.Error(1)
}

func (m *MockUsageService) Void(ctx context.Context, id uuid.UUID, reason, actor string) (*appsupply.UsageRecordResponse, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.UsageRecordResponse), args.Error(1)
}

type MockReturnService struct {
	mock.Mock
}

func (m *MockReturnService) RecordReturn(ctx context.Context, recordID uuid.UUID, req appsupply.RecordReturnRequest, actor string) (*appsupply.RecordReturnResponse, error) {
	args := m.Called(ctx, recordID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.RecordReturnResponse), args.Error(1)
}

func (m *MockReturnService) History(ctx context.Context, filter appsupply.ReturnHistoryFilter) ([]appsupply.ReturnEventResponse, int64, shared.Filter, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, shared.Filter{}, args.Error(3)
	}
	return args.Get(0).([]appsupply.ReturnEventResponse), args.Get(1).(int64), args.Get(2).(shared.Filter), args.Error(3)
}

func (m *MockReturnService) ForRecord(ctx context.Context, recordID uuid.UUID) ([]appsupply.ReturnEventResponse, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appsupply.ReturnEventResponse), args.Error(1)
}

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Compare(ctx context.Context, q appsupply.ReconciliationQuery) (*appsupply.ReconciliationReportResponse, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.ReconciliationReportResponse), args.Error(1)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Get(ctx context.Context, code string) (*appsupply.CatalogEntryResponse, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsupply.CatalogEntryResponse), args.Error(1)
}

func (m *MockCatalogService) List(ctx context.Context, filter appsupply.CatalogListFilter) ([]appsupply.CatalogEntryResponse, int64, shared.Filter, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, shared.Filter{}, args.Error(3)
	}
	return args.Get(0).([]appsupply.CatalogEntryResponse), args.Get(1).(int64), args.Get(2).(shared.Filter), args.Error(3)
}
