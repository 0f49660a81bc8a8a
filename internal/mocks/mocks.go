// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/domain/service"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/stretchr/testify/mock"
)

// MockRateProvider mocks the upstream RateProvider interface
type MockRateProvider struct {
	mock.Mock
}

func (m *MockRateProvider) FetchRates(ctx context.Context, base string) (*service.RatesPayload, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RatesPayload), args.Error(1)
}

// MockRateSource mocks the snapshot source read by the broadcaster
type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) GetRates(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExchangeRateSnapshot), args.Error(1)
}

// MockRateReader mocks the cache as seen by the query service
type MockRateReader struct {
	mock.Mock
}

func (m *MockRateReader) GetRates(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExchangeRateSnapshot), args.Error(1)
}

func (m *MockRateReader) GetPair(ctx context.Context, base, target string) (*entity.CurrencyRate, bool, error) {
	args := m.Called(ctx, base, target)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entity.CurrencyRate), args.Bool(1), args.Error(2)
}

func (m *MockRateReader) Refresh(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExchangeRateSnapshot), args.Error(1)
}

// MockSnapshotPublisher mocks a broadcast destination
type MockSnapshotPublisher struct {
	mock.Mock
}

func (m *MockSnapshotPublisher) Publish(ctx context.Context, topic string, snapshot *entity.ExchangeRateSnapshot) error {
	args := m.Called(ctx, topic, snapshot)
	return args.Error(0)
}

// MockSnapshotRepository mocks the SnapshotRepository interface
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Get(ctx context.Context, base string) (*entity.CacheEntry, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CacheEntry), args.Error(1)
}

func (m *MockSnapshotRepository) Put(ctx context.Context, base string, entry *entity.CacheEntry) error {
	args := m.Called(ctx, base, entry)
	return args.Error(0)
}

func (m *MockSnapshotRepository) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSnapshotRepository) Len(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	m.Called(key, value)
	return m
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	m.Called(fields)
	return m
}
