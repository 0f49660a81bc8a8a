// Package service internal/application/service/rate_service.go
package service

import (
	"context"
	"errors"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/middleware"
)

// RateReader is the cache as seen by the query path
type RateReader interface {
	GetRates(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error)
	GetPair(ctx context.Context, base, target string) (*entity.CurrencyRate, bool, error)
	Refresh(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error)
}

// RateService answers exchange rate queries
type RateService struct {
	rates  RateReader
	logger logger.Logger
}

// NewRateService creates a new rate service
func NewRateService(rates RateReader, log logger.Logger) *RateService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RateService{
		rates:  rates,
		logger: log,
	}
}

// GetExchangeRates returns every rate of a base currency
func (s *RateService) GetExchangeRates(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error) {
	requestID := middleware.GetRequestID(ctx)

	snapshot, err := s.rates.GetRates(ctx, base)
	if err != nil {
		s.logFailure("Failed to get exchange rates", err, map[string]interface{}{
			"request_id": requestID,
			"base":       base,
		})
		return nil, err
	}

	s.logger.Debug("Exchange rates retrieved", map[string]interface{}{
		"request_id": requestID,
		"base":       snapshot.Base,
		"rates":      len(snapshot.Rates),
	})

	return snapshot, nil
}

// GetCurrencyPair returns the rate of target in base; found is false when the provider has no such rate
func (s *RateService) GetCurrencyPair(ctx context.Context, base, target string) (rate *entity.CurrencyRate, found bool, err error) {
	requestID := middleware.GetRequestID(ctx)

	rate, found, err = s.rates.GetPair(ctx, base, target)
	if err != nil {
		s.logFailure("Failed to get currency pair", err, map[string]interface{}{
			"request_id": requestID,
			"base":       base,
			"target":     target,
		})
		return nil, false, err
	}

	if !found {
		s.logger.Info("Currency pair not found", map[string]interface{}{
			"request_id": requestID,
			"base":       base,
			"target":     target,
		})
		return nil, false, nil
	}

	return rate, true, nil
}

// RefreshRates fetches a base currency from the provider regardless of the cache
func (s *RateService) RefreshRates(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error) {
	requestID := middleware.GetRequestID(ctx)

	s.logger.Info("Manual refresh requested", map[string]interface{}{
		"request_id": requestID,
		"base":       base,
	})

	snapshot, err := s.rates.Refresh(ctx, base)
	if err != nil {
		s.logFailure("Manual refresh failed", err, map[string]interface{}{
			"request_id": requestID,
			"base":       base,
		})
		return nil, err
	}

	return snapshot, nil
}

// logFailure logs a failed query at Warn for provider outages and at Error otherwise
func (s *RateService) logFailure(msg string, err error, fields map[string]interface{}) {
	fields["error"] = err.Error()
	if errors.Is(err, entity.ErrUpstreamUnavailable) {
		s.logger.Warn(msg, fields)
		return
	}
	s.logger.Error(msg, fields)
}

// SupportedCurrencies returns the codes of the currency catalogue
func (s *RateService) SupportedCurrencies() []string {
	return entity.SupportedCurrencies()
}
