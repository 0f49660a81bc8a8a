package cache

import (
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/domain/service"
)

// buildSnapshot maps a provider payload onto a snapshot captured at the given instant.
// Non-positive rates are dropped; a repeated code keeps its first position and last value.
func buildSnapshot(payload *service.RatesPayload, capturedAt time.Time, estimator ChangeEstimator) *entity.ExchangeRateSnapshot {
	rates := make([]entity.CurrencyRate, 0, len(payload.Rates))
	index := make(map[string]int, len(payload.Rates))

	for _, q := range payload.Rates {
		if q.Rate <= 0 {
			continue
		}

		change, percent := estimator.Estimate(q.Code, q.Rate)
		rate := entity.CurrencyRate{
			Code:             q.Code,
			Name:             entity.DisplayName(q.Code),
			Rate:             q.Rate,
			LastUpdated:      payload.Date,
			Change24h:        change,
			ChangePercent24h: percent,
		}

		if i, dup := index[q.Code]; dup {
			rates[i] = rate
			continue
		}

		index[q.Code] = len(rates)
		rates = append(rates, rate)
	}

	return &entity.ExchangeRateSnapshot{
		Base:      payload.Base,
		Date:      payload.Date,
		Rates:     rates,
		Timestamp: capturedAt,
	}
}
