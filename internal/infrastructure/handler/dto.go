package handler

import (
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
)

// RateResponse represents one currency rate
type RateResponse struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Rate             float64  `json:"rate"`
	LastUpdated      string   `json:"lastUpdated"`
	Change24h        *float64 `json:"change24h"`
	ChangePercent24h *float64 `json:"changePercent24h"`
}

// SnapshotResponse represents all rates of a base currency. Timestamp is in unix milliseconds.
type SnapshotResponse struct {
	Base      string         `json:"base"`
	Date      string         `json:"date"`
	Timestamp int64          `json:"timestamp"`
	Rates     []RateResponse `json:"rates"`
}

// CurrenciesResponse represents the response for the supported currencies endpoint
type CurrenciesResponse struct {
	Currencies []string `json:"currencies"`
}

// HealthResponse represents the response for the health endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func newRateResponse(r *entity.CurrencyRate) RateResponse {
	return RateResponse{
		Code:             r.Code,
		Name:             r.Name,
		Rate:             r.Rate,
		LastUpdated:      r.LastUpdated,
		Change24h:        r.Change24h,
		ChangePercent24h: r.ChangePercent24h,
	}
}

func newSnapshotResponse(s *entity.ExchangeRateSnapshot) SnapshotResponse {
	rates := make([]RateResponse, len(s.Rates))
	for i := range s.Rates {
		rates[i] = newRateResponse(&s.Rates[i])
	}

	return SnapshotResponse{
		Base:      s.Base,
		Date:      s.Date,
		Timestamp: s.Timestamp.UnixMilli(),
		Rates:     rates,
	}
}

func newHealthResponse(now time.Time) HealthResponse {
	return HealthResponse{
		Status:    "OK",
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}
