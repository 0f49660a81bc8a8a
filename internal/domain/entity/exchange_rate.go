package entity

import (
	"time"
)

// CurrencyRate represents the value of one unit of a base currency in another currency
type CurrencyRate struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Rate        float64 `json:"rate"`
	LastUpdated string  `json:"lastUpdated"`

	// Advisory only, see ChangeEstimator
	Change24h        *float64 `json:"change24h,omitempty"`
	ChangePercent24h *float64 `json:"changePercent24h,omitempty"`
}

// ExchangeRateSnapshot is an immutable capture of all rates for one base currency
type ExchangeRateSnapshot struct {
	Base      string         `json:"base"`
	Date      string         `json:"date"`
	Rates     []CurrencyRate `json:"rates"`
	Timestamp time.Time      `json:"timestamp"`
}

// Find looks up a rate by its exact currency code
func (s *ExchangeRateSnapshot) Find(code string) (*CurrencyRate, bool) {
	for i := range s.Rates {
		if s.Rates[i].Code == code {
			rate := s.Rates[i]
			return &rate, true
		}
	}

	return nil, false
}

// Clone returns a deep copy of the snapshot
func (s *ExchangeRateSnapshot) Clone() *ExchangeRateSnapshot {
	if s == nil {
		return nil
	}

	out := &ExchangeRateSnapshot{
		Base:      s.Base,
		Date:      s.Date,
		Timestamp: s.Timestamp,
		Rates:     make([]CurrencyRate, len(s.Rates)),
	}

	for i, r := range s.Rates {
		r.Change24h = copyFloat(r.Change24h)
		r.ChangePercent24h = copyFloat(r.ChangePercent24h)
		out.Rates[i] = r
	}

	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CacheEntry is the last successfully fetched snapshot for a base currency
type CacheEntry struct {
	Snapshot *ExchangeRateSnapshot `json:"snapshot"`
	CachedAt time.Time             `json:"cachedAt"`
}

// FreshAt reports whether the entry is still within its time-to-live at the given instant
func (e *CacheEntry) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt) < ttl
}
