package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFind(t *testing.T) {
	snapshot := &ExchangeRateSnapshot{
		Base: "USD",
		Date: "2024-01-01",
		Rates: []CurrencyRate{
			{Code: "EUR", Name: "Euro", Rate: 0.9, LastUpdated: "2024-01-01"},
			{Code: "GBP", Name: "British Pound Sterling", Rate: 0.8, LastUpdated: "2024-01-01"},
		},
	}

	rate, ok := snapshot.Find("GBP")
	require.True(t, ok)
	assert.Equal(t, 0.8, rate.Rate)

	// Lookup is case-sensitive
	_, ok = snapshot.Find("gbp")
	assert.False(t, ok)

	_, ok = snapshot.Find("XYZ")
	assert.False(t, ok)
}

func TestSnapshotClone(t *testing.T) {
	change := 0.001
	original := &ExchangeRateSnapshot{
		Base:      "USD",
		Date:      "2024-01-01",
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Rates: []CurrencyRate{
			{Code: "EUR", Name: "Euro", Rate: 0.9, Change24h: &change},
		},
	}

	clone := original.Clone()
	assert.Equal(t, original, clone)

	clone.Rates[0].Rate = 1.1
	*clone.Rates[0].Change24h = 0.5

	assert.Equal(t, 0.9, original.Rates[0].Rate)
	assert.Equal(t, 0.001, *original.Rates[0].Change24h)

	var empty *ExchangeRateSnapshot
	assert.Nil(t, empty.Clone())
}

func TestCacheEntryFreshAt(t *testing.T) {
	cachedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &CacheEntry{CachedAt: cachedAt}

	assert.True(t, entry.FreshAt(cachedAt.Add(4*time.Minute), 5*time.Minute))
	assert.False(t, entry.FreshAt(cachedAt.Add(5*time.Minute), 5*time.Minute))
	assert.False(t, entry.FreshAt(cachedAt.Add(time.Hour), 5*time.Minute))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Euro", DisplayName("EUR"))
	assert.Equal(t, "South African Rand", DisplayName("ZAR"))
	assert.Equal(t, "XYZ", DisplayName("XYZ"))
}

func TestSupportedCurrencies(t *testing.T) {
	codes := SupportedCurrencies()
	assert.Len(t, codes, 20)
	assert.Equal(t, "USD", codes[0])
	assert.Subset(t, codes, MajorCurrencies)
}
