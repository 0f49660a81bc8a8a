package service

import (
	"context"
)

// RateQuote is a single currency rate as reported by the provider
type RateQuote struct {
	Code string
	Rate float64
}

// RatesPayload is the provider response for one base currency, with rates in provider order
type RatesPayload struct {
	Base  string
	Date  string
	Rates []RateQuote
}

// RateProvider defines the interface for the upstream exchange rate API
type RateProvider interface {
	// FetchRates retrieves the latest rates for a base currency
	FetchRates(ctx context.Context, base string) (*RatesPayload, error)
}
