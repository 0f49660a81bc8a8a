package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/domain/service"
)

// ratesResponse represents the response structure from the exchange rate API
type ratesResponse struct {
	Base  string          `json:"base"`
	Date  string          `json:"date"`
	Rates json.RawMessage `json:"rates"`
}

func decodeRatesPayload(body []byte) (*service.RatesPayload, error) {
	var resp ratesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", entity.ErrInvalidPayload, err)
	}

	if len(resp.Rates) == 0 || bytes.Equal(resp.Rates, []byte("null")) {
		return nil, fmt.Errorf("%w: response has no rates", entity.ErrInvalidPayload)
	}

	quotes, err := decodeOrderedRates(resp.Rates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidPayload, err)
	}

	return &service.RatesPayload{
		Base:  resp.Base,
		Date:  resp.Date,
		Rates: quotes,
	}, nil
}

// decodeOrderedRates reads the rates object keeping the provider's key order,
// which a map would lose.
func decodeOrderedRates(data json.RawMessage) ([]service.RateQuote, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read rates: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("rates must be an object")
	}

	var quotes []service.RateQuote
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read rate code: %w", err)
		}
		code, _ := keyTok.(string)

		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return nil, fmt.Errorf("rate for %s is not a number: %w", code, err)
		}

		rate, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %w", code, err)
		}

		quotes = append(quotes, service.RateQuote{Code: code, Rate: rate})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read rates: %w", err)
	}

	return quotes, nil
}
