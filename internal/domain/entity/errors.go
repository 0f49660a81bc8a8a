package entity

import "errors"

var (
	// ErrUpstreamUnavailable is returned when the rate provider failed and no cached snapshot exists
	ErrUpstreamUnavailable = errors.New("exchange rate provider unavailable")

	// ErrInvalidPayload marks a provider response that could not be turned into a snapshot
	ErrInvalidPayload = errors.New("invalid exchange rate payload")
)
