// Package handler internal/infrastructure/handler/rate_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/damon-houk/currency-tracker/internal/application/service"
	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// RateHandler handles HTTP requests for exchange rates
type RateHandler struct {
	service *service.RateService
	logger  logger.Logger
}

// NewRateHandler creates a new rate handler
func NewRateHandler(service *service.RateService, log logger.Logger) *RateHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RateHandler{
		service: service,
		logger:  log,
	}
}

// GetRates handles retrieving every rate of a base currency.
// The base comes from the path or the "base" query parameter.
func (h *RateHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	base, ok := mux.Vars(r)["base"]
	if !ok {
		base = r.URL.Query().Get("base")
	}

	snapshot, err := h.service.GetExchangeRates(r.Context(), base)
	if err != nil {
		h.sendServiceError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, newSnapshotResponse(snapshot))
}

// GetPair handles retrieving the rate of one target currency
func (h *RateHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	vars := mux.Vars(r)
	base, target := vars["base"], vars["target"]

	rate, found, err := h.service.GetCurrencyPair(r.Context(), base, target)
	if err != nil {
		h.sendServiceError(w, err, requestID)
		return
	}

	if !found {
		sendErrorResponse(w, h.logger, "Currency pair not found",
			"No rate for "+target+" is available against "+base, http.StatusNotFound, requestID)
		return
	}

	writeJSON(w, http.StatusOK, newRateResponse(rate))
}

// Refresh handles a manual refresh of a base currency
func (h *RateHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	snapshot, err := h.service.RefreshRates(r.Context(), mux.Vars(r)["base"])
	if err != nil {
		h.sendServiceError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, newSnapshotResponse(snapshot))
}

// GetCurrencies handles listing the supported currency codes
func (h *RateHandler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrenciesResponse{Currencies: h.service.SupportedCurrencies()})
}

// RegisterRoutes registers the rate handler routes. Routes under /api/rates/{base}/ with a
// fixed last segment must be registered before these so {target} does not shadow them.
func (h *RateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/rates", h.GetRates).Methods("GET")
	router.HandleFunc("/api/rates/{base}", h.GetRates).Methods("GET")
	router.HandleFunc("/api/rates/{base}/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/api/rates/{base}/{target}", h.GetPair).Methods("GET")
	router.HandleFunc("/api/currencies", h.GetCurrencies).Methods("GET")

	h.logger.Info("Rate routes registered", map[string]interface{}{
		"routes": []string{
			"GET /api/rates",
			"GET /api/rates/{base}",
			"POST /api/rates/{base}/refresh",
			"GET /api/rates/{base}/{target}",
			"GET /api/currencies",
		},
	})
}

func (h *RateHandler) sendServiceError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, entity.ErrUpstreamUnavailable):
		sendErrorResponse(w, h.logger, "Exchange rate service unavailable",
			"Unable to retrieve exchange rate data. Please try again later.",
			http.StatusServiceUnavailable, requestID)
	default:
		h.logger.Error("Unexpected error in rate handler", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Internal server error",
			"An unexpected error occurred. Please try again later.",
			http.StatusInternalServerError, requestID)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	writeJSON(w, statusCode, ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	})
}
