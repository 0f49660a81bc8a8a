package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/middleware"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/pubsub"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// SubscriptionHandler streams broadcast snapshots of a base currency over a websocket
type SubscriptionHandler struct {
	hub      *pubsub.Hub
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewSubscriptionHandler creates a subscription handler. With no allowed origins every
// origin is accepted.
func NewSubscriptionHandler(hub *pubsub.Hub, allowedOrigins []string, log logger.Logger) *SubscriptionHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &SubscriptionHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Subscribe upgrades the connection and writes every snapshot published for the base
// currency as one JSON text message until the client goes away or the hub closes.
// Currency codes in the path are matched case-insensitively.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	base := strings.ToUpper(mux.Vars(r)["base"])
	if base == "" {
		base = entity.DefaultBase
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{
			"request_id": requestID,
			"base":       base,
			"error":      err.Error(),
		})
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(base)
	defer h.hub.Unsubscribe(sub)

	h.logger.Info("Subscriber connected", map[string]interface{}{
		"request_id":      requestID,
		"base":            base,
		"subscription_id": sub.ID,
	})

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Info("Subscriber disconnected", map[string]interface{}{
				"request_id":      requestID,
				"subscription_id": sub.ID,
			})
			return

		case snapshot, ok := <-sub.C:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}

			if err := h.writeSnapshot(conn, snapshot); err != nil {
				h.logger.Warn("Failed to write snapshot to subscriber", map[string]interface{}{
					"request_id":      requestID,
					"subscription_id": sub.ID,
					"error":           err.Error(),
				})
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *SubscriptionHandler) writeSnapshot(conn *websocket.Conn, snapshot *entity.ExchangeRateSnapshot) error {
	data, err := json.Marshal(newSnapshotResponse(snapshot))
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readPump discards client messages and closes done once the connection fails
func (h *SubscriptionHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// RegisterRoutes registers the subscription route
func (h *SubscriptionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/rates/{base}/subscribe", h.Subscribe).Methods("GET")

	h.logger.Info("Subscription routes registered", map[string]interface{}{
		"routes": []string{"GET /api/rates/{base}/subscribe"},
	})
}
