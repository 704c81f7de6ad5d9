package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

const (
	// pollTimeout bounds each blocking read on the queue
	pollTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
	pingInterval = 15 * time.Second
)

// NotificationSource yields a user's queued notifications.
// Next returns nil with no error when nothing arrived within timeout.
type NotificationSource interface {
	Next(ctx context.Context, userID string, timeout time.Duration) (*domain.Notification, error)
}

// NotificationsHandler streams the caller's notifications over a WebSocket
type NotificationsHandler struct {
	source         NotificationSource
	logger         *slog.Logger
	allowedOrigins []string
}

// NewNotificationsHandler creates a new notifications handler. A nil source
// makes the stream unavailable.
func NewNotificationsHandler(source NotificationSource, logger *slog.Logger, allowedOrigins []string) *NotificationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationsHandler{
		source:         source,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

func (h *NotificationsHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if allowed == "*" || origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/notifications
func (h *NotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	if h.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "notification stream unavailable", Kind: "unavailable"})
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends data; reading detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("notification stream opened", slog.String("user_id", req.UserID))
	if err := h.stream(ctx, ws, req.UserID); err != nil {
		h.logger.Debug("notification stream ended",
			slog.String("user_id", req.UserID),
			slog.String("reason", err.Error()),
		)
	}
}

func (h *NotificationsHandler) stream(ctx context.Context, ws *websocket.Conn, userID string) error {
	lastPing := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := h.source.Next(ctx, userID, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.logger.Warn("notification read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if n == nil {
			if time.Since(lastPing) >= pingInterval {
				if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
					return err
				}
				lastPing = time.Now()
			}
			continue
		}

		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket closed", slog.String("user_id", userID))
			}
			return err
		}
	}
}
