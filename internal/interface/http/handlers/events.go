package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Da-devs/dPay/internal/core/application"
	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	snapshotMessageType = "snapshot"

	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

type eventMessage struct {
	Type      string               `json:"type"`
	Session   domain.Session       `json:"session"`
	Status    domain.SessionStatus `json:"status"`
	Error     string               `json:"error,omitempty"`
	Kind      string               `json:"kind,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

func newEventMessage(update application.SessionUpdate) eventMessage {
	msg := eventMessage{
		Type:      update.Event.Type(),
		Session:   update.Session,
		Status:    update.Status,
		Timestamp: time.Now().Unix(),
	}
	if e, ok := update.Event.(domain.ConnectFailed); ok && e.Err != nil {
		msg.Error = e.Err.Error()
		var connErr *domain.ConnectionError
		if errors.As(e.Err, &connErr) {
			msg.Kind = string(connErr.Kind)
		}
	}
	return msg
}

// streamEvents pushes the current snapshot, then every session update, until
// either side goes away. Inbound messages are ignored.
func (h *SessionHandler) streamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id, updates := h.svc.Subscribe()
	defer h.svc.Unsubscribe(id)

	logger := log.WithField("listener", id)
	logger.Debug("session events listener connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	//nolint:all
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go readLoop(conn, cancel)
	go pingLoop(ctx, conn)

	snapshot := h.svc.GetSnapshot()
	if err := writeMessage(conn, eventMessage{
		Type:      snapshotMessageType,
		Session:   snapshot.Session,
		Status:    snapshot.Status,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("session events listener disconnected")
			return
		case update, ok := <-updates:
			if !ok {
				//nolint:all
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "service closed"),
					time.Now().Add(writeWait),
				)
				return
			}
			if err := writeMessage(conn, newEventMessage(update)); err != nil {
				logger.WithError(err).Debug("failed to push session update")
				return
			}
		}
	}
}

func readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("websocket read error")
			}
			return
		}
	}
}

// pingLoop uses WriteControl, the only write allowed concurrently with the
// writer goroutine.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(writeWait),
			); err != nil {
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, msg eventMessage) error {
	//nolint:all
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
