package handlers

import (
	"errors"
	"net/http"

	"github.com/Da-devs/dPay/internal/core/application"
	"github.com/Da-devs/dPay/internal/core/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type SessionHandler struct {
	svc      application.Service
	upgrader websocket.Upgrader
}

func NewSessionHandler(appSvc application.Service) *SessionHandler {
	return &SessionHandler{
		svc: appSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.getSession)
	r.Post("/session/connect", h.connect)
	r.Post("/session/disconnect", h.disconnect)
	r.Get("/session/events", h.streamEvents)
	r.Get("/receive", h.getReceiveInfo)
}

func (h *SessionHandler) getSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.GetSnapshot())
}

func (h *SessionHandler) connect(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Connect(r.Context()); err != nil {
		h.respondConnectError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.svc.GetSnapshot())
}

func (h *SessionHandler) disconnect(w http.ResponseWriter, r *http.Request) {
	h.svc.Disconnect(r.Context())
	respondJSON(w, http.StatusOK, h.svc.GetSnapshot())
}

func (h *SessionHandler) getReceiveInfo(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	info, err := h.svc.GetReceiveInfo(query.Get("amount"), query.Get("note"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotConnected):
			respondError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, application.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			log.WithError(err).Error("failed to build receive info")
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *SessionHandler) respondConnectError(w http.ResponseWriter, err error) {
	var connErr *domain.ConnectionError
	if !errors.As(err, &connErr) {
		if errors.Is(err, application.ErrServiceClosed) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		log.WithError(err).Error("failed to connect wallet")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, connectErrorStatus(connErr.Kind), errorResponse{
		Error: connErr.Error(),
		Kind:  string(connErr.Kind),
	})
}

func connectErrorStatus(kind domain.ConnectionErrorKind) int {
	switch kind {
	case domain.ConnectCanceled:
		return http.StatusConflict
	case domain.ConnectTimeout:
		return http.StatusGatewayTimeout
	case domain.UserRejected:
		return http.StatusForbidden
	case domain.ProviderUnavailable:
		return http.StatusServiceUnavailable
	case domain.NetworkMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
