package websocket

import (
	"net/http"

	"wichat/infrastructure/ws"
	"wichat/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebsocketHandler struct {
	registry ws.Registry
	userUc   usecase.UserUsecase
	log      *zap.Logger
}

func NewWebsocketHandler(registry ws.Registry, userUc usecase.UserUsecase, log *zap.Logger) *WebsocketHandler {
	return &WebsocketHandler{
		registry: registry,
		userUc:   userUc,
		log:      log,
	}
}

// HandleWebSocket upgrades the connection and binds it to the
// client-asserted userId from the URL. The handshake does not
// re-verify the session credential.
// TODO: carry the access token into the handshake and derive the
// binding from it instead of the URL.
func (h *WebsocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userId := chi.URLParam(r, "userId")
	if userId == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	if _, err := h.userUc.Get(ctx, userId); err != nil {
		h.log.Warn("ws connect for unknown user", zap.String("userId", userId), zap.Error(err))
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade error", zap.Error(err))
		return
	}

	if err := h.userUc.SetOnline(ctx, userId, true); err != nil {
		h.log.Warn("set online failed", zap.String("userId", userId), zap.Error(err))
	}

	client := ws.NewClient(userId, h.registry, conn, h.log)
	h.registry.RegisterClient(client)

	go client.WritePump()
	// All client mutations go through REST; inbound frames only keep
	// the connection alive.
	client.ReadPump(nil)
}
