package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/roomcast/internal/broker"
	"github.com/lalith-99/roomcast/internal/middleware"
	"github.com/lalith-99/roomcast/internal/repository"
	"github.com/lalith-99/roomcast/internal/session"
	"go.uber.org/zap"
)

// LiveHandler upgrades GET /api/v1/chat_rooms/:roomId/live to a websocket
// and hands the connection to a session bound to that room. Reads are open,
// so no token is required to watch a room.
type LiveHandler struct {
	broker   *broker.Broker
	rooms    repository.RoomRepository
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewLiveHandler(b *broker.Broker, rooms repository.RoomRepository, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		broker: b,
		rooms:  rooms,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is delegated to the deployment's proxy layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles the live channel handshake. The room must exist before we
// upgrade — an unknown room is a plain 404, not a websocket close code.
func (h *LiveHandler) Serve(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	room, err := h.rooms.GetByID(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("failed to get room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open live channel"})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat room not found"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	logger := h.logger
	if email := middleware.GetEmail(c); email != "" {
		logger = logger.With(zap.String("email", email))
	}

	sess, err := session.New(ws, h.broker, roomID, logger)
	if err != nil {
		h.logger.Warn("failed to start session", zap.Error(err))
		_ = ws.Close()
		return
	}

	// Run blocks for the life of the connection; gin keeps the handler
	// goroutine alive for us.
	sess.Run()
}
