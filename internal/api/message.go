package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/roomcast/internal/authz"
	"github.com/lalith-99/roomcast/internal/broker"
	"github.com/lalith-99/roomcast/internal/middleware"
	"github.com/lalith-99/roomcast/internal/models"
	"github.com/lalith-99/roomcast/internal/repository"
	"github.com/lalith-99/roomcast/internal/storage"
	"go.uber.org/zap"
)

// SnapshotCache is what the message handler needs from the cache layer.
// *cache.Snapshots satisfies it; tests plug in a fake.
type SnapshotCache interface {
	Get(ctx context.Context, roomID uuid.UUID) ([]byte, bool)
	Set(ctx context.Context, roomID uuid.UUID, data []byte)
	Invalidate(ctx context.Context, roomID uuid.UUID)
}

// MessageHandler serves the message CRUD surface and feeds every accepted
// mutation into the broker, which is how all other connected clients (and,
// via reconciliation, the originating one) learn about it.
type MessageHandler struct {
	messages repository.MessageRepository
	rooms    repository.RoomRepository
	broker   *broker.Broker
	cache    SnapshotCache
	images   storage.ImageStore
	policy   authz.Policy
	logger   *zap.Logger
}

func NewMessageHandler(
	messages repository.MessageRepository,
	rooms repository.RoomRepository,
	b *broker.Broker,
	cache SnapshotCache,
	images storage.ImageStore,
	policy authz.Policy,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		rooms:    rooms,
		broker:   b,
		cache:    cache,
		images:   images,
		policy:   policy,
		logger:   logger,
	}
}

func parseRoomID(c *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return uuid.Nil, false
	}
	return roomID, true
}

func parseMessageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, false
	}
	return id, true
}

// List handles GET /api/v1/chat_rooms/:roomId/messages — the snapshot.
// Open read, no token required. Serves the cached JSON when fresh;
// otherwise queries, then populates the cache with the exact bytes sent.
func (h *MessageHandler) List(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	if data, hit := h.cache.Get(c.Request.Context(), roomID); hit {
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
		return
	}

	room, err := h.rooms.GetByID(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("failed to get room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat room not found"})
		return
	}

	messages, err := h.messages.ListByRoom(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	data, err := json.Marshal(messages)
	if err != nil {
		h.logger.Error("failed to marshal snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	h.cache.Set(c.Request.Context(), roomID, data)

	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Create handles POST /api/v1/chat_rooms/:roomId/messages.
//
// Multipart body: `content` (text) and/or `image` (file). A message body is
// exactly one of the two — both present or both absent is a 400, there is
// no "image with caption" shape.
func (h *MessageHandler) Create(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	senderID := middleware.GetUserID(c)

	room, err := h.rooms.GetByID(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("failed to get room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create message"})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat room not found"})
		return
	}

	content := strings.TrimSpace(c.PostForm("content"))
	fileHeader, fileErr := c.FormFile("image")
	hasImage := fileErr == nil && fileHeader != nil

	if content == "" && !hasImage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message requires content or an image"})
		return
	}
	if content != "" && hasImage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is either text or an image, not both"})
		return
	}

	var created *models.Message
	if hasImage {
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image upload"})
			return
		}
		defer file.Close()

		imageURL, err := h.images.Save(c.Request.Context(), fileHeader.Filename, file)
		if err != nil {
			h.logger.Error("failed to store image", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
			return
		}

		m, err := h.messages.CreateImage(c.Request.Context(), roomID, senderID, imageURL)
		if err != nil {
			h.logger.Error("failed to create image message", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create message"})
			return
		}
		created = m
	} else {
		m, err := h.messages.CreateText(c.Request.Context(), roomID, senderID, content)
		if err != nil {
			h.logger.Error("failed to create message", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create message"})
			return
		}
		created = m
	}

	h.cache.Invalidate(c.Request.Context(), roomID)
	h.broker.Publish(roomID, broker.Created(created))

	c.JSON(http.StatusCreated, created)
}

type updateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Update handles PATCH /api/v1/chat_rooms/:roomId/messages/:id. Sender-only
// — the policy check here is the authoritative one; whatever the client UI
// showed is merely advisory. Image messages are not editable in place.
func (h *MessageHandler) Update(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must not be empty"})
		return
	}

	msg, err := h.messages.GetByID(c.Request.Context(), roomID, messageID)
	if err != nil {
		h.logger.Error("failed to get message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update message"})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	if !h.policy.CanModify(middleware.GetUserID(c), msg) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may edit a message"})
		return
	}
	if msg.IsImage() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "image messages cannot be edited"})
		return
	}

	updated, err := h.messages.UpdateContent(c.Request.Context(), roomID, messageID, content)
	if err != nil {
		h.logger.Error("failed to update message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update message"})
		return
	}
	if updated == nil {
		// Deleted by someone else between the read and the write.
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	h.cache.Invalidate(c.Request.Context(), roomID)
	h.broker.Publish(roomID, broker.Updated(updated))

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/chat_rooms/:roomId/messages/:id. Sender-only.
func (h *MessageHandler) Delete(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	msg, err := h.messages.GetByID(c.Request.Context(), roomID, messageID)
	if err != nil {
		h.logger.Error("failed to get message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	if !h.policy.CanModify(middleware.GetUserID(c), msg) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may delete a message"})
		return
	}

	if err := h.messages.Delete(c.Request.Context(), roomID, messageID); err != nil {
		h.logger.Error("failed to delete message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}

	h.cache.Invalidate(c.Request.Context(), roomID)
	h.broker.Publish(roomID, broker.Deleted(roomID, messageID))

	c.Status(http.StatusNoContent)
}
