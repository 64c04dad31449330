package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/infra/logging"
	"counseling-platform/internal/infra/metrics"
	"counseling-platform/internal/infra/redis"
	"counseling-platform/internal/infra/web"
	"counseling-platform/internal/usecase"
)

// Handler upgrades authenticated chat participants to a websocket session and
// runs the inbound message loop against the lifecycle controller.
type Handler struct {
	hub           *Hub
	auth          *web.AuthManager
	chatUC        usecase.ChatUseCase
	limiter       *redis.RateLimiter
	msgsPerMinute int
	log           *zerolog.Logger
	upgrader      websocket.Upgrader
}

func NewHandler(hub *Hub, auth *web.AuthManager, chatUC usecase.ChatUseCase, limiter *redis.RateLimiter, msgsPerMinute int, logger *zerolog.Logger) *Handler {
	return &Handler{
		hub:           hub,
		auth:          auth,
		chatUC:        chatUC,
		limiter:       limiter,
		msgsPerMinute: msgsPerMinute,
		log:           logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws/chats/{id}. Authentication and the chat access
// check both happen before the upgrade so rejections are plain HTTP statuses.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || chatID <= 0 {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}
	claims, err := h.auth.ParseFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := h.chatUC.GetChat(r.Context(), chatID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, domain.ErrAccessDenied):
			http.Error(w, "Forbidden", http.StatusForbidden)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "chat not found", http.StatusNotFound)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	connID := ulid.Make().String()
	// The upgrade hijacks the HTTP connection, so the request context is not
	// a safe session lifetime; the session carries its own.
	sessCtx := logging.WithChatID(logging.WithUserID(context.Background(), claims.UserID), chatID)
	c := &Client{
		id:           connID,
		hub:          h.hub,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		ctx:          sessCtx,
		chatID:       chatID,
		userID:       claims.UserID,
		username:     claims.Username,
		isCounsellor: claims.IsCounsellor(),
		handler:      h,
		log: h.log.With().
			Str("conn_id", connID).
			Int64("chat_id", chatID).
			Int64("user_id", claims.UserID).
			Logger(),
	}
	c.topics = []string{ChatTopic(chatID)}
	if c.isCounsellor {
		c.topics = append(c.topics, TopicCounsellorQueue)
	}
	for _, topic := range c.topics {
		h.hub.subscribe(topic, c)
	}
	metrics.WsConnOpened()
	c.log.Debug().Bool("counsellor", c.isCounsellor).Msg("connection opened")

	go c.writePump()
	go c.readPump()
}

// handleInbound processes one frame from the client. The returned bool asks
// the read pump to drop the connection (access revoked mid-session).
func (h *Handler) handleInbound(c *Client, data []byte) (closeConn bool) {
	ctx := c.ctx

	if h.limiter != nil && h.msgsPerMinute > 0 {
		ok, err := h.limiter.Allow(ctx, redis.SenderMessageKey(c.userID), h.msgsPerMinute, time.Minute)
		if err == nil && !ok {
			c.reply(errorFrame{Error: "too many messages, slow down"})
			return false
		}
	}

	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply(errorFrame{Error: "malformed frame"})
		return false
	}

	out, err := h.chatUC.SendMessage(ctx, c.chatID, c.userID, in.Message, in.ClientMessageID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage):
			c.reply(errorFrame{Error: "message is empty"})
		case errors.Is(err, domain.ErrMessageTooLong):
			c.reply(errorFrame{Error: "message is too long"})
		case errors.Is(err, domain.ErrChatNotActive):
			c.reply(errorFrame{Error: "chat is not active", ChatExpired: true})
		case errors.Is(err, domain.ErrAccessDenied):
			c.reply(errorFrame{Error: "access denied"})
			return true
		default:
			c.log.Error().Err(err).Msg("send failed")
			c.reply(errorFrame{Error: "failed to send message"})
		}
		return false
	}

	if out.Duplicate {
		c.reply(ackFrame{Type: "ack", Status: ackStatusDuplicate, ClientMessageID: in.ClientMessageID})
		return false
	}

	c.reply(ackFrame{
		Type:            "ack",
		Status:          ackStatusSent,
		ClientMessageID: out.Message.ClientMessageID,
		MessageID:       out.Message.ID,
	})
	h.hub.Broadcast(ChatTopic(c.chatID), "message", messageFrame{
		Type:            "message",
		Message:         out.Message.Text,
		SenderID:        out.Message.SenderID,
		SenderUsername:  c.username,
		IsUser:          out.IsOwner,
		Timestamp:       out.Message.CreatedAt,
		MessageID:       out.Message.ID,
		ClientMessageID: out.Message.ClientMessageID,
	})
	if out.StatusChanged {
		h.hub.Broadcast(TopicCounsellorQueue, "chat_status_update", statusFrame{
			Type:         "chat_status_update",
			ChatID:       out.Chat.ID,
			NewStatus:    string(out.Chat.Status),
			UserID:       out.Chat.UserID,
			UserUsername: c.username,
			CounsellorID: out.Chat.CounsellorID,
		})
	}
	return false
}
