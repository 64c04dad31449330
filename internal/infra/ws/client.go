package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"counseling-platform/internal/infra/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 1 << 16 // inbound frames are a text field plus a key
	sendBufferSize = 256
)

// Client is one live websocket connection, bound to a single chat. The same
// user may hold any number of clients; each receives broadcasts independently.
type Client struct {
	id     string // ulid, for log correlation
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	topics []string

	chatID       int64
	userID       int64
	username     string
	isCounsellor bool

	handler *Handler
	log     zerolog.Logger
}

// enqueue is the hub-facing non-blocking send.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		metrics.IncDroppedFrame()
	}
}

// reply sends a frame to this connection only.
func (c *Client) reply(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unsubscribeAll(c)
		close(c.send)
		_ = c.conn.Close()
		metrics.WsConnClosed()
		c.log.Debug().Msg("connection closed")
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if closed := c.handler.handleInbound(c, data); closed {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
