package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"talentlink/internal/observability/logging"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var (
	ErrConnClosed     = errors.New("realtime: connection closed")
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

// Client adapts a gorilla connection to the registry. All socket writes go
// through writePump; Send only enqueues.
type Client struct {
	userID   uint
	conn     *websocket.Conn
	registry *Registry
	log      *slog.Logger

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func NewClient(registry *Registry, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		userID:   userID,
		conn:     conn,
		registry: registry,
		log:      slog.Default(),
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Client) UserID() uint { return c.userID }

func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks the writer to send a close frame with code and hang up. Only
// the first call has any effect.
func (c *Client) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
	return nil
}

// Run registers the client and serves it until the peer goes away or the
// registry closes it. It blocks for the life of the connection.
func (c *Client) Run(ctx context.Context) {
	c.log = logging.FromContext(ctx).With(slog.Uint64("user_id", uint64(c.userID)))
	c.registry.Connect(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump()
	c.registry.Disconnect(c)
	_ = c.Close(websocket.CloseNormalClosure, "")
	<-writerDone
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug("ws read", slog.Any("err", err))
			}
			return
		}
		if typ == websocket.TextMessage && string(data) == "ping" {
			if err := c.Send([]byte("pong")); err != nil {
				return
			}
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
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("ws write", slog.Any("err", err))
				c.registry.Disconnect(c)
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.registry.Disconnect(c)
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			if c.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			}
			return
		}
	}
}

// Reject completes an already upgraded handshake with a close frame and
// hangs up. Used when the ticket does not check out.
func Reject(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
