package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// UserClient is one live websocket connection bound to a user.
type UserClient struct {
	UserId string
	hub    Registry
	conn   *websocket.Conn
	send   chan []byte
	log    *zap.Logger
}

func NewClient(userId string, hub Registry, conn *websocket.Conn, log *zap.Logger) *UserClient {
	return &UserClient{
		UserId: userId,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		log:    log,
	}
}

// ReadPump drains the connection until it dies, handing each frame to
// onMessage. It unregisters the client on exit.
func (c *UserClient) ReadPump(onMessage func(data []byte)) {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read error", zap.String("userId", c.UserId), zap.Error(err))
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

// WritePump flushes the send channel to the connection and keeps the
// connection alive with pings. Exits when the send channel closes.
func (c *UserClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
