package websocket

import (
	"log"
	"net/http"
	"time"

	"wallet/internal/stream"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Subscriber is the part of stream.Manager a connection needs.
type Subscriber interface {
	Subscribe(subject int64) *stream.Subscription
	Unsubscribe(subject int64, sub *stream.Subscription)
}

type Client struct {
	conn *websocket.Conn
	sub  *stream.Subscription
	gone chan struct{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and forwards every event for userID as a JSON
// text frame until either side goes away.
func ServeWS(w http.ResponseWriter, r *http.Request, streams Subscriber, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed for user %d: %v", userID, err)
		return
	}
	client := &Client{
		conn: conn,
		sub:  streams.Subscribe(userID),
		gone: make(chan struct{}),
	}
	defer streams.Unsubscribe(userID, client.sub)
	go client.readPump()
	client.writePump()
}

func (c *Client) readPump() {
	defer close(c.gone)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
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
		case <-c.sub.Ready():
			for _, event := range c.sub.Drain() {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(event); err != nil {
					return
				}
			}
		case <-c.sub.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-c.gone:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
