package relay

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP with many candidates fits.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Client is one websocket connection to the relay.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	// ID is the participant id assigned on connect.
	ID string

	// send is drained by WritePump. Only the hub writes to or closes it.
	send chan *signaling.Message

	// frameType of the last frame received; replies use the same codec.
	frameType atomic.Int32

	// Owned by the hub loop.
	roomID string
	role   string
}

func newClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		logger: hub.logger.With("participant", id),
		ID:     id,
		send:   make(chan *signaling.Message, sendBuffer),
	}
	c.frameType.Store(websocket.TextMessage)
	return c
}

func (c *Client) codec() signaling.Codec {
	return signaling.CodecForFrame(int(c.frameType.Load()))
}

// ReadPump decodes frames and hands them to the hub. There is at most one
// reader per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("read failed", "err", err)
			}
			return
		}
		c.frameType.Store(int32(frameType))

		var msg signaling.Message
		if err := signaling.CodecForFrame(frameType).Unmarshal(data, &msg); err != nil {
			c.logger.Warn("undecodable message", "err", err)
			continue
		}

		if !c.hub.handle(inbound{client: c, msg: msg}) {
			return
		}
	}
}

// WritePump encodes queued messages with the client's codec and keeps the
// connection alive with pings. There is at most one writer per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			codec := c.codec()
			data, err := codec.Marshal(msg)
			if err != nil {
				c.logger.Warn("encode failed", "type", msg.Type, "err", err)
				continue
			}
			if err := c.conn.WriteMessage(codec.FrameType(), data); err != nil {
				c.logger.Debug("write failed", "err", err)
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
