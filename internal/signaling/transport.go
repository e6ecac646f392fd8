package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/dns"
	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Handler receives the payload of one inbound event.
type Handler func(Payload)

// Client manages the WebSocket connection to the relay and dispatches
// inbound events to the handlers registered with On.
type Client struct {
	codec  Codec
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	outgoing  chan []byte
	done      chan struct{}
	connected bool
	handlers  map[string][]Handler
}

// NewClient creates a relay client that encodes frames with codec.
// A nil codec selects JSON.
func NewClient(codec Codec) *Client {
	if codec == nil {
		codec = JSON
	}
	return &Client{
		codec:    codec,
		logger:   slog.Default().With("component", "signaling"),
		handlers: make(map[string][]Handler),
	}
}

// Connect establishes the WebSocket connection to endpoint.
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected to %s", u.Host)
	}
	c.mu.Unlock()

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = resolvingDial

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	outgoing := make(chan []byte, sendBuffer)
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.outgoing = outgoing
	c.done = done
	c.connected = true
	c.mu.Unlock()

	c.logger.Debug("connected to relay", "endpoint", u.Redacted(), "codec", c.codec.Name())

	go c.readPump(conn, done)
	go c.writePump(conn, outgoing, done)

	return nil
}

// resolvingDial dials through the fallback DNS lookup so a broken system
// resolver does not prevent reaching the relay.
func resolvingDial(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	if net.ParseIP(host) != nil || host == "localhost" {
		return d.DialContext(ctx, network, addr)
	}

	resolvedIP, err := dns.Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}

	return d.DialContext(ctx, network, net.JoinHostPort(resolvedIP, port))
}

// On registers handler for eventType. Handlers run on the read goroutine in
// arrival order and must not block.
func (c *Client) On(eventType string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// Send encodes and queues a message for the relay. It fails with
// call.ErrTransportUnavailable when there is no live connection.
func (c *Client) Send(eventType string, payload Payload) error {
	data, err := c.codec.Marshal(&Message{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		metrics.SignalsDropped.WithLabelValues("disconnected").Inc()
		return call.NewError("send "+eventType, call.ErrTransportUnavailable)
	}
	outgoing, done := c.outgoing, c.done
	c.mu.Unlock()

	select {
	case outgoing <- data:
		return nil
	case <-done:
		metrics.SignalsDropped.WithLabelValues("disconnected").Inc()
		return call.NewError("send "+eventType, call.ErrTransportUnavailable)
	}
}

// Connected reports whether the relay connection is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect closes the relay connection. Safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	c.connected = false
	close(c.done)
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		conn.Close()
		c.lost(done)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("relay connection lost", "err", err)
			}
			return
		}

		var msg Message
		if err := CodecForFrame(frameType).Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed relay message", "err", err)
			continue
		}

		c.dispatch(msg.Type, msg.Payload)
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump(conn *websocket.Conn, outgoing <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data := <-outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			// Flush what was queued before the disconnect, leave included.
			for {
				select {
				case data := <-outgoing:
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(c.codec.FrameType(), data); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// lost marks the connection gone after the read pump exits and emits
// EventDisconnected unless the caller already disconnected.
func (c *Client) lost(done chan struct{}) {
	c.mu.Lock()
	if !c.connected || c.done != done {
		c.mu.Unlock()
		return
	}
	c.connected = false
	close(done)
	c.mu.Unlock()

	c.dispatch(EventDisconnected, Payload{})
}

func (c *Client) dispatch(eventType string, payload Payload) {
	c.mu.Lock()
	handlers := c.handlers[eventType]
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("no handler for relay event", "event", eventType)
		return
	}
	for _, h := range handlers {
		h(payload)
	}
}
