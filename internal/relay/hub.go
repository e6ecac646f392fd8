// Package relay is the websocket signaling relay rooms are negotiated through.
// It assigns participant ids, tracks room membership and forwards offers,
// answers and candidates between members. It never inspects SDP.
package relay

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// Hub owns every room and client. All state is touched only by Run.
type Hub struct {
	logger *slog.Logger

	rooms   map[string]*Room
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	inspect    chan func()
	done       chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With("component", "relay"),
		rooms:      make(map[string]*Room),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		inspect:    make(chan func()),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.RelayClients.Inc()
			c.logger.Debug("client registered", "addr", c.conn.RemoteAddr())

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			h.depart(c)
			delete(h.clients, c)
			close(c.send)
			metrics.RelayClients.Dec()
			c.logger.Debug("client unregistered")

		case in := <-h.inbound:
			h.dispatch(in.client, in.msg)

		case fn := <-h.inspect:
			fn()

		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				metrics.RelayClients.Dec()
			}
			metrics.RelayRooms.Sub(float64(len(h.rooms)))
			h.clients = nil
			h.rooms = nil
			return
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handle(in inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

// RoomCount reports the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	n := 0
	h.query(func() { n = len(h.rooms) })
	return n
}

// Members lists the participants of a room.
func (h *Hub) Members(roomID string) []signaling.Participant {
	var out []signaling.Participant
	h.query(func() {
		if r, ok := h.rooms[roomID]; ok {
			out = r.roster("")
		}
	})
	return out
}

func (h *Hub) query(fn func()) {
	done := make(chan struct{})
	select {
	case h.inspect <- func() { fn(); close(done) }:
		<-done
	case <-h.done:
	}
}

func (h *Hub) dispatch(c *Client, msg signaling.Message) {
	switch msg.Type {
	case signaling.EventJoin:
		h.join(c, msg.Payload)
	case signaling.EventLeave:
		h.depart(c)
	case signaling.EventOffer, signaling.EventAnswer, signaling.EventCandidate:
		h.forward(c, msg)
	default:
		metrics.RelayMessages.WithLabelValues("unknown").Inc()
		c.logger.Debug("unknown message type", "type", msg.Type)
		h.deliver(c, errorMessage("unknown message type: "+msg.Type))
		return
	}
	metrics.RelayMessages.WithLabelValues(msg.Type).Inc()
}

func (h *Hub) join(c *Client, p signaling.Payload) {
	if c.roomID != "" {
		h.deliver(c, errorMessage("already in room "+c.roomID))
		return
	}
	if p.RoomID == "" {
		h.deliver(c, errorMessage("room id required"))
		return
	}
	if p.Role != "" {
		if _, err := call.ParseRole(p.Role); err != nil {
			h.deliver(c, errorMessage(err.Error()))
			return
		}
	}

	room, ok := h.rooms[p.RoomID]
	if !ok {
		room = newRoom(p.RoomID)
		h.rooms[p.RoomID] = room
		metrics.RelayRooms.Inc()
		h.logger.Info("room created", "room", room.ID)
	}

	roster := room.roster("")
	room.members[c.ID] = c
	c.roomID = room.ID
	c.role = p.Role
	c.logger.Info("joined room", "room", room.ID, "role", c.role, "members", len(room.members))

	h.deliver(c, &signaling.Message{
		Type: signaling.EventJoined,
		Payload: signaling.Payload{
			RoomID:        room.ID,
			ParticipantID: c.ID,
			Participants:  roster,
		},
	})

	announce := &signaling.Message{
		Type:    signaling.EventParticipantJoined,
		Payload: signaling.Payload{ParticipantID: c.ID, Role: c.role},
	}
	for id, m := range room.members {
		if id != c.ID {
			h.deliver(m, announce)
		}
	}
}

// depart removes c from its room and tells the remaining members.
func (h *Hub) depart(c *Client) {
	if c.roomID == "" {
		return
	}
	room, ok := h.rooms[c.roomID]
	c.roomID = ""
	if !ok {
		return
	}
	delete(room.members, c.ID)

	left := &signaling.Message{
		Type:    signaling.EventParticipantLeft,
		Payload: signaling.Payload{ParticipantID: c.ID},
	}
	for _, m := range room.members {
		h.deliver(m, left)
	}

	if room.empty() {
		delete(h.rooms, room.ID)
		metrics.RelayRooms.Dec()
		h.logger.Info("room deleted", "room", room.ID)
	}
}

// forward relays a negotiation message to its target, or to every other
// member when it has none. The caller is always stamped by the relay.
func (h *Hub) forward(c *Client, msg signaling.Message) {
	room, ok := h.rooms[c.roomID]
	if !ok {
		h.deliver(c, errorMessage("join a room first"))
		return
	}

	msg.Payload.Caller = c.ID
	out := &msg

	if target := msg.Payload.Target; target != "" {
		m, ok := room.members[target]
		if !ok || m == c {
			metrics.SignalsDropped.WithLabelValues("unknown_target").Inc()
			c.logger.Debug("signal for unknown target", "type", msg.Type, "target", target)
			return
		}
		h.deliver(m, out)
		return
	}

	for id, m := range room.members {
		if id != c.ID {
			h.deliver(m, out)
		}
	}
}

// deliver never blocks the hub. A client that cannot keep up loses messages.
func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	select {
	case c.send <- msg:
	default:
		metrics.SignalsDropped.WithLabelValues("slow_client").Inc()
		c.logger.Warn("send buffer full, message dropped", "type", msg.Type)
	}
}
