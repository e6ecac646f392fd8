package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/peer"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/pion/webrtc/v4"
)

const eventBuffer = 256

// Transport is the relay connection the controller owns for one session.
type Transport interface {
	Connect(ctx context.Context, endpoint string) error
	Send(eventType string, payload signaling.Payload) error
	On(eventType string, handler signaling.Handler)
	Disconnect()
}

// Media is the local capture owner.
type Media interface {
	Acquire(ctx context.Context, constraints media.Constraints) (*media.LocalMedia, error)
	Local() *media.LocalMedia
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
	State() media.TrackState
	Release()
}

// Options configures a Controller.
type Options struct {
	// Endpoint is the relay websocket URL passed to Transport.Connect.
	Endpoint string

	// NegotiationTimeout closes links that never connect. Zero disables it.
	NegotiationTimeout time.Duration

	// Constraints selects the local media kinds to capture.
	Constraints media.Constraints

	Logger *slog.Logger
}

type event func()

// Controller runs one room session. Every inbound relay message, engine
// callback and timer is handled to completion on a single loop goroutine,
// which is the only place room and link state is touched.
type Controller struct {
	transport Transport
	media     Media
	factory   peer.Factory
	opts      Options
	logger    *slog.Logger

	mu       sync.Mutex
	starting bool
	running  bool
	leaving  bool
	events   chan event
	quit     chan struct{}
	loopDone chan struct{}
	last     Snapshot
	summary  Summary

	snapshots chan Snapshot

	// Owned by the loop goroutine while running.
	roomID       string
	role         call.Role
	policy       Policy
	selfID       string
	relayLost    bool
	broadcasting bool
	members      map[string]Member
	departed     map[string]struct{}
	links        map[string]*peer.Link
	stats        stats
}

// New creates a controller. The transport is owned by the controller from
// Join until Leave.
func New(transport Transport, m Media, factory peer.Factory, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		transport: transport,
		media:     m,
		factory:   factory,
		opts:      opts,
		logger:    logger.With("component", "room"),
		snapshots: make(chan Snapshot, 1),
	}

	c.route(signaling.EventJoined, c.onJoined)
	c.route(signaling.EventParticipantJoined, c.onParticipantJoined)
	c.route(signaling.EventParticipantLeft, c.onParticipantLeft)
	c.route(signaling.EventOffer, c.onOffer)
	c.route(signaling.EventAnswer, c.onAnswer)
	c.route(signaling.EventCandidate, c.onCandidate)
	c.route(signaling.EventError, c.onRelayError)
	c.route(signaling.EventDisconnected, func(signaling.Payload) { c.onDisconnected() })

	return c
}

// route registers a transport handler that hands the payload to the loop.
func (c *Controller) route(eventType string, handle func(signaling.Payload)) {
	c.transport.On(eventType, func(p signaling.Payload) {
		if !c.post(func() { handle(p) }) {
			c.logger.Debug("event outside session", "event", eventType)
		}
	})
}

// Join captures media when the topology requires it, connects the relay and
// announces the local participant. Media failures are returned and stop the
// session from starting.
func (c *Controller) Join(ctx context.Context, roomID string, role call.Role) error {
	if roomID == "" {
		return call.WrapError("join", call.ErrInvalidRoom, "empty room id")
	}
	if _, err := call.ParseRole(string(role)); err != nil {
		return err
	}

	c.mu.Lock()
	if c.running || c.starting {
		c.mu.Unlock()
		return call.NewError("join", call.ErrAlreadyJoined)
	}
	c.starting = true
	c.mu.Unlock()

	if err := c.start(ctx, roomID, role); err != nil {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
		return err
	}

	c.logger.Info("joining room", "room", roomID, "role", role, "topology", c.policy.Topology())
	return c.do(func() {
		c.send(signaling.EventJoin, signaling.Payload{RoomID: roomID, Role: string(role)})
	})
}

func (c *Controller) start(ctx context.Context, roomID string, role call.Role) error {
	policy := PolicyFor(role)
	if !policy.AllowsRole(role) {
		return call.WrapError("join", call.ErrInvalidRole, string(role))
	}

	if policy.AcquiresAtJoin(role) {
		if _, err := c.media.Acquire(ctx, c.opts.Constraints); err != nil {
			return err
		}
	}

	if err := c.transport.Connect(ctx, c.opts.Endpoint); err != nil {
		c.media.Release()
		return call.WrapError("join", call.ErrTransportUnavailable, err.Error())
	}

	c.roomID = roomID
	c.role = role
	c.policy = policy
	c.selfID = ""
	c.relayLost = false
	c.broadcasting = false
	c.members = make(map[string]Member)
	c.departed = make(map[string]struct{})
	c.links = make(map[string]*peer.Link)
	c.stats = newStats()

	events := make(chan event, eventBuffer)
	quit := make(chan struct{})
	loopDone := make(chan struct{})

	c.mu.Lock()
	c.events, c.quit, c.loopDone = events, quit, loopDone
	c.starting = false
	c.running = true
	c.leaving = false
	c.mu.Unlock()

	go c.run(events, quit, loopDone)
	return nil
}

// Leave closes every link, announces the departure, disconnects the relay
// and finally releases media. Tracks stop only after no link references them.
func (c *Controller) Leave() error {
	c.mu.Lock()
	if !c.running || c.leaving {
		c.mu.Unlock()
		return call.NewError("leave", call.ErrNotJoined)
	}
	c.leaving = true
	c.mu.Unlock()

	if err := c.do(func() {
		c.closeLinks()
		c.broadcasting = false
		c.send(signaling.EventLeave, signaling.Payload{RoomID: c.roomID})
	}); err != nil {
		c.logger.Debug("leave", "err", err)
	}

	c.mu.Lock()
	c.running = false
	close(c.quit)
	loopDone := c.loopDone
	c.mu.Unlock()
	<-loopDone

	// Events queued between the leave message and quit may have admitted
	// members or opened links. The loop is gone, so clean up here.
	c.closeLinks()
	c.members = make(map[string]Member)
	c.departed = make(map[string]struct{})

	c.transport.Disconnect()
	c.media.Release()

	// The loop has exited, so its state is safe to read here.
	snap := c.buildSnapshot()
	summary := c.stats.summary(c.roomID, c.role, time.Now())

	c.mu.Lock()
	c.last = snap
	c.summary = summary
	c.mu.Unlock()
	c.deliver(snap)

	c.logger.Info("left room", "room", c.roomID)
	return nil
}

// Joined reports whether a session is running.
func (c *Controller) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && !c.leaving
}

func (c *Controller) run(events <-chan event, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case fn := <-events:
			fn()
			c.publish()
		case <-quit:
			return
		}
	}
}

// post queues fn on the loop. It reports false when no session is running.
func (c *Controller) post(fn event) bool {
	c.mu.Lock()
	running := c.running
	events, quit := c.events, c.quit
	c.mu.Unlock()

	if !running {
		return false
	}
	select {
	case events <- fn:
		return true
	case <-quit:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	c.mu.Lock()
	loopDone := c.loopDone
	c.mu.Unlock()

	done := make(chan struct{})
	if !c.post(func() {
		defer close(done)
		fn()
	}) {
		return call.NewError("room", call.ErrNotJoined)
	}

	select {
	case <-done:
		return nil
	case <-loopDone:
		return call.NewError("room", call.ErrNotJoined)
	}
}

func (c *Controller) send(eventType string, payload signaling.Payload) {
	if err := c.transport.Send(eventType, payload); err != nil {
		c.logger.Debug("signal dropped", "event", eventType, "err", err)
	}
}

// newLink creates the single link to id and registers it as active.
func (c *Controller) newLink(id string) (*peer.Link, error) {
	conn, err := c.factory()
	if err != nil {
		return nil, call.NewPeerError("create connection", id, err)
	}

	l := peer.New(id, conn, c.transport, peer.Options{
		Dispatch: func(fn func()) { c.post(fn) },
		OnClosed: c.dropLink,
		Timeout:  c.opts.NegotiationTimeout,
		Logger:   c.logger.With("room", c.roomID),
	})
	c.links[id] = l
	c.stats.linkCreated()

	if err := l.AttachTracks(c.localTracks()); err != nil {
		l.Close()
		if c.links[id] == l {
			delete(c.links, id)
		}
		return nil, err
	}
	return l, nil
}

// dropLink removes l if it is still the active link for its participant.
func (c *Controller) dropLink(l *peer.Link, reason error) {
	if cur, ok := c.links[l.ID()]; ok && cur == l {
		delete(c.links, l.ID())
	}
	c.logger.Info("link closed", "peer", l.ID(), "reason", reason)
}

func (c *Controller) closeLinks() {
	for id, l := range c.links {
		l.Close()
		delete(c.links, id)
	}
}

func (c *Controller) localTracks() []webrtc.TrackLocal {
	if !c.policy.SendsMedia(c.role) {
		return nil
	}
	var tracks []webrtc.TrackLocal
	for _, t := range c.media.Local().Tracks() {
		tracks = append(tracks, t.Track())
	}
	return tracks
}

// linkErr logs a failure local to one link. It never aborts the room.
func (c *Controller) linkErr(l *peer.Link, err error) {
	if call.IsStale(err) {
		c.logger.Debug("stale negotiation step", "peer", l.ID(), "err", err)
	} else {
		c.logger.Warn("negotiation failed", "peer", l.ID(), "err", err)
	}
	if l.Closed() {
		c.dropLink(l, err)
	}
}
