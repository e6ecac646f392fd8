package room

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/peer"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// recorder keeps an ordered log shared by fakes that care about ordering.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func (r *recorder) index(step string) int {
	for i, s := range r.all() {
		if s == step {
			return i
		}
	}
	return -1
}

type routed struct {
	From, To, Type string
}

// memHub is an in-memory relay with the same routing rules as the real one.
type memHub struct {
	mu      sync.Mutex
	members map[string]*memTransport
	log     []routed
}

func newMemHub() *memHub {
	return &memHub{members: make(map[string]*memTransport)}
}

func (h *memHub) transport(id string) *memTransport {
	return &memTransport{id: id, hub: h, handlers: make(map[string][]signaling.Handler)}
}

func (h *memHub) offers() []routed {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []routed
	for _, r := range h.log {
		if r.Type == signaling.EventOffer {
			out = append(out, r)
		}
	}
	return out
}

func (h *memHub) route(from *memTransport, eventType string, p signaling.Payload) {
	h.mu.Lock()
	var deliveries []func()
	switch eventType {
	case signaling.EventJoin:
		from.role = p.Role
		roster := []signaling.Participant{}
		for id, m := range h.members {
			roster = append(roster, signaling.Participant{ID: id, Role: m.role})
			deliveries = append(deliveries, func() {
				m.deliver(signaling.EventParticipantJoined, signaling.Payload{ParticipantID: from.id, Role: p.Role})
			})
		}
		sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
		h.members[from.id] = from
		joined := func() {
			from.deliver(signaling.EventJoined, signaling.Payload{ParticipantID: from.id, Participants: roster})
		}
		deliveries = append([]func(){joined}, deliveries...)

	case signaling.EventLeave:
		delete(h.members, from.id)
		for _, m := range h.members {
			deliveries = append(deliveries, func() {
				m.deliver(signaling.EventParticipantLeft, signaling.Payload{ParticipantID: from.id})
			})
		}

	default:
		p.Caller = from.id
		for id, m := range h.members {
			if id == from.id || (p.Target != "" && p.Target != id) {
				continue
			}
			h.log = append(h.log, routed{From: from.id, To: id, Type: eventType})
			deliveries = append(deliveries, func() { m.deliver(eventType, p) })
		}
	}
	h.mu.Unlock()

	for _, d := range deliveries {
		d()
	}
}

// inject delivers a message to id as if the relay sent it.
func (h *memHub) inject(id, eventType string, p signaling.Payload) {
	h.mu.Lock()
	m := h.members[id]
	h.mu.Unlock()
	m.deliver(eventType, p)
}

type memTransport struct {
	id   string
	hub  *memHub
	log  *recorder
	role string

	mu        sync.Mutex
	connected bool
	handlers  map[string][]signaling.Handler
}

func (t *memTransport) Connect(context.Context, string) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *memTransport) Send(eventType string, p signaling.Payload) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return call.NewError("send "+eventType, call.ErrTransportUnavailable)
	}
	if eventType == signaling.EventLeave {
		t.log.add("leave")
	}
	t.hub.route(t, eventType, p)
	return nil
}

func (t *memTransport) On(eventType string, h signaling.Handler) {
	t.mu.Lock()
	t.handlers[eventType] = append(t.handlers[eventType], h)
	t.mu.Unlock()
}

func (t *memTransport) Disconnect() {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	t.log.add("disconnect")
}

func (t *memTransport) deliver(eventType string, p signaling.Payload) {
	t.mu.Lock()
	handlers := t.handlers[eventType]
	t.mu.Unlock()
	for _, h := range handlers {
		h(p)
	}
}

var sdpSeq atomic.Int64

// fakeConn completes negotiation without networking: an applied answer or a
// sent answer reports connectivity asynchronously, like a real engine.
type fakeConn struct {
	owner string
	log   *recorder

	mu          sync.Mutex
	tracks      int
	iceRestarts int
	remote      bool
	candidates  []webrtc.ICECandidateInit
	closed      int
	onState     func(webrtc.PeerConnectionState)
	onTrack     func(string)
	onCandidate func(webrtc.ICECandidateInit)
}

func (c *fakeConn) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	c.mu.Lock()
	if iceRestart {
		c.iceRestarts++
	}
	c.mu.Unlock()
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", sdpSeq.Add(1))}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", sdpSeq.Add(1))}, nil
}

func (c *fakeConn) SetLocalDescription(d webrtc.SessionDescription) error {
	if d.Type == webrtc.SDPTypeAnswer {
		c.connectSoon()
	} else {
		c.mu.Lock()
		cb := c.onCandidate
		c.mu.Unlock()
		go cb(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"})
	}
	return nil
}

func (c *fakeConn) SetRemoteDescription(d webrtc.SessionDescription) error {
	c.mu.Lock()
	c.remote = true
	c.mu.Unlock()
	if d.Type == webrtc.SDPTypeAnswer {
		c.connectSoon()
	}
	return nil
}

func (c *fakeConn) connectSoon() {
	c.mu.Lock()
	onState, onTrack := c.onState, c.onTrack
	c.mu.Unlock()
	go func() {
		onTrack(call.StreamID)
		onState(webrtc.PeerConnectionStateConnected)
	}()
}

func (c *fakeConn) AddICECandidate(init webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.remote {
		return fmt.Errorf("no remote description")
	}
	c.candidates = append(c.candidates, init)
	return nil
}

func (c *fakeConn) AddTrack(webrtc.TrackLocal) error {
	c.mu.Lock()
	c.tracks++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onCandidate = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnTrack(fn func(string)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	c.log.add("close:" + c.owner)
	return nil
}

func (c *fakeConn) stats() (tracks, restarts, closed, candidates int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks, c.iceRestarts, c.closed, len(c.candidates)
}

// connFactory hands out fakeConns and remembers them in creation order.
type connFactory struct {
	owner string
	log   *recorder

	mu    sync.Mutex
	conns []*fakeConn
}

func (f *connFactory) factory() peer.Factory {
	return func() (peer.Connection, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c := &fakeConn{owner: f.owner, log: f.log}
		f.conns = append(f.conns, c)
		return c, nil
	}
}

func (f *connFactory) all() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeConn(nil), f.conns...)
}

// recordingMedia logs releases so the leave order can be checked.
type recordingMedia struct {
	*media.Controller
	log *recorder
}

func (m recordingMedia) Release() {
	m.log.add("release")
	m.Controller.Release()
}

type node struct {
	id        string
	ctrl      *Controller
	transport *memTransport
	conns     *connFactory
	media     *media.Controller
}

func newNode(t *testing.T, hub *memHub, id string, log *recorder, opts ...func(*Options)) *node {
	t.Helper()
	tr := hub.transport(id)
	tr.log = log
	conns := &connFactory{owner: id, log: log}
	mc := media.NewController(media.FileCapturer{})
	o := Options{
		Endpoint:    "mem://" + id,
		Constraints: media.Constraints{Audio: true},
	}
	for _, fn := range opts {
		fn(&o)
	}
	ctrl := New(tr, recordingMedia{Controller: mc, log: log}, conns.factory(), o)
	t.Cleanup(func() {
		_ = ctrl.Leave()
		mc.Release()
	})
	return &node{id: id, ctrl: ctrl, transport: tr, conns: conns, media: mc}
}

func (n *node) join(t *testing.T, role call.Role) {
	t.Helper()
	require.NoError(t, n.ctrl.Join(context.Background(), "brave-otter", role))
	require.Eventually(t, func() bool {
		return n.ctrl.Snapshot().SelfID == n.id
	}, 2*time.Second, 5*time.Millisecond, "%s never received joined", n.id)
}

func (n *node) connectedTo(ids ...string) func() bool {
	return func() bool {
		snap := n.ctrl.Snapshot()
		for _, id := range ids {
			v, ok := snap.Participant(id)
			if !ok || v.State != peer.StateConnected || !v.HasRemoteStream {
				return false
			}
		}
		return true
	}
}

func (n *node) linkStates() map[string]peer.State {
	out := map[string]peer.State{}
	for _, p := range n.ctrl.Snapshot().Participants {
		if p.State != "" {
			out[p.ID] = p.State
		}
	}
	return out
}

// gatedMedia holds Acquire until open is closed, so other calls can run
// while a capture is in progress.
type gatedMedia struct {
	*media.Controller
	entered chan struct{}
	open    chan struct{}
}

func newGatedMedia() *gatedMedia {
	return &gatedMedia{
		Controller: media.NewController(media.FileCapturer{}),
		entered:    make(chan struct{}),
		open:       make(chan struct{}),
	}
}

func (m *gatedMedia) Acquire(ctx context.Context, constraints media.Constraints) (*media.LocalMedia, error) {
	close(m.entered)
	<-m.open
	return m.Controller.Acquire(ctx, constraints)
}
