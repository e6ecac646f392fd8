package peer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"
)

// State is the negotiation state of a Link.
type State string

const (
	StateIdle          State = "idle"
	StateOfferSent     State = "offer_sent"
	StateOfferReceived State = "offer_received"
	StateAnswerPending State = "answer_pending"
	StateConnected     State = "connected"
	StateClosed        State = "closed"
)

const (
	evSendOffer     = "send_offer"
	evReceiveOffer  = "receive_offer"
	evSendAnswer    = "send_answer"
	evReceiveAnswer = "receive_answer"
	evConnectivity  = "connectivity"
	evClose         = "close"
)

var errConnectionFailed = errors.New("connection failed")

// Emitter sends signaling messages for a link.
type Emitter interface {
	Send(eventType string, payload signaling.Payload) error
}

// Options configures a Link.
type Options struct {
	// Dispatch runs engine callbacks on the owner's event loop. Nil runs them
	// on the calling goroutine.
	Dispatch func(func())

	// OnClosed is called on the dispatch goroutine when the link closes
	// itself after an engine failure or timeout. Explicit Close does not call it.
	OnClosed func(l *Link, reason error)

	// Timeout closes the link if it has not connected in time. Zero disables it.
	Timeout time.Duration

	Logger *slog.Logger
}

// Link is the negotiation with one remote participant. It owns exactly one
// connection and is not safe for concurrent use: every method and callback
// must run on the owner's event loop.
type Link struct {
	id      string
	conn    Connection
	emitter Emitter
	opts    Options
	logger  *slog.Logger
	fsm     *fsm.FSM

	created      time.Time
	timer        *time.Timer
	remoteSet    bool
	remoteSDP    string
	pending      []webrtc.ICECandidateInit
	attached     map[webrtc.TrackLocal]struct{}
	remoteStream string
	history      []State
}

// New creates an idle link to the participant id over conn.
func New(id string, conn Connection, emitter Emitter, opts Options) *Link {
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Link{
		id:       id,
		conn:     conn,
		emitter:  emitter,
		opts:     opts,
		logger:   logger.With("peer", id),
		created:  time.Now(),
		attached: make(map[webrtc.TrackLocal]struct{}),
		history:  []State{StateIdle},
	}

	negotiating := []string{string(StateIdle), string(StateOfferSent), string(StateOfferReceived), string(StateAnswerPending), string(StateConnected)}
	l.fsm = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evSendOffer, Src: []string{string(StateIdle)}, Dst: string(StateOfferSent)},
			{Name: evReceiveOffer, Src: []string{string(StateIdle)}, Dst: string(StateOfferReceived)},
			{Name: evSendAnswer, Src: []string{string(StateOfferReceived)}, Dst: string(StateAnswerPending)},
			{Name: evReceiveAnswer, Src: []string{string(StateOfferSent)}, Dst: string(StateConnected)},
			{Name: evConnectivity, Src: []string{string(StateAnswerPending)}, Dst: string(StateConnected)},
			{Name: evClose, Src: negotiating, Dst: string(StateClosed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.entered(State(e.Src), State(e.Dst))
			},
		},
	)

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		l.opts.Dispatch(func() { l.sendCandidate(c) })
	})
	conn.OnTrack(func(streamID string) {
		l.opts.Dispatch(func() { l.setRemoteStream(streamID) })
	})
	conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		l.opts.Dispatch(func() { l.connectionState(s) })
	})

	if opts.Timeout > 0 {
		l.timer = time.AfterFunc(opts.Timeout, func() {
			l.opts.Dispatch(l.expire)
		})
	}

	metrics.LinksActive.Inc()
	return l
}

func (l *Link) ID() string {
	return l.id
}

func (l *Link) State() State {
	return State(l.fsm.Current())
}

func (l *Link) Closed() bool {
	return l.State() == StateClosed
}

// History returns every state the link has been in, oldest first.
func (l *Link) History() []State {
	out := make([]State, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Link) HasRemoteStream() bool {
	return l.remoteStream != ""
}

// RemoteSDP returns the last applied remote description.
func (l *Link) RemoteSDP() string {
	return l.remoteSDP
}

// PendingCandidates is the number of candidates waiting for a remote description.
func (l *Link) PendingCandidates() int {
	return len(l.pending)
}

// AttachTracks adds local tracks to the connection. Tracks must be attached
// before the first offer or answer; adding a new one afterwards would need
// renegotiation and is refused.
func (l *Link) AttachTracks(tracks []webrtc.TrackLocal) error {
	if l.Closed() {
		return l.stale("attach tracks")
	}
	for _, t := range tracks {
		if _, ok := l.attached[t]; ok {
			continue
		}
		if l.State() != StateIdle {
			return call.WrapError("attach tracks", call.ErrNegotiationStale, "renegotiation required")
		}
		if err := l.conn.AddTrack(t); err != nil {
			return l.fatal("add track", err)
		}
		l.attached[t] = struct{}{}
	}
	return nil
}

// Offer generates and sends a local offer.
func (l *Link) Offer(iceRestart bool) error {
	if !l.fsm.Can(evSendOffer) {
		return l.stale("send offer")
	}

	offer, err := l.conn.CreateOffer(iceRestart)
	if err != nil {
		return l.fatal("create offer", err)
	}
	if err := l.conn.SetLocalDescription(offer); err != nil {
		return l.fatal("set local description", err)
	}
	if err := l.transition(evSendOffer); err != nil {
		return err
	}

	l.emit(signaling.EventOffer, signaling.Payload{Target: l.id, SDP: offer.SDP})
	return nil
}

// AcceptOffer applies a remote offer, then generates and sends the answer.
func (l *Link) AcceptOffer(sdp string) error {
	if !l.fsm.Can(evReceiveOffer) {
		return l.stale("accept offer")
	}

	if err := l.conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return l.fatal("set remote description", err)
	}
	l.remoteApplied(sdp)
	if err := l.transition(evReceiveOffer); err != nil {
		return err
	}

	answer, err := l.conn.CreateAnswer()
	if err != nil {
		return l.fatal("create answer", err)
	}
	if err := l.conn.SetLocalDescription(answer); err != nil {
		return l.fatal("set local description", err)
	}
	if err := l.transition(evSendAnswer); err != nil {
		return err
	}

	l.emit(signaling.EventAnswer, signaling.Payload{Target: l.id, SDP: answer.SDP})
	return nil
}

// AcceptAnswer applies the remote answer to an outstanding offer.
func (l *Link) AcceptAnswer(sdp string) error {
	if !l.fsm.Can(evReceiveAnswer) {
		return l.stale("accept answer")
	}

	if err := l.conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		return l.fatal("set remote description", err)
	}
	l.remoteApplied(sdp)
	return l.transition(evReceiveAnswer)
}

// AddCandidate applies a remote candidate, or queues it until a remote
// description exists. Queued candidates keep their arrival order.
func (l *Link) AddCandidate(c webrtc.ICECandidateInit) error {
	if l.Closed() {
		return l.stale("add candidate")
	}
	if !l.remoteSet {
		l.pending = append(l.pending, c)
		metrics.CandidatesQueued.Inc()
		return nil
	}
	if err := l.conn.AddICECandidate(c); err != nil {
		return call.NewPeerError("add candidate", l.id, err)
	}
	return nil
}

// MarkConnected completes an answered negotiation once the engine reports
// connectivity. It is a no-op on an already connected link.
func (l *Link) MarkConnected() error {
	switch l.State() {
	case StateConnected:
		return nil
	case StateAnswerPending:
		return l.transition(evConnectivity)
	default:
		return l.stale("mark connected")
	}
}

// Close tears the connection down and discards queued candidates.
// Closing a closed link is a no-op.
func (l *Link) Close() {
	if l.Closed() {
		return
	}
	if err := l.transition(evClose); err != nil {
		l.logger.Debug("close transition", "err", err)
		return
	}

	if l.timer != nil {
		l.timer.Stop()
	}
	l.pending = nil
	if err := l.conn.Close(); err != nil {
		l.logger.Debug("closing connection", "err", err)
	}
	metrics.LinksActive.Dec()
}

func (l *Link) remoteApplied(sdp string) {
	l.remoteSet = true
	l.remoteSDP = sdp
	l.flush()
}

func (l *Link) flush() {
	pending := l.pending
	l.pending = nil
	for _, c := range pending {
		if err := l.conn.AddICECandidate(c); err != nil {
			l.logger.Warn("queued candidate rejected", "err", err)
		}
	}
	if len(pending) > 0 {
		metrics.CandidatesFlushed.Add(float64(len(pending)))
		l.logger.Debug("flushed queued candidates", "count", len(pending))
	}
}

func (l *Link) transition(event string) error {
	if err := l.fsm.Event(context.Background(), event); err != nil {
		return call.WrapError(event, call.ErrNegotiationStale, err.Error())
	}
	return nil
}

func (l *Link) entered(from, to State) {
	l.history = append(l.history, to)
	metrics.LinkTransitions.WithLabelValues(string(from), string(to)).Inc()
	if to == StateConnected {
		if l.timer != nil {
			l.timer.Stop()
		}
		metrics.NegotiationDuration.Observe(time.Since(l.created).Seconds())
	}
	l.logger.Debug("link state", "from", from, "to", to)
}

func (l *Link) stale(op string) error {
	return call.NewPeerError(op, l.id, call.ErrNegotiationStale)
}

// fatal closes the link after an engine error and reports it to the owner.
func (l *Link) fatal(op string, err error) error {
	e := call.NewPeerError(op, l.id, err)
	l.fail(e)
	return e
}

func (l *Link) fail(reason error) {
	if l.Closed() {
		return
	}
	l.logger.Warn("closing link", "reason", reason)
	l.Close()
	if l.opts.OnClosed != nil {
		l.opts.OnClosed(l, reason)
	}
}

func (l *Link) expire() {
	switch l.State() {
	case StateConnected, StateClosed:
		return
	}
	l.fail(call.NewPeerError("negotiate", l.id, call.ErrNegotiationTimeout))
}

func (l *Link) sendCandidate(c webrtc.ICECandidateInit) {
	if l.Closed() {
		return
	}
	l.emit(signaling.EventCandidate, signaling.Payload{Target: l.id, Candidate: signaling.CandidateFromPion(c)})
}

func (l *Link) setRemoteStream(streamID string) {
	if l.Closed() {
		return
	}
	l.remoteStream = streamID
}

func (l *Link) connectionState(s webrtc.PeerConnectionState) {
	if l.Closed() {
		return
	}
	switch s {
	case webrtc.PeerConnectionStateConnected:
		if err := l.MarkConnected(); err != nil {
			l.logger.Debug("connectivity before answer", "err", err)
		}
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		l.fail(call.NewPeerError("connection "+s.String(), l.id, errConnectionFailed))
	case webrtc.PeerConnectionStateDisconnected:
		l.logger.Debug("connection interrupted")
	}
}

// emit sends a signal. A missing relay connection only drops the signal.
func (l *Link) emit(eventType string, payload signaling.Payload) {
	if err := l.emitter.Send(eventType, payload); err != nil {
		if errors.Is(err, call.ErrTransportUnavailable) {
			l.logger.Debug("signal dropped", "event", eventType)
			return
		}
		l.logger.Warn("signal failed", "event", eventType, "err", err)
	}
}
