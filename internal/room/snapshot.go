package room

import (
	"sort"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/peer"
)

// ParticipantView is the render state of one remote participant. State is
// empty while no link exists.
type ParticipantView struct {
	ID              string
	Role            call.Role
	State           peer.State
	HasRemoteStream bool
}

// Snapshot is an immutable copy of the session for rendering.
type Snapshot struct {
	RoomID         string
	Role           call.Role
	Topology       call.Topology
	SelfID         string
	Joined         bool
	RelayConnected bool
	Broadcasting   bool
	Local          media.TrackState
	Participants   []ParticipantView
}

// Connected counts participants whose link is connected.
func (s Snapshot) Connected() int {
	n := 0
	for _, p := range s.Participants {
		if p.State == peer.StateConnected {
			n++
		}
	}
	return n
}

// Participant returns the view of id.
func (s Snapshot) Participant(id string) (ParticipantView, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return ParticipantView{}, false
}

// Summary describes a finished session.
type Summary struct {
	RoomID           string
	Role             call.Role
	Duration         time.Duration
	ParticipantsSeen int
	LinksCreated     int
	LinksConnected   int
}

type stats struct {
	started   time.Time
	members   map[string]struct{}
	created   int
	connected map[*peer.Link]struct{}
}

func newStats() stats {
	return stats{
		started:   time.Now(),
		members:   make(map[string]struct{}),
		connected: make(map[*peer.Link]struct{}),
	}
}

func (s *stats) seen(id string) {
	s.members[id] = struct{}{}
}

func (s *stats) linkCreated() {
	s.created++
}

func (s *stats) observe(links map[string]*peer.Link) {
	for _, l := range links {
		if l.State() == peer.StateConnected {
			s.connected[l] = struct{}{}
		}
	}
}

func (s *stats) summary(roomID string, role call.Role, now time.Time) Summary {
	return Summary{
		RoomID:           roomID,
		Role:             role,
		Duration:         now.Sub(s.started),
		ParticipantsSeen: len(s.members),
		LinksCreated:     s.created,
		LinksConnected:   len(s.connected),
	}
}

// buildSnapshot must run on the loop goroutine, or after the loop exited.
func (c *Controller) buildSnapshot() Snapshot {
	s := Snapshot{
		RoomID:         c.roomID,
		Role:           c.role,
		SelfID:         c.selfID,
		Joined:         c.Joined(),
		RelayConnected: !c.relayLost && c.Joined(),
		Broadcasting:   c.broadcasting,
		Local:          c.media.State(),
	}
	if c.policy != nil {
		s.Topology = c.policy.Topology()
	}

	views := make(map[string]ParticipantView, len(c.members)+len(c.links))
	for id, m := range c.members {
		views[id] = ParticipantView{ID: id, Role: m.Role}
	}
	for id, l := range c.links {
		v := views[id]
		v.ID = id
		v.State = l.State()
		v.HasRemoteStream = l.HasRemoteStream()
		views[id] = v
	}

	s.Participants = make([]ParticipantView, 0, len(views))
	for _, v := range views {
		s.Participants = append(s.Participants, v)
	}
	sort.Slice(s.Participants, func(i, j int) bool { return s.Participants[i].ID < s.Participants[j].ID })
	return s
}

// publish runs after every handled event.
func (c *Controller) publish() {
	c.stats.observe(c.links)
	snap := c.buildSnapshot()

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()
	c.deliver(snap)
}

// deliver replaces any unread snapshot so readers always see the latest.
func (c *Controller) deliver(snap Snapshot) {
	select {
	case <-c.snapshots:
	default:
	}
	select {
	case c.snapshots <- snap:
	default:
	}
}

// Snapshot returns the current view of the session.
func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	if err := c.do(func() { s = c.buildSnapshot() }); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.last
	}
	return s
}

// Snapshots delivers a fresh snapshot after every handled event. Unread
// snapshots are replaced by newer ones.
func (c *Controller) Snapshots() <-chan Snapshot {
	return c.snapshots
}

// Summary returns the statistics of the last finished session.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}
