package room

import (
	"sort"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/peer"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// Inbound relay events. Each runs on the loop goroutine.

func (c *Controller) onJoined(p signaling.Payload) {
	c.selfID = p.ParticipantID
	c.logger.Info("joined room", "room", c.roomID, "self", c.selfID, "members", len(p.Participants))

	roster := make([]Member, 0, len(p.Participants))
	for _, m := range p.Participants {
		if m.ID == "" || m.ID == c.selfID {
			continue
		}
		roster = append(roster, Member{ID: m.ID, Role: call.Role(m.Role)})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })

	for _, m := range roster {
		c.admit(m, TriggerRoster)
	}
}

func (c *Controller) onParticipantJoined(p signaling.Payload) {
	id := p.ParticipantID
	if id == "" || id == c.selfID {
		return
	}
	delete(c.departed, id)
	c.admit(Member{ID: id, Role: call.Role(p.Role)}, TriggerArrival)
}

// admit records a member and lets the policy decide whether to offer.
func (c *Controller) admit(m Member, trigger Trigger) {
	if known, ok := c.members[m.ID]; ok && m.Role == "" {
		m.Role = known.Role
	}
	c.members[m.ID] = m
	c.stats.seen(m.ID)

	if c.policy.ShouldOffer(c.role, m, trigger, c.broadcasting) {
		c.offerTo(m)
	}
}

// offerTo creates a link to m and sends the initial offer. An existing live
// link is left alone, so duplicate arrival notices never double up.
func (c *Controller) offerTo(m Member) {
	if l, ok := c.links[m.ID]; ok && !l.Closed() {
		c.logger.Debug("link already exists", "peer", m.ID, "state", l.State())
		return
	}

	l, err := c.newLink(m.ID)
	if err != nil {
		c.logger.Warn("cannot create link", "peer", m.ID, "err", err)
		return
	}
	if err := l.Offer(c.policy.ICERestart()); err != nil {
		c.linkErr(l, err)
	}
}

func (c *Controller) onParticipantLeft(p signaling.Payload) {
	id := p.ParticipantID
	if id == "" {
		return
	}
	c.departed[id] = struct{}{}
	delete(c.members, id)

	l, ok := c.links[id]
	if !ok {
		return
	}
	l.Close()
	delete(c.links, id)
	c.logger.Info("participant left", "peer", id)
}

func (c *Controller) onOffer(p signaling.Payload) {
	from := p.Caller
	if !c.addressedToUs(p) || from == "" || from == c.selfID {
		return
	}
	if _, gone := c.departed[from]; gone {
		c.logger.Debug("offer from departed participant", "peer", from, "err", call.ErrNegotiationStale)
		return
	}

	m, known := c.members[from]
	if !known {
		m = Member{ID: from}
	}
	if !c.policy.AcceptsOffer(c.role, m) {
		c.logger.Debug("offer refused by topology", "peer", from, "topology", c.policy.Topology())
		return
	}
	if !known {
		c.members[from] = m
		c.stats.seen(from)
	}

	l := c.links[from]
	if l != nil && l.Closed() {
		delete(c.links, from)
		l = nil
	}
	if l != nil && l.State() != peer.StateIdle {
		if !c.policy.ReplacesOnReoffer(c.role) || l.RemoteSDP() == p.SDP {
			c.logger.Debug("duplicate offer", "peer", from, "state", l.State(), "err", call.ErrNegotiationStale)
			return
		}
		c.logger.Info("renegotiating link", "peer", from)
		l.Close()
		delete(c.links, from)
		l = nil
	}

	if l == nil {
		var err error
		if l, err = c.newLink(from); err != nil {
			c.logger.Warn("cannot create link", "peer", from, "err", err)
			return
		}
	}
	if err := l.AcceptOffer(p.SDP); err != nil {
		c.linkErr(l, err)
	}
}

func (c *Controller) onAnswer(p signaling.Payload) {
	if !c.addressedToUs(p) {
		return
	}
	l, ok := c.links[p.Caller]
	if !ok {
		c.logger.Debug("answer ignored", "peer", p.Caller, "err", call.ErrUnknownParticipant)
		return
	}
	if err := l.AcceptAnswer(p.SDP); err != nil {
		c.linkErr(l, err)
	}
}

// onCandidate applies or queues a remote candidate. Candidates never create
// a link: without one the participant is unknown or departed.
func (c *Controller) onCandidate(p signaling.Payload) {
	if !c.addressedToUs(p) || p.Candidate == nil {
		return
	}
	l, ok := c.links[p.Caller]
	if !ok {
		c.logger.Debug("candidate ignored", "peer", p.Caller, "err", call.ErrUnknownParticipant)
		return
	}
	if err := l.AddCandidate(p.Candidate.ToPion()); err != nil {
		c.linkErr(l, err)
	}
}

func (c *Controller) onRelayError(p signaling.Payload) {
	c.logger.Warn("relay error", "room", c.roomID, "err", call.WrapError("relay", call.ErrSignalingError, p.Error))
}

// onDisconnected keeps existing links alive. Signals sent from now on are
// dropped until the session is left.
func (c *Controller) onDisconnected() {
	c.relayLost = true
	c.logger.Warn("relay connection lost", "room", c.roomID)
}

func (c *Controller) addressedToUs(p signaling.Payload) bool {
	return p.Target == "" || c.selfID == "" || p.Target == c.selfID
}
