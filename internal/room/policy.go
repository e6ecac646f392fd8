package room

import "github.com/BioHazard786/Warpcall/internal/call"

// Member is a remote participant known to the room.
type Member struct {
	ID   string
	Role call.Role
}

// Trigger is the reason the controller asks whether to offer.
type Trigger int

const (
	// TriggerArrival is a participantJoined notice for someone new.
	TriggerArrival Trigger = iota
	// TriggerRoster is a member already present when we joined.
	TriggerRoster
	// TriggerBroadcastStart is the host starting to broadcast.
	TriggerBroadcastStart
)

// Policy decides who initiates offers and when renegotiation happens.
// Everything else about links is shared between topologies.
type Policy interface {
	Topology() call.Topology
	AllowsRole(role call.Role) bool

	// SendsMedia reports whether the local role attaches local tracks.
	SendsMedia(local call.Role) bool
	// AcquiresAtJoin reports whether media is captured on join rather than on demand.
	AcquiresAtJoin(local call.Role) bool

	ShouldOffer(local call.Role, remote Member, trigger Trigger, broadcasting bool) bool
	AcceptsOffer(local call.Role, remote Member) bool
	// ReplacesOnReoffer reports whether a fresh offer on a negotiated link
	// replaces that link instead of being ignored as stale.
	ReplacesOnReoffer(local call.Role) bool
	ICERestart() bool
}

// PolicyFor returns the policy for the local role.
func PolicyFor(role call.Role) Policy {
	if call.TopologyFor(role) == call.TopologyMesh {
		return Mesh{}
	}
	return Broadcast{}
}

// Mesh connects every participant to every other. Whoever sees a newcomer
// arrive offers to it, so the newcomer always answers and glare cannot happen.
type Mesh struct{}

func (Mesh) Topology() call.Topology { return call.TopologyMesh }

func (Mesh) AllowsRole(role call.Role) bool { return role == call.RoleParticipant }

func (Mesh) SendsMedia(call.Role) bool { return true }

func (Mesh) AcquiresAtJoin(call.Role) bool { return true }

func (Mesh) ShouldOffer(_ call.Role, remote Member, trigger Trigger, _ bool) bool {
	return trigger == TriggerArrival && (remote.Role == "" || remote.Role == call.RoleParticipant)
}

func (Mesh) AcceptsOffer(_ call.Role, remote Member) bool {
	return remote.Role == "" || remote.Role == call.RoleParticipant
}

func (Mesh) ReplacesOnReoffer(call.Role) bool { return false }

func (Mesh) ICERestart() bool { return false }

// Broadcast fans one host out to many viewers. Only the host holds tracks
// and offers, and only while broadcasting.
type Broadcast struct{}

func (Broadcast) Topology() call.Topology { return call.TopologyBroadcast }

func (Broadcast) AllowsRole(role call.Role) bool {
	return role == call.RoleHost || role == call.RoleViewer
}

func (Broadcast) SendsMedia(local call.Role) bool { return local == call.RoleHost }

func (Broadcast) AcquiresAtJoin(call.Role) bool { return false }

func (Broadcast) ShouldOffer(local call.Role, remote Member, _ Trigger, broadcasting bool) bool {
	if local != call.RoleHost || !broadcasting {
		return false
	}
	return remote.Role == "" || remote.Role == call.RoleViewer
}

func (Broadcast) AcceptsOffer(local call.Role, remote Member) bool {
	return local == call.RoleViewer && (remote.Role == "" || remote.Role == call.RoleHost)
}

func (Broadcast) ReplacesOnReoffer(local call.Role) bool { return local == call.RoleViewer }

func (Broadcast) ICERestart() bool { return true }
