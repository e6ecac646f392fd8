package call

import (
	"fmt"
	"time"
)

// Role is the local participant's role in a room.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
	RoleViewer      Role = "viewer"
)

// Topology names the negotiation policy a room runs under.
type Topology string

const (
	TopologyMesh      Topology = "mesh"
	TopologyBroadcast Topology = "broadcast"
)

const (
	DefaultNegotiationTimeout = 30 * time.Second
	StreamID                  = "warpcall"
)

// ParseRole validates a role string coming from flags or the wire.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleHost, RoleParticipant, RoleViewer:
		return r, nil
	default:
		return "", WrapError("parse role", ErrInvalidRole, fmt.Sprintf("%q", s))
	}
}

// TopologyFor returns the topology a role belongs to.
func TopologyFor(r Role) Topology {
	if r == RoleParticipant {
		return TopologyMesh
	}
	return TopologyBroadcast
}
