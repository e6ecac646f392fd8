package signaling

import pion "github.com/pion/webrtc/v4"

// Message is the envelope for every relay message between a client and the relay.
type Message struct {
	Type    string  `json:"type" msgpack:"type"`
	Payload Payload `json:"payload" msgpack:"payload"`
}

// Event type constants.
const (
	EventJoin  = "join"
	EventLeave = "leave"

	EventJoined            = "joined"
	EventParticipantJoined = "participantJoined"
	EventParticipantLeft   = "participantLeft"
	EventError             = "error"

	EventOffer     = "offer"
	EventAnswer    = "answer"
	EventCandidate = "candidate"

	// EventDisconnected is emitted locally when the relay connection drops.
	// It never travels on the wire.
	EventDisconnected = "disconnected"
)

// Participant describes a room member as announced by the relay.
type Participant struct {
	ID   string `json:"participantId" msgpack:"participantId"`
	Role string `json:"role,omitempty" msgpack:"role,omitempty"`
}

// Payload carries the fields of every event type. Unused fields are omitted on the wire.
type Payload struct {
	RoomID        string        `json:"roomId,omitempty" msgpack:"roomId,omitempty"`
	Role          string        `json:"role,omitempty" msgpack:"role,omitempty"`
	ParticipantID string        `json:"participantId,omitempty" msgpack:"participantId,omitempty"`
	Participants  []Participant `json:"participants,omitempty" msgpack:"participants,omitempty"`
	Target        string        `json:"target,omitempty" msgpack:"target,omitempty"`
	Caller        string        `json:"caller,omitempty" msgpack:"caller,omitempty"`
	SDP           string        `json:"sdp,omitempty" msgpack:"sdp,omitempty"`
	Candidate     *Candidate    `json:"candidate,omitempty" msgpack:"candidate,omitempty"`
	Error         string        `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Candidate is the wire form of an ICE candidate.
type Candidate struct {
	Candidate        string  `json:"candidate" msgpack:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty" msgpack:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty" msgpack:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty" msgpack:"usernameFragment,omitempty"`
}

// CandidateFromPion converts an engine candidate into its wire form.
func CandidateFromPion(init pion.ICECandidateInit) *Candidate {
	return &Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

// ToPion converts a wire candidate back into the engine type.
func (c *Candidate) ToPion() pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
