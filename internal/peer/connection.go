package peer

import "github.com/pion/webrtc/v4"

// Connection is the slice of the media engine a Link drives. It mirrors the
// engine primitives so links can be tested without real networking.
type Connection interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	AddTrack(webrtc.TrackLocal) error

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnTrack(func(streamID string))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))

	Close() error
}

// Factory creates one Connection per link.
type Factory func() (Connection, error)
