package peer

import (
	"log/slog"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/utils"
	"github.com/pion/webrtc/v4"
)

// Configuration builds the ICE configuration shared by every link.
func Configuration(cfg *config.Config) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil {
		if cfg.ForceRelay {
			policy = webrtc.ICETransportPolicyRelay
		} else if iface, ok := utils.ForceRelayReason(); ok {
			slog.Info("relay-only ICE: tunnel or CGNAT interface detected", "interface", iface)
			policy = webrtc.ICETransportPolicyRelay
		}
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// NewPionFactory returns a Factory backed by pion peer connections. A nil api
// uses the engine defaults.
func NewPionFactory(api *webrtc.API, conf webrtc.Configuration) Factory {
	return func() (Connection, error) {
		var (
			pc  *webrtc.PeerConnection
			err error
		)
		if api != nil {
			pc, err = api.NewPeerConnection(conf)
		} else {
			pc, err = webrtc.NewPeerConnection(conf)
		}
		if err != nil {
			return nil, err
		}
		return &pionConnection{pc: pc}, nil
	}
}

type pionConnection struct {
	pc *webrtc.PeerConnection
}

func (c *pionConnection) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
}

func (c *pionConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConnection) AddICECandidate(init webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(init)
}

// AddTrack attaches a local track and drains the sender's RTCP so
// interceptors keep running.
func (c *pionConnection) AddTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *pionConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

// OnTrack reports each remote stream and consumes its packets. Rendering is
// outside this program, so payloads are discarded.
func (c *pionConnection) OnTrack(fn func(streamID string)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track.StreamID())
		go func() {
			for {
				if _, _, err := track.ReadRTP(); err != nil {
					return
				}
			}
		}()
	})
}

func (c *pionConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *pionConnection) Close() error {
	return c.pc.Close()
}
