package media

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Warpcall/internal/call"
)

// Constraints selects which kinds to capture.
type Constraints struct {
	Audio bool
	Video bool
}

// LocalMedia is the set of tracks acquired for one session.
type LocalMedia struct {
	Audio *LocalTrack
	Video *LocalTrack
}

// Tracks returns the acquired tracks, audio first.
func (m *LocalMedia) Tracks() []*LocalTrack {
	if m == nil {
		return nil
	}
	var tracks []*LocalTrack
	if m.Audio != nil {
		tracks = append(tracks, m.Audio)
	}
	if m.Video != nil {
		tracks = append(tracks, m.Video)
	}
	return tracks
}

// TrackState is the read-only view of local media.
type TrackState struct {
	Acquired     bool
	HasAudio     bool
	HasVideo     bool
	AudioEnabled bool
	VideoEnabled bool
}

// Controller is the sole owner of capture devices and local tracks.
// It never touches signaling.
type Controller struct {
	capturer Capturer
	logger   *slog.Logger

	mu           sync.Mutex
	local        *LocalMedia
	acquisitions int
}

func NewController(capturer Capturer) *Controller {
	return &Controller{
		capturer: capturer,
		logger:   slog.Default().With("component", "media"),
	}
}

// Acquire captures the requested kinds once. Later calls return the same
// tracks until Release.
func (c *Controller) Acquire(ctx context.Context, constraints Constraints) (*LocalMedia, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.local != nil {
		return c.local, nil
	}
	if !constraints.Audio && !constraints.Video {
		return nil, call.WrapError("acquire media", call.ErrDeviceUnavailable, "no media kind requested")
	}

	local := &LocalMedia{}
	if constraints.Audio {
		t, err := c.capture(ctx, KindAudio)
		if err != nil {
			return nil, err
		}
		local.Audio = t
	}
	if constraints.Video {
		t, err := c.capture(ctx, KindVideo)
		if err != nil {
			if local.Audio != nil {
				local.Audio.close()
			}
			return nil, err
		}
		local.Video = t
	}

	for _, t := range local.Tracks() {
		t.start()
	}

	c.local = local
	c.acquisitions++
	c.logger.Info("local media acquired", "audio", local.Audio != nil, "video", local.Video != nil)
	return local, nil
}

func (c *Controller) capture(ctx context.Context, kind Kind) (*LocalTrack, error) {
	device, err := c.capturer.Capture(ctx, kind)
	if err != nil {
		return nil, err
	}
	t, err := newLocalTrack(kind, device)
	if err != nil {
		device.Close()
		return nil, call.WrapError("acquire "+string(kind), call.ErrDeviceUnavailable, err.Error())
	}
	return t, nil
}

// Local returns the acquired media, or nil.
func (c *Controller) Local() *LocalMedia {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// SetAudioEnabled is a no-op when audio was never acquired.
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil || c.local.Audio == nil {
		return
	}
	c.local.Audio.enabled.Store(enabled)
	c.logger.Debug("audio toggled", "enabled", enabled)
}

// SetVideoEnabled is a no-op when video was never acquired.
func (c *Controller) SetVideoEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil || c.local.Video == nil {
		return
	}
	c.local.Video.enabled.Store(enabled)
	c.logger.Debug("video toggled", "enabled", enabled)
}

func (c *Controller) State() TrackState {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s TrackState
	if c.local == nil {
		return s
	}
	s.Acquired = true
	if a := c.local.Audio; a != nil {
		s.HasAudio = true
		s.AudioEnabled = a.Enabled()
	}
	if v := c.local.Video; v != nil {
		s.HasVideo = true
		s.VideoEnabled = v.Enabled()
	}
	return s
}

// Acquisitions reports how many times devices were actually captured.
func (c *Controller) Acquisitions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquisitions
}

// Release stops every track and closes the devices. Idempotent, and safe
// when nothing was acquired.
func (c *Controller) Release() {
	c.mu.Lock()
	local := c.local
	c.local = nil
	c.mu.Unlock()

	if local == nil {
		return
	}
	for _, t := range local.Tracks() {
		t.close()
	}
	c.logger.Info("local media released")
}
