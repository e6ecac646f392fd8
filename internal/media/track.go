package media

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/pion/webrtc/v4"
)

// LocalTrack is a captured track shared by reference across every peer link.
// Links attach Track() and never mutate it; enabling and stopping go through
// the Controller.
type LocalTrack struct {
	kind    Kind
	track   *webrtc.TrackLocalStaticSample
	device  Device
	enabled atomic.Bool

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newLocalTrack(kind Kind, device Device) (*LocalTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(device.Codec(), string(kind), call.StreamID)
	if err != nil {
		return nil, err
	}

	t := &LocalTrack{
		kind:   kind,
		track:  track,
		device: device,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	t.enabled.Store(true)
	return t, nil
}

func (t *LocalTrack) Kind() Kind {
	return t.kind
}

// Track returns the engine track to attach to a connection.
func (t *LocalTrack) Track() webrtc.TrackLocal {
	return t.track
}

func (t *LocalTrack) Enabled() bool {
	return t.enabled.Load()
}

func (t *LocalTrack) start() {
	if t.started.CompareAndSwap(false, true) {
		go t.pump()
	}
}

// pump writes device samples paced by their duration. Disabled tracks keep
// reading the device so the stream resumes in place when re-enabled.
func (t *LocalTrack) pump() {
	defer close(t.done)

	logger := slog.Default().With("component", "media", "kind", t.kind)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}

		sample, err := t.device.NextSample()
		if err != nil {
			logger.Warn("capture stopped", "err", err)
			return
		}

		if t.enabled.Load() {
			if err := t.track.WriteSample(sample); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				logger.Debug("write sample failed", "err", err)
			}
		}

		timer.Reset(sample.Duration)
	}
}

func (t *LocalTrack) close() {
	t.stopOnce.Do(func() {
		close(t.stop)
		if t.started.Load() {
			<-t.done
		}
		if err := t.device.Close(); err != nil {
			slog.Debug("closing capture device", "kind", t.kind, "err", err)
		}
	})
}
