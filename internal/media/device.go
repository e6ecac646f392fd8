package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// Kind is the media kind of a capture device.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

const (
	opusClockRate     = 48000
	opusFrameDuration = 20 * time.Millisecond
)

// Opus frame that decodes to 20ms of silence.
var silentOpusFrame = []byte{0xf8, 0xff, 0xfe}

// Device produces encoded samples for one local track.
type Device interface {
	Codec() webrtc.RTPCodecCapability
	NextSample() (media.Sample, error)
	Close() error
}

// Capturer opens capture devices. It is the boundary to the media source.
type Capturer interface {
	Capture(ctx context.Context, kind Kind) (Device, error)
}

// FileCapturer captures from pre-encoded files: IVF for video and Ogg/Opus
// for audio. Files loop when they reach the end. Without an audio file the
// audio device produces Opus silence.
type FileCapturer struct {
	AudioPath string
	VideoPath string
}

func (c FileCapturer) Capture(ctx context.Context, kind Kind) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case KindAudio:
		if c.AudioPath == "" {
			return silenceDevice{}, nil
		}
		return openOgg(c.AudioPath)
	case KindVideo:
		if c.VideoPath == "" {
			return nil, call.WrapError("capture video", call.ErrDeviceUnavailable, "no video source configured")
		}
		return openIVF(c.VideoPath)
	default:
		return nil, call.WrapError("capture", call.ErrDeviceUnavailable, fmt.Sprintf("unknown kind %q", kind))
	}
}

// openDevice maps filesystem failures onto the acquisition error taxonomy.
func openDevice(op, path string) (*os.File, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, fs.ErrPermission) {
		return nil, call.WrapError(op, call.ErrPermissionDenied, path)
	}
	return nil, call.WrapError(op, call.ErrDeviceUnavailable, err.Error())
}

type silenceDevice struct{}

func (silenceDevice) Codec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2}
}

func (silenceDevice) NextSample() (media.Sample, error) {
	data := make([]byte, len(silentOpusFrame))
	copy(data, silentOpusFrame)
	return media.Sample{Data: data, Duration: opusFrameDuration}, nil
}

func (silenceDevice) Close() error { return nil }

type ivfDevice struct {
	file     *os.File
	reader   *ivfreader.IVFReader
	codec    webrtc.RTPCodecCapability
	duration time.Duration
}

func openIVF(path string) (*ivfDevice, error) {
	f, err := openDevice("capture video", path)
	if err != nil {
		return nil, err
	}

	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, call.WrapError("capture video", call.ErrDeviceUnavailable, err.Error())
	}

	var mime string
	switch header.FourCC {
	case "VP80":
		mime = webrtc.MimeTypeVP8
	case "VP90":
		mime = webrtc.MimeTypeVP9
	case "AV01":
		mime = webrtc.MimeTypeAV1
	default:
		f.Close()
		return nil, call.WrapError("capture video", call.ErrDeviceUnavailable, "unsupported codec "+header.FourCC)
	}

	duration := 33 * time.Millisecond
	if header.TimebaseDenominator != 0 {
		duration = time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	}

	return &ivfDevice{
		file:     f,
		reader:   reader,
		codec:    webrtc.RTPCodecCapability{MimeType: mime, ClockRate: 90000},
		duration: duration,
	}, nil
}

func (d *ivfDevice) Codec() webrtc.RTPCodecCapability { return d.codec }

func (d *ivfDevice) NextSample() (media.Sample, error) {
	frame, _, err := d.reader.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		if err := d.rewind(); err != nil {
			return media.Sample{}, err
		}
		frame, _, err = d.reader.ParseNextFrame()
	}
	if err != nil {
		return media.Sample{}, err
	}
	return media.Sample{Data: frame, Duration: d.duration}, nil
}

func (d *ivfDevice) rewind() error {
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader, _, err := ivfreader.NewWith(d.file)
	if err != nil {
		return err
	}
	d.reader = reader
	return nil
}

func (d *ivfDevice) Close() error { return d.file.Close() }

type oggDevice struct {
	file        *os.File
	reader      *oggreader.OggReader
	lastGranule uint64
}

func openOgg(path string) (*oggDevice, error) {
	f, err := openDevice("capture audio", path)
	if err != nil {
		return nil, err
	}

	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, call.WrapError("capture audio", call.ErrDeviceUnavailable, err.Error())
	}
	return &oggDevice{file: f, reader: reader}, nil
}

func (d *oggDevice) Codec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2}
}

func (d *oggDevice) NextSample() (media.Sample, error) {
	page, header, err := d.reader.ParseNextPage()
	if errors.Is(err, io.EOF) {
		if err := d.rewind(); err != nil {
			return media.Sample{}, err
		}
		page, header, err = d.reader.ParseNextPage()
	}
	if err != nil {
		return media.Sample{}, err
	}

	duration := opusFrameDuration
	if header.GranulePosition > d.lastGranule {
		samples := header.GranulePosition - d.lastGranule
		duration = time.Duration(float64(samples) / opusClockRate * float64(time.Second))
	}
	d.lastGranule = header.GranulePosition

	return media.Sample{Data: page, Duration: duration}, nil
}

func (d *oggDevice) rewind() error {
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader, _, err := oggreader.NewWith(d.file)
	if err != nil {
		return err
	}
	d.reader = reader
	d.lastGranule = 0
	return nil
}

func (d *oggDevice) Close() error { return d.file.Close() }
