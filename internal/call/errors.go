package call

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/Warpcall/internal/ui"
)

var (
	ErrDeviceUnavailable    = errors.New("device unavailable")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrNegotiationStale     = errors.New("negotiation stale")
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrNotJoined            = errors.New("not joined to a room")
	ErrAlreadyJoined        = errors.New("already joined to a room")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidRoom          = errors.New("invalid room id")
	ErrNotHost              = errors.New("only the host can broadcast")
	ErrSignalingError       = errors.New("signaling server error")
	ErrNegotiationTimeout   = errors.New("negotiation timed out")
)

type Error struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// IsFatal reports whether err must stop the session from proceeding.
// Only media acquisition failures qualify; everything else degrades silently.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrPermissionDenied)
}

// IsStale reports whether err only signals a late or duplicate negotiation step.
func IsStale(err error) bool {
	return errors.Is(err, ErrNegotiationStale) || errors.Is(err, ErrUnknownParticipant)
}

// Notice is the user-facing text for err. Capture failures stop the session,
// so they carry a hint on how to fix the source.
func Notice(err error) string {
	if IsFatal(err) {
		return "Media capture failed: " + err.Error() + ". Check the --audio and --video files and their permissions."
	}
	return err.Error()
}

func PrintErr(err error) {
	ui.PrintError(Notice(err))
}
