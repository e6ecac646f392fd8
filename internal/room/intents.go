package room

import (
	"context"
	"fmt"
	"sort"

	"github.com/BioHazard786/Warpcall/internal/call"
)

// Intent is a user request coming from the presentation layer.
type Intent string

const (
	IntentToggleAudio    Intent = "toggleAudio"
	IntentToggleVideo    Intent = "toggleVideo"
	IntentLeave          Intent = "leave"
	IntentStartBroadcast Intent = "startBroadcast"
	IntentStopBroadcast  Intent = "stopBroadcast"
)

// Handle applies a user intent.
func (c *Controller) Handle(ctx context.Context, intent Intent) error {
	switch intent {
	case IntentToggleAudio:
		return c.ToggleAudio()
	case IntentToggleVideo:
		return c.ToggleVideo()
	case IntentLeave:
		return c.Leave()
	case IntentStartBroadcast:
		return c.StartBroadcast(ctx)
	case IntentStopBroadcast:
		return c.StopBroadcast()
	default:
		return fmt.Errorf("unknown intent %q", intent)
	}
}

// ToggleAudio flips the local audio track. Links carrying it see the change
// through the shared track; nothing is renegotiated.
func (c *Controller) ToggleAudio() error {
	if !c.Joined() {
		return call.NewError("toggle audio", call.ErrNotJoined)
	}
	c.media.SetAudioEnabled(!c.media.State().AudioEnabled)
	c.post(func() {})
	return nil
}

// ToggleVideo flips the local video track.
func (c *Controller) ToggleVideo() error {
	if !c.Joined() {
		return call.NewError("toggle video", call.ErrNotJoined)
	}
	c.media.SetVideoEnabled(!c.media.State().VideoEnabled)
	c.post(func() {})
	return nil
}

// StartBroadcast captures media if needed and offers to every known viewer.
// Viewers that join later get their own offer on arrival.
func (c *Controller) StartBroadcast(ctx context.Context) error {
	if !c.Joined() {
		return call.NewError("start broadcast", call.ErrNotJoined)
	}
	if c.role != call.RoleHost {
		return call.NewError("start broadcast", call.ErrNotHost)
	}

	if _, err := c.media.Acquire(ctx, c.opts.Constraints); err != nil {
		return err
	}

	err := c.do(func() {
		if c.broadcasting || !c.Joined() {
			return
		}
		c.broadcasting = true
		c.logger.Info("broadcast started", "room", c.roomID, "audience", len(c.members))

		audience := make([]Member, 0, len(c.members))
		for _, m := range c.members {
			audience = append(audience, m)
		}
		sort.Slice(audience, func(i, j int) bool { return audience[i].ID < audience[j].ID })

		for _, m := range audience {
			if c.policy.ShouldOffer(c.role, m, TriggerBroadcastStart, true) {
				c.offerTo(m)
			}
		}
	})
	if err != nil {
		// Leave ran while capturing and has already released, so the
		// devices opened here belong to no session.
		c.media.Release()
		return call.NewError("start broadcast", call.ErrNotJoined)
	}
	return nil
}

// StopBroadcast closes every viewer link. The audience and local tracks are
// kept so a later StartBroadcast reaches the same viewers.
func (c *Controller) StopBroadcast() error {
	if !c.Joined() {
		return call.NewError("stop broadcast", call.ErrNotJoined)
	}
	if c.role != call.RoleHost {
		return call.NewError("stop broadcast", call.ErrNotHost)
	}

	return c.do(func() {
		if !c.broadcasting {
			return
		}
		c.broadcasting = false
		c.closeLinks()
		c.logger.Info("broadcast stopped", "room", c.roomID)
	})
}
