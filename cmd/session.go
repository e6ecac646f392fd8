package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/BioHazard786/Warpcall/internal/peer"
	"github.com/BioHazard786/Warpcall/internal/room"
	"github.com/BioHazard786/Warpcall/internal/roomid"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/BioHazard786/Warpcall/internal/utils"
	"github.com/spf13/cobra"
)

// Media source flags shared by meet and host.
var (
	flagAudioFile string
	flagVideoFile string
	flagNoAudio   bool
)

func addMediaFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagAudioFile, "audio", "", "Ogg/Opus file to send as microphone (silence when empty)")
	cmd.Flags().StringVar(&flagVideoFile, "video", "", "IVF file (VP8, VP9 or AV1) to send as camera")
	cmd.Flags().BoolVar(&flagNoAudio, "no-audio", false, "Do not send audio")
}

// CallSession is one room session driven from the terminal.
type CallSession struct {
	Config *config.Config
	RoomID string
	Role   call.Role
	Ctrl   *room.Controller
}

// NewCallSession wires the transport, media and engine for one session.
// An empty roomArg creates a new room id.
func NewCallSession(cfg *config.Config, roomArg string, role call.Role) (*CallSession, error) {
	codec, err := signaling.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	roomID := roomid.Generate()
	if roomArg != "" {
		if roomID, err = roomid.Parse(roomArg); err != nil {
			return nil, err
		}
	}

	capturer := media.FileCapturer{AudioPath: flagAudioFile, VideoPath: flagVideoFile}
	ctrl := room.New(
		signaling.NewClient(codec),
		media.NewController(capturer),
		peer.NewPionFactory(nil, peer.Configuration(cfg)),
		room.Options{
			Endpoint:           cfg.WebSocketURL,
			NegotiationTimeout: cfg.NegotiationTimeout,
			Constraints:        media.Constraints{Audio: !flagNoAudio, Video: flagVideoFile != ""},
			Logger:             slog.Default(),
		},
	)

	return &CallSession{Config: cfg, RoomID: roomID, Role: role, Ctrl: ctrl}, nil
}

// Run joins the room, shows the live view until the user quits or ctx ends,
// then leaves and prints the summary.
func (s *CallSession) Run(ctx context.Context, startBroadcast bool) error {
	if s.Config.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, s.Config.MetricsAddr); err != nil {
				slog.Error("metrics server failed", "err", err)
			}
		}()
	}

	if s.Config.GetTURNServers() == nil && utils.ShouldForceRelay() {
		ui.PrintWarning("VPN or CGNAT detected but no TURN server is configured, peers may fail to connect")
	}

	sp := ui.NewConnectionSpinner("Connecting to relay...")
	sp.Start()
	if err := s.Ctrl.Join(ctx, s.RoomID, s.Role); err != nil {
		sp.Error(failure(err, "Could not join the room"))
		return err
	}
	sp.Stop()

	fmt.Println(ui.RoomInfo{RoomID: s.RoomID, RoomLink: s.Config.GetRoomLink(s.RoomID), Role: string(s.Role)}.View())

	if startBroadcast {
		sp := ui.NewWaitingSpinner("Capturing media...")
		sp.Start()
		if err := s.Ctrl.StartBroadcast(ctx); err != nil {
			sp.Error(failure(err, "Could not start the broadcast"))
			if lerr := s.Ctrl.Leave(); lerr != nil {
				slog.Debug("leave after failed broadcast", "err", lerr)
			}
			return err
		}
		sp.Success("Broadcast is live")
	}

	view := ui.NewCallUI(s.actions(ctx))
	view.Start()
	view.Push(s.view(s.Ctrl.Snapshot()))

watch:
	for {
		select {
		case snap := <-s.Ctrl.Snapshots():
			view.Push(s.view(snap))
		case <-view.Done():
			break watch
		case <-ctx.Done():
			view.Stop()
			break watch
		}
	}

	if err := s.Ctrl.Leave(); err != nil {
		return err
	}
	ui.PrintSuccess("Left room " + s.RoomID)
	s.printSummary()
	return nil
}

// failure picks the spinner message for a step that failed.
func failure(err error, fallback string) string {
	if call.IsFatal(err) {
		return "Could not capture media"
	}
	return fallback
}

func (s *CallSession) actions(ctx context.Context) ui.Actions {
	handle := func(intent room.Intent) func() error {
		return func() error { return s.Ctrl.Handle(ctx, intent) }
	}

	var a ui.Actions
	switch s.Role {
	case call.RoleParticipant:
		a.ToggleAudio = handle(room.IntentToggleAudio)
		a.ToggleVideo = handle(room.IntentToggleVideo)
	case call.RoleHost:
		a.ToggleAudio = handle(room.IntentToggleAudio)
		a.ToggleVideo = handle(room.IntentToggleVideo)
		a.ToggleBroadcast = func() error {
			if s.Ctrl.Snapshot().Broadcasting {
				return s.Ctrl.Handle(ctx, room.IntentStopBroadcast)
			}
			return s.Ctrl.Handle(ctx, room.IntentStartBroadcast)
		}
	}
	return a
}

func (s *CallSession) view(snap room.Snapshot) ui.CallView {
	v := ui.CallView{
		RoomID:         s.RoomID,
		RoomLink:       s.Config.GetRoomLink(s.RoomID),
		Role:           string(s.Role),
		Topology:       string(call.TopologyFor(s.Role)),
		SelfID:         snap.SelfID,
		Joined:         snap.Joined && snap.SelfID != "",
		RelayConnected: snap.RelayConnected,
		Broadcasting:   snap.Broadcasting,
		HasAudio:       snap.Local.HasAudio,
		AudioOn:        snap.Local.AudioEnabled,
		HasVideo:       snap.Local.HasVideo,
		VideoOn:        snap.Local.VideoEnabled,
	}
	for _, p := range snap.Participants {
		v.Participants = append(v.Participants, ui.ParticipantRow{
			ID:        p.ID,
			Role:      string(p.Role),
			State:     string(p.State),
			Receiving: p.HasRemoteStream,
		})
	}
	return v
}

func (s *CallSession) printSummary() {
	sum := s.Ctrl.Summary()
	fmt.Println()
	ui.RenderSummary(ui.IconStats+" Call Summary", ui.CallSummary{
		RoomID:           sum.RoomID,
		Role:             string(sum.Role),
		Duration:         utils.FormatTimeDuration(sum.Duration.Round(time.Second)),
		ParticipantsSeen: sum.ParticipantsSeen,
		LinksCreated:     sum.LinksCreated,
		LinksConnected:   sum.LinksConnected,
	})
}

// runCall is the body shared by meet, host and watch.
func runCall(cmd *cobra.Command, args []string, role call.Role, startBroadcast bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return call.NewError("load config", err)
	}

	var roomArg string
	if len(args) > 0 {
		roomArg = args[0]
	}

	session, err := NewCallSession(cfg, roomArg, role)
	if err != nil {
		return err
	}
	return session.Run(cmd.Context(), startBroadcast)
}
