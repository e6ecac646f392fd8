package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcall/internal/utils"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// CallView is everything the live call screen renders.
type CallView struct {
	RoomID         string
	RoomLink       string
	Role           string
	Topology       string
	SelfID         string
	Joined         bool
	RelayConnected bool
	Broadcasting   bool
	HasAudio       bool
	AudioOn        bool
	HasVideo       bool
	VideoOn        bool
	Participants   []ParticipantRow
}

// Actions are invoked from key presses. A nil action hides its key.
type Actions struct {
	ToggleAudio     func() error
	ToggleVideo     func() error
	ToggleBroadcast func() error
}

type actionResult struct{ err error }

type clockMsg time.Time

// CallUI runs the live call screen until the user quits.
type CallUI struct {
	program *tea.Program
	model   *callModel
	updates chan CallView
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewCallUI(actions Actions) *CallUI {
	updates := make(chan CallView, 1)
	return &CallUI{
		model:   newCallModel(actions, updates),
		updates: updates,
		done:    make(chan struct{}),
	}
}

// Start runs the program in a goroutine. Done is closed when it exits.
func (c *CallUI) Start() {
	c.program = tea.NewProgram(c.model)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.done)
		if _, err := c.program.Run(); err != nil {
			PrintErrorf("UI error: %v", err)
		}
	}()
}

// Push replaces any pending view with v.
func (c *CallUI) Push(v CallView) {
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- v:
	default:
	}
}

// Done is closed once the user has quit.
func (c *CallUI) Done() <-chan struct{} {
	return c.done
}

// Stop ends the program and waits for it.
func (c *CallUI) Stop() {
	if c.program != nil {
		c.program.Quit()
	}
	c.wg.Wait()
}

type callModel struct {
	actions  Actions
	updates  <-chan CallView
	view     CallView
	spinner  spinner.Model
	started  time.Time
	now      time.Time
	lastErr  string
	quitting bool
}

func newCallModel(actions Actions, updates <-chan CallView) *callModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	now := time.Now()
	return &callModel{
		actions: actions,
		updates: updates,
		spinner: s,
		started: now,
		now:     now,
	}
}

func (m *callModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForUpdates(), clock())
}

func (m *callModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func clock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func run(action func() error) tea.Cmd {
	return func() tea.Msg {
		return actionResult{err: action()}
	}
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "a":
			if m.actions.ToggleAudio != nil {
				return m, run(m.actions.ToggleAudio)
			}
		case "v":
			if m.actions.ToggleVideo != nil {
				return m, run(m.actions.ToggleVideo)
			}
		case "b":
			if m.actions.ToggleBroadcast != nil {
				return m, run(m.actions.ToggleBroadcast)
			}
		}

	case actionResult:
		m.lastErr = ""
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}

	case CallView:
		m.view = msg
		return m, m.listenForUpdates()

	case clockMsg:
		m.now = time.Time(msg)
		if !m.quitting {
			return m, clock()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *callModel) View() string {
	if m.quitting {
		return ""
	}
	v := m.view
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s", IconRoom, v.RoomID)))
	if v.Role != "" {
		b.WriteString(" " + StatusStyle.Render(v.Role) + " " + MutedStyle.Render(v.Topology))
	}
	if v.Broadcasting {
		b.WriteString(" " + LiveStyle.Render(IconLive+" LIVE"))
	}
	b.WriteString("\n")

	if v.RoomLink != "" {
		fmt.Fprintf(&b, "%s %s\n", IconLink, MutedStyle.Render(v.RoomLink))
	}

	switch {
	case !v.Joined:
		fmt.Fprintf(&b, "%s Joining...\n", m.spinner.View())
	case !v.RelayConnected:
		fmt.Fprintf(&b, "%s %s\n", IconWarning, WarningStyle.Render("Relay lost, existing calls continue"))
	default:
		fmt.Fprintf(&b, "%s %s  %s %s\n",
			IconConnect, SuccessStyle.Render("Connected to relay"),
			IconTime, MutedStyle.Render(utils.FormatTimeDuration(m.now.Sub(m.started))))
	}

	fmt.Fprintf(&b, "\n%s\n\n", m.localMedia())
	b.WriteString(ParticipantsView(v.Participants))
	b.WriteString("\n")

	if m.lastErr != "" {
		b.WriteString(ErrorStyle.Render(IconError+" "+m.lastErr) + "\n")
	}
	b.WriteString(FooterStyle.Render(m.help()))
	return b.String()
}

func (m *callModel) localMedia() string {
	v := m.view
	var parts []string
	if v.HasAudio {
		if v.AudioOn {
			parts = append(parts, IconMic+" mic on")
		} else {
			parts = append(parts, IconMuted+" "+WarningStyle.Render("muted"))
		}
	}
	if v.HasVideo {
		if v.VideoOn {
			parts = append(parts, IconCamera+" camera on")
		} else {
			parts = append(parts, IconCameraOff+" "+WarningStyle.Render("camera off"))
		}
	}
	if len(parts) == 0 {
		return MutedStyle.Render("Not sending media")
	}
	return strings.Join(parts, "   ")
}

func (m *callModel) help() string {
	var keys []string
	if m.actions.ToggleAudio != nil {
		keys = append(keys, "a mic")
	}
	if m.actions.ToggleVideo != nil {
		keys = append(keys, "v camera")
	}
	if m.actions.ToggleBroadcast != nil {
		if m.view.Broadcasting {
			keys = append(keys, "b stop broadcast")
		} else {
			keys = append(keys, "b start broadcast")
		}
	}
	keys = append(keys, "q leave")
	return strings.Join(keys, " • ")
}
