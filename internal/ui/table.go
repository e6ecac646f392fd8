package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/Warpcall/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pretty "github.com/jedib0t/go-pretty/v6/table"
)

// ParticipantRow is one remote participant in the call view.
type ParticipantRow struct {
	ID        string
	Role      string
	State     string
	Receiving bool
}

// ParticipantsView renders the remote participants with their link state.
func ParticipantsView(rows []ParticipantRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		state := r.State
		if state == "" {
			state = IconWaiting + " waiting"
		}
		media := "-"
		if r.Receiving {
			media = "receiving"
		}
		role := r.Role
		if role == "" {
			role = "participant"
		}
		data = append(data, []string{utils.TruncateString(r.ID, 12), role, StateStyle(r.State).Render(state), media})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(IconPeer+" Peer", "Role", "Link", "Media").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// CallSummary is shown once a call ends.
type CallSummary struct {
	RoomID           string
	Role             string
	Duration         string
	ParticipantsSeen int
	LinksCreated     int
	LinksConnected   int
}

// SummaryView renders the end-of-call statistics.
func SummaryView(title string, s CallSummary) string {
	t := pretty.NewWriter()
	t.SetTitle(title)
	t.SetStyle(pretty.StyleRounded)
	t.AppendHeader(pretty.Row{"Metric", "Value"})
	t.AppendRows([]pretty.Row{
		{"Room", s.RoomID},
		{"Role", s.Role},
		{"Duration", s.Duration},
		{"Participants seen", s.ParticipantsSeen},
		{"Links created", s.LinksCreated},
		{"Links connected", s.LinksConnected},
	})
	return t.Render()
}

func RenderSummary(title string, s CallSummary) {
	fmt.Println(SummaryView(title, s))
}

// RoomInfo is the banner shown after joining.
type RoomInfo struct {
	RoomID   string
	RoomLink string
	Role     string
}

func (r RoomInfo) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Joined as %s\n\n", IconRoom, BoldStyle.Render(r.Role))
	fmt.Fprintf(&b, "%s Room ID:    %s\n", IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID))
	fmt.Fprintf(&b, "%s Room Link:  %s", IconWeb, MutedStyle.Render(r.RoomLink))
	return SuccessBoxStyle.Render(b.String())
}
