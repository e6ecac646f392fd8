package relay

import (
	"sort"

	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// Room is a set of clients exchanging signals. Owned by the hub loop.
type Room struct {
	ID      string
	members map[string]*Client
}

func newRoom(id string) *Room {
	return &Room{ID: id, members: make(map[string]*Client)}
}

// roster lists the members sorted by id, optionally skipping one.
func (r *Room) roster(except string) []signaling.Participant {
	out := make([]signaling.Participant, 0, len(r.members))
	for id, c := range r.members {
		if id == except {
			continue
		}
		out = append(out, signaling.Participant{ID: id, Role: c.role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}
