package room

import (
	"testing"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/stretchr/testify/assert"
)

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, call.TopologyMesh, PolicyFor(call.RoleParticipant).Topology())
	assert.Equal(t, call.TopologyBroadcast, PolicyFor(call.RoleHost).Topology())
	assert.Equal(t, call.TopologyBroadcast, PolicyFor(call.RoleViewer).Topology())
}

func TestMeshPolicy(t *testing.T) {
	p := Mesh{}
	peer := Member{ID: "b", Role: call.RoleParticipant}
	unknown := Member{ID: "c"}
	viewer := Member{ID: "v", Role: call.RoleViewer}

	assert.True(t, p.AllowsRole(call.RoleParticipant))
	assert.False(t, p.AllowsRole(call.RoleHost))
	assert.False(t, p.AllowsRole(call.RoleViewer))
	assert.True(t, p.SendsMedia(call.RoleParticipant))
	assert.True(t, p.AcquiresAtJoin(call.RoleParticipant))

	assert.True(t, p.ShouldOffer(call.RoleParticipant, peer, TriggerArrival, false))
	assert.True(t, p.ShouldOffer(call.RoleParticipant, unknown, TriggerArrival, false))
	assert.False(t, p.ShouldOffer(call.RoleParticipant, peer, TriggerRoster, false), "newcomers answer existing members")
	assert.False(t, p.ShouldOffer(call.RoleParticipant, viewer, TriggerArrival, false))

	assert.True(t, p.AcceptsOffer(call.RoleParticipant, peer))
	assert.True(t, p.AcceptsOffer(call.RoleParticipant, unknown))
	assert.False(t, p.AcceptsOffer(call.RoleParticipant, viewer))

	assert.False(t, p.ReplacesOnReoffer(call.RoleParticipant))
	assert.False(t, p.ICERestart())
}

func TestBroadcastPolicy(t *testing.T) {
	p := Broadcast{}
	host := Member{ID: "h", Role: call.RoleHost}
	viewer := Member{ID: "v", Role: call.RoleViewer}
	participant := Member{ID: "p", Role: call.RoleParticipant}

	assert.True(t, p.AllowsRole(call.RoleHost))
	assert.True(t, p.AllowsRole(call.RoleViewer))
	assert.False(t, p.AllowsRole(call.RoleParticipant))

	assert.True(t, p.SendsMedia(call.RoleHost))
	assert.False(t, p.SendsMedia(call.RoleViewer))
	assert.False(t, p.AcquiresAtJoin(call.RoleHost), "host captures when the broadcast starts")

	for _, trigger := range []Trigger{TriggerArrival, TriggerRoster, TriggerBroadcastStart} {
		assert.True(t, p.ShouldOffer(call.RoleHost, viewer, trigger, true))
		assert.False(t, p.ShouldOffer(call.RoleHost, viewer, trigger, false))
	}
	assert.True(t, p.ShouldOffer(call.RoleHost, Member{ID: "x"}, TriggerArrival, true))
	assert.False(t, p.ShouldOffer(call.RoleHost, participant, TriggerArrival, true))
	assert.False(t, p.ShouldOffer(call.RoleViewer, host, TriggerArrival, true))

	assert.True(t, p.AcceptsOffer(call.RoleViewer, host))
	assert.True(t, p.AcceptsOffer(call.RoleViewer, Member{ID: "x"}))
	assert.False(t, p.AcceptsOffer(call.RoleViewer, viewer))
	assert.False(t, p.AcceptsOffer(call.RoleHost, viewer))

	assert.True(t, p.ReplacesOnReoffer(call.RoleViewer))
	assert.False(t, p.ReplacesOnReoffer(call.RoleHost))
	assert.True(t, p.ICERestart())
}
