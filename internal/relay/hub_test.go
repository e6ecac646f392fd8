package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type testRelay struct {
	hub    *Hub
	url    string
	server *httptest.Server
	cancel context.CancelFunc
}

func startRelay(t *testing.T) *testRelay {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(hub))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testRelay{
		hub:    hub,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		server: srv,
		cancel: cancel,
	}
}

type member struct {
	client *signaling.Client
	inbox  chan signaling.Message
	id     string
}

func (r *testRelay) dial(t *testing.T, codec signaling.Codec) *member {
	t.Helper()
	m := &member{client: signaling.NewClient(codec), inbox: make(chan signaling.Message, 32)}
	for _, ev := range []string{
		signaling.EventJoined,
		signaling.EventParticipantJoined,
		signaling.EventParticipantLeft,
		signaling.EventOffer,
		signaling.EventAnswer,
		signaling.EventCandidate,
		signaling.EventError,
		signaling.EventDisconnected,
	} {
		m.client.On(ev, func(p signaling.Payload) {
			m.inbox <- signaling.Message{Type: ev, Payload: p}
		})
	}
	require.NoError(t, m.client.Connect(context.Background(), r.url))
	t.Cleanup(m.client.Disconnect)
	return m
}

func (m *member) next(t *testing.T) signaling.Message {
	t.Helper()
	select {
	case msg := <-m.inbox:
		return msg
	case <-time.After(waitFor):
		t.Fatal("no message from relay")
		return signaling.Message{}
	}
}

func (m *member) join(t *testing.T, roomID, role string) signaling.Payload {
	t.Helper()
	require.NoError(t, m.client.Send(signaling.EventJoin, signaling.Payload{RoomID: roomID, Role: role}))
	msg := m.next(t)
	require.Equal(t, signaling.EventJoined, msg.Type, msg.Payload.Error)
	m.id = msg.Payload.ParticipantID
	require.NotEmpty(t, m.id)
	return msg.Payload
}

func TestJoinAnnouncesRoster(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t, nil)
	b := r.dial(t, nil)

	joined := a.join(t, "brave-otter", "host")
	assert.Equal(t, "brave-otter", joined.RoomID)
	assert.Empty(t, joined.Participants)

	joined = b.join(t, "brave-otter", "viewer")
	assert.Equal(t, []signaling.Participant{{ID: a.id, Role: "host"}}, joined.Participants)
	assert.NotEqual(t, a.id, b.id)

	announced := a.next(t)
	assert.Equal(t, signaling.EventParticipantJoined, announced.Type)
	assert.Equal(t, b.id, announced.Payload.ParticipantID)
	assert.Equal(t, "viewer", announced.Payload.Role)

	assert.Equal(t, 1, r.hub.RoomCount())
	assert.Len(t, r.hub.Members("brave-otter"), 2)
}

func TestForwardStampsCaller(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t, nil)
	b := r.dial(t, nil)
	c := r.dial(t, nil)
	a.join(t, "room", "")
	b.join(t, "room", "")
	c.join(t, "room", "")
	a.next(t) // b joined
	a.next(t) // c joined
	b.next(t) // c joined

	// A forged caller is overwritten.
	require.NoError(t, b.client.Send(signaling.EventOffer, signaling.Payload{Target: a.id, Caller: "mallory", SDP: "v=0"}))
	offer := a.next(t)
	assert.Equal(t, signaling.EventOffer, offer.Type)
	assert.Equal(t, b.id, offer.Payload.Caller)
	assert.Equal(t, a.id, offer.Payload.Target)
	assert.Equal(t, "v=0", offer.Payload.SDP)

	mid := "0"
	require.NoError(t, b.client.Send(signaling.EventCandidate, signaling.Payload{
		Candidate: &signaling.Candidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: &mid},
	}))
	for _, m := range []*member{a, c} {
		cand := m.next(t)
		assert.Equal(t, signaling.EventCandidate, cand.Type)
		assert.Equal(t, b.id, cand.Payload.Caller)
		require.NotNil(t, cand.Payload.Candidate)
		assert.Equal(t, "0", *cand.Payload.Candidate.SDPMid)
	}

	// Only the addressed member sees a targeted answer.
	require.NoError(t, a.client.Send(signaling.EventAnswer, signaling.Payload{Target: b.id, SDP: "answer"}))
	answer := b.next(t)
	assert.Equal(t, a.id, answer.Payload.Caller)
	assert.Empty(t, c.inbox)
	assert.Empty(t, a.inbox)
}

func TestMixedCodecs(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t, signaling.Msgpack)
	b := r.dial(t, signaling.JSON)
	a.join(t, "room", "participant")
	b.join(t, "room", "participant")
	require.Equal(t, signaling.EventParticipantJoined, a.next(t).Type)

	require.NoError(t, a.client.Send(signaling.EventOffer, signaling.Payload{Target: b.id, SDP: "from-msgpack"}))
	msg := b.next(t)
	assert.Equal(t, "from-msgpack", msg.Payload.SDP)
	assert.Equal(t, a.id, msg.Payload.Caller)

	require.NoError(t, b.client.Send(signaling.EventAnswer, signaling.Payload{Target: a.id, SDP: "from-json"}))
	assert.Equal(t, "from-json", a.next(t).Payload.SDP)
}

func TestDisconnectAnnouncesLeave(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t, nil)
	b := r.dial(t, nil)
	a.join(t, "room", "")
	b.join(t, "room", "")
	a.next(t)

	b.client.Disconnect()
	left := a.next(t)
	assert.Equal(t, signaling.EventParticipantLeft, left.Type)
	assert.Equal(t, b.id, left.Payload.ParticipantID)

	require.NoError(t, a.client.Send(signaling.EventLeave, signaling.Payload{}))
	require.Eventually(t, func() bool { return r.hub.RoomCount() == 0 }, waitFor, 10*time.Millisecond)

	// The connection outlives the room and can join again.
	a.join(t, "room", "")
	assert.Equal(t, 1, r.hub.RoomCount())
}

func TestRejectsInvalidRequests(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t, nil)

	require.NoError(t, a.client.Send(signaling.EventOffer, signaling.Payload{SDP: "early"}))
	assert.Equal(t, signaling.EventError, a.next(t).Type)

	require.NoError(t, a.client.Send(signaling.EventJoin, signaling.Payload{RoomID: "room", Role: "admin"}))
	msg := a.next(t)
	assert.Equal(t, signaling.EventError, msg.Type)
	assert.Contains(t, msg.Payload.Error, "invalid role")

	require.NoError(t, a.client.Send(signaling.EventJoin, signaling.Payload{}))
	assert.Equal(t, signaling.EventError, a.next(t).Type)

	a.join(t, "room", "")
	require.NoError(t, a.client.Send(signaling.EventJoin, signaling.Payload{RoomID: "other"}))
	assert.Equal(t, signaling.EventError, a.next(t).Type)

	require.NoError(t, a.client.Send("dance", signaling.Payload{}))
	assert.Contains(t, a.next(t).Payload.Error, "unknown message type")
}

func TestShutdownDisconnectsClients(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t, nil)
	a.join(t, "room", "")

	r.cancel()
	assert.Equal(t, signaling.EventDisconnected, a.next(t).Type)
	assert.False(t, a.client.Connected())
}

func TestHealth(t *testing.T) {
	r := startRelay(t)

	resp, err := http.Get(r.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}
