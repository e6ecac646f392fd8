package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/gorilla/websocket"
	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer sends every frame straight back. frames receives the type of
// each frame read.
func echoServer(t *testing.T, frames chan<- int) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if frames != nil {
				frames <- mt
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, CodecNameJSON, c.Name())

	c, err = CodecByName("msgpack")
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, c.FrameType())

	_, err = CodecByName("xml")
	assert.Error(t, err)

	assert.Equal(t, Msgpack, CodecForFrame(websocket.BinaryMessage))
	assert.Equal(t, JSON, CodecForFrame(websocket.TextMessage))
}

func TestJSONWireNames(t *testing.T) {
	data, err := JSON.Marshal(&Message{
		Type:    EventJoined,
		Payload: Payload{ParticipantID: "p1", Participants: []Participant{{ID: "p2", Role: "viewer"}}},
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"joined","payload":{"participantId":"p1","participants":[{"participantId":"p2","role":"viewer"}]}}`,
		string(data))
}

func TestSendWhileDisconnected(t *testing.T) {
	c := NewClient(nil)
	err := c.Send(EventOffer, Payload{SDP: "v=0"})
	assert.ErrorIs(t, err, call.ErrTransportUnavailable)
	assert.False(t, c.Connected())
}

func TestEchoRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSON, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			frames := make(chan int, 4)
			url := echoServer(t, frames)

			c := NewClient(codec)
			got := make(chan Payload, 1)
			c.On(EventCandidate, func(p Payload) { got <- p })

			require.NoError(t, c.Connect(context.Background(), url))
			defer c.Disconnect()
			assert.Error(t, c.Connect(context.Background(), url), "second connect")

			idx := uint16(1)
			require.NoError(t, c.Send(EventCandidate, Payload{
				Target:    "p2",
				Candidate: CandidateFromPion(pion.ICECandidateInit{Candidate: "candidate:1", SDPMLineIndex: &idx}),
			}))

			select {
			case p := <-got:
				assert.Equal(t, "p2", p.Target)
				init := p.Candidate.ToPion()
				assert.Equal(t, "candidate:1", init.Candidate)
				require.NotNil(t, init.SDPMLineIndex)
				assert.Equal(t, uint16(1), *init.SDPMLineIndex)
				assert.Nil(t, init.SDPMid)
			case <-time.After(2 * time.Second):
				t.Fatal("echo not received")
			}
			assert.Equal(t, codec.FrameType(), <-frames)
		})
	}
}

func TestServerCloseEmitsDisconnected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient(nil)
	var lost atomic.Int32
	c.On(EventDisconnected, func(Payload) { lost.Add(1) })

	require.NoError(t, c.Connect(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")))
	require.Eventually(t, func() bool { return lost.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Send(EventLeave, Payload{}), call.ErrTransportUnavailable)

	c.Disconnect()
	assert.Equal(t, int32(1), lost.Load())
}

func TestDisconnectIsQuiet(t *testing.T) {
	url := echoServer(t, nil)
	c := NewClient(nil)
	var lost atomic.Int32
	c.On(EventDisconnected, func(Payload) { lost.Add(1) })

	require.NoError(t, c.Connect(context.Background(), url))
	c.Disconnect()
	c.Disconnect()

	assert.Never(t, func() bool { return lost.Load() > 0 }, 200*time.Millisecond, 10*time.Millisecond)
	assert.False(t, c.Connected())
}
