package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/hub"
	"github.com/DoyleJ11/nabi-draft/internal/service"
	"github.com/DoyleJ11/nabi-draft/internal/session"
	"github.com/DoyleJ11/nabi-draft/internal/types"
)

type frame struct {
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	RequestID string          `json:"request_id"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
}

func setup(t *testing.T, opts Options) (*httptest.Server, *service.Draft, string) {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Options{})
	t.Cleanup(h.Shutdown)
	svc := service.New(h, catalog.NewMemory(catalog.Champion{Name: "Ahri"}), service.Options{})

	var ps []session.Participant
	for i := range 10 {
		ps = append(ps, session.Participant{ID: fmt.Sprintf("p%d", i)})
	}
	sess, err := svc.CreateSession(context.Background(), service.CreateRequest{Creator: session.Participant{ID: "host"}, Participants: ps})
	require.NoError(t, err)

	srv := httptest.NewServer(Handler(svc, opts))
	t.Cleanup(srv.Close)
	return srv, svc, sess.ID
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, m types.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))
}

// readUntil collects frames until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []frame {
	t.Helper()
	var got []frame
	for range 20 {
		f := read(t, conn)
		got = append(got, f)
		if f.Type == typ {
			return got
		}
	}
	t.Fatalf("no %q frame", typ)
	return nil
}

func frameTypes(fs []frame) []string {
	var out []string
	for _, f := range fs {
		out = append(out, f.Type)
	}
	return out
}

func TestHandler_RejectsUnknownSession(t *testing.T) {
	srv, _, _ := setup(t, Options{})

	resp, err := http.Get(srv.URL + "?session=NOPE00")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_SnapshotThenEvents(t *testing.T) {
	srv, _, id := setup(t, Options{})
	player := dial(t, srv, "session="+id+"&user=p1")
	viewer := dial(t, srv, "session="+id)

	assert.Equal(t, "snapshot", read(t, player).Type)
	assert.Equal(t, "snapshot", read(t, viewer).Type)

	send(t, player, types.ClientMessage{Type: types.MsgSelectPosition, RequestID: "r1", Team: "blue", Role: "jg"})
	frames := readUntil(t, player, "ack")
	assert.Equal(t, "r1", frames[len(frames)-1].RequestID)

	got := []frame{read(t, viewer), read(t, viewer)}
	assert.Equal(t, []string{"phase_changed", "position_changed"}, frameTypes(got))
	assert.Equal(t, 1, got[0].Version)
	assert.Contains(t, string(got[1].Data), `"role":"JUNGLE"`)
}

func TestHandler_ErrorsOnlyToSender(t *testing.T) {
	srv, _, id := setup(t, Options{})
	player := dial(t, srv, "session="+id+"&user=p1")
	viewer := dial(t, srv, "session="+id+"&user=p2")
	read(t, player)
	read(t, viewer)

	send(t, player, types.ClientMessage{Type: types.MsgStart, RequestID: "s1"})
	f := read(t, player)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "unauthorized", f.Kind)
	assert.Equal(t, "s1", f.RequestID)

	send(t, player, types.ClientMessage{Type: "dance"})
	assert.Equal(t, "invalid_input", read(t, player).Kind)

	require.NoError(t, player.Write(context.Background(), websocket.MessageText, []byte("{")))
	assert.Equal(t, "invalid_input", read(t, player).Kind)

	send(t, player, types.ClientMessage{Type: types.MsgSubmit, Team: "blue", Action: "ban", Champion: "Ahri"})
	assert.Equal(t, "invalid_phase", read(t, player).Kind)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := viewer.Read(ctx)
	assert.Error(t, err, "viewer must not see rejections")
}

func TestHandler_RateLimit(t *testing.T) {
	srv, _, id := setup(t, Options{CommandRate: 0.001, CommandBurst: 1})
	conn := dial(t, srv, "session="+id+"&user=p1")
	read(t, conn)

	send(t, conn, types.ClientMessage{Type: types.MsgLeavePosition, Team: "red", Role: "top"})
	readUntil(t, conn, "ack")

	send(t, conn, types.ClientMessage{Type: types.MsgLeavePosition, Team: "red", Role: "top", RequestID: "again"})
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "again", f.RequestID)
}

func TestHandler_SessionResetClosesSocket(t *testing.T) {
	srv, svc, id := setup(t, Options{})
	conn := dial(t, srv, "session="+id+"&user=p1")
	read(t, conn)

	require.NoError(t, svc.ResetSession(context.Background(), id, "host"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
