package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/hub"
	"github.com/DoyleJ11/nabi-draft/internal/lobby"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/service"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Options{
		Lobby: lobby.Options{Template: engine.Template{
			{Team: engine.TeamBlue, Action: engine.ActionBan},
			{Team: engine.TeamRed, Action: engine.ActionPick},
		}},
	})
	t.Cleanup(h.Shutdown)
	cat := catalog.NewMemory(catalog.Champion{Name: "Ahri"}, catalog.Champion{Name: "Zed"})
	srv := httptest.NewServer(SetupRoutes(Deps{
		Service:        service.New(h, cat, service.Options{}),
		Catalog:        cat,
		AllowedOrigins: []string{"https://draft.example"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, callerID string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if callerID != "" {
		req.Header.Set(CallerHeader, callerID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	req := map[string]any{
		"title":        "scrim",
		"creator":      map[string]string{"id": "host"},
		"participants": []map[string]string{{"id": "p1"}, {"id": "p2"}},
	}
	status, body := do(t, srv, http.MethodPost, "/sessions", "", req)
	require.Equal(t, http.StatusCreated, status, string(body))
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.Len(t, created.SessionID, 6)
	return created.SessionID
}

func TestHealthzAndChampions(t *testing.T) {
	srv := newServer(t)

	status, _ := do(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, srv, http.MethodGet, "/champions", "", nil)
	require.Equal(t, http.StatusOK, status)
	var champs []catalog.Champion
	require.NoError(t, json.Unmarshal(body, &champs))
	assert.Len(t, champs, 2)
}

func TestChampionLookupAndSearch(t *testing.T) {
	srv := newServer(t)

	status, body := do(t, srv, http.MethodGet, "/champions/search?q=ah", "", nil)
	require.Equal(t, http.StatusOK, status)
	var champs []catalog.Champion
	require.NoError(t, json.Unmarshal(body, &champs))
	require.Len(t, champs, 1)
	assert.Equal(t, "ahri", champs[0].Key)

	status, body = do(t, srv, http.MethodGet, "/champions/search?q=xyz", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = do(t, srv, http.MethodGet, "/champions/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, srv, http.MethodGet, "/champions/ZED", "", nil)
	require.Equal(t, http.StatusOK, status)
	var c catalog.Champion
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, "zed", c.Key)

	status, _ = do(t, srv, http.MethodGet, "/champions/teemo", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t)
	id := createSession(t, srv)

	tests := []struct {
		name     string
		method   string
		path     string
		caller   string
		body     any
		status   int
		wantKind string
	}{
		{"unknown session", http.MethodGet, "/sessions/NOPE00", "", nil, http.StatusNotFound, "not_found"},
		{"empty create", http.MethodPost, "/sessions", "", map[string]any{}, http.StatusBadRequest, "invalid_input"},
		{"bad team", http.MethodPost, "/sessions/" + id + "/positions", "p1", map[string]string{"team": "green", "role": "top"}, http.StatusBadRequest, "invalid_input"},
		{"stranger", http.MethodPost, "/sessions/" + id + "/positions", "ghost", map[string]string{"team": "blue", "role": "top"}, http.StatusForbidden, "unauthorized"},
		{"not creator", http.MethodPost, "/sessions/" + id + "/start", "p1", nil, http.StatusForbidden, "unauthorized"},
		{"result too early", http.MethodGet, "/sessions/" + id + "/result", "", nil, http.StatusConflict, "invalid_phase"},
		{"submit before start", http.MethodPost, "/sessions/" + id + "/actions", "p1", map[string]string{"team": "blue", "action": "ban", "champion": "Ahri"}, http.StatusConflict, "invalid_phase"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.status, status, string(body))
			var e errorBody
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, tt.wantKind, string(e.Kind))
		})
	}
}

func TestDraftOverHTTP(t *testing.T) {
	srv := newServer(t)
	id := createSession(t, srv)
	base := "/sessions/" + id

	status, body := do(t, srv, http.MethodPost, base+"/positions", "", map[string]string{"occupant_id": "p1", "team": "blue", "role": "mid"})
	require.Equal(t, http.StatusNoContent, status, string(body))

	status, _ = do(t, srv, http.MethodPost, base+"/positions", "p2", map[string]string{"team": "blue", "role": "mid"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = do(t, srv, http.MethodDelete, base+"/positions/blue/mid", "p2", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, srv, http.MethodPost, base+"/start", "", map[string]string{"caller_id": "host"})
	require.Equal(t, http.StatusNoContent, status, string(body))

	status, body = do(t, srv, http.MethodPost, base+"/actions", "p1", map[string]string{"team": "blue", "action": "ban", "champion": "zed"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"turn":"red_pick_1"`)

	status, body = do(t, srv, http.MethodPost, base+"/actions", "p2", map[string]string{"team": "red", "action": "pick", "champion": "Zed"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "duplicate_selection")

	status, _ = do(t, srv, http.MethodPost, base+"/actions", "p2", map[string]string{"team": "red", "action": "pick", "champion": "Ahri", "role": "sup"})
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, srv, http.MethodPatch, base+"/result", "", map[string]any{
		"bans": map[string][]string{"red": {"teemo"}},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, first := do(t, srv, http.MethodPost, base+"/result/confirm", "", nil)
	require.Equal(t, http.StatusOK, status)
	status, second := do(t, srv, http.MethodPost, base+"/result/confirm", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, string(first), string(second))

	var final result.Final
	require.NoError(t, json.Unmarshal(first, &final))
	assert.True(t, final.Confirmed)
	assert.Equal(t, "ahri", final.Picks[engine.TeamRed][engine.RoleSupport])
	assert.Equal(t, []string{"teemo"}, final.Bans[engine.TeamRed])

	status, _ = do(t, srv, http.MethodDelete, base, "p1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = do(t, srv, http.MethodDelete, base, "host", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, srv, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCORS(t *testing.T) {
	srv := newServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://draft.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://draft.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
