package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/resultcache"
	"github.com/DoyleJ11/nabi-draft/internal/store"
)

type fakeMatches struct {
	matches map[string]store.Match
	limit   int
}

func (f *fakeMatches) MatchBySession(_ context.Context, id string) (store.Match, error) {
	m, ok := f.matches[id]
	if !ok {
		return store.Match{}, fmt.Errorf("%w: %s", store.ErrMatchNotFound, id)
	}
	return m, nil
}

func (f *fakeMatches) RecentMatches(_ context.Context, limit int) ([]store.Match, error) {
	f.limit = limit
	out := make([]store.Match, 0, len(f.matches))
	for _, m := range f.matches {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMatches) MatchesByPlayer(_ context.Context, playerID string, limit int) ([]store.Match, error) {
	f.limit = limit
	var out []store.Match
	for _, m := range f.matches {
		for _, p := range m.Picks {
			if p.PlayerID == playerID {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func newHistoryServer(t *testing.T, matches MatchHistory) (*httptest.Server, *resultcache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache, err := resultcache.New(&resultcache.Config{RedisClient: client, TTL: time.Hour})
	require.NoError(t, err)

	srv := httptest.NewServer(SetupRoutes(Deps{Results: cache, Matches: matches}))
	t.Cleanup(srv.Close)
	return srv, cache
}

func confirmed(id string, at time.Time) result.Final {
	return result.Final{SessionID: "ABC123", MatchID: id, Confirmed: true, ConfirmedAt: &at}
}

func TestRecentResults(t *testing.T) {
	srv, cache := newHistoryServer(t, nil)
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Record(context.Background(), confirmed("OLD000", base)))
	require.NoError(t, cache.Record(context.Background(), confirmed("NEW000", base.Add(time.Hour))))

	status, body := do(t, srv, http.MethodGet, "/results/recent?limit=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	var finals []result.Final
	require.NoError(t, json.Unmarshal(body, &finals))
	require.Len(t, finals, 1)
	assert.Equal(t, "NEW000", finals[0].MatchID)

	status, _ = do(t, srv, http.MethodGet, "/results/OLD000", "", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, srv, http.MethodGet, "/results/NONE00", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, srv, http.MethodGet, "/results/recent?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMatches(t *testing.T) {
	fm := &fakeMatches{matches: map[string]store.Match{
		"ABC123": {ID: uuid.New(), SessionID: "ABC123"},
	}}
	srv, _ := newHistoryServer(t, fm)

	status, body := do(t, srv, http.MethodGet, "/matches/ABC123", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"session_id":"ABC123"`)

	status, _ = do(t, srv, http.MethodGet, "/matches/ZZZ999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, srv, http.MethodGet, "/matches?limit=500", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, maxHistoryLimit, fm.limit)
}

func TestPlayerMatches(t *testing.T) {
	fm := &fakeMatches{matches: map[string]store.Match{
		"ABC123": {ID: uuid.New(), SessionID: "ABC123", Picks: []store.MatchPick{{Team: engine.TeamBlue, Role: engine.RoleMid, Champion: "ahri", PlayerID: "u1"}}},
	}}
	srv, _ := newHistoryServer(t, fm)

	status, body := do(t, srv, http.MethodGet, "/players/u1/matches?limit=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	var ms []store.Match
	require.NoError(t, json.Unmarshal(body, &ms))
	require.Len(t, ms, 1)
	assert.Equal(t, "ABC123", ms[0].SessionID)
	assert.Equal(t, 5, fm.limit)

	status, body = do(t, srv, http.MethodGet, "/players/nobody/matches", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}
