package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ResultHistory is satisfied by resultcache.Cache.
type ResultHistory interface {
	Get(ctx context.Context, matchID string) (result.Final, error)
	Recent(ctx context.Context, n int) ([]string, error)
}

// MatchHistory is satisfied by store.Store.
type MatchHistory interface {
	MatchBySession(ctx context.Context, sessionID string) (store.Match, error)
	RecentMatches(ctx context.Context, limit int) ([]store.Match, error)
	MatchesByPlayer(ctx context.Context, playerID string, limit int) ([]store.Match, error)
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit %q", drafterr.ErrInvalidInput, raw)
	}
	return min(n, maxHistoryLimit), nil
}

func RecentResults(h ResultHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := limitParam(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ids, err := h.Recent(r.Context(), n)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]result.Final, 0, len(ids))
		for _, id := range ids {
			final, err := h.Get(r.Context(), id)
			if errors.Is(err, drafterr.ErrNotFound) {
				// expired between the two reads
				continue
			}
			if err != nil {
				writeError(w, err)
				return
			}
			out = append(out, final)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func CachedResult(h ResultHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		final, err := h.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, final)
	}
}

func RecentMatches(h MatchHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := limitParam(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ms, err := h.RecentMatches(r.Context(), n)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ms)
	}
}

func MatchBySession(h MatchHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := h.MatchBySession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// PlayerMatches lists archived matches the player picked in, newest first.
func PlayerMatches(h MatchHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := limitParam(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ms, err := h.MatchesByPlayer(r.Context(), chi.URLParam(r, "id"), n)
		if err != nil {
			writeError(w, err)
			return
		}
		if ms == nil {
			ms = []store.Match{}
		}
		writeJSON(w, http.StatusOK, ms)
	}
}
