package hub

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/lobby"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

var (
	host    = session.Participant{ID: "host", DisplayName: "Host"}
	players = []session.Participant{{ID: "p1"}, {ID: "p2"}}
)

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	h := NewHub(context.Background(), opts)
	t.Cleanup(h.Shutdown)
	return h
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	for range 50 {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	h := newTestHub(t, Options{Clock: clock})
	ctx := context.Background()

	lb1, sess, err := h.Create(ctx, "scrim", host, players)
	require.NoError(t, err)
	assert.Len(t, sess.ID, codeLength)
	assert.Equal(t, session.PhaseLobby, sess.Phase)
	assert.Equal(t, clock.Now(), sess.CreatedAt)
	assert.Equal(t, sess.ID, lb1.ID())

	lb2, err := h.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Same(t, lb1, lb2)

	n, err := h.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHub_CreateValidates(t *testing.T) {
	h := newTestHub(t, Options{MaxParticipants: 1})
	ctx := context.Background()

	_, _, err := h.Create(ctx, "", host, nil)
	assert.ErrorIs(t, err, drafterr.ErrInvalidInput)

	_, _, err = h.Create(ctx, "", host, players)
	assert.ErrorIs(t, err, drafterr.ErrInvalidInput)

	_, _, err = h.Create(ctx, "", session.Participant{}, players[:1])
	assert.ErrorIs(t, err, drafterr.ErrInvalidInput)
}

func TestHub_CreateRetriesCollisions(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	i := 0
	h := newTestHub(t, Options{Generate: func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}})
	ctx := context.Background()

	_, first, err := h.Create(ctx, "", host, players)
	require.NoError(t, err)
	_, second, err := h.Create(ctx, "", host, players)
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.ID)
	assert.Equal(t, "BBBBBB", second.ID)
}

func TestHub_CreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	h := newTestHub(t, Options{Generate: func() (string, error) { return "SAME00", nil }})
	ctx := context.Background()

	_, _, err := h.Create(ctx, "", host, players)
	require.NoError(t, err)
	_, _, err = h.Create(ctx, "", host, players)
	assert.ErrorContains(t, err, fmt.Sprintf("%d collisions", maxCodeAttempts))
}

func TestHub_GetUnknown(t *testing.T) {
	h := newTestHub(t, Options{})
	_, err := h.Get(context.Background(), "NOPE00")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, err, drafterr.ErrNotFound)
}

func TestHub_RemoveClosesSubscribers(t *testing.T) {
	var counts []int
	h := newTestHub(t, Options{OnCount: func(n int) { counts = append(counts, n) }})
	ctx := context.Background()

	lb, sess, err := h.Create(ctx, "", host, players)
	require.NoError(t, err)

	out := make(chan lobby.Event, 4)
	require.NoError(t, lb.Subscribe(ctx, "c1", out))
	<-out // snapshot

	require.NoError(t, h.Remove(ctx, sess.ID))
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was not closed")
	}

	_, err = h.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, drafterr.ErrNotFound)
	assert.ErrorIs(t, h.Remove(ctx, sess.ID), drafterr.ErrNotFound)

	n, err := h.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []int{1, 0}, counts)
}

func TestHub_ShutdownStopsEverything(t *testing.T) {
	h := NewHub(context.Background(), Options{})
	ctx := context.Background()

	lb, _, err := h.Create(ctx, "", host, players)
	require.NoError(t, err)

	h.Shutdown()
	select {
	case <-lb.Done():
	case <-time.After(time.Second):
		t.Fatal("lobby still running after hub shutdown")
	}

	_, err = h.Get(ctx, "ANY000")
	assert.ErrorIs(t, err, ErrClosed)
	h.Shutdown() // idempotent
}
