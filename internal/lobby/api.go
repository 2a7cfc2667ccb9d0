package lobby

import (
	"context"

	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/position"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

// send hands m to the loop, giving up if ctx ends or the lobby has stopped.
func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, l *Lobby, ch chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-l.done:
		// the loop may have replied just before exiting
		select {
		case v := <-ch:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func call[T any](ctx context.Context, l *Lobby, m Msg, ch chan T) (T, error) {
	if err := l.send(ctx, m); err != nil {
		var zero T
		return zero, err
	}
	return await(ctx, l, ch)
}

// Subscribe registers outbox; the first event it receives is a snapshot.
// The lobby closes outbox when the subscriber is dropped or the session ends.
func (l *Lobby) Subscribe(ctx context.Context, clientID string, outbox chan Event) error {
	ch := make(chan error, 1)
	err, callErr := call(ctx, l, Join{ClientID: clientID, Outbox: outbox, Reply: ch}, ch)
	if callErr != nil {
		return callErr
	}
	return err
}

func (l *Lobby) Unsubscribe(ctx context.Context, clientID string) error {
	return l.send(ctx, Leave{ClientID: clientID})
}

func (l *Lobby) SelectPosition(ctx context.Context, occupant string, slot position.Slot) error {
	ch := make(chan error, 1)
	err, callErr := call(ctx, l, SelectPosition{Occupant: occupant, Slot: slot, Reply: ch}, ch)
	if callErr != nil {
		return callErr
	}
	return err
}

func (l *Lobby) LeavePosition(ctx context.Context, caller string, slot position.Slot) error {
	ch := make(chan error, 1)
	err, callErr := call(ctx, l, LeavePosition{Caller: caller, Slot: slot, Reply: ch}, ch)
	if callErr != nil {
		return callErr
	}
	return err
}

func (l *Lobby) AdvancePhase(ctx context.Context, phase session.Phase) error {
	ch := make(chan error, 1)
	err, callErr := call(ctx, l, AdvancePhase{Phase: phase, Reply: ch}, ch)
	if callErr != nil {
		return callErr
	}
	return err
}

func (l *Lobby) StartDraft(ctx context.Context, caller string, requireFilled bool) error {
	ch := make(chan error, 1)
	err, callErr := call(ctx, l, StartDraft{Caller: caller, RequireFilled: requireFilled, Reply: ch}, ch)
	if callErr != nil {
		return callErr
	}
	return err
}

// Do applies a draft command on behalf of caller.
func (l *Lobby) Do(ctx context.Context, caller string, cmd engine.Command) (engine.Event, error) {
	ch := make(chan CommandReply, 1)
	r, err := call(ctx, l, FromClient{Caller: caller, Cmd: cmd, Reply: ch}, ch)
	if err != nil {
		return engine.Event{}, err
	}
	return r.Event, r.Err
}

func (l *Lobby) Result(ctx context.Context) (result.Final, error) {
	ch := make(chan ResultReply, 1)
	return unwrap(call(ctx, l, GetResult{Reply: ch}, ch))
}

func (l *Lobby) Adjust(ctx context.Context, p result.Patch) (result.Final, error) {
	ch := make(chan ResultReply, 1)
	return unwrap(call(ctx, l, AdjustResult{Patch: p, Reply: ch}, ch))
}

func (l *Lobby) Confirm(ctx context.Context) (result.Final, error) {
	ch := make(chan ResultReply, 1)
	return unwrap(call(ctx, l, ConfirmResult{Reply: ch}, ch))
}

func (l *Lobby) State(ctx context.Context) (View, error) {
	ch := make(chan View, 1)
	return call(ctx, l, GetState{Reply: ch}, ch)
}

// Stop cancels the lobby without waiting; subscribers see their channels close.
func (l *Lobby) Stop() { l.cancel() }

// Close stops the loop and waits for it to exit.
func (l *Lobby) Close(ctx context.Context) error {
	if err := l.send(ctx, Shutdown{}); err != nil && err != ErrClosed {
		return err
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func unwrap(r ResultReply, err error) (result.Final, error) {
	if err != nil {
		return result.Final{}, err
	}
	return r.Final, r.Err
}
