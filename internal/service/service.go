// Package service is the command surface used by every outer layer: the HTTP
// API, the websocket handler and the Discord bot all go through Service.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/hub"
	"github.com/DoyleJ11/nabi-draft/internal/lobby"
	"github.com/DoyleJ11/nabi-draft/internal/position"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

type CreateRequest struct {
	Title        string                `json:"title"`
	Creator      session.Participant   `json:"creator"`
	Participants []session.Participant `json:"participants"`
}

// Action is a ban or pick submitted for the active turn.
type Action struct {
	Team     engine.Team   `json:"team"`
	Action   engine.Action `json:"action"`
	Role     engine.Role   `json:"role,omitempty"`
	Champion string        `json:"champion"`
}

type Service interface {
	CreateSession(ctx context.Context, req CreateRequest) (session.Session, error)
	GetSession(ctx context.Context, id string) (lobby.Snapshot, error)
	SelectPosition(ctx context.Context, id, caller string, slot position.Slot) error
	LeavePosition(ctx context.Context, id, caller string, slot position.Slot) error
	StartDraft(ctx context.Context, id, caller string) error
	SubmitAction(ctx context.Context, id, caller string, a Action) (engine.Event, error)
	HoverChampion(ctx context.Context, id, caller string, team engine.Team, champion string) (engine.Event, error)
	ForceSkip(ctx context.Context, id, caller string) (engine.Event, error)
	GetResult(ctx context.Context, id string) (result.Final, error)
	AdjustResult(ctx context.Context, id string, p result.Patch) (result.Final, error)
	ConfirmResult(ctx context.Context, id string) (result.Final, error)
	ResetSession(ctx context.Context, id, caller string) error
	Subscribe(ctx context.Context, id, clientID string, outbox chan lobby.Event) (unsubscribe func(), err error)
}

type Options struct {
	// RequireFilledSeats makes StartDraft wait for all ten positions.
	RequireFilledSeats bool
	Logger             *zap.Logger
}

// Draft implements Service on top of the session registry.
type Draft struct {
	hub     *hub.Hub
	catalog catalog.Catalog
	opts    Options
	log     *zap.Logger
}

var _ Service = (*Draft)(nil)

func New(h *hub.Hub, cat catalog.Catalog, opts Options) *Draft {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Draft{hub: h, catalog: cat, opts: opts, log: opts.Logger}
}

func (d *Draft) CreateSession(ctx context.Context, req CreateRequest) (session.Session, error) {
	_, sess, err := d.hub.Create(ctx, req.Title, req.Creator, req.Participants)
	if err != nil {
		return session.Session{}, err
	}
	d.log.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("creator", sess.Creator.ID),
		zap.Int("participants", len(sess.Participants)),
	)
	return sess, nil
}

func (d *Draft) GetSession(ctx context.Context, id string) (lobby.Snapshot, error) {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return lobby.Snapshot{}, err
	}
	v, err := lb.State(ctx)
	if err != nil {
		return lobby.Snapshot{}, err
	}
	return v.Snapshot, nil
}

func (d *Draft) SelectPosition(ctx context.Context, id, caller string, slot position.Slot) error {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return err
	}
	return lb.SelectPosition(ctx, caller, slot)
}

func (d *Draft) LeavePosition(ctx context.Context, id, caller string, slot position.Slot) error {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return err
	}
	return lb.LeavePosition(ctx, caller, slot)
}

func (d *Draft) StartDraft(ctx context.Context, id, caller string) error {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return err
	}
	return lb.StartDraft(ctx, caller, d.opts.RequireFilledSeats)
}

func (d *Draft) SubmitAction(ctx context.Context, id, caller string, a Action) (engine.Event, error) {
	if !a.Team.Valid() {
		return engine.Event{}, fmt.Errorf("%w: unknown team %q", drafterr.ErrInvalidInput, a.Team)
	}
	if !a.Action.Valid() {
		return engine.Event{}, fmt.Errorf("%w: unknown action %q", drafterr.ErrInvalidInput, a.Action)
	}
	if a.Role != "" && !a.Role.Valid() {
		return engine.Event{}, fmt.Errorf("%w: unknown role %q", drafterr.ErrInvalidInput, a.Role)
	}
	key, err := d.resolve(a.Champion)
	if err != nil {
		return engine.Event{}, err
	}
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return engine.Event{}, err
	}
	return lb.Do(ctx, caller, engine.Command{
		Type:     engine.CmdSubmit,
		Team:     a.Team,
		Action:   a.Action,
		Role:     a.Role,
		Seat:     caller,
		Champion: key,
	})
}

func (d *Draft) HoverChampion(ctx context.Context, id, caller string, team engine.Team, champion string) (engine.Event, error) {
	key, err := d.resolve(champion)
	if err != nil {
		return engine.Event{}, err
	}
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return engine.Event{}, err
	}
	return lb.Do(ctx, caller, engine.Command{Type: engine.CmdHover, Team: team, Seat: caller, Champion: key})
}

func (d *Draft) ForceSkip(ctx context.Context, id, caller string) (engine.Event, error) {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return engine.Event{}, err
	}
	return lb.Do(ctx, caller, engine.Command{Type: engine.CmdForceSkip})
}

func (d *Draft) GetResult(ctx context.Context, id string) (result.Final, error) {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return result.Final{}, err
	}
	return lb.Result(ctx)
}

func (d *Draft) AdjustResult(ctx context.Context, id string, p result.Patch) (result.Final, error) {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return result.Final{}, err
	}
	return lb.Adjust(ctx, p)
}

func (d *Draft) ConfirmResult(ctx context.Context, id string) (result.Final, error) {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return result.Final{}, err
	}
	return lb.Confirm(ctx)
}

// ResetSession discards the session entirely. Only its creator may do this.
func (d *Draft) ResetSession(ctx context.Context, id, caller string) error {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return err
	}
	v, err := lb.State(ctx)
	if err != nil {
		return err
	}
	if !v.Snapshot.Session.IsCreator(caller) {
		return lobby.ErrNotCreator
	}
	return d.hub.Remove(ctx, id)
}

func (d *Draft) Subscribe(ctx context.Context, id, clientID string, outbox chan lobby.Event) (func(), error) {
	lb, err := d.hub.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lb.Subscribe(ctx, clientID, outbox); err != nil {
		return nil, err
	}
	return func() {
		// the lobby may already be gone; nothing to undo then
		_ = lb.Unsubscribe(context.Background(), clientID)
	}, nil
}

// resolve maps a user-supplied name to its catalog key. Without a catalog the
// normalized name is used as is.
func (d *Draft) resolve(name string) (string, error) {
	if catalog.Normalize(name) == "" {
		return "", fmt.Errorf("%w: champion is required", drafterr.ErrInvalidInput)
	}
	if d.catalog == nil {
		return catalog.Normalize(name), nil
	}
	c, err := d.catalog.Lookup(name)
	if err != nil {
		return "", err
	}
	return c.Key, nil
}
