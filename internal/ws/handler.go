// Package ws serves the live view of a session over a websocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/lobby"
	"github.com/DoyleJ11/nabi-draft/internal/position"
	"github.com/DoyleJ11/nabi-draft/internal/service"
	"github.com/DoyleJ11/nabi-draft/internal/types"
)

var (
	errUnknownMessage = fmt.Errorf("%w: unknown message type", drafterr.ErrInvalidInput)
	errRateLimited    = fmt.Errorf("%w: too many messages", drafterr.ErrInvalidInput)
)

type Options struct {
	// OriginPatterns is passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
	// CommandRate limits client messages per second on each connection.
	CommandRate  rate.Limit
	CommandBurst int
	WriteTimeout time.Duration
	OutboxSize   int
	Logger       *zap.Logger
}

func Handler(svc service.Service, opts Options) http.HandlerFunc {
	if opts.CommandRate <= 0 {
		opts.CommandRate = 5
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = 10
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 32
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}
		// identity is asserted by the caller; authentication happens upstream
		user := r.URL.Query().Get("user")

		if _, err := svc.GetSession(r.Context(), sessionID); err != nil {
			http.Error(w, err.Error(), drafterr.HTTPStatus(err))
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			conn:      conn,
			svc:       svc,
			sessionID: sessionID,
			user:      user,
			id:        uuid.NewString(),
			limiter:   rate.NewLimiter(opts.CommandRate, opts.CommandBurst),
			opts:      opts,
			log:       opts.Logger.With(zap.String("session_id", sessionID), zap.String("user", user)),
		}
		c.serve(r.Context())
	}
}

type client struct {
	conn      *websocket.Conn
	svc       service.Service
	sessionID string
	user      string
	id        string
	limiter   *rate.Limiter
	opts      Options
	log       *zap.Logger
}

func (c *client) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan lobby.Event, c.opts.OutboxSize)
	unsubscribe, err := c.svc.Subscribe(ctx, c.sessionID, c.id, out)
	if err != nil {
		c.write(ctx, types.Error("", err))
		return
	}
	defer unsubscribe()

	// Writer goroutine
	go func() {
		defer cancel()
		for evt := range out {
			if err := c.write(ctx, evt); err != nil {
				return
			}
		}
		// The lobby closed our outbox: we fell behind or the session ended.
		c.conn.Close(websocket.StatusGoingAway, "session feed ended")
	}()

	// Reader loop
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					c.log.Debug("ws read", zap.Error(err))
				}
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.write(ctx, types.Error("", fmt.Errorf("%w: bad json", drafterr.ErrInvalidInput)))
			continue
		}
		if !c.limiter.Allow() {
			c.write(ctx, types.Error(cm.RequestID, errRateLimited))
			continue
		}
		if err := c.dispatch(ctx, cm); err != nil {
			c.write(ctx, types.Error(cm.RequestID, err))
			continue
		}
		c.write(ctx, types.Ack(cm.RequestID))
	}
}

func (c *client) dispatch(ctx context.Context, m types.ClientMessage) error {
	switch m.Type {
	case types.MsgSelectPosition, types.MsgLeavePosition:
		slot, err := parseSlot(m)
		if err != nil {
			return err
		}
		if m.Type == types.MsgSelectPosition {
			return c.svc.SelectPosition(ctx, c.sessionID, c.user, slot)
		}
		return c.svc.LeavePosition(ctx, c.sessionID, c.user, slot)

	case types.MsgStart:
		return c.svc.StartDraft(ctx, c.sessionID, c.user)

	case types.MsgSubmit:
		a, err := toAction(m)
		if err != nil {
			return err
		}
		_, err = c.svc.SubmitAction(ctx, c.sessionID, c.user, a)
		return err

	case types.MsgHover:
		team, ok := engine.ParseTeam(m.Team)
		if !ok {
			return fmt.Errorf("%w: team %q", drafterr.ErrInvalidInput, m.Team)
		}
		_, err := c.svc.HoverChampion(ctx, c.sessionID, c.user, team, m.Champion)
		return err

	case types.MsgSkip:
		_, err := c.svc.ForceSkip(ctx, c.sessionID, c.user)
		return err

	default:
		return fmt.Errorf("%w: %q", errUnknownMessage, m.Type)
	}
}

func (c *client) write(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshal ws message", zap.Error(err))
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func parseSlot(m types.ClientMessage) (position.Slot, error) {
	team, ok := engine.ParseTeam(m.Team)
	if !ok {
		return position.Slot{}, fmt.Errorf("%w: team %q", drafterr.ErrInvalidInput, m.Team)
	}
	role, ok := engine.ParseRole(m.Role)
	if !ok {
		return position.Slot{}, fmt.Errorf("%w: role %q", drafterr.ErrInvalidInput, m.Role)
	}
	return position.Slot{Team: team, Role: role}, nil
}

func toAction(m types.ClientMessage) (service.Action, error) {
	team, ok := engine.ParseTeam(m.Team)
	if !ok {
		return service.Action{}, fmt.Errorf("%w: team %q", drafterr.ErrInvalidInput, m.Team)
	}
	action, ok := engine.ParseAction(m.Action)
	if !ok {
		return service.Action{}, fmt.Errorf("%w: action %q", drafterr.ErrInvalidInput, m.Action)
	}
	a := service.Action{Team: team, Action: action, Champion: m.Champion}
	if m.Role != "" {
		role, ok := engine.ParseRole(m.Role)
		if !ok {
			return service.Action{}, fmt.Errorf("%w: role %q", drafterr.ErrInvalidInput, m.Role)
		}
		a.Role = role
	}
	return a, nil
}
