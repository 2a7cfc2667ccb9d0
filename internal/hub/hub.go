// Package hub is the session registry. A single goroutine owns the map from
// session id to lobby, so lookups never race with creation or removal.
package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/lobby"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

var (
	ErrSessionNotFound = fmt.Errorf("%w: session", drafterr.ErrNotFound)
	ErrClosed          = fmt.Errorf("%w: registry closed", drafterr.ErrNotFound)
)

const maxCodeAttempts = 16

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Title        string
	Creator      session.Participant
	Participants []session.Participant
	Reply        chan CreateReply
}

type CreateReply struct {
	Lobby   *lobby.Lobby
	Session session.Session
	Err     error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code  string
	Reply chan bool
}

type CountLobbies struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()  {}
func (GetLobby) isHubMsg()     {}
func (RemoveLobby) isHubMsg()  {}
func (CountLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Options struct {
	// Lobby is handed to every new session.
	Lobby           lobby.Options
	MaxParticipants int
	Clock           clockwork.Clock
	Logger          *zap.Logger
	// Generate overrides GenerateCode, mostly for tests.
	Generate func() (string, error)
	// OnCount observes the number of live sessions after each change.
	OnCount func(n int)
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	opts    Options
	log     *zap.Logger
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Generate == nil {
		opts.Generate = GenerateCode
	}
	if opts.Lobby.Clock == nil {
		opts.Lobby.Clock = opts.Clock
	}
	if opts.Lobby.Logger == nil {
		opts.Lobby.Logger = opts.Logger
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		opts:    opts,
		log:     opts.Logger,
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				lb, sess, err := h.create(msg)
				msg.Reply <- CreateReply{Lobby: lb, Session: sess, Err: err}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				lb, ok := h.lobbies[msg.Code]
				if ok {
					delete(h.lobbies, msg.Code)
					lb.Stop()
					h.count()
					h.log.Info("session removed", zap.String("session_id", msg.Code))
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case CountLobbies:
				msg.Reply <- len(h.lobbies)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateLobby) (*lobby.Lobby, session.Session, error) {
	if err := session.Validate(msg.Participants, msg.Creator, h.opts.MaxParticipants); err != nil {
		return nil, session.Session{}, err
	}

	var code string
	for range maxCodeAttempts {
		c, err := h.opts.Generate()
		if err != nil {
			return nil, session.Session{}, fmt.Errorf("generate session code: %w", err)
		}
		if _, taken := h.lobbies[c]; !taken {
			code = c
			break
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", c))
	}
	if code == "" {
		return nil, session.Session{}, fmt.Errorf("generate session code: %d collisions", maxCodeAttempts)
	}

	sess := session.Session{
		ID:           code,
		Title:        msg.Title,
		Creator:      msg.Creator,
		Participants: msg.Participants,
		CreatedAt:    h.opts.Clock.Now().UTC().Truncate(time.Millisecond),
		Phase:        session.PhaseLobby,
	}.Clone()

	lb := lobby.NewLobby(h.ctx, sess, h.opts.Lobby)
	h.lobbies[code] = lb
	h.count()
	h.log.Info("session created", zap.String("session_id", code), zap.Int("participants", len(sess.Participants)))
	return lb, sess, nil
}

func (h *Hub) count() {
	if h.opts.OnCount != nil {
		h.opts.OnCount(len(h.lobbies))
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Stop()
	}
	clear(h.lobbies)
	h.count()
	h.cancel()
}

// Create registers a new session and starts its lobby.
func (h *Hub) Create(ctx context.Context, title string, creator session.Participant, participants []session.Participant) (*lobby.Lobby, session.Session, error) {
	reply := make(chan CreateReply, 1)
	if err := h.send(ctx, CreateLobby{Title: title, Creator: creator, Participants: participants, Reply: reply}); err != nil {
		return nil, session.Session{}, err
	}
	r, err := await(ctx, h, reply)
	if err != nil {
		return nil, session.Session{}, err
	}
	return r.Lobby, r.Session, r.Err
}

func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	lb, err := await(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	return lb, nil
}

// Remove shuts the session down; subscribers see their channels close.
func (h *Hub) Remove(ctx context.Context, code string) error {
	reply := make(chan bool, 1)
	if err := h.send(ctx, RemoveLobby{Code: code, Reply: reply}); err != nil {
		return err
	}
	ok, err := await(ctx, h, reply)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	return nil
}

func (h *Hub) Len(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := h.send(ctx, CountLobbies{Reply: reply}); err != nil {
		return 0, err
	}
	return await(ctx, h, reply)
}

// Shutdown stops every lobby and the registry loop.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, h *Hub, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
