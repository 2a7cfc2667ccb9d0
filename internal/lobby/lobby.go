// Package lobby runs one draft session as a single goroutine. Every command
// for the session goes through the inbox, so mutations are applied one at a
// time and events reach subscribers in the order they were produced.
package lobby

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/position"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

var (
	ErrClosed         = fmt.Errorf("%w: session closed", drafterr.ErrNotFound)
	ErrNotCreator     = fmt.Errorf("%w: only the session creator may do this", drafterr.ErrUnauthorized)
	ErrNotParticipant = fmt.Errorf("%w: not a participant of this session", drafterr.ErrUnauthorized)
	ErrNotDrafting    = fmt.Errorf("%w: session is not drafting", drafterr.ErrInvalidPhase)
	ErrSeatsOpen      = fmt.Errorf("%w: not every position is filled", drafterr.ErrInvalidPhase)
	ErrConfirmed      = fmt.Errorf("%w: result already confirmed", drafterr.ErrInvalidPhase)
	ErrOutboxFull     = fmt.Errorf("%w: subscriber outbox must have free buffer space", drafterr.ErrInvalidInput)
)

// Publisher mirrors session events to an external transport.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Recorder receives a result once, when it is first confirmed.
//
//go:generate mockgen -package=mocks -destination=mocks/mock_recorder.go github.com/DoyleJ11/nabi-draft/internal/lobby Recorder
type Recorder interface {
	Record(ctx context.Context, final result.Final) error
}

type RecorderFunc func(ctx context.Context, final result.Final) error

func (f RecorderFunc) Record(ctx context.Context, final result.Final) error { return f(ctx, final) }

// Metrics observes lobby activity.
type Metrics interface {
	EventEmitted(eventType string)
	CommandRejected(op string, err error)
	SubscribersChanged(delta int)
}

type Options struct {
	Template engine.Template
	Rules    engine.Rules

	// AutoAdvance arms a timer for every turn; on expiry the hovered or a
	// random legal champion is locked in, or the turn is skipped.
	AutoAdvance bool

	Clock      clockwork.Clock
	Catalog    catalog.Catalog
	Publisher  Publisher
	Recorders  []Recorder
	Metrics    Metrics
	Logger     *zap.Logger
	IOTimeout  time.Duration
	InboxSize  int
	RandomIntN func(n int) int
}

type Lobby struct {
	inbox   chan Msg
	sess    session.Session
	table   *position.Table
	draft   engine.State
	final   *result.Final
	version int
	clients map[string]chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// recording tracks recorder goroutines; done waits for them.
	recording sync.WaitGroup

	opts Options
	log  *zap.Logger

	timer     clockwork.Timer
	timerStop chan struct{}
	timerGen  int
	deadline  *time.Time
}

func NewLobby(parent context.Context, sess session.Session, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if len(opts.Template) == 0 {
		opts.Template = engine.DefaultTemplate()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 5 * time.Second
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	if opts.RandomIntN == nil {
		opts.RandomIntN = rand.IntN
	}

	l := &Lobby{
		inbox:   make(chan Msg, opts.InboxSize),
		sess:    sess.Clone(),
		table:   position.New(),
		draft:   engine.NewState(opts.Template, opts.Rules),
		clients: make(map[string]chan Event),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		opts:    opts,
		log:     opts.Logger.With(zap.String("session_id", sess.ID)),
	}

	go l.loop()
	return l
}

// Done is closed once the loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) ID() string { return l.sess.ID }

func (l *Lobby) loop() {
	defer func() {
		l.recording.Wait()
		close(l.done)
	}()
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				select {
				case msg.Outbox <- l.snapshotEvent():
				default:
					reply(msg.Reply, ErrOutboxFull)
					continue
				}
				if old, ok := l.clients[msg.ClientID]; !ok {
					l.opts.Metrics.SubscribersChanged(1)
				} else if old != msg.Outbox {
					close(old)
				}
				l.clients[msg.ClientID] = msg.Outbox
				reply(msg.Reply, nil)

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
					l.opts.Metrics.SubscribersChanged(-1)
				}

			case SelectPosition:
				reply(msg.Reply, l.observe("select_position", l.selectPosition(msg)))

			case LeavePosition:
				reply(msg.Reply, l.observe("leave_position", l.leavePosition(msg)))

			case AdvancePhase:
				reply(msg.Reply, l.observe("advance_phase", l.advancePhase(msg.Phase)))

			case StartDraft:
				reply(msg.Reply, l.observe("start_draft", l.startDraft(msg)))

			case FromClient:
				evt, err := l.fromClient(msg)
				reply(msg.Reply, CommandReply{Event: evt, Err: l.observe(string(msg.Cmd.Type), err)})

			case GetResult:
				final, err := l.currentResult()
				reply(msg.Reply, ResultReply{Final: final, Err: err})

			case AdjustResult:
				final, err := l.adjust(msg.Patch)
				reply(msg.Reply, ResultReply{Final: final, Err: l.observe("adjust_result", err)})

			case ConfirmResult:
				final, err := l.confirm()
				reply(msg.Reply, ResultReply{Final: final, Err: l.observe("confirm_result", err)})

			case GetState:
				// reflect internal state without data races
				reply(msg.Reply, View{
					Version:    l.version,
					NumClients: len(l.clients),
					Snapshot:   l.snapshot(),
				})

			case timerFired:
				l.onTimer(msg.gen)

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	l.stopTimer()
	for id, ch := range l.clients {
		close(ch) // Tell client no more events
		delete(l.clients, id)
		l.opts.Metrics.SubscribersChanged(-1)
	}
	l.cancel()
}

func (l *Lobby) selectPosition(msg SelectPosition) error {
	if err := l.requireSeating(); err != nil {
		return err
	}
	if _, ok := l.sess.Participant(msg.Occupant); !ok {
		return fmt.Errorf("%w: %s", ErrNotParticipant, msg.Occupant)
	}
	changes, err := l.table.Select(msg.Occupant, msg.Slot)
	if err != nil {
		return err
	}
	if l.sess.Phase == session.PhaseLobby {
		l.setPhase(session.PhasePositionSelect)
	}
	for _, c := range changes {
		l.emitPosition(c)
	}
	return nil
}

func (l *Lobby) leavePosition(msg LeavePosition) error {
	if err := l.requireSeating(); err != nil {
		return err
	}
	if _, ok := l.sess.Participant(msg.Caller); !ok && !l.sess.IsCreator(msg.Caller) {
		return fmt.Errorf("%w: %s", ErrNotParticipant, msg.Caller)
	}
	c, err := l.table.Leave(msg.Slot)
	if err != nil {
		return err
	}
	l.emitPosition(c)
	return nil
}

func (l *Lobby) requireSeating() error {
	switch l.sess.Phase {
	case session.PhaseLobby, session.PhasePositionSelect:
		return nil
	default:
		return fmt.Errorf("%w: positions are locked once drafting starts", drafterr.ErrInvalidPhase)
	}
}

func (l *Lobby) startDraft(msg StartDraft) error {
	if !l.sess.IsCreator(msg.Caller) {
		return ErrNotCreator
	}
	if msg.RequireFilled && !l.table.AllFilled() {
		return fmt.Errorf("%w: %d/%d", ErrSeatsOpen, l.table.Filled(), len(engine.Teams)*len(engine.Roles))
	}
	if l.sess.Phase == session.PhaseDrafting || l.sess.Phase == session.PhaseCompleted {
		return fmt.Errorf("%w: draft already started", drafterr.ErrInvalidPhase)
	}
	return l.advancePhase(session.PhaseDrafting)
}

func (l *Lobby) advancePhase(next session.Phase) error {
	if next == session.PhaseCompleted && !l.draft.Done() {
		return fmt.Errorf("%w: draft has turns left", drafterr.ErrInvalidPhase)
	}
	trial := l.sess
	changed, err := trial.Advance(next)
	if err != nil || !changed {
		return err
	}
	l.setPhase(next)
	if next == session.PhaseDrafting {
		l.armTimer()
	}
	return nil
}

func (l *Lobby) setPhase(p session.Phase) {
	l.sess.Phase = p
	l.emit(EvtPhaseChanged, PhasePayload{Phase: p})
}

func (l *Lobby) fromClient(msg FromClient) (engine.Event, error) {
	switch msg.Cmd.Type {
	case engine.CmdForceSkip, engine.CmdForcePick:
		if !l.sess.IsCreator(msg.Caller) {
			return engine.Event{}, ErrNotCreator
		}
	}
	return l.apply(msg.Cmd)
}

// apply runs cmd through the engine and publishes the resulting delta.
func (l *Lobby) apply(cmd engine.Command) (engine.Event, error) {
	if l.sess.Phase != session.PhaseDrafting {
		return engine.Event{}, ErrNotDrafting
	}

	evt, next, err := engine.Apply(l.draft, cmd)
	if err != nil {
		return engine.Event{}, err
	}
	l.draft = next

	payload := DraftPayload{Event: evt, Phase: engine.DerivePhase(l.draft.Template, l.draft.Cursor)}

	switch evt.Type {
	case engine.EvtChampionHovered:
		payload.Deadline = l.deadline
		l.emit(EvtChampionHovered, payload)

	case engine.EvtDraftAdvanced:
		l.armTimer()
		payload.Deadline = l.deadline
		l.emit(EvtDraftAdvanced, payload)

	case engine.EvtDraftCompleted:
		l.stopTimer()
		l.setPhase(session.PhaseCompleted)
		final, err := result.Build(l.sess.ID, l.draft, l.table.Teams(), l.sess.Participants)
		if err != nil {
			// unreachable once the engine reports completion
			l.log.Error("build result", zap.Error(err))
		} else {
			l.final = &final
			snapshot := final.Clone()
			payload.Result = &snapshot
		}
		l.emit(EvtDraftCompleted, payload)
	}
	return evt, nil
}

func (l *Lobby) currentResult() (result.Final, error) {
	if l.final == nil {
		return result.Final{}, result.ErrDraftInProgress
	}
	return l.final.Clone(), nil
}

func (l *Lobby) adjust(p result.Patch) (result.Final, error) {
	if l.final == nil {
		return result.Final{}, result.ErrDraftInProgress
	}
	if l.final.Confirmed {
		return result.Final{}, ErrConfirmed
	}
	adjusted := l.final.Apply(p)
	l.final = &adjusted
	l.emit(EvtResultAdjusted, adjusted.Clone())
	return adjusted.Clone(), nil
}

// confirm stamps the result the first time and hands a copy to the
// recorders off the loop. Repeat calls re-emit the identical payload.
func (l *Lobby) confirm() (result.Final, error) {
	if l.final == nil {
		return result.Final{}, result.ErrDraftInProgress
	}
	if !l.final.Confirmed {
		at := l.opts.Clock.Now().UTC()
		l.final.Confirmed = true
		l.final.ConfirmedAt = &at
		l.final.MatchID = uuid.NewString()
		final := l.final.Clone()
		l.recording.Add(1)
		go func() {
			defer l.recording.Done()
			l.record(final)
		}()
	}
	l.emit(EvtResultConfirmed, l.final.Clone())
	return l.final.Clone(), nil
}

func (l *Lobby) record(final result.Final) {
	for _, r := range l.opts.Recorders {
		if err := l.recordOne(r, final); err != nil {
			l.log.Error("record result", zap.Error(err))
		}
	}
}

func (l *Lobby) recordOne(r Recorder, final result.Final) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recorder panic: %v", p)
		}
	}()
	// Recording outlives Stop; Close waits for it up to IOTimeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), l.opts.IOTimeout)
	defer cancel()
	return r.Record(ctx, final)
}

func (l *Lobby) emitPosition(c position.Change) {
	payload := PositionPayload{
		Team:     c.Slot.Team,
		Role:     c.Slot.Role,
		Previous: c.Previous,
		Evicted:  c.Evicted,
	}
	if c.Occupant != "" {
		p, _ := l.sess.Participant(c.Occupant)
		payload.Occupant = &p
	}
	l.emit(EvtPositionChanged, payload)
}

func (l *Lobby) emit(typ EventType, data any) Event {
	l.version++
	evt := Event{
		ID:        uuid.NewString(),
		SessionID: l.sess.ID,
		Version:   l.version,
		Type:      typ,
		Timestamp: l.opts.Clock.Now().UTC(),
		Data:      data,
	}
	l.broadcast(evt)
	l.opts.Metrics.EventEmitted(string(typ))

	if l.opts.Publisher != nil {
		ctx, cancel := context.WithTimeout(l.ctx, l.opts.IOTimeout)
		if err := l.opts.Publisher.Publish(ctx, evt); err != nil {
			l.log.Warn("publish event", zap.String("event", string(typ)), zap.Int("version", evt.Version), zap.Error(err))
		}
		cancel()
	}
	l.log.Debug("event", zap.String("event", string(typ)), zap.Int("version", evt.Version))
	return evt
}

func (l *Lobby) broadcast(evt Event) {
	for id, ch := range l.clients {
		select {
		case ch <- evt:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
			l.opts.Metrics.SubscribersChanged(-1)
			l.log.Info("dropped slow subscriber", zap.String("client_id", id))
		}
	}
}

func (l *Lobby) snapshotEvent() Event {
	return Event{
		ID:        uuid.NewString(),
		SessionID: l.sess.ID,
		Version:   l.version,
		Type:      EvtSnapshot,
		Timestamp: l.opts.Clock.Now().UTC(),
		Data:      l.snapshot(),
	}
}

func (l *Lobby) snapshot() Snapshot {
	snap := Snapshot{
		Version:   l.version,
		Session:   l.sess.Clone(),
		Positions: l.positions(),
		Draft:     l.draftView(),
	}
	if l.final != nil {
		f := l.final.Clone()
		snap.Result = &f
	}
	return snap
}

func (l *Lobby) positions() map[engine.Team]map[engine.Role]session.Participant {
	out := make(map[engine.Team]map[engine.Role]session.Participant, len(engine.Teams))
	for team, roles := range l.table.Teams() {
		out[team] = make(map[engine.Role]session.Participant, len(roles))
		for role, id := range roles {
			p, _ := l.sess.Participant(id)
			out[team][role] = p
		}
	}
	return out
}

func (l *Lobby) draftView() DraftView {
	s := l.draft.Clone()
	v := DraftView{
		Turns:     s.Template.Labels(),
		TurnIndex: s.Cursor,
		Turn:      s.Template.Label(s.Cursor),
		Phase:     engine.DerivePhase(s.Template, s.Cursor),
		Bans:      s.Bans,
		Picks:     s.Picks,
		Hover:     s.Hover,
		Countdown: s.Countdown,
		Deadline:  l.deadline,
	}
	if step, ok := s.Current(); ok {
		v.Current = &step
	}
	return v
}

func (l *Lobby) observe(op string, err error) error {
	if err != nil {
		l.opts.Metrics.CommandRejected(op, err)
		l.log.Debug("rejected", zap.String("op", op), zap.Error(err))
	}
	return err
}

func reply[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

type nopMetrics struct{}

func (nopMetrics) EventEmitted(string)           {}
func (nopMetrics) CommandRejected(string, error) {}
func (nopMetrics) SubscribersChanged(int)        {}
