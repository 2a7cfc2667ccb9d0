package lobby

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/nabi-draft/internal/engine"
)

// armTimer starts the countdown for the active turn, replacing any previous
// one. Fires from replaced timers carry an old generation and are ignored.
func (l *Lobby) armTimer() {
	l.stopTimer()
	if !l.opts.AutoAdvance || l.draft.Done() || l.draft.Countdown <= 0 {
		return
	}

	l.timerGen++
	gen := l.timerGen
	d := time.Duration(l.draft.Countdown) * time.Second
	deadline := l.opts.Clock.Now().Add(d).UTC()
	l.deadline = &deadline

	t := l.opts.Clock.NewTimer(d)
	stop := make(chan struct{})
	l.timer, l.timerStop = t, stop

	go func() {
		select {
		case <-t.Chan():
			select {
			case l.inbox <- timerFired{gen: gen}:
			case <-l.ctx.Done():
			}
		case <-stop:
		case <-l.ctx.Done():
		}
	}()
}

func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		close(l.timerStop)
		l.timer, l.timerStop = nil, nil
	}
	l.deadline = nil
}

func (l *Lobby) onTimer(gen int) {
	if gen != l.timerGen || l.timer == nil {
		return
	}
	l.timer, l.timerStop = nil, nil

	step, ok := l.draft.Current()
	if !ok {
		return
	}

	cmd := engine.Command{Type: engine.CmdForceSkip}
	if champ, ok := l.draft.HoverFor(""); ok {
		cmd = engine.Command{Type: engine.CmdForcePick, Champion: champ}
	} else if step.Action == engine.ActionPick {
		if champ, ok := l.randomChampion(); ok {
			cmd = engine.Command{Type: engine.CmdForcePick, Champion: champ}
		}
	}

	if _, err := l.apply(cmd); err != nil {
		// The chosen champion can only be illegal if the catalog is out of
		// step with the draft; skip so the session never stalls.
		l.log.Warn("timeout pick rejected", zap.String("champion", cmd.Champion), zap.Error(err))
		if _, err := l.apply(engine.Command{Type: engine.CmdForceSkip}); err != nil {
			l.log.Error("timeout skip", zap.Error(err))
		}
	}
	l.log.Info("turn timed out", zap.Int("turn_index", l.draft.Cursor), zap.String("command", string(cmd.Type)))
}

func (l *Lobby) randomChampion() (string, bool) {
	if l.opts.Catalog == nil {
		return "", false
	}
	var legal []string
	for _, c := range l.opts.Catalog.All() {
		if l.draft.IsAvailable(c.Key) {
			legal = append(legal, c.Key)
		}
	}
	if len(legal) == 0 {
		return "", false
	}
	return legal[l.opts.RandomIntN(len(legal))], true
}
