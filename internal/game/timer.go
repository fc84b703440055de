package game

import (
	"context"
	"sync"
	"time"

	"github.com/blankparty/hackbox/internal/game/events"
	"github.com/blankparty/hackbox/internal/models"
)

// phaseTimer is the cancellable handle stored on a session while a phase
// timer runs. Stop is idempotent and safe to call from any goroutine.
type phaseTimer struct {
	stop chan struct{}
	once sync.Once
}

func newPhaseTimer() *phaseTimer {
	return &phaseTimer{stop: make(chan struct{})}
}

// Stop cancels the timer. The timer goroutine exits without firing expire.
func (t *phaseTimer) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// startTimer replaces any running timer on the session with a fresh one that
// decrements TimeRemaining once per second and calls expire when it hits
// zero. When broadcastTicks is set, every tick is broadcast to the session
// channel. Caller must hold the session lock.
func (e *Engine) startTimer(s *models.Session, broadcastTicks bool, expire func(sessionID string)) {
	if s.Timer != nil {
		s.Timer.Stop()
	}
	t := newPhaseTimer()
	s.Timer = t
	go e.runTimer(s.ID, t, broadcastTicks, expire)
}

func (e *Engine) runTimer(sessionID string, t *phaseTimer, broadcastTicks bool, expire func(sessionID string)) {
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.Chan():
			expired, alive := e.tick(sessionID, t, broadcastTicks)
			if !alive {
				return
			}
			if expired {
				expire(sessionID)
				return
			}
		}
	}
}

// tick applies one second of countdown. It reports expired when the counter
// reached zero and alive=false when the session is gone or the timer has
// been replaced by a newer phase.
func (e *Engine) tick(sessionID string, t *phaseTimer, broadcastTicks bool) (expired, alive bool) {
	s, ok := e.registry.Get(sessionID)
	if !ok {
		return false, false
	}

	s.Lock()
	defer s.Unlock()

	if s.Timer != t {
		return false, false
	}

	if s.TimeRemaining > 0 {
		s.TimeRemaining--
	}
	if broadcastTicks {
		e.publish(context.Background(), sessionID, events.EventTypeTimerUpdate, events.TimerUpdatePayload{
			TimeRemaining: s.TimeRemaining,
		})
	}
	if s.TimeRemaining <= 0 {
		t.Stop()
		return true, true
	}
	return false, true
}
