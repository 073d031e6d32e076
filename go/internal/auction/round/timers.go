package round

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type armedTimer struct {
	timer      clockwork.Timer
	stop       chan struct{}
	generation uint64
}

// arm replaces the pending wake-up with one for a new generation. Only the
// scheduler goroutine calls it.
func (s *Scheduler) arm(d time.Duration) {
	s.disarm()
	s.generation++

	gen := s.generation
	t := s.clock.NewTimer(d)
	stop := make(chan struct{})
	s.timer = &armedTimer{timer: t, stop: stop, generation: gen}

	go func() {
		select {
		case <-t.Chan():
			select {
			case s.mailbox <- func() { s.onTimer(gen) }:
			case <-stop:
			case <-s.runCtx.Done():
			}
		case <-stop:
		case <-s.runCtx.Done():
		}
	}()
}

// disarm cancels the pending wake-up, if any. A wake-up already in the mailbox
// is dropped by the generation check in onTimer.
func (s *Scheduler) disarm() {
	if s.timer == nil {
		return
	}
	close(s.timer.stop)
	stopAndDrainTimer(s.timer.timer)
	s.timer = nil
}

func (s *Scheduler) onTimer(gen uint64) {
	if gen != s.generation {
		log.Debug().
			Str("instance", s.instanceID).
			Uint64("generation", gen).
			Uint64("current_generation", s.generation).
			Msg("dropping stale round timer")
		return
	}
	s.timer = nil

	switch s.state {
	case StateLive, StateEnding:
		s.endRound()
	case StateIdle:
		s.startNext()
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
