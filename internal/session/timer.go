package session

import "time"

// tickInterval is a package var so tests can run the countdown fast.
var tickInterval = time.Second

// startTimer launches the countdown goroutine for the turn that just began.
// Each start bumps the generation; ticks stamped with an older generation
// are ignored by the actor, so a fire racing a cancellation is harmless.
// Only the actor goroutine calls startTimer and stopTimer.
func (s *Session) startTimer() {
	s.stopTimer()
	s.timerGen++

	gen := s.timerGen
	stop := make(chan struct{})
	s.timerStop = stop

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				select {
				case s.inbox <- timerTick{gen: gen}:
				case <-stop:
					return
				case <-s.ctx.Done():
					return
				}
			}
		}
	}()
}

func (s *Session) stopTimer() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
}
