package speech

import (
	"context"
	"time"
)

// Session is one utterance in flight.
type Session struct {
	ID      string
	Text    string
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed once the session has stopped and released its audio.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended. It is valid after Done is closed;
// context.Canceled means the session was interrupted.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// closedSession is returned after the manager shut down.
func closedSession(text string) *Session {
	s := &Session{Text: text, cancel: func() {}, done: make(chan struct{}), err: ErrClosed}
	close(s.done)
	return s
}
