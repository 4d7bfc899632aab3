package compiler

import "github.com/waabox/melodeck/internal/domain"

// subscriberBuffer bounds how many undelivered statuses a slow subscriber may hold.
const subscriberBuffer = 8

// Status returns the current status.
func (s *Session) Status() domain.CompileStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe returns a channel that receives every status transition and a
// function that ends the subscription and closes the channel. A subscriber
// that falls behind loses its oldest undelivered statuses, never the newest.
func (s *Session) Subscribe() (<-chan domain.CompileStatus, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan domain.CompileStatus, subscriberBuffer)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

// Reset returns a terminal session to Ready. It does nothing while a compile
// is in flight or when the session is already Ready.
func (s *Session) Reset() {
	s.resetIfTerminal()
}

func (s *Session) resetIfTerminal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		s.setLocked(domain.Ready())
	}
}

func (s *Session) transition(next domain.CompileStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(next)
}

func (s *Session) setLocked(next domain.CompileStatus) {
	s.status = next
	for _, ch := range s.subscribers {
		publish(ch, next)
	}
}

func publish(ch chan domain.CompileStatus, st domain.CompileStatus) {
	select {
	case ch <- st:
		return
	default:
	}
	// Full: drop the oldest pending status to make room.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
