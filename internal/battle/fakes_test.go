package battle

import (
	"fmt"
	"sync"
	"time"
)

// manualScheduler fires timers only when the test advances its clock.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{s: s, at: s.now.Add(d), seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing due timers in order. Callbacks run
// without the scheduler lock so they can schedule new timers.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *manualTimer
		for _, t := range s.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(s.now) {
			s.now = next.at
		}
		s.mu.Unlock()
		next.f()
	}
}

// pending counts live timers.
func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recordingTransport keeps every event per connection.
type recordingTransport struct {
	mu      sync.Mutex
	events  map[string][]Event
	offline map[string]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{events: make(map[string][]Event), offline: make(map[string]bool)}
}

func (r *recordingTransport) Send(connID string, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[connID] = append(r.events[connID], ev)
	return nil
}

func (r *recordingTransport) Connected(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.offline[connID]
}

func (r *recordingTransport) setOffline(connID string, off bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline[connID] = off
}

func (r *recordingTransport) of(connID, evType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events[connID] {
		if ev.Type == evType {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingTransport) last(connID, evType string) (Event, bool) {
	evs := r.of(connID, evType)
	if len(evs) == 0 {
		return Event{}, false
	}
	return evs[len(evs)-1], true
}

func (r *recordingTransport) count(connID, evType string) int {
	return len(r.of(connID, evType))
}

func testTiming() Timing {
	return Timing{
		Intro:      2 * time.Second,
		Countdown:  3 * time.Second,
		Question:   15 * time.Second,
		InterRound: time.Second,
	}
}

// abcdQuestions returns n questions whose correct option is always "A".
func abcdQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Text:         "question",
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: 0,
		}
	}
	return qs
}
