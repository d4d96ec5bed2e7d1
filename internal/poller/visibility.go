package poller

import "sync"

// Visibility tells the pollers whether anyone is looking at the view they
// feed. While hidden they issue no requests at all; on becoming visible
// they fire exactly one immediate refresh and fall back to the interval.
type Visibility interface {
	Visible() bool
	Changes() <-chan bool
}

type alwaysVisible struct {
	ch chan bool
}

// AlwaysVisible is the monitor used by headless consumers such as the CLI,
// where the view cannot be hidden.
func AlwaysVisible() Visibility {
	return alwaysVisible{ch: make(chan bool)}
}

func (alwaysVisible) Visible() bool { return true }

func (v alwaysVisible) Changes() <-chan bool { return v.ch }

// Switch is a manually driven monitor for embedding hosts and tests.
type Switch struct {
	mu      sync.RWMutex
	visible bool
	ch      chan bool
}

func NewSwitch(visible bool) *Switch {
	return &Switch{visible: visible, ch: make(chan bool, 8)}
}

func (s *Switch) Set(visible bool) {
	s.mu.Lock()
	changed := s.visible != visible
	s.visible = visible
	s.mu.Unlock()

	if changed {
		s.ch <- visible
	}
}

func (s *Switch) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

func (s *Switch) Changes() <-chan bool {
	return s.ch
}
