package vulkan

import (
	"sync"

	"github.com/spaghettifunk/vkapp/engine/core"
)

type releaseEntry struct {
	name    string
	release func()
}

// ReleaseStack records how to destroy every acquired object and destroys them
// in reverse acquisition order. Release is safe to call more than once.
type ReleaseStack struct {
	name    string
	mu      sync.Mutex
	entries []releaseEntry
}

func NewReleaseStack(name string) *ReleaseStack {
	return &ReleaseStack{name: name}
}

// Push registers release to run when the stack unwinds.
func (s *ReleaseStack) Push(name string, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, releaseEntry{name: name, release: release})
}

func (s *ReleaseStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Release runs every registered release function, last pushed first.
func (s *ReleaseStack) Release() {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		core.LogDebug("Destroying %s (%s)", entries[i].name, s.name)
		entries[i].release()
	}
}
