// Package control holds the process-wide operator command and the TCP
// listener that sets it.
package control

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/entrhq/booker/pkg/types"
)

// State is the single shared control value. Writers never block; the last
// write wins. Readers poll with Get or block with Wait.
type State struct {
	cmd atomic.Int32

	mu      sync.Mutex
	changed chan struct{}
}

// NewState creates a state holding CommandResume.
func NewState() *State {
	return &State{changed: make(chan struct{})}
}

// Set stores cmd and wakes every waiter.
func (s *State) Set(cmd types.ControlCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cmd.Store(int32(cmd))
	close(s.changed)
	s.changed = make(chan struct{})
}

// Get returns the current command without blocking.
func (s *State) Get() types.ControlCommand {
	return types.ControlCommand(s.cmd.Load())
}

// Changed returns a channel that is closed by the next Set.
func (s *State) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Wait returns immediately unless the command is pause, in which case it
// blocks until the command becomes resume or stop, or ctx is done.
func (s *State) Wait(ctx context.Context) (types.ControlCommand, error) {
	for {
		ch := s.Changed()
		if cmd := s.Get(); cmd != types.CommandPause {
			return cmd, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s.Get(), ctx.Err()
		}
	}
}
