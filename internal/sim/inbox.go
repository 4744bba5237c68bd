package sim

import (
	"context"
	"sync"
)

// Command is a staged change produced off the tick goroutine,
// applied at the start of the next step
type Command func(ctx context.Context) error

// Inbox buffers commands between network handlers and the tick loop
type Inbox struct {
	mu      sync.Mutex
	pending []Command
}

// NewInbox creates an empty inbox
func NewInbox() *Inbox {
	return &Inbox{}
}

// Enqueue stages a command for the next step
func (i *Inbox) Enqueue(cmd Command) {
	i.mu.Lock()
	i.pending = append(i.pending, cmd)
	i.mu.Unlock()
}

// Drain removes and returns all staged commands in arrival order
func (i *Inbox) Drain() []Command {
	i.mu.Lock()
	defer i.mu.Unlock()
	cmds := i.pending
	i.pending = nil
	return cmds
}

// Len returns the number of staged commands
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}
