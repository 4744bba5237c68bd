package client

import (
	"sync"

	"github.com/mcoot/cubegame/internal/services/movement"
)

// InputSource reports which movement keys are held
type InputSource interface {
	Keys() movement.Keys
}

// KeyState is an InputSource updated from another goroutine
type KeyState struct {
	mu   sync.Mutex
	keys movement.Keys
}

// Set replaces the held keys
func (k *KeyState) Set(keys movement.Keys) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = keys
}

// Keys implements InputSource
func (k *KeyState) Keys() movement.Keys {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keys
}
