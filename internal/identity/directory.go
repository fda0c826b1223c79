// Package identity is the boundary to the user directory. The core only
// ever asks two questions: does this user exist, and what is their display
// name. There is no challenge/response; existence is the whole check.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/atriumspace/atrium/internal/domain"
)

// PlaceholderName is used whenever a display-name lookup fails; chat
// delivery must never fail on a missing name.
const PlaceholderName = "Anonymous"

var ErrUnknownUser = errors.New("unknown user")

type Directory interface {
	Exists(ctx context.Context, id domain.UserID) (bool, error)
	DisplayName(ctx context.Context, id domain.UserID) (string, error)
}

// MemoryDirectory is an in-process Directory used by the dev server and
// tests. With Open set, any non-empty id passes the existence check but
// still has no display name unless added.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[domain.UserID]string

	Open bool
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[domain.UserID]string)}
}

func (d *MemoryDirectory) Add(id domain.UserID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = name
}

func (d *MemoryDirectory) Exists(_ context.Context, id domain.UserID) (bool, error) {
	if id == "" {
		return false, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.users[id]; ok {
		return true, nil
	}
	return d.Open, nil
}

func (d *MemoryDirectory) DisplayName(_ context.Context, id domain.UserID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.users[id]
	if !ok {
		return "", ErrUnknownUser
	}
	return name, nil
}
