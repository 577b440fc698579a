// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/cap-auth0/oidc"
)

// StateReader defines an interface for finding and reading an
// oidc.AuthorizationState. Implementations must be concurrently safe, since
// the reader will likely be used within a concurrent http.Handler
type StateReader interface {
	// Read an existing state. The returned state's State() must match the
	// state used to look it up. A state that isn't found returns an error
	// wrapping oidc.ErrInvalidState.
	Read(ctx context.Context, state string) (*oidc.AuthorizationState, error)
}

// SingleStateReader implements the StateReader interface for a single state.
// It is concurrently safe.
type SingleStateReader struct {
	State *oidc.AuthorizationState
}

// Read returns its single state if the state matches its State(). It
// satisfies the StateReader interface.
func (s *SingleStateReader) Read(_ context.Context, state string) (*oidc.AuthorizationState, error) {
	const op = "callback.(SingleStateReader).Read"
	if s.State == nil || s.State.State() != state {
		return nil, fmt.Errorf("%s: state not found: %w", op, oidc.ErrInvalidState)
	}
	return s.State, nil
}

// StateCache implements the StateReader interface for any number of states.
// States are added by the caller after PrepareLogin and taken out when
// they're read, so each can only be read once. It is concurrently safe.
type StateCache struct {
	mu     sync.Mutex
	states map[string]*oidc.AuthorizationState
}

// Add a state to the cache.
func (c *StateCache) Add(s *oidc.AuthorizationState) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = map[string]*oidc.AuthorizationState{}
	}
	c.states[s.State()] = s
}

// Read removes and returns the state. It satisfies the StateReader interface.
func (c *StateCache) Read(_ context.Context, state string) (*oidc.AuthorizationState, error) {
	const op = "callback.(StateCache).Read"
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[state]
	if !ok {
		return nil, fmt.Errorf("%s: state not found: %w", op, oidc.ErrInvalidState)
	}
	delete(c.states, state)
	return s, nil
}
