// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultStateExpirySkew defines a default time skew when checking a
// AuthorizationState's expiration.
const DefaultStateExpirySkew = 1 * time.Second

// AuthorizationState represents one authorization code flow for a user. It's
// produced by PrepareLogin and must be passed back unmodified, exactly once,
// to ProcessResponse. The state and nonce are never equal, and are used to
// prevent CSRF and replay attacks. The code verifier is the PKCE secret
// bound to the code challenge sent in the StartURL.
type AuthorizationState struct {
	state        string
	nonce        string
	codeVerifier string
	redirectURL  string
	startURL     string
	createTime   time.Time
	expiration   time.Time
	nowFunc      func() time.Time
}

// newAuthorizationState creates a new state with a random state, nonce and
// code verifier. The startURL is set by the caller once the authorization
// URL is built.
//
// Supported options: WithNow
func newAuthorizationState(redirectURL string, expireIn time.Duration, opt ...Option) (*AuthorizationState, error) {
	const op = "newAuthorizationState"
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getStateOpts(opt...)
	state, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's state: %w", op, err)
	}
	nonce, err := NewID(WithPrefix("n"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %w", op, err)
	}
	now := opts.withNowFunc()
	return &AuthorizationState{
		state:        state,
		nonce:        nonce,
		codeVerifier: oauth2.GenerateVerifier(),
		redirectURL:  redirectURL,
		createTime:   now,
		expiration:   now.Add(expireIn),
		nowFunc:      opts.withNowFunc,
	}, nil
}

// State is the opaque value sent as the state parameter.
func (s *AuthorizationState) State() string { return s.state }

// Nonce is the value sent as the nonce parameter and expected in the
// id_token's nonce claim.
func (s *AuthorizationState) Nonce() string { return s.nonce }

// CodeVerifier is the PKCE code verifier.
func (s *AuthorizationState) CodeVerifier() string { return s.codeVerifier }

// RedirectURL is the redirect URL sent in the authorization request.
func (s *AuthorizationState) RedirectURL() string { return s.redirectURL }

// StartURL is the authorization URL to navigate to.
func (s *AuthorizationState) StartURL() string { return s.startURL }

// CreateTime is the state's creation time.
func (s *AuthorizationState) CreateTime() time.Time { return s.createTime }

// Expiration is the state's expiration.
func (s *AuthorizationState) Expiration() time.Time { return s.expiration }

// IsExpired returns true if the state has expired. Supports the WithNow and
// WithExpirySkew options, the skew defaults to DefaultStateExpirySkew.
func (s *AuthorizationState) IsExpired(opt ...Option) bool {
	defaults := []Option{WithNow(s.nowFunc)}
	opts := getStateOpts(append(defaults, opt...)...)
	return s.expiration.Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// stateOptions is the set of available options for AuthorizationState
// functions
type stateOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

// stateDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func stateDefaults() stateOptions {
	return stateOptions{
		withExpirySkew: DefaultStateExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getStateOpts gets the state defaults and applies the opt overrides passed in
func getStateOpts(opt ...Option) stateOptions {
	opts := stateDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
