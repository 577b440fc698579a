// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"time"

	"github.com/hashicorp/cap-auth0/browser"
)

// Engine performs the authorization code flow with PKCE: building the
// authorization request, bookkeeping of state, nonce and code verifier, the
// token exchange, refreshes and id_token validation. *Provider is the
// default implementation.
type Engine interface {
	// Login runs an interactive login with the request's browser launcher.
	Login(ctx context.Context, req *LoginRequest) (*LoginResult, error)

	// PrepareLogin creates the AuthorizationState of a login without
	// invoking a browser. The caller navigates to its StartURL and passes
	// the callback to ProcessResponse.
	PrepareLogin(ctx context.Context, params Params) (*AuthorizationState, error)

	// ProcessResponse completes a login with the callback data: a redirect
	// URL carrying the response in its query or fragment, or a form_post
	// body.
	ProcessResponse(ctx context.Context, data string, state *AuthorizationState) (*LoginResult, error)

	// RefreshToken exchanges a refresh_token for a new set of tokens.
	RefreshToken(ctx context.Context, refreshToken RefreshToken) (*RefreshTokenResult, error)
}

// LoginRequest is an interactive login.
type LoginRequest struct {
	// Params are extra authorization request parameters.
	Params Params

	// Browser navigates to the authorization URL and returns the callback.
	Browser browser.Launcher

	// Timeout of the browser round-trip. Zero means no timeout.
	Timeout time.Duration

	// DisplayMode of the browser.
	DisplayMode browser.DisplayMode
}

// LoginResult is a successful login.
type LoginResult struct {
	// Token is the set of tokens returned by the token endpoint.
	Token *Token

	// IDTokenClaims are the verified id_token's claims.
	IDTokenClaims map[string]interface{}

	// User are the id_token's claims merged with the userinfo claims when
	// the profile is loaded.
	User map[string]interface{}

	// AuthTime is the id_token's auth_time claim, if present.
	AuthTime time.Time
}

// RefreshTokenResult is a successful refresh.
type RefreshTokenResult struct {
	// Token is the set of tokens returned by the token endpoint. The
	// refresh_token is the previous one when the token endpoint doesn't
	// rotate it.
	Token *Token

	// IDTokenClaims are the verified id_token's claims, when the token
	// endpoint returns a new id_token.
	IDTokenClaims map[string]interface{}
}
