// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

var (
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrNilParameter           = errors.New("nil parameter")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrInvalidCACert          = errors.New("invalid CA certificate")
	ErrUnsupportedAlg         = errors.New("unsupported signing algorithm")
	ErrIDGeneratorFailed      = errors.New("id generation failed")
	ErrInvalidState           = errors.New("invalid authorization state")
	ErrExpiredState           = errors.New("authorization state is expired")
	ErrCancelled              = errors.New("authentication cancelled by the user")
	ErrTimeout                = errors.New("browser round-trip timed out")
	ErrBrowser                = errors.New("browser round-trip failed")
	ErrNetwork                = errors.New("network error")
	ErrToken                  = errors.New("token request rejected")
	ErrValidation             = errors.New("id_token validation failed")
	ErrMissingIDToken         = errors.New("id_token is missing")
	ErrMissingAccessToken     = errors.New("access_token is missing")
	ErrInvalidNonce           = errors.New("invalid nonce")
	ErrInvalidAccessTokenHash = errors.New("invalid access_token hash")
	ErrLoginFailed            = errors.New("login failed")
	ErrUserInfoFailed         = errors.New("user info failed")
	ErrProviderDone           = errors.New("provider is done")
)

// AuthError is an authorization error response returned to the redirect URL.
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthError struct {
	Code        string
	Description string
	URI         string
}

// Error satisfies the error interface.
func (e *AuthError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrLoginFailed, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrLoginFailed, e.Code, e.Description)
}

// Is reports whether target is ErrLoginFailed.
func (e *AuthError) Is(target error) bool {
	return target == ErrLoginFailed
}

// tokenRequestError classifies an error returned by a token endpoint request.
// A response from the token endpoint is an ErrToken, anything else is an
// ErrNetwork.
func tokenRequestError(op, msg string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%s: %s: %w: %w", op, msg, ErrToken, err)
	}
	return fmt.Errorf("%s: %s: %w: %w", op, msg, ErrNetwork, err)
}
