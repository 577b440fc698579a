// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"golang.org/x/oauth2"
)

// DefaultTokenExpirySkew defines a time skew when checking a Token's
// expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// Token is the set of tokens returned by a token endpoint.
type Token struct {
	AccessToken  AccessToken
	RefreshToken RefreshToken
	IDToken      IDToken
	TokenType    string

	// Expiry is the access_token's expiration. A zero value means it never
	// expires.
	Expiry time.Time
}

// newToken converts an oauth2 token response. The id_token is passed
// separately since it's been verified by the caller.
func newToken(tk *oauth2.Token, idToken IDToken) *Token {
	return &Token{
		AccessToken:  AccessToken(tk.AccessToken),
		RefreshToken: RefreshToken(tk.RefreshToken),
		IDToken:      idToken,
		TokenType:    tk.Type(),
		Expiry:       tk.Expiry,
	}
}

// Expired will return true if the token is expired. Supports the WithNow and
// WithExpirySkew options, the skew defaults to DefaultTokenExpirySkew.
func (t *Token) Expired(opt ...Option) bool {
	if t == nil || t.Expiry.IsZero() {
		return false
	}
	opts := getTokenOpts(opt...)
	return t.Expiry.Round(0).Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// Valid will ensure that the access_token is not empty or expired. Supports
// the WithNow and WithExpirySkew options.
func (t *Token) Valid(opt ...Option) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return !t.Expired(opt...)
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

// tokenDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: DefaultTokenExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// claimsAlgorithms are the header algs accepted when reading claims. The
// signature isn't verified, so symmetric algs are included.
var claimsAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.EdDSA,
	jose.HS256, jose.HS384, jose.HS512,
}

// UnmarshalClaims will retrieve the claims from the provided raw JWT token
// without verifying the signature. Claim names are matched case sensitively,
// so struct fields need json tags with the exact claim names.
func UnmarshalClaims(rawToken string, claims interface{}) error {
	const op = "UnmarshalClaims"
	tk, err := jwt.ParseSigned(rawToken, claimsAlgorithms)
	if err != nil {
		return fmt.Errorf("%s: malformed jwt: %w: %w", op, ErrInvalidParameter, err)
	}
	if err := tk.UnsafeClaimsWithoutVerification(claims); err != nil {
		return fmt.Errorf("%s: unable to unmarshal jwt payload: %w: %w", op, ErrInvalidParameter, err)
	}
	return nil
}
