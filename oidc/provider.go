// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-auth0/browser"
	sdkHttp "github.com/hashicorp/cap-auth0/sdk/http"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
)

const (
	// DefaultStateExpiry is how long an AuthorizationState can be processed.
	DefaultStateExpiry = 10 * time.Minute

	// DefaultMaxPendingStates is the number of AuthorizationStates waiting
	// for a response that a Provider keeps. The least recently prepared state
	// is forgotten when it's exceeded.
	DefaultMaxPendingStates = 100
)

// Provider is the default Engine. It uses golang.org/x/oauth2 to build the
// authorization request, generate the PKCE code verifier and challenge and
// call the token endpoint, and github.com/coreos/go-oidc to discover the
// provider and verify id_tokens.
//
// Discovery happens on first use, so creating a Provider makes no http
// requests.
type Provider struct {
	config      *Config
	client      *http.Client
	logger      hclog.Logger
	stateExpiry time.Duration

	// pending are the prepared states waiting for a response, by state. A
	// state is removed when it's processed, so it can only be used once.
	pending *lru.Cache[string, *AuthorizationState]

	// discovering holds a token while discovery is in flight. mu is never
	// held across http requests.
	discovering chan struct{}

	mu       sync.Mutex
	provider *oidc.Provider
	done     bool
}

var _ Engine = (*Provider)(nil)

// NewProvider creates a Provider for the OIDC authorization code flow with
// PKCE. The config is copied.
//
// Supported options: WithLogger, WithStateExpiry, WithMaxPendingStates
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)
	if opts.withStateExpiry <= 0 {
		return nil, fmt.Errorf("%s: state expiry must be greater than zero: %w", op, ErrInvalidParameter)
	}
	pending, err := lru.New[string, *AuthorizationState](opts.withMaxPendingStates)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create pending states: %w: %w", op, ErrInvalidParameter, err)
	}
	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	cfg := *c
	cfg.Scopes = append([]string(nil), c.Scopes...)
	cfg.SupportedSigningAlgs = append([]Alg(nil), c.SupportedSigningAlgs...)

	return &Provider{
		config:      &cfg,
		client:      client,
		logger:      opts.withLogger,
		stateExpiry: opts.withStateExpiry,
		pending:     pending,
		discovering: make(chan struct{}, 1),
	}, nil
}

// Done with the provider's resources. Pending states are forgotten and any
// further use returns ErrProviderDone.
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	p.pending.Purge()
}

// discover the provider, once. Concurrent callers wait for the discovery in
// flight, or until their context is done.
func (p *Provider) discover(ctx context.Context) (*oidc.Provider, error) {
	const op = "Provider.discover"
	if provider, err := p.discovered(); provider != nil || err != nil {
		return provider, err
	}
	select {
	case p.discovering <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: waiting for discovery of %s: %w: %w", op, p.config.Issuer, ErrNetwork, ctx.Err())
	}
	defer func() { <-p.discovering }()
	if provider, err := p.discovered(); provider != nil || err != nil {
		return provider, err
	}

	// the key set keeps the http client from this context, but not its
	// deadline or cancellation.
	provider, err := oidc.NewProvider(sdkHttp.ClientContext(ctx, p.client), p.config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover provider %s: %w: %w", op, p.config.Issuer, ErrNetwork, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, fmt.Errorf("%s: %w", op, ErrProviderDone)
	}
	p.logger.Debug("discovered provider", "op", op, "issuer", p.config.Issuer)
	p.provider = provider
	return provider, nil
}

// discovered returns the provider when it's already discovered, or
// ErrProviderDone.
func (p *Provider) discovered() (*oidc.Provider, error) {
	const op = "Provider.discover"
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, fmt.Errorf("%s: %w", op, ErrProviderDone)
	}
	return p.provider, nil
}

func (p *Provider) oauth2Config(provider *oidc.Provider) *oauth2.Config {
	endpoint := provider.Endpoint()
	if p.config.ClientSecret == "" {
		// public clients identify themselves in the request body
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       p.config.Scopes,
	}
}

// PrepareLogin creates the AuthorizationState of a login and remembers it
// until it's processed or expires. The params must not include any
// parameter set by the Provider: state, nonce, code_challenge,
// code_challenge_method, response_type, response_mode, client_id,
// redirect_uri or scope.
func (p *Provider) PrepareLogin(ctx context.Context, params Params) (*AuthorizationState, error) {
	const op = "Provider.PrepareLogin"
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	provider, err := p.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s, err := newAuthorizationState(p.config.RedirectURL, p.stateExpiry, WithNow(p.config.NowFunc))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create authorization state: %w", op, err)
	}
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(s.Nonce()),
		oauth2.S256ChallengeOption(s.CodeVerifier()),
	}
	if p.config.ResponseMode == ResponseModeFormPost {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("response_mode", string(ResponseModeFormPost)))
	}
	authCodeOpts = append(authCodeOpts, params.authCodeOptions()...)
	s.startURL = p.oauth2Config(provider).AuthCodeURL(s.State(), authCodeOpts...)

	p.pending.Add(s.State(), s)
	p.logger.Debug("prepared login", "op", op, "state", s.State())
	return s, nil
}

// Login prepares a login, runs the browser round-trip with the request's
// launcher and processes the response. A cancelled round-trip returns
// ErrCancelled, a timed out one ErrTimeout, and any other unsuccessful one
// ErrBrowser.
func (p *Provider) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	const op = "Provider.Login"
	switch {
	case req == nil:
		return nil, fmt.Errorf("%s: login request is nil: %w", op, ErrNilParameter)
	case req.Browser == nil:
		return nil, fmt.Errorf("%s: browser is nil: %w", op, ErrNilParameter)
	}
	s, err := p.PrepareLogin(ctx, req.Params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := req.Browser.Invoke(ctx, &browser.Request{
		StartURL:    s.StartURL(),
		EndURL:      s.RedirectURL(),
		Timeout:     req.Timeout,
		DisplayMode: req.DisplayMode,
	})
	if err != nil {
		p.pending.Remove(s.State())
		return nil, fmt.Errorf("%s: %w: %w", op, ErrBrowser, err)
	}
	if res == nil {
		p.pending.Remove(s.State())
		return nil, fmt.Errorf("%s: browser result is nil: %w", op, ErrBrowser)
	}
	switch res.Type {
	case browser.Success:
		result, err := p.ProcessResponse(ctx, res.Response, s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return result, nil
	case browser.UserCancel:
		p.pending.Remove(s.State())
		return nil, fmt.Errorf("%s: %w", op, ErrCancelled)
	case browser.Timeout:
		p.pending.Remove(s.State())
		return nil, fmt.Errorf("%s: %w", op, ErrTimeout)
	default:
		p.pending.Remove(s.State())
		return nil, fmt.Errorf("%s: %s: %s: %w", op, res.Type, res.Error, ErrBrowser)
	}
}

// ProcessResponse completes a login. The data is the URL the browser was
// redirected to, with the response in its query or fragment, or the
// form-encoded body of a form_post response. Empty data means the user
// abandoned the login and returns ErrCancelled.
//
// The state must be one returned by PrepareLogin which hasn't been processed
// yet, otherwise ErrInvalidState is returned. The state is consumed even
// when processing fails. An error response without a state returns its
// AuthError wrapped with ErrInvalidState.
func (p *Provider) ProcessResponse(ctx context.Context, data string, s *AuthorizationState) (*LoginResult, error) {
	const op = "Provider.ProcessResponse"
	if s == nil {
		return nil, fmt.Errorf("%s: authorization state is nil: %w: %w", op, ErrInvalidState, ErrNilParameter)
	}
	if pending, ok := p.pending.Peek(s.State()); !ok || pending != s {
		return nil, fmt.Errorf("%s: unknown or already processed state: %w", op, ErrInvalidState)
	}
	if !p.pending.Remove(s.State()) {
		// processed concurrently
		return nil, fmt.Errorf("%s: unknown or already processed state: %w", op, ErrInvalidState)
	}
	if s.IsExpired() {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidState, ErrExpiredState)
	}
	if strings.TrimSpace(data) == "" {
		return nil, fmt.Errorf("%s: empty response: %w", op, ErrCancelled)
	}
	values, err := parseResponse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var authErr *AuthError
	if code := values.Get("error"); code != "" {
		authErr = &AuthError{
			Code:        code,
			Description: values.Get("error_description"),
			URI:         values.Get("error_uri"),
		}
	}
	switch got := values.Get("state"); {
	case got == "" && authErr != nil:
		// some errors are reported before the state is known
		return nil, fmt.Errorf("%s: error response without a state: %w: %w", op, ErrInvalidState, authErr)
	case got != s.State():
		return nil, fmt.Errorf("%s: response state doesn't match: %w", op, ErrInvalidState)
	case authErr != nil:
		return nil, fmt.Errorf("%s: %w", op, authErr)
	}
	code := values.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%s: response is missing the code: %w", op, ErrInvalidParameter)
	}

	provider, err := p.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	oidcCtx := sdkHttp.ClientContext(ctx, p.client)
	oauth2Token, err := p.oauth2Config(provider).Exchange(oidcCtx, code, oauth2.VerifierOption(s.CodeVerifier()))
	if err != nil {
		return nil, tokenRequestError(op, "unable to exchange auth code with provider", err)
	}
	if oauth2Token.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is missing from auth code exchange: %w: %w", op, ErrToken, ErrMissingAccessToken)
	}
	rawIDToken, _ := oauth2Token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w: %w", op, ErrValidation, ErrMissingIDToken)
	}
	idToken, claims, err := p.verifyIDToken(oidcCtx, provider, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if idToken.Nonce != s.Nonce() {
		return nil, fmt.Errorf("%s: id_token nonce doesn't match: %w: %w", op, ErrValidation, ErrInvalidNonce)
	}
	if err := p.verifyAccessToken(idToken, oauth2Token.AccessToken); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &LoginResult{
		Token:         newToken(oauth2Token, IDToken(rawIDToken)),
		IDTokenClaims: claims,
		User:          make(map[string]interface{}, len(claims)),
		AuthTime:      authTime(claims),
	}
	for k, v := range claims {
		result.User[k] = v
	}
	if p.config.LoadProfile {
		if err := p.loadProfile(oidcCtx, provider, oauth2Token, idToken.Subject, result.User); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	p.logger.Debug("processed login response", "op", op, "state", s.State(), "subject", idToken.Subject)
	return result, nil
}

// RefreshToken exchanges the refresh_token for a new set of tokens. A
// returned id_token is verified. Calls share no state besides the discovered
// provider.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken RefreshToken) (*RefreshTokenResult, error) {
	const op = "Provider.RefreshToken"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh_token is empty: %w", op, ErrInvalidParameter)
	}
	provider, err := p.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	oidcCtx := sdkHttp.ClientContext(ctx, p.client)
	ts := p.oauth2Config(provider).TokenSource(oidcCtx, &oauth2.Token{RefreshToken: string(refreshToken)})
	oauth2Token, err := ts.Token()
	if err != nil {
		return nil, tokenRequestError(op, "unable to refresh token", err)
	}
	result := &RefreshTokenResult{}
	rawIDToken, _ := oauth2Token.Extra("id_token").(string)
	if rawIDToken != "" {
		idToken, claims, err := p.verifyIDToken(oidcCtx, provider, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := p.verifyAccessToken(idToken, oauth2Token.AccessToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result.IDTokenClaims = claims
	}
	result.Token = newToken(oauth2Token, IDToken(rawIDToken))
	p.logger.Debug("refreshed token", "op", op)
	return result, nil
}

// verifyIDToken verifies the id_token's signature, issuer, audience and
// expiry. See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) verifyIDToken(ctx context.Context, provider *oidc.Provider, rawIDToken string) (*oidc.IDToken, map[string]interface{}, error) {
	const op = "Provider.verifyIDToken"
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientID,
		SupportedSigningAlgs: algs,
		Now:                  p.config.Now,
	})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: invalid id_token: %w: %w", op, ErrValidation, err)
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("%s: unable to get id_token claims: %w: %w", op, ErrValidation, err)
	}
	return idToken, claims, nil
}

// verifyAccessToken checks the id_token's at_hash claim when present. It's
// required when the policy says so.
func (p *Provider) verifyAccessToken(idToken *oidc.IDToken, accessToken string) error {
	const op = "Provider.verifyAccessToken"
	if idToken.AccessTokenHash == "" {
		if p.config.Policy.RequireAccessTokenHash {
			return fmt.Errorf("%s: id_token is missing the at_hash claim: %w: %w", op, ErrValidation, ErrInvalidAccessTokenHash)
		}
		return nil
	}
	if err := idToken.VerifyAccessToken(accessToken); err != nil {
		return fmt.Errorf("%s: %w: %w: %w", op, ErrValidation, ErrInvalidAccessTokenHash, err)
	}
	return nil
}

// loadProfile merges the userinfo claims into user. It's skipped when the
// provider doesn't publish a userinfo endpoint.
func (p *Provider) loadProfile(ctx context.Context, provider *oidc.Provider, tk *oauth2.Token, subject string, user map[string]interface{}) error {
	const op = "Provider.loadProfile"
	if provider.UserInfoEndpoint() == "" {
		p.logger.Debug("provider has no userinfo endpoint", "op", op)
		return nil
	}
	userInfo, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(tk))
	if err != nil {
		return fmt.Errorf("%s: provider UserInfo request failed: %w: %w", op, ErrUserInfoFailed, err)
	}
	// See: https://openid.net/specs/openid-connect-core-1_0.html#UserInfoResponse
	if userInfo.Subject != subject {
		return fmt.Errorf("%s: userinfo subject doesn't match the id_token: %w", op, ErrUserInfoFailed)
	}
	var claims map[string]interface{}
	if err := userInfo.Claims(&claims); err != nil {
		return fmt.Errorf("%s: failed to get UserInfo claims: %w: %w", op, ErrUserInfoFailed, err)
	}
	for k, v := range claims {
		user[k] = v
	}
	return nil
}

// parseResponse returns the authorization response parameters of a redirect
// URL or a form-encoded body.
func parseResponse(data string) (url.Values, error) {
	const op = "parseResponse"
	if strings.Contains(data, "://") {
		u, err := url.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid response url: %w: %w", op, ErrInvalidParameter, err)
		}
		values := u.Query()
		if values.Get("state") == "" && u.Fragment != "" {
			if values, err = url.ParseQuery(u.Fragment); err != nil {
				return nil, fmt.Errorf("%s: invalid response fragment: %w: %w", op, ErrInvalidParameter, err)
			}
		}
		return values, nil
	}
	values, err := url.ParseQuery(strings.TrimPrefix(data, "?"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid response body: %w: %w", op, ErrInvalidParameter, err)
	}
	return values, nil
}

func authTime(claims map[string]interface{}) time.Time {
	if v, ok := claims["auth_time"].(float64); ok {
		return time.Unix(int64(v), 0)
	}
	return time.Time{}
}

// providerOptions is the set of available options for the Provider
type providerOptions struct {
	withLogger           hclog.Logger
	withStateExpiry      time.Duration
	withMaxPendingStates int
}

// providerDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func providerDefaults() providerOptions {
	return providerOptions{
		withLogger:           hclog.NewNullLogger(),
		withStateExpiry:      DefaultStateExpiry,
		withMaxPendingStates: DefaultMaxPendingStates,
	}
}

// getProviderOpts gets the provider defaults and applies the opt overrides
// passed in
func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithStateExpiry provides an optional AuthorizationState expiry for:
// Provider
func WithStateExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withStateExpiry = d
		}
	}
}

// WithMaxPendingStates provides an optional maximum number of
// AuthorizationStates waiting for a response for: Provider
func WithMaxPendingStates(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withMaxPendingStates = n
		}
	}
}
