// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkHttp "github.com/hashicorp/cap-auth0/sdk/http"
	"github.com/hashicorp/go-multierror"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Flow is the OIDC flow a Config is used for.
type Flow string

// AuthorizationCodePKCE is the authorization code flow with a PKCE S256
// code challenge. It is the only flow supported by the Provider.
const AuthorizationCodePKCE Flow = "authorization_code_pkce"

// ResponseMode defines how the authorization response is delivered to the
// redirect URL.
type ResponseMode string

const (
	// ResponseModeRedirect delivers the response as query parameters of a
	// redirect. It's the default for the code flow, so the response_mode
	// parameter is omitted from the authorization request.
	ResponseModeRedirect ResponseMode = "query"

	// ResponseModeFormPost delivers the response as an auto-submitting html
	// form which posts to the redirect URL.
	ResponseModeFormPost ResponseMode = "form_post"
)

// Policy defines optional id_token requirements beyond the required
// signature, issuer, audience, expiry and nonce checks.
type Policy struct {
	// RequireAccessTokenHash requires the id_token to carry an at_hash claim
	// which matches the access_token.
	RequireAccessTokenHash bool
}

// DefaultScopes are the scopes requested when none are configured.
var DefaultScopes = []string{ScopeOpenID}

// ScopeOpenID is the required oidc scope.
const ScopeOpenID = "openid"

// Config represents the configuration for an OIDC authorization code flow
// with PKCE.
type Config struct {
	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.
	Issuer string

	// ClientID is the relying party id.
	ClientID string

	// ClientSecret is the optional relying party secret. Native applications
	// are public clients and normally don't have one.
	ClientSecret ClientSecret

	// Scopes is the list of oidc scopes to request of the provider. The
	// required "openid" scope is always included.
	Scopes []string

	// RedirectURL is the URL the provider returns the authorization response
	// to.
	RedirectURL string

	// PostLogoutRedirectURL is the optional URL the provider returns to after
	// a logout.
	PostLogoutRedirectURL string

	// Flow is the oidc flow. Only AuthorizationCodePKCE is supported.
	Flow Flow

	// ResponseMode defines how the authorization response is delivered.
	ResponseMode ResponseMode

	// Policy defines optional id_token requirements.
	Policy Policy

	// LoadProfile requests the user's claims from the userinfo endpoint after
	// a successful login.
	LoadProfile bool

	// SupportedSigningAlgs is a list of supported signing algorithms. It
	// defaults to RS256.
	SupportedSigningAlgs []Alg

	// ProviderCA is an optional CA certs (PEM encoded) to use when sending
	// requests to the provider.
	ProviderCA string

	// NowFunc is a time func that returns the current time.
	NowFunc func() time.Time
}

// NewConfig composes a new config for a provider.
//
// Supported options: WithScopes, WithPostLogoutRedirectURL, WithResponseMode,
// WithPolicy, WithLoadProfile, WithSupportedSigningAlgs, WithProviderCA,
// WithNow
func NewConfig(issuer, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:                issuer,
		ClientID:              clientID,
		ClientSecret:          clientSecret,
		Scopes:                opts.withScopes,
		RedirectURL:           redirectURL,
		PostLogoutRedirectURL: opts.withPostLogoutRedirectURL,
		Flow:                  AuthorizationCodePKCE,
		ResponseMode:          opts.withResponseMode,
		Policy:                opts.withPolicy,
		LoadProfile:           opts.withLoadProfile,
		SupportedSigningAlgs:  opts.withSupportedSigningAlgs,
		ProviderCA:            opts.withProviderCA,
		NowFunc:               opts.withNowFunc,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration. Among other validations, it verifies
// the issuer is not empty, but it doesn't verify the Issuer is discoverable
// via an http request. Every failure is reported, and the returned error
// always wraps ErrInvalidConfiguration.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w: %w", op, ErrInvalidConfiguration, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client ID is empty: %w", ErrInvalidParameter))
	}
	switch {
	case c.Issuer == "":
		result = multierror.Append(result, fmt.Errorf("issuer is empty: %w", ErrInvalidParameter))
	default:
		u, err := url.Parse(c.Issuer)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("issuer %s is invalid: %w: %w", c.Issuer, ErrInvalidParameter, err))
		case u.Scheme != "https" && u.Scheme != "http":
			result = multierror.Append(result, fmt.Errorf("issuer %s schema is not http or https: %w", c.Issuer, ErrInvalidParameter))
		case u.RawQuery != "" || u.Fragment != "":
			result = multierror.Append(result, fmt.Errorf("issuer %s has a query or fragment: %w", c.Issuer, ErrInvalidParameter))
		}
	}
	if err := validRedirectURL(c.RedirectURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("redirect URL: %w", err))
	}
	if c.PostLogoutRedirectURL != "" {
		if err := validRedirectURL(c.PostLogoutRedirectURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("post logout redirect URL: %w", err))
		}
	}
	if c.Flow != AuthorizationCodePKCE {
		result = multierror.Append(result, fmt.Errorf("unsupported flow %q: %w", c.Flow, ErrInvalidParameter))
	}
	switch c.ResponseMode {
	case ResponseModeRedirect, ResponseModeFormPost:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported response mode %q: %w", c.ResponseMode, ErrInvalidParameter))
	}
	if len(c.SupportedSigningAlgs) == 0 {
		result = multierror.Append(result, fmt.Errorf("supported algorithms is empty: %w", ErrInvalidParameter))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("unsupported algorithm %q: %w", a, ErrUnsupportedAlg))
		}
	}
	if !containsScope(c.Scopes, ScopeOpenID) {
		result = multierror.Append(result, fmt.Errorf("scopes must include %q: %w", ScopeOpenID, ErrInvalidParameter))
	}
	if c.ProviderCA != "" {
		if _, err := c.HTTPClient(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidConfiguration, err)
	}
	return nil
}

// Now will return the current time which can be overridden by the NowFunc.
func (c *Config) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now() // fallback to this default
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := sdkHttp.NewClient(c.ProviderCA)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

func validRedirectURL(redirectURL string) error {
	if redirectURL == "" {
		return fmt.Errorf("url is empty: %w", ErrInvalidParameter)
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return fmt.Errorf("%q is invalid: %w: %w", redirectURL, ErrInvalidParameter, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%q is not absolute: %w", redirectURL, ErrInvalidParameter)
	}
	return nil
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if strings.EqualFold(s, scope) {
			return true
		}
	}
	return false
}

// configOptions is the set of available options
type configOptions struct {
	withScopes                []string
	withPostLogoutRedirectURL string
	withResponseMode          ResponseMode
	withPolicy                Policy
	withLoadProfile           bool
	withSupportedSigningAlgs  []Alg
	withProviderCA            string
	withNowFunc               func() time.Time
}

// configDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func configDefaults() configOptions {
	return configOptions{
		withScopes:               append([]string(nil), DefaultScopes...),
		withResponseMode:         ResponseModeRedirect,
		withSupportedSigningAlgs: []Alg{RS256},
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for the provider's config.
// The "openid" scope is prepended when it's missing.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			if len(scopes) == 0 {
				return
			}
			o.withScopes = make([]string, 0, len(scopes)+1)
			if !containsScope(scopes, ScopeOpenID) {
				o.withScopes = append(o.withScopes, ScopeOpenID)
			}
			o.withScopes = append(o.withScopes, scopes...)
		}
	}
}

// WithPostLogoutRedirectURL provides an optional post logout redirect URL for
// the provider's config.
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}

// WithResponseMode provides an optional response mode for the provider's
// config.
func WithResponseMode(m ResponseMode) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withResponseMode = m
		}
	}
}

// WithPolicy provides optional id_token requirements for the provider's
// config.
func WithPolicy(p Policy) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPolicy = p
		}
	}
}

// WithLoadProfile requests userinfo claims after a successful login.
func WithLoadProfile(load bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLoadProfile = load
		}
	}
}

// WithSupportedSigningAlgs provides an optional list of supported id_token
// signing algorithms for the provider's config.
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithProviderCA provides an optional CA certs (PEM encoded) for the
// provider's config.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}
