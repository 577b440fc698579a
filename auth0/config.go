// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth0

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/cap-auth0/browser"
	"github.com/hashicorp/cap-auth0/oidc"
	"github.com/hashicorp/cap-auth0/platform"
	"github.com/hashicorp/go-multierror"
)

// ErrInvalidConfiguration is returned when a Config is missing or invalid.
var ErrInvalidConfiguration = oidc.ErrInvalidConfiguration

// DefaultScopes are requested when a Config has no scopes.
var DefaultScopes = []string{"openid", "profile", "email"}

// Config is the configuration of a Client. The Client keeps a copy, so
// changing a Config after NewClient has no effect.
type Config struct {
	// Domain is the Auth0 tenant's domain, for example "example.auth0.com".
	Domain string `validate:"required,hostname_rfc1123|hostname_port"`

	// ClientID is the application's client ID.
	ClientID string `validate:"required"`

	// ClientSecret is the optional application secret. Native applications
	// are public clients and normally don't have one.
	ClientSecret oidc.ClientSecret

	// Scopes are the requested scopes. The "openid" scope is always
	// requested.
	Scopes []string

	// LoadProfile requests the user's claims from the userinfo endpoint
	// after a login.
	LoadProfile bool

	// RedirectURL overrides the platform's default redirect URL.
	RedirectURL string `validate:"omitempty,url"`

	// PostLogoutRedirectURL overrides the platform's default post logout
	// redirect URL.
	PostLogoutRedirectURL string `validate:"omitempty,url"`

	// EnableTelemetry adds the auth0Client parameter to authorization
	// requests.
	EnableTelemetry bool

	// Browser runs the browser round-trips. The system browser is used when
	// it's nil, which needs loopback http redirect URLs.
	Browser browser.Launcher `validate:"-"`

	// Platform is the platform the application runs on.
	Platform platform.Info `validate:"required"`
}

// NewConfig creates a Config with telemetry enabled, the Desktop platform
// and the DefaultScopes.
//
// Supported options: WithClientSecret, WithScopes, WithLoadProfile,
// WithRedirectURL, WithPostLogoutRedirectURL, WithTelemetry, WithBrowser,
// WithPlatform
func NewConfig(domain, clientID string, opt ...Option) (*Config, error) {
	const op = "auth0.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Domain:                domain,
		ClientID:              clientID,
		ClientSecret:          opts.withClientSecret,
		Scopes:                opts.withScopes,
		LoadProfile:           opts.withLoadProfile,
		RedirectURL:           opts.withRedirectURL,
		PostLogoutRedirectURL: opts.withPostLogoutRedirectURL,
		EnableTelemetry:       opts.withTelemetry,
		Browser:               opts.withBrowser,
		Platform:              opts.withPlatform,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate the config. Every failure is reported and the returned error
// always wraps ErrInvalidConfiguration.
func (c *Config) Validate() error {
	const op = "auth0.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w: %w", op, ErrInvalidConfiguration, oidc.ErrNilParameter)
	}
	var result *multierror.Error
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidConfiguration, err)
		}
		for _, fe := range verrs {
			result = multierror.Append(result, fmt.Errorf("%s failed the %q check: %w", fe.Field(), fe.Tag(), oidc.ErrInvalidParameter))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidConfiguration, err)
	}
	return nil
}

// issuer is the tenant's authority.
func (c *Config) issuer() string {
	return fmt.Sprintf("https://%s/", c.Domain)
}

func (c *Config) clone() Config {
	cp := *c
	cp.Scopes = append([]string(nil), c.Scopes...)
	return cp
}

// configOptions is the set of available options for a Config
type configOptions struct {
	withClientSecret          oidc.ClientSecret
	withScopes                []string
	withLoadProfile           bool
	withRedirectURL           string
	withPostLogoutRedirectURL string
	withTelemetry             bool
	withBrowser               browser.Launcher
	withPlatform              platform.Info
}

func configDefaults() configOptions {
	return configOptions{
		withScopes:    append([]string(nil), DefaultScopes...),
		withTelemetry: true,
		withPlatform:  platform.Desktop{},
	}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClientSecret provides an optional client secret.
func WithClientSecret(secret oidc.ClientSecret) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClientSecret = secret
		}
	}
}

// WithScopes provides optional scopes, replacing the DefaultScopes.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && len(scopes) > 0 {
			o.withScopes = scopes
		}
	}
}

// WithLoadProfile requests the userinfo claims after a login.
func WithLoadProfile(load bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLoadProfile = load
		}
	}
}

// WithRedirectURL provides an optional explicit redirect URL.
func WithRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRedirectURL = u
		}
	}
}

// WithPostLogoutRedirectURL provides an optional explicit post logout
// redirect URL.
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}

// WithTelemetry enables or disables the auth0Client parameter.
func WithTelemetry(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTelemetry = enabled
		}
	}
}

// WithBrowser provides an optional browser launcher.
func WithBrowser(l browser.Launcher) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withBrowser = l
		}
	}
}

// WithPlatform provides the platform, replacing the default Desktop.
func WithPlatform(p platform.Info) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPlatform = p
		}
	}
}
