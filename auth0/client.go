// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth0

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hashicorp/cap-auth0/browser"
	"github.com/hashicorp/cap-auth0/oidc"
	"github.com/hashicorp/cap-auth0/platform"
	"github.com/hashicorp/cap-auth0/telemetry"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client signs users in to an Auth0 tenant, refreshes their tokens and signs
// them out. It resolves the platform's redirect URLs, adds the telemetry
// parameter and delegates the protocol to an oidc.Engine.
type Client struct {
	config                Config
	redirectURL           string
	postLogoutRedirectURL string
	telemetry             string

	engine  oidc.Engine
	browser browser.Launcher
	logger  hclog.Logger
	tracer  trace.Tracer

	loginRequest  BrowserOptions
	logoutRequest BrowserOptions
}

// NewClient creates a Client for the config, which is copied. The redirect
// URLs are resolved from the config's platform unless they're set
// explicitly. Without a configured Browser, the system browser is used and
// both redirect URLs must be loopback http URLs with a port. No requests are
// made to the tenant until the client is used.
//
// Supported options: WithEngine, WithLogger, WithTracerProvider,
// WithLoginRequest, WithLogoutRequest, WithProviderCA
func NewClient(ctx context.Context, cfg *Config, opt ...Option) (*Client, error) {
	const op = "auth0.NewClient"
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c := cfg.clone()
	opts := getClientOpts(opt...)

	redirectURL, err := platform.ResolveRedirectURL(ctx, c.RedirectURL, c.Domain, c.Platform)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to resolve redirect url: %w: %w", op, ErrInvalidConfiguration, err)
	}
	postLogoutRedirectURL, err := platform.ResolvePostLogoutRedirectURL(ctx, c.PostLogoutRedirectURL, c.Domain, c.Platform)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to resolve post logout redirect url: %w: %w", op, ErrInvalidConfiguration, err)
	}

	if c.Browser == nil {
		// the system browser only observes loopback callbacks
		for _, u := range []string{redirectURL, postLogoutRedirectURL} {
			if err := browser.ValidateLoopbackURL(u); err != nil {
				return nil, fmt.Errorf("%s: set a loopback redirect url or a browser for the %s platform: %w: %w", op, c.Platform.Tag(), ErrInvalidConfiguration, err)
			}
		}
	}

	var encoded string
	if c.EnableTelemetry {
		if encoded, err = telemetry.Encode(telemetry.Name, telemetry.Version, c.Platform.Tag()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	engine := opts.withEngine
	if engine == nil {
		mode := oidc.ResponseModeRedirect
		if !c.Platform.Redirectable() {
			mode = oidc.ResponseModeFormPost
		}
		oc, err := oidc.NewConfig(c.issuer(), c.ClientID, c.ClientSecret, redirectURL,
			oidc.WithScopes(c.Scopes...),
			oidc.WithPostLogoutRedirectURL(postLogoutRedirectURL),
			oidc.WithResponseMode(mode),
			oidc.WithPolicy(oidc.Policy{}),
			oidc.WithLoadProfile(c.LoadProfile),
			oidc.WithProviderCA(opts.withProviderCA),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p, err := oidc.NewProvider(oc, oidc.WithLogger(opts.withLogger.Named("oidc")))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		engine = p
	}

	l := c.Browser
	if l == nil {
		l = browser.NewSystemLauncher(browser.WithLogger(opts.withLogger.Named("browser")))
	}

	opts.withLogger.Debug("client created", "domain", c.Domain, "platform", c.Platform.Tag(), "redirect_url", redirectURL)
	return &Client{
		config:                c,
		redirectURL:           redirectURL,
		postLogoutRedirectURL: postLogoutRedirectURL,
		telemetry:             encoded,
		engine:                engine,
		browser:               l,
		logger:                opts.withLogger,
		tracer:                opts.withTracerProvider.Tracer(tracerName),
		loginRequest:          opts.withLoginRequest,
		logoutRequest:         opts.withLogoutRequest,
	}, nil
}

// RedirectURL is the resolved redirect URL.
func (c *Client) RedirectURL() string { return c.redirectURL }

// PostLogoutRedirectURL is the resolved post logout redirect URL.
func (c *Client) PostLogoutRedirectURL() string { return c.postLogoutRedirectURL }

// Login signs the user in with the client's browser. The extra params are
// added to the authorization request.
func (c *Client) Login(ctx context.Context, extra oidc.Params) (*oidc.LoginResult, error) {
	ctx, span := c.tracer.Start(ctx, "auth0.Login")
	defer span.End()
	res, err := c.engine.Login(ctx, &oidc.LoginRequest{
		Params:      c.requestParams(extra),
		Browser:     c.browser,
		Timeout:     c.loginRequest.Timeout,
		DisplayMode: c.loginRequest.DisplayMode,
	})
	if err != nil {
		c.logger.Debug("login failed", "error", err)
		recordError(span, err)
		return nil, err
	}
	return res, nil
}

// PrepareLogin creates the state of a login the caller completes itself: it
// navigates to the state's StartURL and passes the callback to
// ProcessResponse.
func (c *Client) PrepareLogin(ctx context.Context, extra oidc.Params) (*oidc.AuthorizationState, error) {
	ctx, span := c.tracer.Start(ctx, "auth0.PrepareLogin")
	defer span.End()
	s, err := c.engine.PrepareLogin(ctx, c.requestParams(extra))
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return s, nil
}

// ProcessResponse completes a login started with PrepareLogin.
func (c *Client) ProcessResponse(ctx context.Context, data string, state *oidc.AuthorizationState) (*oidc.LoginResult, error) {
	ctx, span := c.tracer.Start(ctx, "auth0.ProcessResponse")
	defer span.End()
	res, err := c.engine.ProcessResponse(ctx, data, state)
	if err != nil {
		c.logger.Debug("processing response failed", "error", err)
		recordError(span, err)
		return nil, err
	}
	return res, nil
}

// RefreshToken exchanges the refresh_token for new tokens.
func (c *Client) RefreshToken(ctx context.Context, refreshToken oidc.RefreshToken) (*oidc.RefreshTokenResult, error) {
	ctx, span := c.tracer.Start(ctx, "auth0.RefreshToken")
	defer span.End()
	res, err := c.engine.RefreshToken(ctx, refreshToken)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return res, nil
}

// LogoutURL is the tenant's logout endpoint for the client. Federated also
// signs the user out of the upstream identity provider.
func (c *Client) LogoutURL(federated bool) string {
	q := url.Values{}
	q.Set("client_id", c.config.ClientID)
	q.Set("returnTo", c.postLogoutRedirectURL)
	u := fmt.Sprintf("https://%s/v2/logout?%s", c.config.Domain, q.Encode())
	if federated {
		u += "&federated"
	}
	return u
}

// Logout signs the user out of the tenant with the client's browser. It
// returns true when the browser reached the post logout redirect URL. A
// cancelled round-trip returns ErrCancelled, a timed out one ErrTimeout and
// any other unsuccessful one ErrBrowser.
func (c *Client) Logout(ctx context.Context, federated bool) (bool, error) {
	const op = "auth0.(Client).Logout"
	ctx, span := c.tracer.Start(ctx, "auth0.Logout", trace.WithAttributes(attribute.Bool("federated", federated)))
	defer span.End()

	res, err := c.browser.Invoke(ctx, &browser.Request{
		StartURL:    c.LogoutURL(federated),
		EndURL:      c.postLogoutRedirectURL,
		Timeout:     c.logoutRequest.Timeout,
		DisplayMode: c.logoutRequest.DisplayMode,
	})
	switch {
	case err != nil:
		err = fmt.Errorf("%s: %w: %w", op, oidc.ErrBrowser, err)
	case res == nil:
		err = fmt.Errorf("%s: browser result is nil: %w", op, oidc.ErrBrowser)
	case res.Type == browser.Success:
		return true, nil
	case res.Type == browser.UserCancel:
		err = fmt.Errorf("%s: %w", op, oidc.ErrCancelled)
	case res.Type == browser.Timeout:
		err = fmt.Errorf("%s: %w", op, oidc.ErrTimeout)
	default:
		err = fmt.Errorf("%s: %s: %s: %w", op, res.Type, res.Error, oidc.ErrBrowser)
	}
	c.logger.Debug("logout failed", "error", err)
	recordError(span, err)
	return false, err
}

// Done releases the engine's resources, when it has any.
func (c *Client) Done() {
	if d, ok := c.engine.(interface{ Done() }); ok {
		d.Done()
	}
}

// requestParams are the extra params plus the telemetry param. The extra
// params aren't modified.
func (c *Client) requestParams(extra oidc.Params) oidc.Params {
	p := extra.Clone()
	if c.telemetry != "" {
		p.Set(telemetry.ParamKey, c.telemetry)
	}
	return p
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
