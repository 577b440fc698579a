// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth0

import (
	"time"

	"github.com/hashicorp/cap-auth0/browser"
	"github.com/hashicorp/cap-auth0/oidc"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

const (
	// DefaultBrowserTimeout bounds the login and logout browser round-trips.
	DefaultBrowserTimeout = 300 * time.Second

	tracerName = "github.com/hashicorp/cap-auth0/auth0"
)

// BrowserOptions are the parameters of a browser round-trip.
type BrowserOptions struct {
	Timeout     time.Duration
	DisplayMode browser.DisplayMode
}

// DefaultBrowserOptions returns the options used for login and logout when
// none are provided.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Timeout:     DefaultBrowserTimeout,
		DisplayMode: browser.Visible,
	}
}

// clientOptions is the set of available options for a Client
type clientOptions struct {
	withEngine         oidc.Engine
	withLogger         hclog.Logger
	withTracerProvider trace.TracerProvider
	withLoginRequest   BrowserOptions
	withLogoutRequest  BrowserOptions
	withProviderCA     string
}

func clientDefaults() clientOptions {
	return clientOptions{
		withLogger:         hclog.NewNullLogger(),
		withTracerProvider: otel.GetTracerProvider(),
		withLoginRequest:   DefaultBrowserOptions(),
		withLogoutRequest:  DefaultBrowserOptions(),
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithEngine replaces the default *oidc.Provider engine.
func WithEngine(e oidc.Engine) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && e != nil {
			o.withEngine = e
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithTracerProvider provides an optional tracer provider. The global one
// is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && tp != nil {
			o.withTracerProvider = tp
		}
	}
}

// WithLoginRequest overrides the login browser round-trip's options.
func WithLoginRequest(b BrowserOptions) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withLoginRequest = b
		}
	}
}

// WithLogoutRequest overrides the logout browser round-trip's options.
func WithLogoutRequest(b BrowserOptions) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withLogoutRequest = b
		}
	}
}

// WithProviderCA provides a PEM encoded CA to trust when talking to the
// tenant. The host's root CAs are used by default.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withProviderCA = cert
		}
	}
}
