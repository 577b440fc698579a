// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package platform describes how an application receives authorization
// callbacks and derives the default redirect URLs for it.
package platform

import (
	"context"
	"errors"
)

var (
	ErrMissingPlatform     = errors.New("platform is missing")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrBrokerFailed        = errors.New("callback broker failed")
)

// Info identifies the platform an application runs on. The supported
// variants are Desktop, SchemeCallback and CallbackBroker.
type Info interface {
	// Tag is the platform identifier reported in telemetry.
	Tag() string

	// Redirectable reports whether the platform can receive an
	// authorization response as a browser redirect. Platforms that can't
	// receive redirects get the response via form post.
	Redirectable() bool
}

// DefaultDesktopTag is the telemetry tag of a Desktop with no Name.
const DefaultDesktopTag = "desktop"

// Desktop is a generic desktop application. Its callback is the Auth0
// hosted https://{domain}/mobile page, observed by an embedded browser.
type Desktop struct {
	// Name optionally overrides the telemetry tag.
	Name string
}

func (d Desktop) Tag() string {
	if d.Name == "" {
		return DefaultDesktopTag
	}
	return d.Name
}

func (Desktop) Redirectable() bool { return false }

// SchemeCallback is a platform which registers a custom URL scheme with the
// operating system, for example "android" or "ios".
type SchemeCallback struct {
	// AppScheme is the registered scheme, usually the package or bundle id.
	AppScheme string

	// Platform is the platform path segment and telemetry tag.
	Platform string
}

func (s SchemeCallback) Tag() string      { return s.Platform }
func (SchemeCallback) Redirectable() bool { return true }

// BrokerFunc returns the callback URL issued by a system callback broker.
type BrokerFunc func(ctx context.Context) (string, error)

// CallbackBroker is a platform where the operating system provides the
// callback URL through a broker, which is queried at resolution time.
type CallbackBroker struct {
	// Platform is the telemetry tag.
	Platform string

	// Broker returns the broker's callback URL.
	Broker BrokerFunc
}

func (b CallbackBroker) Tag() string      { return b.Platform }
func (CallbackBroker) Redirectable() bool { return true }

var (
	_ Info = Desktop{}
	_ Info = SchemeCallback{}
	_ Info = CallbackBroker{}
)
