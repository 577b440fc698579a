// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package browser defines how an interactive authentication or logout URL is
// shown to the user and how the resulting callback is captured.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrUnsupportedEndURL = errors.New("unsupported end url")
)

// DisplayMode controls whether the browser is shown to the user.
type DisplayMode int

const (
	// Visible shows the browser. It's the default.
	Visible DisplayMode = iota

	// Hidden attempts a silent round-trip without showing any UI.
	Hidden
)

func (m DisplayMode) String() string {
	switch m {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	default:
		return fmt.Sprintf("DisplayMode(%d)", int(m))
	}
}

// ResultType is the outcome of a browser round-trip.
type ResultType int

const (
	// Success means the browser reached the end URL. Result.Response holds
	// the callback data.
	Success ResultType = iota

	// UserCancel means the user closed the browser or the caller's context
	// was cancelled.
	UserCancel

	// Timeout means the round-trip exceeded Request.Timeout.
	Timeout

	// HTTPError means the browser got an unexpected response.
	HTTPError

	// UnknownError is any other failure.
	UnknownError
)

func (t ResultType) String() string {
	switch t {
	case Success:
		return "success"
	case UserCancel:
		return "user_cancel"
	case Timeout:
		return "timeout"
	case HTTPError:
		return "http_error"
	case UnknownError:
		return "unknown_error"
	default:
		return fmt.Sprintf("ResultType(%d)", int(t))
	}
}

// Request is a single browser round-trip.
type Request struct {
	// StartURL is the URL the browser navigates to.
	StartURL string

	// EndURL is the URL which ends the round-trip once the browser reaches it.
	EndURL string

	// Timeout bounds the round-trip. Zero means no timeout beyond ctx.
	Timeout time.Duration

	// DisplayMode of the browser.
	DisplayMode DisplayMode
}

// Validate the request.
func (r *Request) Validate() error {
	const op = "browser.(Request).Validate"
	switch {
	case r == nil:
		return fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	case r.StartURL == "":
		return fmt.Errorf("%s: start url is empty: %w", op, ErrInvalidParameter)
	case r.EndURL == "":
		return fmt.Errorf("%s: end url is empty: %w", op, ErrInvalidParameter)
	case r.Timeout < 0:
		return fmt.Errorf("%s: timeout is negative: %w", op, ErrInvalidParameter)
	}
	return nil
}

// Result of a browser round-trip.
type Result struct {
	Type ResultType

	// Response is the callback data: either the full end URL the browser
	// was sent to, or the form-encoded body posted to it.
	Response string

	// Error describes a failed round-trip.
	Error string
}

// Launcher opens an interactive URL and returns the callback data or the
// reason the round-trip didn't complete. Failures of the round-trip itself
// are reported in the Result; the error return is reserved for requests the
// launcher couldn't start.
type Launcher interface {
	Invoke(ctx context.Context, req *Request) (*Result, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, req *Request) (*Result, error)

// Invoke calls f(ctx, req).
func (f LauncherFunc) Invoke(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}
