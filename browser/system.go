// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
)

// SystemLauncher opens the user's default browser and captures the callback
// with a listener on the loopback address of the request's EndURL. The
// EndURL must be an http URL on localhost, 127.0.0.1 or [::1] with an
// explicit port.
//
// Both redirect (query) and form_post callbacks are supported. A redirect
// yields the full end URL as the Result.Response and a form post yields the
// form-encoded body.
type SystemLauncher struct {
	logger      hclog.Logger
	openURL     func(string) error
	successHTML string
}

var _ Launcher = (*SystemLauncher)(nil)

// NewSystemLauncher creates a SystemLauncher.
//
// Supported options: WithLogger, WithOpenURL, WithSuccessHTML
func NewSystemLauncher(opt ...Option) *SystemLauncher {
	opts := getSystemOpts(opt...)
	return &SystemLauncher{
		logger:      opts.withLogger,
		openURL:     opts.withOpenURL,
		successHTML: opts.withSuccessHTML,
	}
}

// Invoke opens req.StartURL in the system browser and waits until the
// browser reaches req.EndURL, req.Timeout elapses or ctx is done.
func (l *SystemLauncher) Invoke(ctx context.Context, req *Request) (*Result, error) {
	const op = "browser.(SystemLauncher).Invoke"
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.DisplayMode == Hidden {
		// there's no way to drive the system browser without showing it
		return &Result{Type: UnknownError, Error: "hidden display mode is not supported by the system browser"}, nil
	}
	end, err := loopbackURL(req.EndURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listener, err := net.Listen("tcp", end.Host)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to listen on %s: %w", op, end.Host, err)
	}

	respCh := make(chan string, 1)
	srvCh := make(chan error, 1)
	srv := &http.Server{
		Handler:           l.callbackHandler(end, respCh),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.logger.Warn("unable to shutdown callback listener", "op", op, "error", err)
		}
	}()

	waitCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	l.logger.Debug("opening system browser", "op", op, "end_url", end.String())
	if err := l.openURL(req.StartURL); err != nil {
		// the user may still navigate to the url manually
		l.logger.Warn("unable to open browser, visit the url manually", "op", op, "url", req.StartURL, "error", err)
	}

	select {
	case resp := <-respCh:
		return &Result{Type: Success, Response: resp}, nil
	case err := <-srvCh:
		return &Result{Type: UnknownError, Error: err.Error()}, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return &Result{Type: UserCancel, Error: ctx.Err().Error()}, nil
		}
		return &Result{Type: Timeout, Error: waitCtx.Err().Error()}, nil
	}
}

func (l *SystemLauncher) callbackHandler(end *url.URL, respCh chan<- string) http.Handler {
	path := end.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		var resp string
		switch r.Method {
		case http.MethodGet:
			u := *end
			u.Path = r.URL.Path
			u.RawQuery = r.URL.RawQuery
			resp = u.String()
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				http.Error(w, "unable to parse callback form", http.StatusBadRequest)
				return
			}
			resp = r.PostForm.Encode()
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		select {
		case respCh <- resp:
		default:
			// only the first callback completes the round-trip
			http.Error(w, "callback already received", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(l.successHTML)); err != nil {
			l.logger.Warn("unable to write callback response", "error", err)
		}
	})
	return mux
}

// ValidateLoopbackURL returns an error wrapping ErrUnsupportedEndURL when
// the SystemLauncher can't capture a callback on endURL.
func ValidateLoopbackURL(endURL string) error {
	const op = "browser.ValidateLoopbackURL"
	if _, err := loopbackURL(endURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func loopbackURL(endURL string) (*url.URL, error) {
	u, err := url.Parse(endURL)
	if err != nil {
		return nil, fmt.Errorf("end url %q is invalid: %w: %w", endURL, ErrUnsupportedEndURL, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("end url %q must use the http scheme: %w", endURL, ErrUnsupportedEndURL)
	}
	if u.Port() == "" {
		return nil, fmt.Errorf("end url %q must include a port: %w", endURL, ErrUnsupportedEndURL)
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
	default:
		return nil, fmt.Errorf("end url %q is not a loopback address: %w", endURL, ErrUnsupportedEndURL)
	}
	return u, nil
}

const successHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authentication complete</title></head>
<body><p>You can close this window and return to the application.</p></body>
</html>
`
