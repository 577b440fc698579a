// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/yhat/scrape"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TestLauncher is a headless Launcher for tests. It requests the StartURL
// with an http.Client (without following redirects) and completes the
// round-trip when the response either redirects to the EndURL or is a
// form_post page whose form posts to the EndURL. It never opens a real
// browser.
//
// Setting Outcome short-circuits the navigation and returns it as-is.
type TestLauncher struct {
	// Client is used to request the StartURL. It must trust the test
	// provider's certificate.
	Client *http.Client

	// Outcome, when set, is returned without any navigation.
	Outcome *Result

	mu       sync.Mutex
	requests []Request
}

var _ Launcher = (*TestLauncher)(nil)

// Requests returns a copy of every request the launcher was invoked with.
func (l *TestLauncher) Requests() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Request(nil), l.requests...)
}

// Invoke satisfies the Launcher interface.
func (l *TestLauncher) Invoke(ctx context.Context, req *Request) (*Result, error) {
	const op = "browser.(TestLauncher).Invoke"
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	l.mu.Lock()
	l.requests = append(l.requests, *req)
	l.mu.Unlock()

	if l.Outcome != nil {
		r := *l.Outcome
		return &r, nil
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	client := http.DefaultClient
	if l.Client != nil {
		client = l.Client
	}
	noFollow := *client
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.StartURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	resp, err := noFollow.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &Result{Type: Timeout, Error: err.Error()}, nil
		}
		return &Result{Type: UnknownError, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if !strings.HasPrefix(loc, req.EndURL) {
			return &Result{Type: HTTPError, Error: fmt.Sprintf("unexpected redirect to %q", loc)}, nil
		}
		return &Result{Type: Success, Response: loc}, nil
	case resp.StatusCode == http.StatusOK:
		data, err := formPostData(resp, req.EndURL)
		if err != nil {
			return &Result{Type: HTTPError, Error: err.Error()}, nil
		}
		return &Result{Type: Success, Response: data}, nil
	default:
		return &Result{Type: HTTPError, Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}, nil
	}
}

// formPostData returns the form-encoded fields of an auto-submitting form
// which posts to endURL.
func formPostData(resp *http.Response, endURL string) (string, error) {
	root, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("unable to parse response: %w", err)
	}
	form, ok := scrape.Find(root, scrape.ByTag(atom.Form))
	if !ok {
		return "", fmt.Errorf("response is not a form post")
	}
	if !strings.EqualFold(scrape.Attr(form, "method"), http.MethodPost) {
		return "", fmt.Errorf("form method %q is not post", scrape.Attr(form, "method"))
	}
	if action := scrape.Attr(form, "action"); action != endURL {
		return "", fmt.Errorf("form action %q is not the end url", action)
	}
	values := url.Values{}
	for _, n := range scrape.FindAll(form, scrape.ByTag(atom.Input)) {
		if name := scrape.Attr(n, "name"); name != "" {
			values.Add(name, scrape.Attr(n, "value"))
		}
	}
	return values.Encode(), nil
}
