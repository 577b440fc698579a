// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-auth0/oidc"
)

// ResponseProcessor completes a login with the authorization response. Both
// *oidc.Provider and *auth0.Client satisfy it.
type ResponseProcessor interface {
	ProcessResponse(ctx context.Context, data string, state *oidc.AuthorizationState) (*oidc.LoginResult, error)
}

// AuthCode creates an authorization code callback handler which uses a
// StateReader to read the oidc.AuthorizationState via the request's "state"
// parameter as a key for the lookup. It handles both query (redirect) and
// form_post responses.
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails.
func AuthCode(ctx context.Context, p ResponseProcessor, rw StateReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: response processor is nil: %w", op, oidc.ErrInvalidParameter)
	case rw == nil:
		return nil, fmt.Errorf("%s: state reader is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		// query and body parameters, body values first
		if err := req.ParseForm(); err != nil {
			eFn("", fmt.Errorf("%s: unable to parse callback: %w: %w", op, oidc.ErrInvalidParameter, err), w, req)
			return
		}
		reqState := req.Form.Get("state")

		state, err := rw.Read(ctx, reqState)
		if err != nil {
			eFn(reqState, fmt.Errorf("%s: unable to read state: %w", op, err), w, req)
			return
		}
		if state == nil || state.State() != reqState {
			// the reader didn't return the state for the key given
			eFn(reqState, fmt.Errorf("%s: state not found: %w", op, oidc.ErrInvalidState), w, req)
			return
		}

		res, err := p.ProcessResponse(ctx, req.Form.Encode(), state)
		if err != nil {
			eFn(reqState, err, w, req)
			return
		}
		sFn(reqState, res, w, req)
	}, nil
}
