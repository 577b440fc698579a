// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/cap-auth0/oidc"
)

// SuccessResponseFunc is used by Callbacks to create a http response when the
// callback is successful.
//
// The function state parameter will contain the state that was returned as
// part of a successful authentication response. The oidc.LoginResult is the
// result of a successful token exchange with the provider. The function
// should use the http.ResponseWriter to send back whatever content (headers,
// html, JSON, etc) it wishes to the client that originated the flow.
type SuccessResponseFunc func(state string, r *oidc.LoginResult, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Callbacks to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the authentication
// response and the error raised while processing it. An error response from
// the provider is an *oidc.AuthError (see errors.As).
type ErrorResponseFunc func(state string, e error, w http.ResponseWriter, req *http.Request)
