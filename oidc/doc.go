// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package oidc is the OIDC engine of cap-auth0. It runs the OpenID Connect
authorization code flow with PKCE for native (desktop and mobile) clients.

Primary types provided by the package:

  - Config: the configuration of the flow (issuer, client ID and optional
    secret, scopes, redirect URLs, response mode, id_token policy, etc).

  - Provider: the default Engine. It discovers the provider on first use,
    prepares logins, runs the browser round-trip with a browser.Launcher,
    exchanges codes for verified tokens and refreshes tokens.

  - AuthorizationState: one login attempt (state, nonce, PKCE code verifier
    and the authorization URL). It can only be processed once.

  - Token: an access_token, refresh_token and id_token, all of which are
    redacted when printed or marshaled.

  - Params: extra authorization request parameters.

  - TestProvider: a local OIDC provider for tests.
*/
package oidc
