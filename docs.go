// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// cap (collection of authentication packages) for Auth0 provides the packages
// a native or desktop application needs to sign users in to an Auth0 tenant
// with the OIDC authorization code flow and PKCE.
//
//   - auth0: the Client, configured for a tenant domain and a platform
//   - oidc: the protocol engine (discovery, PKCE, token exchange, id_token
//     verification and refresh)
//   - platform: platform identities and their default redirect URLs
//   - browser: browser launchers for the interactive round-trips
//   - telemetry: the auth0Client request parameter
package cap
