// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cap_test

import (
	"context"
	"fmt"

	"github.com/hashicorp/cap-auth0/auth0"
	"github.com/hashicorp/cap-auth0/oidc"
)

func Example_auth0() {
	ctx := context.Background()

	// Create a config for the tenant. The system browser can only observe a
	// loopback redirect, so it's set explicitly and must be an allowed
	// callback URL of the application.
	cfg, err := auth0.NewConfig(
		"your-tenant.auth0.com",
		"your_client_id",
		auth0.WithScopes("openid", "profile", "email", "offline_access"),
		auth0.WithRedirectURL("http://127.0.0.1:8400/callback"),
		auth0.WithPostLogoutRedirectURL("http://127.0.0.1:8400/logout"),
	)
	if err != nil {
		// handle error
	}

	// Create a client
	c, err := auth0.NewClient(ctx, cfg)
	if err != nil {
		// handle error
	}
	defer c.Done()

	// Sign the user in with the system browser
	params := oidc.Params{}
	params.SetAudience("https://your-api")
	res, err := c.Login(ctx, params)
	if err != nil {
		// handle error
	}
	fmt.Println("signed in:", res.IDTokenClaims["sub"])

	// Refresh the tokens
	refreshed, err := c.RefreshToken(ctx, res.Token.RefreshToken)
	if err != nil {
		// handle error
	}
	fmt.Println("access_token expires:", refreshed.Token.Expiry)

	// Sign the user out
	if _, err := c.Logout(ctx, false); err != nil {
		// handle error
	}
}
