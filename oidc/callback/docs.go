// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides callbacks (in the form of http.HandlerFunc)
for handling authorization responses of the authorization code flow with PKCE
when the application receives them with its own http server.
*/
package callback
