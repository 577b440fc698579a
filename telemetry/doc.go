// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package telemetry builds the auth0Client request parameter which identifies
// the SDK name, version and platform to the authorization server.
//
// The version is injected at build time:
//
//	go build -ldflags "-X github.com/hashicorp/cap-auth0/telemetry.Version=1.2.3"
package telemetry
