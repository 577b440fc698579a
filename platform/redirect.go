// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"fmt"
	"strings"
)

// ResolveRedirectURL returns explicit when it's not empty, otherwise the
// default redirect URL for the platform:
//
//   - Desktop: https://{domain}/mobile
//   - SchemeCallback: {scheme}://{domain}/{platform}/{scheme}/callback (lower case)
//   - CallbackBroker: whatever the broker returns
func ResolveRedirectURL(ctx context.Context, explicit, domain string, info Info) (string, error) {
	const op = "platform.ResolveRedirectURL"
	if explicit != "" {
		return explicit, nil
	}
	u, err := defaultURL(ctx, domain, info)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ResolvePostLogoutRedirectURL applies the ResolveRedirectURL rules to the
// post-logout redirect URL, with its own explicit override.
func ResolvePostLogoutRedirectURL(ctx context.Context, explicit, domain string, info Info) (string, error) {
	const op = "platform.ResolvePostLogoutRedirectURL"
	if explicit != "" {
		return explicit, nil
	}
	u, err := defaultURL(ctx, domain, info)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func defaultURL(ctx context.Context, domain string, info Info) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("domain is empty: %w", ErrInvalidParameter)
	}
	switch p := info.(type) {
	case nil:
		return "", ErrMissingPlatform
	case Desktop:
		return fmt.Sprintf("https://%s/mobile", domain), nil
	case *Desktop:
		return fmt.Sprintf("https://%s/mobile", domain), nil
	case SchemeCallback:
		return schemeURL(domain, p)
	case *SchemeCallback:
		if p == nil {
			return "", ErrMissingPlatform
		}
		return schemeURL(domain, *p)
	case CallbackBroker:
		return brokerURL(ctx, p)
	case *CallbackBroker:
		if p == nil {
			return "", ErrMissingPlatform
		}
		return brokerURL(ctx, *p)
	default:
		return "", fmt.Errorf("%T: %w", info, ErrUnsupportedPlatform)
	}
}

func schemeURL(domain string, s SchemeCallback) (string, error) {
	switch {
	case s.AppScheme == "":
		return "", fmt.Errorf("app scheme is empty: %w", ErrInvalidParameter)
	case s.Platform == "":
		return "", fmt.Errorf("platform is empty: %w", ErrInvalidParameter)
	}
	return strings.ToLower(fmt.Sprintf("%s://%s/%s/%s/callback", s.AppScheme, domain, s.Platform, s.AppScheme)), nil
}

func brokerURL(ctx context.Context, b CallbackBroker) (string, error) {
	if b.Broker == nil {
		return "", fmt.Errorf("broker func is nil: %w", ErrInvalidParameter)
	}
	u, err := b.Broker(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBrokerFailed, err)
	}
	if u == "" {
		return "", fmt.Errorf("broker returned an empty callback url: %w", ErrBrokerFailed)
	}
	return u, nil
}
