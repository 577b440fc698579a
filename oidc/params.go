// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// Params are extra authorization request parameters. Keys are unique and
// their order is irrelevant.
type Params map[string]string

// reservedParams are set by the Provider and can't be overridden.
var reservedParams = map[string]bool{
	"state":                 true,
	"nonce":                 true,
	"code_challenge":        true,
	"code_challenge_method": true,
	"response_type":         true,
	"response_mode":         true,
	"client_id":             true,
	"redirect_uri":          true,
	"scope":                 true,
}

// Set sets the value of key. A nil Params will panic, like a nil map.
func (p Params) Set(key, value string) {
	p[key] = value
}

// Get returns the value of key and whether it's present.
func (p Params) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Clone returns a copy of the params. Cloning a nil Params returns an empty,
// non-nil Params.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Merge sets every entry of other, overwriting existing keys.
func (p Params) Merge(other Params) {
	for k, v := range other {
		p[k] = v
	}
}

// SetUILocales sets the ui_locales parameter from a list of BCP47 language
// tags, in order of preference.
func (p Params) SetUILocales(locales ...string) error {
	const op = "Params.SetUILocales"
	if len(locales) == 0 {
		return fmt.Errorf("%s: missing locales: %w", op, ErrInvalidParameter)
	}
	tags := make([]string, 0, len(locales))
	for _, l := range locales {
		tag, err := language.Parse(l)
		if err != nil {
			return fmt.Errorf("%s: invalid locale %q: %w: %w", op, l, ErrInvalidParameter, err)
		}
		tags = append(tags, tag.String())
	}
	p["ui_locales"] = strings.Join(tags, " ")
	return nil
}

// SetAudience sets the audience of the requested access_token.
func (p Params) SetAudience(audience string) {
	p["audience"] = audience
}

// SetConnection sets the connection (identity provider) used to
// authenticate, skipping the provider's login page.
func (p Params) SetConnection(connection string) {
	p["connection"] = connection
}

// Validate returns an error when a reserved parameter is set.
func (p Params) Validate() error {
	const op = "Params.Validate"
	var reserved []string
	for k := range p {
		if reservedParams[k] {
			reserved = append(reserved, k)
		}
	}
	if len(reserved) > 0 {
		sort.Strings(reserved)
		return fmt.Errorf("%s: reserved parameters %s can't be set: %w", op, strings.Join(reserved, ", "), ErrInvalidParameter)
	}
	return nil
}

// authCodeOptions converts the params into oauth2 options, in key order.
func (p Params) authCodeOptions() []oauth2.AuthCodeOption {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]oauth2.AuthCodeOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, p[k]))
	}
	return opts
}
