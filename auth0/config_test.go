// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package auth0

import (
	"testing"

	"github.com/hashicorp/cap-auth0/browser"
	"github.com/hashicorp/cap-auth0/oidc"
	"github.com/hashicorp/cap-auth0/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	launcher := &browser.TestLauncher{}
	tests := []struct {
		name      string
		domain    string
		clientID  string
		opt       []Option
		want      *Config
		wantIsErr error
	}{
		{
			name:     "defaults",
			domain:   "example.auth0.com",
			clientID: "abc123",
			want: &Config{
				Domain:          "example.auth0.com",
				ClientID:        "abc123",
				Scopes:          []string{"openid", "profile", "email"},
				EnableTelemetry: true,
				Platform:        platform.Desktop{},
			},
		},
		{
			name:     "all-options",
			domain:   "example.auth0.com",
			clientID: "abc123",
			opt: []Option{
				WithClientSecret("shhh"),
				WithScopes("openid", "offline_access"),
				WithLoadProfile(true),
				WithRedirectURL("http://127.0.0.1:8400/callback"),
				WithPostLogoutRedirectURL("http://127.0.0.1:8400/logout"),
				WithTelemetry(false),
				WithBrowser(launcher),
				WithPlatform(platform.SchemeCallback{AppScheme: "com.example", Platform: "ios"}),
			},
			want: &Config{
				Domain:                "example.auth0.com",
				ClientID:              "abc123",
				ClientSecret:          "shhh",
				Scopes:                []string{"openid", "offline_access"},
				LoadProfile:           true,
				RedirectURL:           "http://127.0.0.1:8400/callback",
				PostLogoutRedirectURL: "http://127.0.0.1:8400/logout",
				Browser:               launcher,
				Platform:              platform.SchemeCallback{AppScheme: "com.example", Platform: "ios"},
			},
		},
		{
			name:     "domain-with-port",
			domain:   "127.0.0.1:8443",
			clientID: "abc123",
			want: &Config{
				Domain:          "127.0.0.1:8443",
				ClientID:        "abc123",
				Scopes:          []string{"openid", "profile", "email"},
				EnableTelemetry: true,
				Platform:        platform.Desktop{},
			},
		},
		{
			name:      "missing-domain",
			clientID:  "abc123",
			wantIsErr: ErrInvalidConfiguration,
		},
		{
			name:      "invalid-domain",
			domain:    "https://example.auth0.com/",
			clientID:  "abc123",
			wantIsErr: ErrInvalidConfiguration,
		},
		{
			name:      "missing-client-id",
			domain:    "example.auth0.com",
			wantIsErr: ErrInvalidConfiguration,
		},
		{
			name:      "invalid-redirect-url",
			domain:    "example.auth0.com",
			clientID:  "abc123",
			opt:       []Option{WithRedirectURL("not a url")},
			wantIsErr: ErrInvalidConfiguration,
		},
		{
			name:      "nil-platform",
			domain:    "example.auth0.com",
			clientID:  "abc123",
			opt:       []Option{WithPlatform(nil)},
			wantIsErr: ErrInvalidConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.domain, tt.clientID, tt.opt...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(got)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	t.Run("nil", func(t *testing.T) {
		assert := assert.New(t)
		var c *Config
		err := c.Validate()
		assert.ErrorIs(err, ErrInvalidConfiguration)
		assert.ErrorIs(err, oidc.ErrNilParameter)
	})
	t.Run("every-failure-reported", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &Config{Platform: platform.Desktop{}}
		err := c.Validate()
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidConfiguration)
		assert.ErrorIs(err, oidc.ErrInvalidParameter)
		assert.Contains(err.Error(), "Domain")
		assert.Contains(err.Error(), "ClientID")
	})
}

func TestConfig_clone(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewConfig("example.auth0.com", "abc123")
	require.NoError(err)
	cp := c.clone()
	cp.Scopes[0] = "changed"
	assert.Equal("openid", c.Scopes[0])
	assert.Equal("https://example.auth0.com/", c.issuer())
}
