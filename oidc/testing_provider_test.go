// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTestProvider_Discovery(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	assert.True(strings.HasSuffix(tp.Issuer(), "/"))
	assert.Equal(tp.Addr(), "https://"+tp.Host())

	resp, err := tp.HTTPClient().Get(tp.Addr() + "/.well-known/openid-configuration")
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	require.NoError(json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(tp.Issuer(), doc["issuer"])
	assert.Equal(tp.Addr()+"/authorize", doc["authorization_endpoint"])
	assert.Equal(tp.Addr()+"/userinfo", doc["userinfo_endpoint"])

	tp.DisableUserInfo()
	resp2, err := tp.HTTPClient().Get(tp.Addr() + "/.well-known/openid-configuration")
	require.NoError(err)
	defer resp2.Body.Close()
	doc = nil
	require.NoError(json.NewDecoder(resp2.Body).Decode(&doc))
	assert.NotContains(doc, "userinfo_endpoint")
}

func TestTestProvider_Authorize(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	tp.SetAllowedRedirectURIs([]string{testRedirectURL})
	client := tp.HTTPClient()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	verifier := oauth2.GenerateVerifier()
	valid := func() url.Values {
		return url.Values{
			"client_id":             {tp.ClientID()},
			"redirect_uri":          {testRedirectURL},
			"response_type":         {"code"},
			"scope":                 {"openid"},
			"state":                 {"st"},
			"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
			"code_challenge_method": {"S256"},
		}
	}
	tests := []struct {
		name       string
		modify     func(url.Values)
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid",
			wantStatus: http.StatusFound,
		},
		{
			name:       "unknown-redirect",
			modify:     func(v url.Values) { v.Set("redirect_uri", "https://evil.example.com") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown-client",
			modify:     func(v url.Values) { v.Set("client_id", "nope") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing-challenge",
			modify:     func(v url.Values) { v.Del("code_challenge") },
			wantStatus: http.StatusFound,
			wantError:  "invalid_request",
		},
		{
			name:       "plain-challenge",
			modify:     func(v url.Values) { v.Set("code_challenge_method", "plain") },
			wantStatus: http.StatusFound,
			wantError:  "invalid_request",
		},
		{
			name:       "missing-openid",
			modify:     func(v url.Values) { v.Set("scope", "profile") },
			wantStatus: http.StatusFound,
			wantError:  "invalid_scope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			v := valid()
			if tt.modify != nil {
				tt.modify(v)
			}
			resp, err := client.Get(tp.Addr() + "/authorize?" + v.Encode())
			require.NoError(err)
			defer resp.Body.Close()
			require.Equal(tt.wantStatus, resp.StatusCode)
			if resp.StatusCode != http.StatusFound {
				return
			}
			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(err)
			assert.Equal("st", loc.Query().Get("state"))
			assert.Equal(tt.wantError, loc.Query().Get("error"))
			if tt.wantError == "" {
				assert.NotEmpty(loc.Query().Get("code"))
			}
		})
	}
}

func TestTestProvider_Token(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	client := tp.HTTPClient()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	authorize := func(t *testing.T, verifier string) string {
		t.Helper()
		v := url.Values{
			"client_id":             {tp.ClientID()},
			"redirect_uri":          {testRedirectURL},
			"response_type":         {"code"},
			"scope":                 {"openid"},
			"state":                 {"st"},
			"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
			"code_challenge_method": {"S256"},
		}
		resp, err := client.Get(tp.Addr() + "/authorize?" + v.Encode())
		require.NoError(t, err)
		defer resp.Body.Close()
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		return loc.Query().Get("code")
	}
	exchange := func(t *testing.T, code, verifier string) (int, map[string]interface{}) {
		t.Helper()
		resp, err := client.PostForm(tp.Addr()+"/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {tp.ClientID()},
			"code":          {code},
			"redirect_uri":  {testRedirectURL},
			"code_verifier": {verifier},
		})
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	t.Run("single-use-code", func(t *testing.T) {
		assert := assert.New(t)
		verifier := oauth2.GenerateVerifier()
		code := authorize(t, verifier)
		status, body := exchange(t, code, verifier)
		assert.Equal(http.StatusOK, status)
		assert.NotEmpty(body["access_token"])
		assert.NotEmpty(body["id_token"])
		assert.NotEmpty(body["refresh_token"])

		status, body = exchange(t, code, verifier)
		assert.Equal(http.StatusBadRequest, status)
		assert.Equal("invalid_grant", body["error"])
	})
	t.Run("wrong-verifier", func(t *testing.T) {
		assert := assert.New(t)
		code := authorize(t, oauth2.GenerateVerifier())
		status, body := exchange(t, code, oauth2.GenerateVerifier())
		assert.Equal(http.StatusBadRequest, status)
		assert.Equal("invalid_grant", body["error"])
	})
	t.Run("unsupported-grant", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		resp, err := client.PostForm(tp.Addr()+"/oauth/token", url.Values{
			"grant_type": {"password"},
			"client_id":  {tp.ClientID()},
		})
		require.NoError(err)
		defer resp.Body.Close()
		assert.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}
