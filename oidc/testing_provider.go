// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// TestProvider is a local OIDC provider for tests. It supports discovery,
// the authorization code flow with a PKCE S256 code challenge (redirect and
// form_post response modes), refresh_token grants, userinfo and a JWKS
// endpoint. id_tokens are signed with RS256. Its issuer ends with a slash,
// like an Auth0 tenant's.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	signer     jose.Signer
	jwks       jose.JSONWebKeySet

	mu                     sync.Mutex
	clientID               string
	clientSecret           string
	allowedRedirectURIs    []string
	subject                string
	customClaims           map[string]interface{}
	replyUserinfo          map[string]interface{}
	userinfoSubject        string
	disableUserInfo        bool
	omitIDToken            bool
	omitRefreshToken       bool
	includeAccessTokenHash bool
	rotateRefreshTokens    bool
	authError              string
	authErrorDescription   string
	tokenExpiry            time.Duration
	nowFunc                func() time.Time

	codes         map[string]testAuthCode
	accessTokens  map[string]string
	refreshTokens map[string]string
}

type testAuthCode struct {
	redirectURI   string
	nonce         string
	codeChallenge string
}

// StartTestProvider creates a disposable TestProvider which is closed when
// the test finishes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	keyID, err := NewID(WithPrefix("kid"))
	require.NoError(err)

	p := &TestProvider{
		clientID:            "test-client-id",
		subject:             "auth0|test-subject",
		replyUserinfo:       map[string]interface{}{"email": "alice@example.com", "email_verified": true},
		rotateRefreshTokens: true,
		tokenExpiry:         time.Hour,
		nowFunc:             time.Now,
		codes:               map[string]testAuthCode{},
		accessTokens:        map[string]string{},
		refreshTokens:       map[string]string{},
		jwks: jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{Key: key.Public(), KeyID: keyID, Algorithm: string(jose.RS256), Use: "sig"},
			},
		},
	}
	p.signer, err = jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: key, KeyID: keyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the base URL of the test provider's https server.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Issuer returns the test provider's issuer, which is its Addr with a
// trailing slash.
func (p *TestProvider) Issuer() string { return p.httpServer.URL + "/" }

// Host returns the host and port of the test provider.
func (p *TestProvider) Host() string { return strings.TrimPrefix(p.httpServer.URL, "https://") }

// CACert returns the pem-encoded CA certificate used by the test provider's
// https server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns an http client which trusts the test provider's
// certificate.
func (p *TestProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// ClientID returns the expected client ID.
func (p *TestProvider) ClientID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID
}

// SetClientCreds configures the expected client ID and secret. An empty
// secret means the client is public and doesn't authenticate.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetAllowedRedirectURIs configures the allowed redirect URIs. Any redirect
// URI is allowed when none are configured.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetSubject configures the sub claim of issued id_tokens.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = sub
}

// SetCustomClaims configures claims added to issued id_tokens. They override
// the standard claims.
func (p *TestProvider) SetCustomClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// SetUserInfoReply configures the userinfo claims, in addition to sub.
func (p *TestProvider) SetUserInfoReply(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = claims
}

// SetUserInfoSubject overrides the userinfo sub claim.
func (p *TestProvider) SetUserInfoSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userinfoSubject = sub
}

// DisableUserInfo omits the userinfo endpoint from the discovery document
// and makes it return 404.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// OmitIDTokens forces the token endpoint to not return an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitRefreshTokens forces the token endpoint to not return a refresh_token.
func (p *TestProvider) OmitRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitRefreshToken = true
}

// SetIncludeAccessTokenHash configures whether id_tokens carry an at_hash
// claim.
func (p *TestProvider) SetIncludeAccessTokenHash(include bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.includeAccessTokenHash = include
}

// SetRotateRefreshTokens configures whether a refresh_token grant returns a
// new refresh_token and revokes the used one. It defaults to true.
func (p *TestProvider) SetRotateRefreshTokens(rotate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateRefreshTokens = rotate
}

// SetAuthError makes the authorization endpoint return an error response.
// An empty code restores successful responses.
func (p *TestProvider) SetAuthError(code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = code
	p.authErrorDescription = description
}

// SetTokenExpiry configures the lifetime of issued tokens.
func (p *TestProvider) SetTokenExpiry(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenExpiry = d
}

// SetNowFunc configures the time used for issued tokens.
func (p *TestProvider) SetNowFunc(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nowFunc = now
}

// IssueRefreshToken returns a valid refresh_token for the configured
// subject without a login.
func (p *TestProvider) IssueRefreshToken(t *testing.T) RefreshToken {
	t.Helper()
	rt, err := NewID(WithPrefix("rt"))
	require.NoError(t, err)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshTokens[rt] = p.subject
	return RefreshToken(rt)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer               string   `json:"issuer"`
			AuthEndpoint         string   `json:"authorization_endpoint"`
			TokenEndpoint        string   `json:"token_endpoint"`
			JWKSURI              string   `json:"jwks_uri"`
			UserinfoEndpoint     string   `json:"userinfo_endpoint,omitempty"`
			ResponseModes        []string `json:"response_modes_supported"`
			CodeChallengeMethods []string `json:"code_challenge_methods_supported"`
			IDTokenSigningAlgs   []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:               p.Issuer(),
			AuthEndpoint:         p.Addr() + "/authorize",
			TokenEndpoint:        p.Addr() + "/oauth/token",
			JWKSURI:              p.Addr() + "/.well-known/jwks.json",
			UserinfoEndpoint:     p.Addr() + "/userinfo",
			ResponseModes:        []string{"query", "fragment", "form_post"},
			CodeChallengeMethods: []string{"S256"},
			IDTokenSigningAlgs:   []string{string(RS256)},
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		p.writeJSON(w, &reply)

	case "/.well-known/jwks.json":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, &p.jwks)

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.authorize(w, req)

	case "/oauth/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.token(w, req)

	case "/userinfo":
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sub, ok := p.accessTokens[strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply := map[string]interface{}{}
		for k, v := range p.replyUserinfo {
			reply[k] = v
		}
		reply["sub"] = sub
		if p.userinfoSubject != "" {
			reply["sub"] = p.userinfoSubject
		}
		p.writeJSON(w, reply)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) authorize(w http.ResponseWriter, req *http.Request) {
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri")
	if redirectURI == "" || !p.redirectAllowed(redirectURI) || qv.Get("client_id") != p.clientID {
		// never redirect to an unknown client or redirect URI
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "unknown client or redirect_uri")
		return
	}
	state := qv.Get("state")
	formPost := qv.Get("response_mode") == string(ResponseModeFormPost)
	reply := url.Values{"state": {state}}
	switch {
	case qv.Get("response_type") != "code":
		reply.Set("error", "unsupported_response_type")
	case !strings.Contains(" "+qv.Get("scope")+" ", " openid "):
		reply.Set("error", "invalid_scope")
	case qv.Get("code_challenge") == "" || qv.Get("code_challenge_method") != "S256":
		reply.Set("error", "invalid_request")
		reply.Set("error_description", "missing S256 code_challenge")
	case p.authError != "":
		reply.Set("error", p.authError)
		if p.authErrorDescription != "" {
			reply.Set("error_description", p.authErrorDescription)
		}
	default:
		code, err := NewID(WithPrefix("code"))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		p.codes[code] = testAuthCode{
			redirectURI:   redirectURI,
			nonce:         qv.Get("nonce"),
			codeChallenge: qv.Get("code_challenge"),
		}
		reply.Set("code", code)
	}

	if formPost {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = testFormPostTemplate.Execute(w, struct {
			Action string
			Values url.Values
		}{Action: redirectURI, Values: reply})
		return
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	q := u.Query()
	for k, v := range reply {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

func (p *TestProvider) token(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "unable to parse form")
		return
	}
	clientID, clientSecret, ok := req.BasicAuth()
	if !ok {
		clientID, clientSecret = req.PostForm.Get("client_id"), req.PostForm.Get("client_secret")
	}
	if clientID != p.clientID || (p.clientSecret != "" && clientSecret != p.clientSecret) {
		p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}

	var subject, nonce string
	switch req.PostForm.Get("grant_type") {
	case "authorization_code":
		code := req.PostForm.Get("code")
		ac, ok := p.codes[code]
		delete(p.codes, code)
		switch {
		case !ok:
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unknown or used authorization code")
			return
		case req.PostForm.Get("redirect_uri") != ac.redirectURI:
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri doesn't match")
			return
		case oauth2.S256ChallengeFromVerifier(req.PostForm.Get("code_verifier")) != ac.codeChallenge:
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "failed to verify code_verifier")
			return
		}
		subject, nonce = p.subject, ac.nonce
	case "refresh_token":
		rt := req.PostForm.Get("refresh_token")
		sub, ok := p.refreshTokens[rt]
		if !ok {
			p.writeTokenError(w, http.StatusForbidden, "invalid_grant", "unknown or invalid refresh token")
			return
		}
		if p.rotateRefreshTokens {
			delete(p.refreshTokens, rt)
		}
		subject = sub
	default:
		p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}

	at, err := NewID(WithPrefix("at"))
	if err != nil {
		p.writeTokenError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	p.accessTokens[at] = subject
	reply := struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token,omitempty"`
		IDToken      string `json:"id_token,omitempty"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}{
		AccessToken: at,
		TokenType:   "Bearer",
		ExpiresIn:   int64(p.tokenExpiry / time.Second),
	}
	grant := req.PostForm.Get("grant_type")
	switch {
	case p.omitRefreshToken:
	case grant == "authorization_code" || p.rotateRefreshTokens:
		rt, err := NewID(WithPrefix("rt"))
		if err != nil {
			p.writeTokenError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		p.refreshTokens[rt] = subject
		reply.RefreshToken = rt
	}
	if !p.omitIDToken {
		idToken, err := p.signIDToken(subject, nonce, at)
		if err != nil {
			p.writeTokenError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		reply.IDToken = idToken
	}
	w.Header().Set("Cache-Control", "no-store")
	p.writeJSON(w, &reply)
}

func (p *TestProvider) signIDToken(subject, nonce, accessToken string) (string, error) {
	now := p.nowFunc()
	stdClaims := jwt.Claims{
		Subject:   subject,
		Issuer:    p.Issuer(),
		Audience:  jwt.Audience{p.clientID},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(p.tokenExpiry)),
	}
	extra := map[string]interface{}{
		"auth_time": now.Unix(),
	}
	if nonce != "" {
		extra["nonce"] = nonce
	}
	if p.includeAccessTokenHash {
		// RS256 uses sha256, see: https://openid.net/specs/openid-connect-core-1_0.html#CodeIDToken
		sum := sha256.Sum256([]byte(accessToken))
		extra["at_hash"] = base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
	}
	builder := jwt.Signed(p.signer).Claims(stdClaims).Claims(extra)
	if p.customClaims != nil {
		builder = builder.Claims(p.customClaims)
	}
	return builder.Serialize()
}

func (p *TestProvider) redirectAllowed(uri string) bool {
	if len(p.allowedRedirectURIs) == 0 {
		return true
	}
	for _, u := range p.allowedRedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeTokenError(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}

var testFormPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Submit This Form</title></head>
<body onload="javascript:document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range $name, $values := .Values}}{{range $values}}
<input type="hidden" name="{{$name}}" value="{{.}}"/>
{{- end}}{{end}}
</form>
</body>
</html>
`))
