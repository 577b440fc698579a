// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/hashicorp/cap-auth0/oidc"
	"github.com/stretchr/testify/require"
)

// testErrorResponse is the JSON body written by testFailFn
type testErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(_ string, _ *oidc.LoginResult, w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful"))
}

// testFailFn is a test ErrorResponseFunc
func testFailFn(_ string, e error, w http.ResponseWriter, _ *http.Request) {
	var authErr *oidc.AuthError
	if errors.As(e, &authErr) {
		w.WriteHeader(http.StatusUnauthorized)
		j, _ := json.Marshal(&testErrorResponse{Error: authErr.Code, Description: authErr.Description})
		_, _ = w.Write(j)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	j, _ := json.Marshal(&testErrorResponse{Error: "internal-callback-error", Description: e.Error()})
	_, _ = w.Write(j)
}

// testNewProvider creates a new Provider for the TestProvider (tp) with the
// response mode and redirect URL. This is helpful internally, but
// intentionally not exported.
func testNewProvider(t *testing.T, tp *oidc.TestProvider, mode oidc.ResponseMode, redirectURL string) *oidc.Provider {
	t.Helper()
	require := require.New(t)
	tp.SetAllowedRedirectURIs([]string{redirectURL})
	c, err := oidc.NewConfig(tp.Issuer(), tp.ClientID(), "", redirectURL,
		oidc.WithResponseMode(mode),
		oidc.WithProviderCA(tp.CACert()),
	)
	require.NoError(err)
	p, err := oidc.NewProvider(c)
	require.NoError(err)
	t.Cleanup(p.Done)
	return p
}
