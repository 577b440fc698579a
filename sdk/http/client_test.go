// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewClient(t *testing.T) {
	t.Parallel()
	t.Run("system-roots", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewClient("")
		require.NoError(err)
		tr, ok := c.Transport.(*http.Transport)
		require.True(ok)
		assert.Nil(tr.TLSClientConfig)
	})
	t.Run("invalid-pem", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewClient("not a pem")
		require.Error(err)
		assert.Nil(c)
		assert.True(errors.Is(err, ErrInvalidCertificatePem))
	})
}

func TestClientContext(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12}}}
	ctx := ClientContext(context.Background(), c)
	assert.Equal(c, ctx.Value(oauth2.HTTPClient))
}
