// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestApplyOpts(t *testing.T) {
	// ApplyOpts testing is covered by other tests but we do have just more
	// more test to add here.
	// Let's make sure we don't panic on nil options
	anonymousOpts := struct {
		Names []string
	}{
		nil,
	}
	ApplyOpts(anonymousOpts, nil)
}

func Test_WithNow(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	testNow := func() time.Time { return time.Unix(1, 0) }

	cOpts := getConfigOpts(WithNow(testNow))
	assert.Equal(testNow(), cOpts.withNowFunc())

	sOpts := getStateOpts(WithNow(testNow))
	assert.Equal(testNow(), sOpts.withNowFunc())

	tOpts := getTokenOpts(WithNow(testNow))
	assert.Equal(testNow(), tOpts.withNowFunc())

	// a nil func is ignored
	sOpts = getStateOpts(WithNow(nil))
	assert.NotNil(sOpts.withNowFunc)
}

func Test_WithLogger(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	l := hclog.New(&hclog.LoggerOptions{Name: "test"})
	opts := getProviderOpts(WithLogger(l))
	assert.Equal(l, opts.withLogger)

	opts = getProviderOpts(WithLogger(nil))
	assert.NotNil(opts.withLogger)
}

func Test_WithExpirySkew(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal(time.Minute, getStateOpts(WithExpirySkew(time.Minute)).withExpirySkew)
	assert.Equal(time.Minute, getTokenOpts(WithExpirySkew(time.Minute)).withExpirySkew)
	assert.Equal(DefaultStateExpirySkew, getStateOpts().withExpirySkew)
}
