// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package id generates random identifiers suitable for OIDC state and nonce
// values.
package id

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// Len is the length of an id without its prefix.
const Len = 36

// New generates an ID with an optional prefix, separated from the random part
// by an underscore.
func New(optionalPrefix string) (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
