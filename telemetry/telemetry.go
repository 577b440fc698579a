// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package telemetry

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// ParamKey is the reserved request parameter carrying the encoded payload.
	ParamKey = "auth0Client"

	// Name is the SDK name reported in the payload.
	Name = "oidc-net"
)

// Version is the SDK version reported in the payload. Set with -ldflags.
var Version = "0.1.0"

// ErrInvalidPayload is returned when an encoded payload can't be decoded.
var ErrInvalidPayload = errors.New("invalid telemetry payload")

// Payload is the identifying triple sent to the authorization server. Field
// order is fixed: name, version, platform.
type Payload struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

// Encode returns the base64 (standard alphabet, padded) encoding of the
// compact JSON payload for the name, version and platform.
func Encode(name, version, platform string) (string, error) {
	const op = "telemetry.Encode"
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Payload{Name: name, Version: version, Platform: platform}); err != nil {
		return "", fmt.Errorf("%s: unable to marshal payload: %w", op, err)
	}
	// Encoder.Encode always terminates the value with a newline
	return base64.StdEncoding.EncodeToString(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Decode reverses Encode.
func Decode(encoded string) (*Payload, error) {
	const op = "telemetry.Decode"
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidPayload, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidPayload, err)
	}
	return &p, nil
}
