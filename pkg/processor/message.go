// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package processor signs and verifies header-carrying messages.
//
// A Signer or Verifier holds a template credentials.Configuration and clones
// it for every message, so per-message keystore aliases and passwords taken
// from headers never leak into the template or into concurrent invocations.
package processor

import (
	"errors"
	"fmt"
)

// Headers read or written by the processors besides the configured
// signature header.
const (
	// HeaderKeystoreAlias overrides the configured keystore alias.
	HeaderKeystoreAlias = "SignatureKeyStoreAlias"
	// HeaderKeystorePassword overrides the configured keystore password.
	HeaderKeystorePassword = "SignatureKeyStorePassword"
	// HeaderPublicKeyOrCert supplies the verification key (a crypto.PublicKey
	// or *x509.Certificate) for a single message.
	HeaderPublicKeyOrCert = "SignaturePublicKeyOrCert"
)

// ErrMissingSignature is returned by Verifier when the signature header is
// absent or empty.
var ErrMissingSignature = errors.New("message carries no signature")

// Message is a payload with headers.
type Message struct {
	Headers map[string]any
	Body    []byte
}

// NewMessage returns a message with body and no headers.
func NewMessage(body []byte) *Message {
	return &Message{Headers: make(map[string]any), Body: body}
}

// Header returns the value of header name.
func (m *Message) Header(name string) (any, bool) {
	v, ok := m.Headers[name]
	return v, ok
}

// SetHeader sets header name to value.
func (m *Message) SetHeader(name string, value any) {
	if m.Headers == nil {
		m.Headers = make(map[string]any)
	}
	m.Headers[name] = value
}

// RemoveHeaders deletes the named headers.
func (m *Message) RemoveHeaders(names ...string) {
	for _, n := range names {
		delete(m.Headers, n)
	}
}

// headerString reads a string or []byte header. Missing headers yield "".
func (m *Message) headerString(name string) (string, error) {
	v, ok := m.Headers[name]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("header %s has type %T, want string", name, v)
	}
}

// headerBytes reads a []byte or string header. Missing headers yield nil.
func (m *Message) headerBytes(name string) ([]byte, error) {
	v, ok := m.Headers[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("header %s has type %T, want string or []byte", name, v)
	}
}
