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

package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"io"
)

// slot stores a direct value and a reference name independently.
// present distinguishes "never set" from a zero value.
type slot[T any] struct {
	value   T
	present bool
	ref     string
}

func (s *slot[T]) set(v T, ok bool) {
	var zero T
	if !ok {
		s.value, s.present = zero, false
		return
	}
	s.value, s.present = v, true
}

// setRef keeps the first non-empty name.
func (s *slot[T]) setRef(name string) {
	if name != "" && s.ref == "" {
		s.ref = name
	}
}

func (s *slot[T]) get() (T, bool) {
	return s.value, s.present
}

// lookup resolves the slot reference in bc. It does not write the slot.
func (s *slot[T]) lookup(bc BindingContext, kind Kind, accept func(any) (T, bool)) (T, bool, error) {
	var zero T
	if s.ref == "" {
		return zero, false, nil
	}
	raw, found := bc.LookupByNameAndType(s.ref, kind)
	if !found {
		return zero, false, unresolved(kind, s.ref, "not found in binding context")
	}
	v, ok := accept(raw)
	if !ok {
		return zero, false, unresolved(kind, s.ref, "binding context returned an unexpected type")
	}
	return v, true, nil
}

// present reports whether v holds a usable value. A nil pointer of a known
// key or certificate type stored in an interface counts as absent.
func present(v any) bool {
	switch k := v.(type) {
	case nil:
		return false
	case *ecdsa.PrivateKey:
		return k != nil
	case *rsa.PrivateKey:
		return k != nil
	case ed25519.PrivateKey:
		return len(k) != 0
	case *ecdsa.PublicKey:
		return k != nil
	case *rsa.PublicKey:
		return k != nil
	case ed25519.PublicKey:
		return len(k) != 0
	case *x509.Certificate:
		return k != nil
	}
	return true
}

type publicKey interface {
	Equal(crypto.PublicKey) bool
}

func asSigner(v any) (crypto.Signer, bool) {
	s, ok := v.(crypto.Signer)
	return s, ok && present(s)
}

func asPublicKey(v any) (crypto.PublicKey, bool) {
	k, ok := v.(publicKey)
	return k, ok && present(k)
}

func asCertificate(v any) (*x509.Certificate, bool) {
	c, ok := v.(*x509.Certificate)
	return c, ok && present(c)
}

func asKeystore(v any) (Keystore, bool) {
	ks, ok := v.(Keystore)
	return ks, ok && present(ks)
}

func asRandom(v any) (io.Reader, bool) {
	r, ok := v.(io.Reader)
	return r, ok && present(r)
}
