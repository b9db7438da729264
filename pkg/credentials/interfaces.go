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
	"crypto/x509"
)

// BindingContext resolves a reference name to a typed value.
//
// Implementations must be safe to call repeatedly with the same arguments.
// The returned value is expected to match kind:
//
//	KindPrivateKey   crypto.Signer
//	KindPublicKey    crypto.PublicKey (any stdlib public key type)
//	KindCertificate  *x509.Certificate
//	KindKeystore     Keystore
//	KindRandomSource io.Reader
//
// A value of the wrong type is treated as not found.
type BindingContext interface {
	LookupByNameAndType(name string, kind Kind) (any, bool)
}

// BindingContextFunc adapts an ordinary function to a BindingContext.
type BindingContextFunc func(name string, kind Kind) (any, bool)

// LookupByNameAndType calls f(name, kind).
func (f BindingContextFunc) LookupByNameAndType(name string, kind Kind) (any, bool) {
	return f(name, kind)
}

// Keystore holds private keys and certificates addressed by alias.
//
// Implementations return ErrEntryNotFound or ErrEntryType (possibly wrapped)
// when the alias is missing or holds another entry type; any other error is
// reported to the caller as a keystore access failure.
type Keystore interface {
	// GetPrivateKeyEntry unlocks the private key stored under alias.
	GetPrivateKeyEntry(alias string, password []byte) (crypto.Signer, error)
	// GetCertificateEntry returns the certificate stored under alias.
	GetCertificateEntry(alias string) (*x509.Certificate, error)
}
