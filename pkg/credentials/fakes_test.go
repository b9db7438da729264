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
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errWrongPassword = errors.New("wrong password")

// fakeKeystore holds password protected keys and certificates by alias.
type fakeKeystore struct {
	keys     map[string]crypto.Signer
	certs    map[string]*x509.Certificate
	password []byte
}

func (f *fakeKeystore) GetPrivateKeyEntry(alias string, password []byte) (crypto.Signer, error) {
	key, ok := f.keys[alias]
	if !ok {
		if _, isCert := f.certs[alias]; isCert {
			return nil, ErrEntryType
		}
		return nil, ErrEntryNotFound
	}
	if !bytes.Equal(password, f.password) {
		return nil, errWrongPassword
	}
	return key, nil
}

func (f *fakeKeystore) GetCertificateEntry(alias string) (*x509.Certificate, error) {
	cert, ok := f.certs[alias]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return cert, nil
}

// registry is a map backed BindingContext that counts lookups.
type registry struct {
	values  map[string]any
	lookups int
}

func (r *registry) lookup(name string, _ Kind) (any, bool) {
	r.lookups++
	v, ok := r.values[name]
	return v, ok
}

func (r *registry) context() BindingContext {
	return BindingContextFunc(r.lookup)
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func newCert(t *testing.T, key *ecdsa.PrivateKey, cn string) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
