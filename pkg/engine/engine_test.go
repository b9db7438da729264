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

package engine

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/message-signing/pkg/credentials"
)

type testKeys struct {
	ec256   *ecdsa.PrivateKey
	ec384   *ecdsa.PrivateKey
	rsa     *rsa.PrivateKey
	ed25519 ed25519.PrivateKey
}

func newTestKeys(t *testing.T) testKeys {
	t.Helper()
	ec256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ec384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return testKeys{ec256: ec256, ec384: ec384, rsa: rsaKey, ed25519: edKey}
}

// opaqueSigner hides the concrete key type, like a token backed key would.
type opaqueSigner struct {
	crypto.Signer
}

func TestLookupAlgorithm(t *testing.T) {
	a, err := LookupAlgorithm("sha384WITHrsa/pss")
	require.NoError(t, err)
	assert.Equal(t, "SHA384withRSA/PSS", a.Name)
	assert.Equal(t, crypto.SHA384, a.Hash)
	assert.True(t, a.PSS)

	a, err = LookupAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, credentials.DefaultAlgorithm, a.Name)

	_, err = LookupAlgorithm("SHA1withDSA")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	assert.Contains(t, Algorithms(), "Ed25519")
	assert.Len(t, Algorithms(), 10)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	keys := newTestKeys(t)
	msg := []byte(strings.Repeat("message body ", 1000))

	tests := []struct {
		algorithm string
		provider  string
		key       crypto.Signer
	}{
		{"SHA256withECDSA", "", keys.ec256},
		{"SHA384withECDSA", ProviderDefault, keys.ec384},
		{"SHA512withECDSA", ProviderSigstore, keys.ec256},
		{"SHA256withRSA", "", keys.rsa},
		{"SHA512withRSA", ProviderSigstore, keys.rsa},
		{"SHA256withRSA/PSS", "", keys.rsa},
		{"SHA384withRSA/PSS", ProviderSigstore, keys.rsa},
		{"Ed25519", "", keys.ed25519},
		{"Ed25519", ProviderSigstore, keys.ed25519},
		{"SHA256withECDSA", ProviderPKCS11, opaqueSigner{keys.ec256}},
	}
	e := New(nil)
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.algorithm+"/"+tt.provider, func(t *testing.T) {
			s := Settings{Algorithm: tt.algorithm, Provider: tt.provider, BufferSize: 64}

			sig, err := e.SignBytes(ctx, s, tt.key, msg)
			require.NoError(t, err)

			require.NoError(t, e.VerifyBytes(ctx, s, tt.key.Public(), msg, sig))

			tampered := append([]byte{}, msg...)
			tampered[0] ^= 0xff
			err = e.VerifyBytes(ctx, s, tt.key.Public(), tampered, sig)
			assert.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}
	stats := e.Stats()
	assert.Equal(t, uint64(len(tests)), stats.Signed)
	assert.Equal(t, uint64(len(tests)), stats.Verified)
	assert.Equal(t, uint64(len(tests)), stats.Rejected)
}

func TestSignErrors(t *testing.T) {
	keys := newTestKeys(t)
	e := New(nil)
	ctx := context.Background()
	msg := []byte("hello")

	_, err := e.SignBytes(ctx, Settings{Algorithm: "SHA256withRSA"}, keys.ec256, msg)
	assert.ErrorIs(t, err, ErrKeyMismatch)

	_, err = e.SignBytes(ctx, Settings{Algorithm: "MD5withRSA"}, keys.rsa, msg)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = e.SignBytes(ctx, Settings{Provider: "BC"}, keys.ec256, msg)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = e.SignBytes(ctx, Settings{Provider: ProviderPKCS11}, keys.ec256, msg)
	assert.ErrorIs(t, err, ErrKeyMismatch, "pkcs11 provider refuses software keys")

	_, err = e.SignBytes(ctx, Settings{Provider: ProviderSigstore}, opaqueSigner{keys.ec256}, msg)
	assert.ErrorIs(t, err, ErrKeyMismatch)

	_, err = e.SignBytes(ctx, Settings{}, nil, msg)
	assert.Error(t, err)
}

func TestSignCanceledContext(t *testing.T) {
	keys := newTestKeys(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Sign(ctx, Settings{}, keys.ec256, bytes.NewReader([]byte("payload")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyWrongKey(t *testing.T) {
	keys := newTestKeys(t)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	e := New(nil)
	ctx := context.Background()

	sig, err := e.SignBytes(ctx, Settings{}, keys.ec256, []byte("payload"))
	require.NoError(t, err)
	err = e.VerifyBytes(ctx, Settings{}, other.Public(), []byte("payload"), sig)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	err = e.VerifyBytes(ctx, Settings{}, keys.rsa.Public(), []byte("payload"), sig)
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestSettingsFrom(t *testing.T) {
	src := bytes.NewReader(nil)
	cfg := credentials.New().
		SetAlgorithm("SHA512withRSA").
		SetProvider(ProviderSigstore).
		SetBufferSize(512).
		SetRandomSource(src)

	s := SettingsFrom(cfg)
	assert.Equal(t, "SHA512withRSA", s.Algorithm)
	assert.Equal(t, ProviderSigstore, s.Provider)
	assert.Equal(t, 512, s.BufferSize)
	assert.Same(t, src, s.Random)

	assert.Nil(t, SettingsFrom(credentials.New()).Random)
}

func selfSigned(t *testing.T, key crypto.Signer) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "bundle signer"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestBundleRoundTrip(t *testing.T) {
	keys := newTestKeys(t)
	e := New(nil)
	ctx := context.Background()
	payload := []byte(`{"order":42}`)

	for name, key := range map[string]crypto.Signer{
		"ecdsa-p256": keys.ec256,
		"ecdsa-p384": keys.ec384,
		"rsa":        keys.rsa,
		"ed25519":    keys.ed25519,
	} {
		t.Run(name, func(t *testing.T) {
			bundle, err := e.SignBundle(ctx, key, nil, nil, payload)
			require.NoError(t, err)
			assert.Contains(t, string(bundle), "messageSignature")

			require.NoError(t, e.VerifyBundle(ctx, key.Public(), bundle, payload))
			err = e.VerifyBundle(ctx, key.Public(), bundle, []byte(`{"order":43}`))
			assert.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}
}

func TestBundleWithCertificate(t *testing.T) {
	keys := newTestKeys(t)
	cert := selfSigned(t, keys.ec256)
	e := New(nil)
	ctx := context.Background()

	bundle, err := e.SignBundle(ctx, keys.ec256, cert, nil, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, e.VerifyBundle(ctx, nil, bundle, []byte("payload")))

	err = e.VerifyBundle(ctx, keys.ec384.Public(), bundle, []byte("payload"))
	assert.Error(t, err)
}

func TestVerifyBundleRejectsGarbage(t *testing.T) {
	keys := newTestKeys(t)
	err := New(nil).VerifyBundle(context.Background(), keys.ec256.Public(), []byte("{not json"), nil)
	assert.Error(t, err)

	err = New(nil).VerifyBundle(context.Background(), nil, []byte(`{}`), nil)
	assert.Error(t, err)
}

func TestKeypair(t *testing.T) {
	keys := newTestKeys(t)
	kp, err := NewKeypair(keys.ec256, nil)
	require.NoError(t, err)
	assert.Equal(t, "ECDSA", kp.GetKeyAlgorithm())
	assert.Len(t, kp.GetHint(), 64)

	pemStr, err := kp.GetPublicKeyPem()
	require.NoError(t, err)
	assert.Contains(t, pemStr, "PUBLIC KEY")

	sig, digest, err := kp.SignData(context.Background(), []byte("data"))
	require.NoError(t, err)
	assert.Len(t, digest, 32)
	assert.True(t, ecdsa.VerifyASN1(&keys.ec256.PublicKey, digest, sig))

	p224, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
	require.NoError(t, err)
	_, err = NewKeypair(p224, nil)
	assert.ErrorIs(t, err, ErrKeyMismatch)
}
