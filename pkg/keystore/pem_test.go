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

package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/message-signing/pkg/credentials"
)

func encryptedKeyPEM(t *testing.T, password string) []byte {
	t.Helper()
	priv, _, err := cryptoutils.GeneratePEMEncodedECDSAKeyPair(elliptic.P256(), cryptoutils.StaticPasswordFunc([]byte(password)))
	require.NoError(t, err)
	return priv
}

func plainKeyPEM(t *testing.T) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	data, err := cryptoutils.MarshalPrivateKeyToPEM(key)
	require.NoError(t, err)
	return data, key
}

func selfSigned(t *testing.T, key *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "signer"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestPEMKeystorePlainKey(t *testing.T) {
	data, key := plainKeyPEM(t)
	ks := NewPEMKeystore()
	require.NoError(t, ks.Add("signer", data))

	got, err := ks.GetPrivateKeyEntry("signer", nil)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(got.Public()))
}

func TestPEMKeystoreEncryptedKey(t *testing.T) {
	ks := NewPEMKeystore()
	require.NoError(t, ks.Add("signer", encryptedKeyPEM(t, "changeit")))

	got, err := ks.GetPrivateKeyEntry("signer", []byte("changeit"))
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = ks.GetPrivateKeyEntry("signer", []byte("wrong"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, credentials.ErrEntryNotFound)
	assert.NotErrorIs(t, err, credentials.ErrEntryType)
}

func TestPEMKeystoreMissingAndWrongType(t *testing.T) {
	_, key := plainKeyPEM(t)
	ks := NewPEMKeystore()
	require.NoError(t, ks.AddCertificate("ca", selfSigned(t, key)))

	_, err := ks.GetPrivateKeyEntry("nobody", nil)
	assert.ErrorIs(t, err, credentials.ErrEntryNotFound)

	_, err = ks.GetPrivateKeyEntry("ca", nil)
	assert.ErrorIs(t, err, credentials.ErrEntryType)

	_, err = ks.GetCertificateEntry("nobody")
	assert.ErrorIs(t, err, credentials.ErrEntryNotFound)
}

func TestPEMKeystoreAddRejectsGarbage(t *testing.T) {
	ks := NewPEMKeystore()
	assert.Error(t, ks.Add("x", []byte("not pem")))
	assert.Error(t, ks.Add("", []byte("not pem")))
	assert.Empty(t, ks.Aliases())
}

func TestPEMKeystoreLoadDir(t *testing.T) {
	dir := t.TempDir()
	keyPEM, key := plainKeyPEM(t)
	certPEM, err := cryptoutils.MarshalCertificateToPEM(selfSigned(t, key))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "signer.key"), keyPEM, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "signer.crt"), certPEM, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ca.pem"), certPEM, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("ignored"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pem"), 0o700))

	ks := NewPEMKeystore()
	require.NoError(t, ks.LoadDir(dir))
	assert.Equal(t, []string{"ca", "signer"}, ks.Aliases())

	signer, err := ks.GetPrivateKeyEntry("signer", nil)
	require.NoError(t, err)
	cert, err := ks.GetCertificateEntry("signer")
	require.NoError(t, err)
	assert.True(t, signer.Public().(*ecdsa.PublicKey).Equal(cert.PublicKey))
}

func TestPEMKeystoreWithConfiguration(t *testing.T) {
	k1PEM, k1 := plainKeyPEM(t)
	_, k2 := plainKeyPEM(t)
	ks := NewPEMKeystore()
	require.NoError(t, ks.Add("signer", k1PEM))

	cfg := credentials.New().SetKeystore(ks).SetPrivateKey(k2)

	got, err := cfg.ResolvePrivateKey("signer", nil)
	require.NoError(t, err)
	assert.True(t, k1.PublicKey.Equal(got.Public()))

	got, err = cfg.ResolvePrivateKey("missing", nil)
	require.NoError(t, err)
	assert.Same(t, k2, got)
}

func TestPEMKeystoreWrongPasswordThroughConfiguration(t *testing.T) {
	_, direct := plainKeyPEM(t)
	ks := NewPEMKeystore()
	require.NoError(t, ks.Add("signer", encryptedKeyPEM(t, "right")))

	cfg := credentials.New().SetKeystore(ks).SetPrivateKey(direct)
	_, err := cfg.ResolvePrivateKey("signer", []byte("wrong"))
	assert.ErrorIs(t, err, credentials.ErrKeystoreAccess)
}

func TestParseBundle(t *testing.T) {
	keyPEM, key := plainKeyPEM(t)
	cert := selfSigned(t, key)

	keyBlock, _ := pem.Decode(keyPEM)
	keyBlock.Headers = map[string]string{AliasHeader: "signer"}
	bundle := pem.EncodeToMemory(keyBlock)
	bundle = append(bundle, pem.EncodeToMemory(&pem.Block{
		Type:    "CERTIFICATE",
		Headers: map[string]string{AliasHeader: "signer"},
		Bytes:   cert.Raw,
	})...)

	ks, err := ParseBundle(bundle)
	require.NoError(t, err)
	assert.Equal(t, []string{"signer"}, ks.Aliases())

	_, err = ks.GetPrivateKeyEntry("signer", nil)
	require.NoError(t, err)
	got, err := ks.GetCertificateEntry("signer")
	require.NoError(t, err)
	assert.True(t, cert.Equal(got))

	_, err = ParseBundle(keyPEM)
	assert.Error(t, err, "blocks need an alias header")
}
