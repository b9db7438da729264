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

package cli

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir, message, privateKey, publicKey, certificate, keystoreDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o600))
		return path
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	privPEM, err := cryptoutils.MarshalPrivateKeyToPEM(key)
	require.NoError(t, err)
	pubPEM, err := cryptoutils.MarshalPublicKeyToPEM(key.Public())
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(11),
		Subject:      pkix.Name{CommonName: "cli"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	certPEM := cryptoutils.PEMEncode(cryptoutils.CertificatePEMType, der)

	ksDir := filepath.Join(dir, "keystore")
	require.NoError(t, os.Mkdir(ksDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(ksDir, "signer.pem"), append(append([]byte{}, privPEM...), certPEM...), 0o600))

	return fixture{
		dir:         dir,
		message:     write("message.txt", []byte("hello world\n")),
		privateKey:  write("key.pem", privPEM),
		publicKey:   write("key.pub", pubPEM),
		certificate: write("cert.pem", certPEM),
		keystoreDir: ksDir,
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := New()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSignVerifyWithKeyFiles(t *testing.T) {
	fx := newFixture(t)

	out, err := run(t, "sign", "--private-key", fx.privateKey, fx.message)
	require.NoError(t, err)
	assert.Contains(t, out, fx.message+".sig")

	out, err = run(t, "verify", "--public-key", fx.publicKey, "--signature", fx.message+".sig", fx.message)
	require.NoError(t, err)
	assert.Contains(t, out, "Verification succeeded")

	require.NoError(t, os.WriteFile(fx.message, []byte("tampered"), 0o600))
	_, err = run(t, "verify", "--public-key", fx.publicKey, "--signature", fx.message+".sig", fx.message)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestSignVerifyWithKeystoreAlias(t *testing.T) {
	fx := newFixture(t)
	sig := filepath.Join(fx.dir, "out.sig")

	_, err := run(t, "sign", "--keystore-dir", fx.keystoreDir, "--alias", "signer", "--signature", sig, fx.message)
	require.NoError(t, err)

	_, err = run(t, "verify", "--keystore-dir", fx.keystoreDir, "--alias", "signer", "--signature", sig, fx.message)
	require.NoError(t, err)
}

func TestSignVerifyBundle(t *testing.T) {
	fx := newFixture(t)

	_, err := run(t, "sign", "--bundle", "--private-key", fx.privateKey, "--certificate", fx.certificate, fx.message)
	require.NoError(t, err)
	bundlePath := fx.message + ".sigstore.json"
	require.FileExists(t, bundlePath)

	// the embedded certificate is enough
	_, err = run(t, "verify", "--bundle", "--signature", bundlePath, fx.message)
	require.NoError(t, err)
}

func TestSignWithoutKey(t *testing.T) {
	fx := newFixture(t)
	_, err := run(t, "sign", fx.message)
	assert.ErrorContains(t, err, "CredentialUnavailable")
}

func TestFlagsFromEnvironment(t *testing.T) {
	fx := newFixture(t)
	t.Setenv("MESSAGE_SIGNING_PRIVATE_KEY", fx.privateKey)
	t.Setenv("MESSAGE_SIGNING_ALGORITHM", "SHA384withECDSA")

	_, err := run(t, "sign", fx.message)
	require.NoError(t, err)

	_, err = run(t, "verify", "--public-key", fx.publicKey, "--algorithm", "SHA256withECDSA", "--signature", fx.message+".sig", fx.message)
	assert.Error(t, err, "signed with SHA-384, verified with SHA-256")
}

func TestResolve(t *testing.T) {
	fx := newFixture(t)
	cfgPath := filepath.Join(fx.dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
alias: signer
keystore: {dir: `+fx.keystoreDir+`}
publicKey: {ref: verify-key}
random: {ref: rng}
registry:
  memory:
    - {name: verify-key, kind: public-key, path: `+fx.publicKey+`}
    - {name: rng, kind: random, value: system}
`), 0o600))

	out, err := run(t, "resolve", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "keystore:signer")
	assert.Contains(t, out, "registry:verify-key")
	assert.Contains(t, out, "registry:rng")
	assert.Regexp(t, `keystore\s+-\s+yes\s+`+regexp.QuoteMeta(fx.keystoreDir), out)
}
