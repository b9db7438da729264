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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultAlgorithm, c.Algorithm())
	assert.Equal(t, DefaultBufferSize, c.BufferSize())
	assert.Equal(t, DefaultSignatureHeader, c.SignatureHeader())
	assert.True(t, c.ClearHeaders())
	assert.Empty(t, c.Provider())
	assert.Empty(t, c.CryptoOperation())
	assert.Nil(t, c.BindingContext())
}

func TestScalarSetters(t *testing.T) {
	c := New().
		SetAlgorithm("SHA512withRSA").
		SetBufferSize(4096).
		SetProvider("pkcs11").
		SetSignatureHeader("X-Signature").
		SetClearHeaders(false).
		SetCryptoOperation(OperationVerify)

	assert.Equal(t, "SHA512withRSA", c.Algorithm())
	assert.Equal(t, 4096, c.BufferSize())
	assert.Equal(t, "pkcs11", c.Provider())
	assert.Equal(t, "X-Signature", c.SignatureHeader())
	assert.False(t, c.ClearHeaders())
	assert.Equal(t, OperationVerify, c.CryptoOperation())

	c.SetAlgorithm("").SetBufferSize(-1).SetSignatureHeader("")
	assert.Equal(t, DefaultAlgorithm, c.Algorithm())
	assert.Equal(t, DefaultBufferSize, c.BufferSize())
	assert.Equal(t, DefaultSignatureHeader, c.SignatureHeader())
}

func TestReferenceFirstNonEmptyWins(t *testing.T) {
	c := New().
		SetPrivateKeyRef("").
		SetPrivateKeyRef("first").
		SetPrivateKeyRef("second").
		SetCertificateRef("cert").
		SetCertificateRef("")

	assert.Equal(t, "first", c.PrivateKeyRef())
	assert.Equal(t, "cert", c.CertificateRef())

	c.Bind((&registry{}).context())
	assert.Equal(t, "first", c.PrivateKeyRef(), "failed lookup keeps the reference")
}

func TestSetNilClearsDirectValue(t *testing.T) {
	c := New().SetPrivateKey(newKey(t))
	c.SetPrivateKey(nil)

	_, err := c.PrivateKey()
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
}

func TestCloneIndependence(t *testing.T) {
	k1, k2 := newKey(t), newKey(t)
	reg := (&registry{}).context()

	orig := New().
		SetPrivateKey(k1).
		SetPrivateKeyRef("pk").
		SetAlias("signer").
		SetPassword([]byte("secret"))
	orig.Bind(reg)

	clone := orig.Clone()
	clone.SetPrivateKey(k2).SetAlias("other").SetAlgorithm("SHA384withECDSA")
	clone.Password()[0] = 'X'
	clone.SetCertificateRef("cert")

	got, err := orig.PrivateKey()
	require.NoError(t, err)
	assert.Same(t, k1, got)
	assert.Equal(t, "signer", orig.Alias())
	assert.Equal(t, []byte("secret"), orig.Password())
	assert.Equal(t, DefaultAlgorithm, orig.Algorithm())
	assert.Empty(t, orig.CertificateRef())

	got, err = clone.PrivateKey()
	require.NoError(t, err)
	assert.Same(t, k2, got)
	assert.Equal(t, "pk", clone.PrivateKeyRef())
	assert.NotNil(t, clone.BindingContext(), "binding context is shared")
}

func TestBindOnCloneLeavesSourceUntouched(t *testing.T) {
	key := newKey(t)
	orig := New().SetPrivateKeyRef("pk")
	clone := orig.Clone()

	clone.Bind((&registry{values: map[string]any{"pk": key}}).context())

	_, err := orig.PrivateKey()
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	got, err := clone.PrivateKey()
	require.NoError(t, err)
	assert.Same(t, key, got)
}

func TestSetLoggerNil(t *testing.T) {
	c := New().SetLogger(nil)
	c.Bind((&registry{}).context())
	_, err := c.PrivateKey()
	assert.Error(t, err)
}

func TestBindConcurrentWithClone(t *testing.T) {
	keys := []any{newKey(t), newKey(t)}
	reg := &registry{values: map[string]any{}}
	template := New().SetPrivateKeyRef("pk").SetCertificateRef("cert")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			reg.values = map[string]any{"pk": keys[i%2]}
			template.Bind(reg.context())
		}
	}()
	for i := 0; i < 200; i++ {
		cp := template.Clone()
		if key, err := cp.PrivateKey(); err == nil {
			assert.NotNil(t, key)
		}
		_ = template.State()
		_ = template.BindingContext()
	}
	wg.Wait()

	key, err := template.PrivateKey()
	require.NoError(t, err)
	assert.Same(t, keys[1], key)
}
