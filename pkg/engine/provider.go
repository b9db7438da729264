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
	"bufio"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/sigstore/sigstore/pkg/signature"
	"github.com/sigstore/sigstore/pkg/signature/options"
)

// Provider ids accepted in Settings.Provider.
const (
	// ProviderDefault signs with the key's own crypto.Signer. An empty id
	// selects it too.
	ProviderDefault = "default"
	// ProviderSigstore signs through sigstore signature.Signer
	// implementations. It only accepts in-memory keys.
	ProviderSigstore = "sigstore"
	// ProviderPKCS11 behaves like ProviderDefault but refuses in-memory keys,
	// so a misconfigured keystore cannot silently fall back to a software key.
	ProviderPKCS11 = "pkcs11"
)

type signFunc func(a Algorithm, key crypto.Signer, msg io.Reader, bufSize int, random io.Reader) ([]byte, error)

var providers = map[string]signFunc{
	"":               signWithSigner,
	ProviderDefault:  signWithSigner,
	ProviderSigstore: signWithSigstore,
	ProviderPKCS11:   signWithToken,
}

func lookupProvider(id string) (signFunc, error) {
	fn, ok := providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return fn, nil
}

// digest hashes msg reading bufSize bytes at a time.
func digest(h crypto.Hash, msg io.Reader, bufSize int) ([]byte, error) {
	hasher := h.New()
	// Hide WriterTo so CopyBuffer uses buf.
	if _, err := io.CopyBuffer(hasher, struct{ io.Reader }{msg}, make([]byte, bufSize)); err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return hasher.Sum(nil), nil
}

func signWithSigner(a Algorithm, key crypto.Signer, msg io.Reader, bufSize int, random io.Reader) ([]byte, error) {
	if a.Hash == 0 {
		data, err := io.ReadAll(bufio.NewReaderSize(msg, bufSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read message: %w", err)
		}
		return key.Sign(random, data, crypto.Hash(0))
	}
	d, err := digest(a.Hash, msg, bufSize)
	if err != nil {
		return nil, err
	}
	return key.Sign(random, d, a.signerOpts())
}

func signWithSigstore(a Algorithm, key crypto.Signer, msg io.Reader, bufSize int, random io.Reader) ([]byte, error) {
	var (
		s   signature.Signer
		err error
	)
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		s, err = signature.LoadECDSASigner(k, a.Hash)
	case *rsa.PrivateKey:
		if a.PSS {
			s, err = signature.LoadRSAPSSSigner(k, a.Hash, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: a.Hash})
		} else {
			s, err = signature.LoadRSAPKCS1v15Signer(k, a.Hash)
		}
	case ed25519.PrivateKey:
		s, err = signature.LoadED25519Signer(k)
	default:
		return nil, fmt.Errorf("%w: provider %s cannot use %T", ErrKeyMismatch, ProviderSigstore, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sigstore signer: %w", err)
	}
	return s.SignMessage(bufio.NewReaderSize(msg, bufSize), options.WithRand(random))
}

func signWithToken(a Algorithm, key crypto.Signer, msg io.Reader, bufSize int, random io.Reader) ([]byte, error) {
	switch key.(type) {
	case *ecdsa.PrivateKey, *rsa.PrivateKey, ed25519.PrivateKey:
		return nil, fmt.Errorf("%w: provider %s requires a token key, got %T", ErrKeyMismatch, ProviderPKCS11, key)
	}
	return signWithSigner(a, key, msg, bufSize, random)
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func defaultRandom(r io.Reader) io.Reader {
	if r == nil {
		return rand.Reader
	}
	return r
}
