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

// Package engine signs and verifies message payloads with credentials
// resolved by a credentials.Configuration.
//
// Algorithms use JCE style names such as "SHA256withECDSA" or
// "SHA512withRSA/PSS". Payloads are streamed through the configured buffer
// size; verification goes through sigstore signature verifiers.
package engine

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sigstore/sigstore/pkg/signature"

	"github.com/sigstore/message-signing/pkg/credentials"
)

var (
	// ErrUnsupportedAlgorithm is returned for algorithm names not in the table.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	// ErrKeyMismatch is returned when a key cannot be used with the algorithm.
	ErrKeyMismatch = errors.New("key does not match signature algorithm")
	// ErrUnknownProvider is returned for provider ids the engine does not know.
	ErrUnknownProvider = errors.New("unknown signature provider")
	// ErrSignatureMismatch is returned when a signature does not verify.
	ErrSignatureMismatch = errors.New("signature verification failed")
)

// Algorithm describes a supported signature algorithm.
type Algorithm struct {
	// Name is the canonical name, e.g. "SHA256withECDSA".
	Name string
	// Hash is zero for algorithms that sign the raw message (Ed25519).
	Hash    crypto.Hash
	KeyType signature.PublicKeyType
	// PSS selects RSASSA-PSS instead of PKCS#1 v1.5.
	PSS bool
}

var algorithms = map[string]Algorithm{}

func register(a Algorithm) {
	algorithms[strings.ToLower(a.Name)] = a
}

func init() {
	for _, h := range []struct {
		prefix string
		hash   crypto.Hash
	}{
		{"SHA256", crypto.SHA256},
		{"SHA384", crypto.SHA384},
		{"SHA512", crypto.SHA512},
	} {
		register(Algorithm{Name: h.prefix + "withECDSA", Hash: h.hash, KeyType: signature.ECDSA})
		register(Algorithm{Name: h.prefix + "withRSA", Hash: h.hash, KeyType: signature.RSA})
		register(Algorithm{Name: h.prefix + "withRSA/PSS", Hash: h.hash, KeyType: signature.RSA, PSS: true})
	}
	register(Algorithm{Name: "Ed25519", KeyType: signature.ED25519})
}

// LookupAlgorithm returns the algorithm for name, ignoring case. An empty
// name selects credentials.DefaultAlgorithm.
func LookupAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		name = credentials.DefaultAlgorithm
	}
	a, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
	return a, nil
}

// Algorithms returns the canonical names of all supported algorithms.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for _, a := range algorithms {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// signerOpts returns the options passed to crypto.Signer.Sign.
func (a Algorithm) signerOpts() crypto.SignerOpts {
	if a.PSS {
		return &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: a.Hash}
	}
	return a.Hash
}

// checkKey verifies pub is usable with a.
func (a Algorithm) checkKey(pub crypto.PublicKey) error {
	var kt signature.PublicKeyType
	switch pub.(type) {
	case *ecdsa.PublicKey:
		kt = signature.ECDSA
	case *rsa.PublicKey:
		kt = signature.RSA
	case ed25519.PublicKey:
		kt = signature.ED25519
	default:
		return fmt.Errorf("%w: unsupported key type %T", ErrKeyMismatch, pub)
	}
	if kt != a.KeyType {
		return fmt.Errorf("%w: %s with %T", ErrKeyMismatch, a.Name, pub)
	}
	return nil
}

// verifier loads a sigstore verifier for pub.
func (a Algorithm) verifier(pub crypto.PublicKey) (signature.Verifier, error) {
	if err := a.checkKey(pub); err != nil {
		return nil, err
	}
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return signature.LoadECDSAVerifier(k, a.Hash)
	case *rsa.PublicKey:
		if a.PSS {
			return signature.LoadRSAPSSVerifier(k, a.Hash, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: a.Hash})
		}
		return signature.LoadRSAPKCS1v15Verifier(k, a.Hash)
	case ed25519.PublicKey:
		return signature.LoadED25519Verifier(k)
	}
	return nil, fmt.Errorf("%w: unsupported key type %T", ErrKeyMismatch, pub)
}
