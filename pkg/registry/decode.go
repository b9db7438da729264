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

// Package registry provides binding contexts that map reference names to
// credentials: an in-memory registry, SQLite and Vault backed registries, a
// chain over several of them, and a Rebinder that re-binds configurations
// when a registry changes.
//
// Persistent registries store PEM text; Decode turns it into the value type
// credentials.BindingContext documents for each kind.
package registry

import (
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/keystore"
)

// SystemRandom is the stored value that decodes to crypto/rand.Reader for
// KindRandomSource.
const SystemRandom = "system"

// ErrNotFound is returned by registry reads when no entry exists.
var ErrNotFound = errors.New("registry entry not found")

// Decode converts stored data into the value expected for kind.
//
// Private and public keys are single PEM blocks, certificates may be a chain
// (the first one is used), keystores are PEM bundles with an "Alias" header on
// every block, and random sources must be SystemRandom.
func Decode(kind credentials.Kind, data []byte) (any, error) {
	switch kind {
	case credentials.KindPrivateKey:
		priv, err := cryptoutils.UnmarshalPEMToPrivateKey(data, cryptoutils.SkipPassword)
		if err != nil {
			return nil, fmt.Errorf("decode private key: %w", err)
		}
		signer, ok := priv.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("decode private key: unsupported type %T", priv)
		}
		return signer, nil
	case credentials.KindPublicKey:
		pub, err := cryptoutils.UnmarshalPEMToPublicKey(data)
		if err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		return pub, nil
	case credentials.KindCertificate:
		certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("decode certificate: %w", err)
		}
		if len(certs) == 0 {
			return nil, fmt.Errorf("decode certificate: no certificate found")
		}
		return certs[0], nil
	case credentials.KindKeystore:
		ks, err := keystore.ParseBundle(data)
		if err != nil {
			return nil, fmt.Errorf("decode keystore: %w", err)
		}
		return ks, nil
	case credentials.KindRandomSource:
		if strings.TrimSpace(string(data)) != SystemRandom {
			return nil, fmt.Errorf("decode random source: only %q is supported", SystemRandom)
		}
		return rand.Reader, nil
	default:
		return nil, fmt.Errorf("unknown credential kind %d", kind)
	}
}
