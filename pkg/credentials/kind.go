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

// Package credentials holds the key material used to sign and verify messages.
//
// A Configuration keeps five credential slots (private key, public key,
// certificate, keystore and random source). Each slot can carry a direct
// value, a reference name resolved against a BindingContext, or both.
// References are looked up every time Bind is called; a failed lookup never
// clears a value that was already present. Keystore entries are selected by
// alias at the time a private key or certificate is requested.
package credentials

import (
	"fmt"
	"strings"
)

// Kind identifies a credential slot.
type Kind int

const (
	// KindPrivateKey is the signing key slot.
	KindPrivateKey Kind = iota
	// KindPublicKey is the verification key slot.
	KindPublicKey
	// KindCertificate is the verification certificate slot.
	KindCertificate
	// KindKeystore is the keystore used for alias lookups.
	KindKeystore
	// KindRandomSource is the entropy source handed to the signer.
	KindRandomSource
)

// Kinds lists every slot in bind order.
var Kinds = []Kind{KindKeystore, KindPublicKey, KindPrivateKey, KindCertificate, KindRandomSource}

// String returns the name used for the kind in configuration files and registries.
func (k Kind) String() string {
	switch k {
	case KindPrivateKey:
		return "private-key"
	case KindPublicKey:
		return "public-key"
	case KindCertificate:
		return "certificate"
	case KindKeystore:
		return "keystore"
	case KindRandomSource:
		return "random"
	default:
		return "unknown"
	}
}

// ParseKind parses the name produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "private-key", "privatekey":
		return KindPrivateKey, nil
	case "public-key", "publickey":
		return KindPublicKey, nil
	case "certificate", "cert":
		return KindCertificate, nil
	case "keystore":
		return KindKeystore, nil
	case "random", "secure-random":
		return KindRandomSource, nil
	default:
		return 0, fmt.Errorf("unknown credential kind %q", s)
	}
}
