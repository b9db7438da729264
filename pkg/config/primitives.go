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

package config

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

// KeyConfig points at a PEM file holding a key or certificate.
type KeyConfig struct {
	// Path is the file path to the PEM data.
	Path string
}

func (c *KeyConfig) read(what string) ([]byte, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("%s path is required", what)
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", what, err)
	}
	return data, nil
}

// LoadPublicKey loads a PKIX or PKCS1 public key.
// Only ECDSA (P-256, P-384, P-521), RSA and Ed25519 keys are accepted.
func (c *KeyConfig) LoadPublicKey() (crypto.PublicKey, error) {
	data, err := c.read("public key")
	if err != nil {
		return nil, err
	}
	key, err := cryptoutils.UnmarshalPEMToPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return validatePublicKey(key)
}

// LoadPrivateKey loads a private key, decrypting it with password when the
// PEM block is encrypted.
func (c *KeyConfig) LoadPrivateKey(password []byte) (crypto.Signer, error) {
	data, err := c.read("private key")
	if err != nil {
		return nil, err
	}
	priv, err := cryptoutils.UnmarshalPEMToPrivateKey(data, cryptoutils.StaticPasswordFunc(password))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type: %T", priv)
	}
	if _, err := validatePublicKey(signer.Public()); err != nil {
		return nil, err
	}
	return signer, nil
}

// LoadCertificate loads the first certificate of a PEM chain.
func (c *KeyConfig) LoadCertificate() (*x509.Certificate, error) {
	data, err := c.read("certificate")
	if err != nil {
		return nil, err
	}
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in %s", c.Path)
	}
	if _, err := validatePublicKey(certs[0].PublicKey); err != nil {
		return nil, err
	}
	return certs[0], nil
}

func validatePublicKey(key crypto.PublicKey) (crypto.PublicKey, error) {
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		switch name := k.Curve.Params().Name; name {
		case "P-256", "P-384", "P-521":
			return k, nil
		default:
			return nil, fmt.Errorf("unsupported elliptic curve: %s (supported: P-256, P-384, P-521)", name)
		}
	case *rsa.PublicKey:
		return k, nil
	case ed25519.PublicKey:
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported public key type: %T", key)
	}
}
