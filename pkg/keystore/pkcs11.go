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
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/ThalesGroup/crypto11"

	"github.com/sigstore/message-signing/pkg/credentials"
)

// PINEnv is consulted when the URI does not carry a PIN.
const PINEnv = "PKCS11_PIN"

var _ credentials.Keystore = (*PKCS11Keystore)(nil)

// PKCS11Keystore exposes the key pairs and certificates of a PKCS#11 token.
// The alias is the object label, or "id:<hex>" to select by CKA_ID.
//
// The token is logged into once with the PIN from the URI, so the per-entry
// password passed to GetPrivateKeyEntry is not used.
type PKCS11Keystore struct {
	ctx *crypto11.Context
	uri *PKCS11URI
}

// OpenPKCS11 parses uri, loads the module it names (searching moduleDirs)
// and logs into the token. Close releases the session.
func OpenPKCS11(uri string, moduleDirs []string) (*PKCS11Keystore, error) {
	parsed, err := ParsePKCS11URI(uri)
	if err != nil {
		return nil, err
	}
	module, err := parsed.Module(moduleDirs)
	if err != nil {
		return nil, fmt.Errorf("failed to find PKCS#11 module: %w", err)
	}
	pin, err := parsed.PIN()
	if err != nil {
		return nil, err
	}
	if pin == "" {
		pin = os.Getenv(PINEnv)
	}

	cfg := &crypto11.Config{Path: module, Pin: pin}
	if parsed.Token != "" {
		cfg.TokenLabel = parsed.Token
	} else {
		slot := parsed.SlotID
		cfg.SlotNumber = &slot
	}

	ctx, err := crypto11.Configure(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure PKCS#11 context: %w", err)
	}
	return &PKCS11Keystore{ctx: ctx, uri: parsed}, nil
}

// DefaultAlias returns the object label from the URI, if any.
func (ks *PKCS11Keystore) DefaultAlias() string {
	return ks.uri.Object
}

// GetPrivateKeyEntry finds the key pair selected by alias.
func (ks *PKCS11Keystore) GetPrivateKeyEntry(alias string, _ []byte) (crypto.Signer, error) {
	id, label, err := objectSelector(alias)
	if err != nil {
		return nil, err
	}
	signer, err := ks.ctx.FindKeyPair(id, label)
	if err != nil {
		return nil, fmt.Errorf("alias %q: %w", alias, err)
	}
	if signer == nil {
		return nil, fmt.Errorf("alias %q: %w", alias, credentials.ErrEntryNotFound)
	}
	return signer, nil
}

// GetCertificateEntry finds the certificate selected by alias.
func (ks *PKCS11Keystore) GetCertificateEntry(alias string) (*x509.Certificate, error) {
	id, label, err := objectSelector(alias)
	if err != nil {
		return nil, err
	}
	cert, err := ks.ctx.FindCertificate(id, label, nil)
	if err != nil {
		return nil, fmt.Errorf("alias %q: %w", alias, err)
	}
	if cert == nil {
		return nil, fmt.Errorf("alias %q: %w", alias, credentials.ErrEntryNotFound)
	}
	return cert, nil
}

// Close logs out and unloads the module.
func (ks *PKCS11Keystore) Close() error {
	if ks.ctx == nil {
		return nil
	}
	err := ks.ctx.Close()
	ks.ctx = nil
	if err != nil {
		return errors.Join(errors.New("failed to close PKCS#11 context"), err)
	}
	return nil
}
