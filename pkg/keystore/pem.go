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

// Package keystore provides alias-addressed stores of private keys and
// certificates for credentials.Configuration.
//
// PEMKeystore keeps PEM encoded entries in memory, optionally encrypted with
// a per-entry password. PKCS11Keystore looks entries up by object label on a
// hardware token.
package keystore

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/sigstore/message-signing/pkg/credentials"
)

var _ credentials.Keystore = (*PEMKeystore)(nil)

// Extensions recognized by LoadDir.
var pemExtensions = map[string]bool{
	".pem": true,
	".key": true,
	".crt": true,
	".cer": true,
}

type pemEntry struct {
	// key holds the encoded private key block, decrypted on demand.
	key  []byte
	cert *x509.Certificate
}

// PEMKeystore is an in-memory keystore of PEM entries. It is safe for
// concurrent use.
type PEMKeystore struct {
	mu      sync.RWMutex
	entries map[string]*pemEntry
}

// NewPEMKeystore returns an empty keystore.
func NewPEMKeystore() *PEMKeystore {
	return &PEMKeystore{entries: make(map[string]*pemEntry)}
}

// Add stores every private key and certificate block found in data under
// alias. A later block of the same kind replaces an earlier one. Private keys
// are kept encoded, so encrypted keys are only unlocked by GetPrivateKeyEntry.
func (ks *PEMKeystore) Add(alias string, data []byte) error {
	if alias == "" {
		return fmt.Errorf("alias must not be empty")
	}

	var (
		key   []byte
		cert  *x509.Certificate
		found bool
	)
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch {
		case block.Type == string(cryptoutils.CertificatePEMType):
			c, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("alias %q: failed to parse certificate: %w", alias, err)
			}
			cert, found = c, true
		case strings.HasSuffix(block.Type, "PRIVATE KEY"):
			key, found = pem.EncodeToMemory(block), true
		}
	}
	if !found {
		return fmt.Errorf("alias %q: no private key or certificate PEM block found", alias)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	e, ok := ks.entries[alias]
	if !ok {
		e = &pemEntry{}
		ks.entries[alias] = e
	}
	if key != nil {
		e.key = key
	}
	if cert != nil {
		e.cert = cert
	}
	return nil
}

// AddCertificate stores cert under alias.
func (ks *PEMKeystore) AddCertificate(alias string, cert *x509.Certificate) error {
	if cert == nil {
		return fmt.Errorf("alias %q: nil certificate", alias)
	}
	data, err := cryptoutils.MarshalCertificateToPEM(cert)
	if err != nil {
		return fmt.Errorf("alias %q: %w", alias, err)
	}
	return ks.Add(alias, data)
}

// LoadDir adds every .pem, .key, .crt and .cer file in dir. The alias is the
// file name without its extension, so "signer.key" and "signer.crt" form a
// single entry.
func (ks *PEMKeystore) LoadDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read keystore directory: %w", err)
	}
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if f.IsDir() || !pemExtensions[ext] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name(), err)
		}
		if err := ks.Add(strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())), data); err != nil {
			return err
		}
	}
	return nil
}

// Aliases returns the stored aliases in sorted order.
func (ks *PEMKeystore) Aliases() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	aliases := make([]string, 0, len(ks.entries))
	for a := range ks.entries {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases
}

// GetPrivateKeyEntry decodes the private key stored under alias, decrypting
// it with password when the entry is encrypted.
func (ks *PEMKeystore) GetPrivateKeyEntry(alias string, password []byte) (crypto.Signer, error) {
	ks.mu.RLock()
	e, ok := ks.entries[alias]
	ks.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("alias %q: %w", alias, credentials.ErrEntryNotFound)
	}
	if e.key == nil {
		return nil, fmt.Errorf("alias %q holds a certificate: %w", alias, credentials.ErrEntryType)
	}

	priv, err := cryptoutils.UnmarshalPEMToPrivateKey(e.key, cryptoutils.StaticPasswordFunc(password))
	if err != nil {
		return nil, fmt.Errorf("alias %q: failed to unlock private key: %w", alias, err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("alias %q: unsupported private key type %T", alias, priv)
	}
	return signer, nil
}

// GetCertificateEntry returns the certificate stored under alias.
func (ks *PEMKeystore) GetCertificateEntry(alias string) (*x509.Certificate, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	e, ok := ks.entries[alias]
	if !ok {
		return nil, fmt.Errorf("alias %q: %w", alias, credentials.ErrEntryNotFound)
	}
	if e.cert == nil {
		return nil, fmt.Errorf("alias %q holds a private key: %w", alias, credentials.ErrEntryType)
	}
	return e.cert, nil
}

// AliasHeader is the PEM header naming the alias of a block in a bundle.
const AliasHeader = "Alias"

// ParseBundle builds a keystore from a PEM bundle in which every block
// carries an "Alias" header. Blocks sharing an alias form one entry.
func ParseBundle(data []byte) (*PEMKeystore, error) {
	ks := NewPEMKeystore()
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		alias := block.Headers[AliasHeader]
		if alias == "" {
			return nil, fmt.Errorf("%s block without %s header", block.Type, AliasHeader)
		}
		delete(block.Headers, AliasHeader)
		if err := ks.Add(alias, pem.EncodeToMemory(block)); err != nil {
			return nil, err
		}
	}
	if len(ks.entries) == 0 {
		return nil, fmt.Errorf("no PEM blocks found in keystore bundle")
	}
	return ks, nil
}
