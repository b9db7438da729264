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

// Package config loads signer and verifier settings from YAML and builds the
// matching credentials.Configuration together with its binding context.
//
// A minimal file:
//
//	algorithm: SHA256withECDSA
//	alias: signer
//	passwordEnv: SIGNING_PASSWORD
//	keystore:
//	  dir: /etc/message-signing/keys
//	registry:
//	  sqlite: /var/lib/message-signing/credentials.db
//	certificate:
//	  ref: release-cert
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPassword is read when passwordEnv is not set in the file.
const EnvPassword = "MESSAGE_SIGNING_PASSWORD"

// File is the YAML configuration document.
type File struct {
	Algorithm       string `yaml:"algorithm"`
	BufferSize      int    `yaml:"bufferSize"`
	Provider        string `yaml:"provider"`
	SignatureHeader string `yaml:"signatureHeader"`
	// ClearHeaders defaults to true when omitted.
	ClearHeaders *bool  `yaml:"clearHeaders"`
	Operation    string `yaml:"operation"`
	Alias        string `yaml:"alias"`
	// PasswordEnv names the environment variable holding the keystore and
	// private key password.
	PasswordEnv string `yaml:"passwordEnv"`

	PrivateKey  SlotConfig     `yaml:"privateKey"`
	PublicKey   SlotConfig     `yaml:"publicKey"`
	Certificate SlotConfig     `yaml:"certificate"`
	Keystore    KeystoreConfig `yaml:"keystore"`
	Random      RandomConfig   `yaml:"random"`

	Registry RegistryConfig `yaml:"registry"`
}

// SlotConfig sets a key or certificate slot from a PEM file, a reference
// name, or both.
type SlotConfig struct {
	Path string `yaml:"path"`
	Ref  string `yaml:"ref"`
}

// KeystoreConfig selects at most one keystore source besides the reference.
type KeystoreConfig struct {
	// Dir is loaded with keystore.PEMKeystore.LoadDir.
	Dir string `yaml:"dir"`
	// Bundle is a PEM file whose blocks carry an Alias header.
	Bundle string `yaml:"bundle"`
	// PKCS11 is a pkcs11: URI.
	PKCS11     string   `yaml:"pkcs11"`
	ModuleDirs []string `yaml:"moduleDirs"`
	Ref        string   `yaml:"ref"`
}

// RandomConfig names the random source in the binding context.
type RandomConfig struct {
	Ref string `yaml:"ref"`
}

// RegistryConfig lists the binding contexts consulted, in this order:
// memory entries, SQLite, Vault.
type RegistryConfig struct {
	Memory []MemoryEntry `yaml:"memory"`
	SQLite string        `yaml:"sqlite"`
	Vault  *VaultConfig  `yaml:"vault"`
}

// MemoryEntry preloads one value into the in-memory registry. Path points at
// PEM data; Value holds it inline (e.g. "system" for a random source).
type MemoryEntry struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path"`
	Value string `yaml:"value"`
}

// VaultConfig locates a Vault KV v2 registry. The token is read from the
// TokenEnv variable, VAULT_TOKEN by default.
type VaultConfig struct {
	Address  string        `yaml:"address"`
	Mount    string        `yaml:"mount"`
	Path     string        `yaml:"path"`
	TokenEnv string        `yaml:"tokenEnv"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks settings that can be checked without touching the
// filesystem or the network.
func (f *File) Validate() error {
	var errs []error
	sources := 0
	for _, s := range []string{f.Keystore.Dir, f.Keystore.Bundle, f.Keystore.PKCS11} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		errs = append(errs, fmt.Errorf("keystore: only one of dir, bundle and pkcs11 may be set"))
	}
	if f.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("bufferSize must not be negative"))
	}
	switch strings.ToLower(f.Operation) {
	case "", "sign", "verify":
	default:
		errs = append(errs, fmt.Errorf("operation must be sign or verify, got %q", f.Operation))
	}
	for i, e := range f.Registry.Memory {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("registry.memory[%d]: name is required", i))
		}
		if (e.Path == "") == (e.Value == "") {
			errs = append(errs, fmt.Errorf("registry.memory[%d]: exactly one of path and value is required", i))
		}
	}
	if f.Registry.Vault != nil && f.Registry.Vault.Address == "" {
		errs = append(errs, fmt.Errorf("registry.vault: address is required"))
	}
	return errors.Join(errs...)
}

// Password returns the password from the configured environment variable,
// or nil when it is unset.
func (f *File) Password() []byte {
	env := f.PasswordEnv
	if env == "" {
		env = EnvPassword
	}
	if v, ok := os.LookupEnv(env); ok {
		return []byte(v)
	}
	return nil
}
