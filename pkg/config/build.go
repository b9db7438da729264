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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/keystore"
	"github.com/sigstore/message-signing/pkg/logging"
	"github.com/sigstore/message-signing/pkg/registry"
)

// Built is the result of File.Build.
type Built struct {
	// Config has already been bound to Context.
	Config *credentials.Configuration
	// Context holds the configured registries in lookup order.
	Context registry.Chain
	// Memory is the in-memory registry, always first in Context.
	Memory *registry.Memory

	closers []io.Closer
}

// Close releases registries and keystores opened by Build.
func (b *Built) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Build opens the registries and keystore described by f, fills a new
// Configuration and binds it.
func (f *File) Build(logger logging.Logger) (_ *Built, err error) {
	logger = logging.EnsureLogger(logger)
	b := &Built{Memory: registry.NewMemory()}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	if err := f.buildRegistries(b, logger); err != nil {
		return nil, err
	}

	password := f.Password()
	cfg := credentials.New().
		SetLogger(logger).
		SetAlgorithm(f.Algorithm).
		SetBufferSize(f.BufferSize).
		SetProvider(f.Provider).
		SetSignatureHeader(f.SignatureHeader).
		SetCryptoOperation(f.Operation).
		SetAlias(f.Alias).
		SetPassword(password)
	if f.ClearHeaders != nil {
		cfg.SetClearHeaders(*f.ClearHeaders)
	}

	if f.PrivateKey.Path != "" {
		key, err := (&KeyConfig{Path: f.PrivateKey.Path}).LoadPrivateKey(password)
		if err != nil {
			return nil, fmt.Errorf("privateKey: %w", err)
		}
		cfg.SetPrivateKey(key)
	}
	if f.PublicKey.Path != "" {
		key, err := (&KeyConfig{Path: f.PublicKey.Path}).LoadPublicKey()
		if err != nil {
			return nil, fmt.Errorf("publicKey: %w", err)
		}
		cfg.SetPublicKey(key)
	}
	if f.Certificate.Path != "" {
		cert, err := (&KeyConfig{Path: f.Certificate.Path}).LoadCertificate()
		if err != nil {
			return nil, fmt.Errorf("certificate: %w", err)
		}
		cfg.SetCertificate(cert)
	}
	ks, err := f.openKeystore(b)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	if ks != nil {
		cfg.SetKeystore(ks)
	}

	cfg.SetPrivateKeyRef(f.PrivateKey.Ref).
		SetPublicKeyRef(f.PublicKey.Ref).
		SetCertificateRef(f.Certificate.Ref).
		SetKeystoreRef(f.Keystore.Ref).
		SetRandomSourceRef(f.Random.Ref)
	cfg.Bind(b.Context)

	b.Config = cfg
	return b, nil
}

func (f *File) buildRegistries(b *Built, logger logging.Logger) error {
	for i, e := range f.Registry.Memory {
		kind, err := credentials.ParseKind(e.Kind)
		if err != nil {
			return fmt.Errorf("registry.memory[%d]: %w", i, err)
		}
		data := []byte(e.Value)
		if e.Path != "" {
			if data, err = os.ReadFile(e.Path); err != nil {
				return fmt.Errorf("registry.memory[%d]: %w", i, err)
			}
		}
		if err := b.Memory.PutPEM(e.Name, kind, data); err != nil {
			return fmt.Errorf("registry.memory[%d]: %w", i, err)
		}
	}
	b.Context = append(b.Context, b.Memory)

	if f.Registry.SQLite != "" {
		db, err := registry.OpenSQLite(f.Registry.SQLite, logger)
		if err != nil {
			return fmt.Errorf("registry.sqlite: %w", err)
		}
		b.closers = append(b.closers, db)
		b.Context = append(b.Context, db)
	}

	if vc := f.Registry.Vault; vc != nil {
		env := vc.TokenEnv
		if env == "" {
			env = "VAULT_TOKEN"
		}
		v, err := registry.NewVault(registry.VaultConfig{
			Address: vc.Address,
			Token:   os.Getenv(env),
			Mount:   vc.Mount,
			Path:    vc.Path,
			Timeout: vc.Timeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("registry.vault: %w", err)
		}
		b.Context = append(b.Context, v)
	}
	return nil
}

func (f *File) openKeystore(b *Built) (credentials.Keystore, error) {
	k := f.Keystore
	switch {
	case k.Dir != "":
		ks := keystore.NewPEMKeystore()
		if err := ks.LoadDir(k.Dir); err != nil {
			return nil, err
		}
		return ks, nil
	case k.Bundle != "":
		data, err := os.ReadFile(k.Bundle)
		if err != nil {
			return nil, err
		}
		ks, err := keystore.ParseBundle(data)
		if err != nil {
			return nil, err
		}
		return ks, nil
	case k.PKCS11 != "":
		ks, err := keystore.OpenPKCS11(k.PKCS11, k.ModuleDirs)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, ks)
		return ks, nil
	}
	return nil, nil
}
