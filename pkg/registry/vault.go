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

package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/logging"
)

// VaultConfig locates credentials in a Vault KV v2 secrets engine.
// The secret for reference name N is read from <Mount>/data/<Path>/N, and
// the field named after the kind ("private-key", "certificate", ...) holds
// the encoded value.
type VaultConfig struct {
	Address string
	Token   string
	Mount   string
	Path    string
	// Timeout bounds each lookup. Defaults to DefaultLookupTimeout.
	Timeout time.Duration
}

// Vault is a read-only registry backed by HashiCorp Vault.
type Vault struct {
	client  *api.Client
	mount   string
	path    string
	timeout time.Duration
	logger  logging.Logger
}

var _ credentials.BindingContext = (*Vault)(nil)

// NewVault creates a Vault client for cfg.
func NewVault(cfg VaultConfig, logger logging.Logger) (*Vault, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}

	vc := api.DefaultConfig()
	if cfg.Address != "" {
		vc.Address = cfg.Address
	}
	vc.HttpClient = &http.Client{Timeout: timeout}

	client, err := api.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = "secret"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Vault{
		client:  client,
		mount:   mount,
		path:    strings.Trim(cfg.Path, "/"),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (v *Vault) secretPath(name string) string {
	if v.path == "" {
		return fmt.Sprintf("%s/data/%s", v.mount, name)
	}
	return fmt.Sprintf("%s/data/%s/%s", v.mount, v.path, name)
}

// Fetch returns the raw field for name and kind, or ErrNotFound.
func (v *Vault) Fetch(ctx context.Context, name string, kind credentials.Kind) ([]byte, error) {
	path := v.secretPath(name)
	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("read %s: not a KV v2 secret", path)
	}
	field, ok := data[kind.String()]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := field.(string)
	if !ok {
		return nil, fmt.Errorf("read %s: field %s is not a string", path, kind)
	}
	return []byte(s), nil
}

// LookupByNameAndType implements credentials.BindingContext. Transport and
// decode failures are logged and reported as not found.
func (v *Vault) LookupByNameAndType(name string, kind credentials.Kind) (any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	log := v.logger.WithFields(map[string]interface{}{"name": name, "kind": kind.String()})
	start := time.Now()
	data, err := v.Fetch(ctx, name, kind)
	if errors.Is(err, ErrNotFound) {
		log.Debugln("not found in Vault")
		return nil, false
	}
	if err != nil {
		log.Warn("Vault lookup failed: %v", err)
		return nil, false
	}
	value, err := Decode(kind, data)
	if err != nil {
		log.Warn("Vault entry is invalid: %v", err)
		return nil, false
	}
	log.WithField("duration", time.Since(start)).Debugln("fetched from Vault")
	return value, true
}
