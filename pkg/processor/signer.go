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

package processor

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/engine"
	"github.com/sigstore/message-signing/pkg/logging"
	"github.com/sigstore/message-signing/pkg/tracing"
)

// Signer adds a base64 signature header to messages.
type Signer struct {
	template    *credentials.Configuration
	engine      *engine.Engine
	logger      logging.Logger
	invocations atomic.Uint64
}

// NewSigner returns a Signer using template. Each message works on a clone,
// so the template may be re-bound concurrently but its setters must not be
// called while the Signer is in use.
func NewSigner(template *credentials.Configuration, eng *engine.Engine, logger logging.Logger) *Signer {
	if eng == nil {
		eng = engine.New(logger)
	}
	return &Signer{template: template, engine: eng, logger: logging.EnsureLogger(logger)}
}

// Invocations returns the number of Process calls.
func (s *Signer) Invocations() uint64 { return s.invocations.Load() }

// Process signs msg.Body and stores the signature in the configured header.
// The keystore alias and password headers, when present, override the
// configured values for this message only.
func (s *Signer) Process(ctx context.Context, msg *Message) error {
	s.invocations.Inc()
	cfg := s.template.Clone()
	id := uuid.NewString()
	if cfg.ClearHeaders() {
		defer msg.RemoveHeaders(HeaderKeystoreAlias, HeaderKeystorePassword)
	}

	alias, err := msg.headerString(HeaderKeystoreAlias)
	if err != nil {
		return err
	}
	if alias == "" {
		alias = cfg.Alias()
	}
	password, err := msg.headerBytes(HeaderKeystorePassword)
	if err != nil {
		return err
	}
	if password == nil {
		password = cfg.Password()
	}

	log := s.logger.WithFields(map[string]interface{}{
		"invocation": id,
		"alias":      alias,
		"algorithm":  cfg.Algorithm(),
	})

	err = tracing.Run(ctx, "processor.sign", map[string]interface{}{
		"invocation": id,
		"alias":      alias,
	}, func(ctx context.Context) error {
		key, err := cfg.ResolvePrivateKey(alias, password)
		if err != nil {
			return err
		}
		sig, err := s.engine.SignBytes(ctx, engine.SettingsFrom(cfg), key, msg.Body)
		if err != nil {
			return err
		}
		msg.SetHeader(cfg.SignatureHeader(), base64.StdEncoding.EncodeToString(sig))
		return nil
	})
	if err != nil {
		log.Error("signing failed: %v", err)
		return fmt.Errorf("sign message: %w", err)
	}
	log.Infoln("message signed")
	return nil
}
