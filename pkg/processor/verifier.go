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
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/engine"
	"github.com/sigstore/message-signing/pkg/logging"
	"github.com/sigstore/message-signing/pkg/tracing"
)

// Verifier checks the signature header of messages.
type Verifier struct {
	template    *credentials.Configuration
	engine      *engine.Engine
	logger      logging.Logger
	invocations atomic.Uint64
}

// NewVerifier returns a Verifier using template.
func NewVerifier(template *credentials.Configuration, eng *engine.Engine, logger logging.Logger) *Verifier {
	if eng == nil {
		eng = engine.New(logger)
	}
	return &Verifier{template: template, engine: eng, logger: logging.EnsureLogger(logger)}
}

// Invocations returns the number of Process calls.
func (v *Verifier) Invocations() uint64 { return v.invocations.Load() }

// Process verifies the signature header against msg.Body.
//
// The verification key comes from the HeaderPublicKeyOrCert header, else the
// configured public key, else the certificate resolved for the alias. With
// header clearing enabled the signature and key headers are removed once
// the signature verified.
func (v *Verifier) Process(ctx context.Context, msg *Message) error {
	v.invocations.Inc()
	cfg := v.template.Clone()
	id := uuid.NewString()

	encoded, err := msg.headerString(cfg.SignatureHeader())
	if err != nil {
		return err
	}
	if encoded == "" {
		return fmt.Errorf("%w: header %s", ErrMissingSignature, cfg.SignatureHeader())
	}
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("signature header %s is not base64: %w", cfg.SignatureHeader(), err)
	}

	alias, err := msg.headerString(HeaderKeystoreAlias)
	if err != nil {
		return err
	}
	if alias == "" {
		alias = cfg.Alias()
	}

	log := v.logger.WithFields(map[string]interface{}{
		"invocation": id,
		"alias":      alias,
		"algorithm":  cfg.Algorithm(),
	})

	err = tracing.Run(ctx, "processor.verify", map[string]interface{}{
		"invocation": id,
		"alias":      alias,
	}, func(ctx context.Context) error {
		pub, err := verificationKey(cfg, msg, alias)
		if err != nil {
			return err
		}
		return v.engine.VerifyBytes(ctx, engine.SettingsFrom(cfg), pub, msg.Body, sig)
	})
	if err != nil {
		log.Warn("verification failed: %v", err)
		return fmt.Errorf("verify message: %w", err)
	}

	if cfg.ClearHeaders() {
		msg.RemoveHeaders(cfg.SignatureHeader(), HeaderKeystoreAlias, HeaderKeystorePassword, HeaderPublicKeyOrCert)
	}
	log.Infoln("signature verified")
	return nil
}

func verificationKey(cfg *credentials.Configuration, msg *Message, alias string) (crypto.PublicKey, error) {
	if raw, ok := msg.Header(HeaderPublicKeyOrCert); ok && raw != nil {
		switch k := raw.(type) {
		case *x509.Certificate:
			return k.PublicKey, nil
		case interface{ Equal(crypto.PublicKey) bool }:
			return k, nil
		default:
			return nil, fmt.Errorf("header %s has type %T, want a public key or certificate", HeaderPublicKeyOrCert, raw)
		}
	}
	if pub, err := cfg.ResolvePublicKey(); err == nil {
		return pub, nil
	}
	cert, err := cfg.ResolveCertificate(alias)
	if err != nil {
		if errors.Is(err, credentials.ErrCredentialUnavailable) {
			return nil, fmt.Errorf("no public key or certificate for verification: %w", err)
		}
		return nil, err
	}
	return cert.PublicKey, nil
}
