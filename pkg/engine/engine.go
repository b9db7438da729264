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

package engine

import (
	"bufio"
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"

	"go.uber.org/atomic"

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/logging"
	"github.com/sigstore/message-signing/pkg/tracing"
)

// Settings are the scalar options the engine takes from a configuration.
type Settings struct {
	Algorithm  string
	Provider   string
	BufferSize int
	// Random defaults to crypto/rand.Reader.
	Random io.Reader
}

// SettingsFrom copies the engine settings out of cfg. A random source that
// cannot be resolved leaves Random nil.
func SettingsFrom(cfg *credentials.Configuration) Settings {
	s := Settings{
		Algorithm:  cfg.Algorithm(),
		Provider:   cfg.Provider(),
		BufferSize: cfg.BufferSize(),
	}
	if r, err := cfg.ResolveRandomSource(); err == nil {
		s.Random = r
	}
	return s
}

func (s Settings) bufferSize() int {
	if s.BufferSize <= 0 {
		return credentials.DefaultBufferSize
	}
	return s.BufferSize
}

// Stats counts engine operations.
type Stats struct {
	Signed   uint64
	Verified uint64
	Rejected uint64
}

// Engine signs and verifies payloads. It is safe for concurrent use.
type Engine struct {
	logger logging.Logger

	signed   atomic.Uint64
	verified atomic.Uint64
	rejected atomic.Uint64
}

// New returns an Engine logging to logger (nil discards).
func New(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{logger: logger}
}

// Stats returns the operation counters.
func (e *Engine) Stats() Stats {
	return Stats{Signed: e.signed.Load(), Verified: e.verified.Load(), Rejected: e.rejected.Load()}
}

// Sign signs everything read from msg with key.
func (e *Engine) Sign(ctx context.Context, s Settings, key crypto.Signer, msg io.Reader) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("no signing key")
	}
	alg, err := LookupAlgorithm(s.Algorithm)
	if err != nil {
		return nil, err
	}
	sign, err := lookupProvider(s.Provider)
	if err != nil {
		return nil, err
	}
	if err := alg.checkKey(key.Public()); err != nil {
		return nil, err
	}

	var sig []byte
	err = tracing.Run(ctx, "engine.sign", map[string]interface{}{
		"algorithm": alg.Name,
		"provider":  s.Provider,
	}, func(ctx context.Context) error {
		var err error
		sig, err = sign(alg, key, ctxReader{ctx: ctx, r: msg}, s.bufferSize(), defaultRandom(s.Random))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s signing failed: %w", alg.Name, err)
	}

	e.signed.Inc()
	e.logger.WithFields(map[string]interface{}{
		"algorithm": alg.Name,
		"bytes":     len(sig),
	}).Debugln("message signed")
	return sig, nil
}

// SignBytes is Sign over an in-memory payload.
func (e *Engine) SignBytes(ctx context.Context, s Settings, key crypto.Signer, msg []byte) ([]byte, error) {
	return e.Sign(ctx, s, key, bytes.NewReader(msg))
}

// Verify checks sig over everything read from msg. A signature that does
// not match returns an error wrapping ErrSignatureMismatch.
func (e *Engine) Verify(ctx context.Context, s Settings, pub crypto.PublicKey, msg io.Reader, sig []byte) error {
	if pub == nil {
		return fmt.Errorf("no verification key")
	}
	alg, err := LookupAlgorithm(s.Algorithm)
	if err != nil {
		return err
	}
	if _, err := lookupProvider(s.Provider); err != nil {
		return err
	}
	v, err := alg.verifier(pub)
	if err != nil {
		return err
	}

	err = tracing.Run(ctx, "engine.verify", map[string]interface{}{
		"algorithm": alg.Name,
		"provider":  s.Provider,
	}, func(ctx context.Context) error {
		r := bufio.NewReaderSize(ctxReader{ctx: ctx, r: msg}, s.bufferSize())
		return v.VerifySignature(bytes.NewReader(sig), r)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}
		e.rejected.Inc()
		return fmt.Errorf("%w: %s: %v", ErrSignatureMismatch, alg.Name, err)
	}
	e.verified.Inc()
	e.logger.WithField("algorithm", alg.Name).Debugln("signature verified")
	return nil
}

// VerifyBytes is Verify over an in-memory payload.
func (e *Engine) VerifyBytes(ctx context.Context, s Settings, pub crypto.PublicKey, msg, sig []byte) error {
	return e.Verify(ctx, s, pub, bytes.NewReader(msg), sig)
}
