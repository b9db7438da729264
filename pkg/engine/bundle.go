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
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"

	protobundle "github.com/sigstore/protobuf-specs/gen/pb-go/bundle/v1"
	sigstoresign "github.com/sigstore/sigstore-go/pkg/sign"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/sigstore/message-signing/pkg/tracing"
)

type staticCertificate struct {
	cert *x509.Certificate
}

var _ sigstoresign.CertificateProvider = staticCertificate{}

func (s staticCertificate) GetCertificate(context.Context, sigstoresign.Keypair, *sigstoresign.CertificateProviderOptions) ([]byte, error) {
	return s.cert.Raw, nil
}

// SignBundle signs payload with key and returns a sigstore bundle in JSON
// form. When cert is non-nil it is embedded as verification material,
// otherwise the bundle carries the public key hint.
func (e *Engine) SignBundle(ctx context.Context, key crypto.Signer, cert *x509.Certificate, random io.Reader, payload []byte) ([]byte, error) {
	kp, err := NewKeypair(key, random)
	if err != nil {
		return nil, err
	}
	opts := sigstoresign.BundleOptions{Context: ctx}
	if cert != nil {
		opts.CertificateProvider = staticCertificate{cert: cert}
	}

	var out []byte
	err = tracing.Run(ctx, "engine.sign", map[string]interface{}{"format": "bundle"}, func(context.Context) error {
		b, err := sigstoresign.Bundle(&sigstoresign.PlainData{Data: payload}, kp, opts)
		if err != nil {
			return fmt.Errorf("failed to create bundle: %w", err)
		}
		out, err = protojson.Marshal(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.signed.Inc()
	return out, nil
}

// VerifyBundle checks a JSON bundle produced by SignBundle against payload.
// pub may be nil when the bundle embeds a certificate.
func (e *Engine) VerifyBundle(ctx context.Context, pub crypto.PublicKey, bundleJSON, payload []byte) error {
	var b protobundle.Bundle
	if err := protojson.Unmarshal(bundleJSON, &b); err != nil {
		return fmt.Errorf("failed to parse bundle: %w", err)
	}
	ms := b.GetMessageSignature()
	if ms == nil {
		return fmt.Errorf("bundle does not carry a message signature")
	}

	if pub == nil {
		raw := b.GetVerificationMaterial().GetCertificate().GetRawBytes()
		if chain := b.GetVerificationMaterial().GetX509CertificateChain().GetCertificates(); raw == nil && len(chain) > 0 {
			raw = chain[0].GetRawBytes()
		}
		if raw == nil {
			return fmt.Errorf("no verification key and no certificate in bundle")
		}
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("failed to parse bundle certificate: %w", err)
		}
		pub = cert.PublicKey
	}

	v, hf, err := bundleVerifier(pub)
	if err != nil {
		return err
	}

	return tracing.Run(ctx, "engine.verify", map[string]interface{}{"format": "bundle"}, func(context.Context) error {
		h := hf.New()
		h.Write(payload)
		if want := ms.GetMessageDigest().GetDigest(); !bytes.Equal(h.Sum(nil), want) {
			e.rejected.Inc()
			return fmt.Errorf("%w: payload digest differs from bundle", ErrSignatureMismatch)
		}
		if err := v.VerifySignature(bytes.NewReader(ms.GetSignature()), bytes.NewReader(payload)); err != nil {
			e.rejected.Inc()
			return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
		}
		e.verified.Inc()
		return nil
	})
}
