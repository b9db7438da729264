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
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
	sigstoresign "github.com/sigstore/sigstore-go/pkg/sign"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"
)

var _ sigstoresign.Keypair = (*Keypair)(nil)

// Keypair adapts a resolved crypto.Signer to sigstore-go's sign.Keypair so it
// can produce sigstore bundles. The algorithm follows from the key: ECDSA
// P-256/P-384, RSA PKCS#1 v1.5 with SHA-256, or pre-hashed Ed25519.
type Keypair struct {
	signer  crypto.Signer
	random  io.Reader
	details signature.AlgorithmDetails
	hint    []byte
}

// NewKeypair wraps signer. random may be nil.
func NewKeypair(signer crypto.Signer, random io.Reader) (*Keypair, error) {
	details, err := keyDetails(signer.Public())
	if err != nil {
		return nil, err
	}
	pemBytes, err := cryptoutils.MarshalPublicKeyToPEM(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha256.Sum256(pemBytes)
	return &Keypair{
		signer:  signer,
		random:  defaultRandom(random),
		details: details,
		hint:    []byte(hex.EncodeToString(sum[:])),
	}, nil
}

func keyDetails(pub crypto.PublicKey) (signature.AlgorithmDetails, error) {
	var id protocommon.PublicKeyDetails
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			id = protocommon.PublicKeyDetails_PKIX_ECDSA_P256_SHA_256
		case elliptic.P384():
			id = protocommon.PublicKeyDetails_PKIX_ECDSA_P384_SHA_384
		default:
			return signature.AlgorithmDetails{}, fmt.Errorf("%w: unsupported ECDSA curve %s", ErrKeyMismatch, k.Curve.Params().Name)
		}
	case *rsa.PublicKey:
		switch bits := k.N.BitLen(); {
		case bits <= 2048:
			id = protocommon.PublicKeyDetails_PKIX_RSA_PKCS1V15_2048_SHA256
		case bits <= 3072:
			id = protocommon.PublicKeyDetails_PKIX_RSA_PKCS1V15_3072_SHA256
		default:
			id = protocommon.PublicKeyDetails_PKIX_RSA_PKCS1V15_4096_SHA256
		}
	case ed25519.PublicKey:
		id = protocommon.PublicKeyDetails_PKIX_ED25519_PH
	default:
		return signature.AlgorithmDetails{}, fmt.Errorf("%w: unsupported key type %T", ErrKeyMismatch, pub)
	}
	details, err := signature.GetAlgorithmDetails(id)
	if err != nil {
		return signature.AlgorithmDetails{}, fmt.Errorf("failed to get algorithm details: %w", err)
	}
	return details, nil
}

// GetHashAlgorithm implements sign.Keypair.
func (k *Keypair) GetHashAlgorithm() protocommon.HashAlgorithm {
	return k.details.GetProtoHashType()
}

// GetSigningAlgorithm implements sign.Keypair.
func (k *Keypair) GetSigningAlgorithm() protocommon.PublicKeyDetails {
	return k.details.GetSignatureAlgorithm()
}

// GetHint returns the hex SHA-256 of the PEM public key.
func (k *Keypair) GetHint() []byte {
	return k.hint
}

// GetKeyAlgorithm implements sign.Keypair.
func (k *Keypair) GetKeyAlgorithm() string {
	switch k.details.GetKeyType() {
	case signature.ECDSA:
		return "ECDSA"
	case signature.RSA:
		return "RSA"
	case signature.ED25519:
		return "ED25519"
	default:
		return ""
	}
}

// GetPublicKey implements sign.Keypair.
func (k *Keypair) GetPublicKey() crypto.PublicKey {
	return k.signer.Public()
}

// GetPublicKeyPem implements sign.Keypair.
func (k *Keypair) GetPublicKeyPem() (string, error) {
	data, err := cryptoutils.MarshalPublicKeyToPEM(k.signer.Public())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SignData hashes data and signs the digest, returning both.
func (k *Keypair) SignData(_ context.Context, data []byte) ([]byte, []byte, error) {
	hf := k.details.GetHashType()
	h := hf.New()
	h.Write(data)
	d := h.Sum(nil)

	sig, err := k.signer.Sign(k.random, d, hf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, d, nil
}

// bundleVerifier returns a sigstore verifier matching the bundle algorithm of pub.
func bundleVerifier(pub crypto.PublicKey) (signature.Verifier, crypto.Hash, error) {
	details, err := keyDetails(pub)
	if err != nil {
		return nil, 0, err
	}
	hf := details.GetHashType()
	var v signature.Verifier
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		v, err = signature.LoadECDSAVerifier(k, hf)
	case *rsa.PublicKey:
		v, err = signature.LoadRSAPKCS1v15Verifier(k, hf)
	case ed25519.PublicKey:
		v, err = signature.LoadED25519phVerifier(k)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load verifier: %w", err)
	}
	return v, hf, nil
}
