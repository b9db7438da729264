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

package credentials

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"io"
	"sync"

	"github.com/sigstore/message-signing/pkg/logging"
)

const (
	// DefaultAlgorithm is the signature algorithm used when none is configured.
	DefaultAlgorithm = "SHA256withECDSA"
	// DefaultBufferSize is the read buffer size for message payloads.
	DefaultBufferSize = 2048
	// DefaultSignatureHeader is the message header that carries the signature.
	DefaultSignatureHeader = "DigitalSignature"
)

// Operation names accepted by SetCryptoOperation.
const (
	OperationSign   = "sign"
	OperationVerify = "verify"
)

// Configuration holds the credentials and scalar options for one signer or
// verifier.
//
// Bind may run concurrently with Clone and the Resolve accessors, so a
// registry.Rebinder can refresh a template that processors are cloning.
// The setters are not safe for concurrent use: configure the Configuration
// once, then hand each concurrent unit of work its own copy from Clone.
type Configuration struct {
	// mu guards the slot values and context written by Bind.
	mu sync.RWMutex

	privateKey  slot[crypto.Signer]
	publicKey   slot[crypto.PublicKey]
	certificate slot[*x509.Certificate]
	keystore    slot[Keystore]
	random      slot[io.Reader]

	alias    string
	password []byte

	algorithm       string
	bufferSize      int
	provider        string
	signatureHeader string
	clearHeaders    bool
	operation       string

	// context is borrowed; Clone shares it.
	context BindingContext
	logger  logging.Logger
}

// New returns a Configuration with default scalar settings and no credentials.
func New() *Configuration {
	return &Configuration{
		algorithm:    DefaultAlgorithm,
		bufferSize:   DefaultBufferSize,
		clearHeaders: true,
		logger:       logging.Discard(),
	}
}

// Clone returns a copy whose slots, references, alias and password can be
// changed without affecting c. The binding context and logger are shared.
func (c *Configuration) Clone() *Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := &Configuration{
		privateKey:      c.privateKey,
		publicKey:       c.publicKey,
		certificate:     c.certificate,
		keystore:        c.keystore,
		random:          c.random,
		alias:           c.alias,
		algorithm:       c.algorithm,
		bufferSize:      c.bufferSize,
		provider:        c.provider,
		signatureHeader: c.signatureHeader,
		clearHeaders:    c.clearHeaders,
		operation:       c.operation,
		context:         c.context,
		logger:          c.logger,
	}
	if c.password != nil {
		cp.password = bytes.Clone(c.password)
	}
	return cp
}

// SetLogger sets the logger used to report binding and resolution details.
func (c *Configuration) SetLogger(l logging.Logger) *Configuration {
	if l == nil {
		l = logging.Discard()
	}
	c.logger = l
	return c
}

// SetPrivateKey sets the private key used for signing. A nil key, including a typed nil pointer, clears it.
func (c *Configuration) SetPrivateKey(key crypto.Signer) *Configuration {
	c.privateKey.set(key, present(key))
	return c
}

// SetPrivateKeyRef sets the reference name of a private key in the binding
// context. Only the first non-empty name is kept.
func (c *Configuration) SetPrivateKeyRef(name string) *Configuration {
	c.privateKey.setRef(name)
	return c
}

// SetPublicKey sets the public key used for verification. nil clears it.
func (c *Configuration) SetPublicKey(key crypto.PublicKey) *Configuration {
	c.publicKey.set(key, present(key))
	return c
}

// SetPublicKeyRef sets the reference name of a public key in the binding context.
func (c *Configuration) SetPublicKeyRef(name string) *Configuration {
	c.publicKey.setRef(name)
	return c
}

// SetCertificate sets the certificate used for verification. nil clears it.
func (c *Configuration) SetCertificate(cert *x509.Certificate) *Configuration {
	c.certificate.set(cert, present(cert))
	return c
}

// SetCertificateRef sets the reference name of a certificate in the binding context.
func (c *Configuration) SetCertificateRef(name string) *Configuration {
	c.certificate.setRef(name)
	return c
}

// SetKeystore sets the keystore consulted for aliased keys and certificates.
func (c *Configuration) SetKeystore(ks Keystore) *Configuration {
	c.keystore.set(ks, present(ks))
	return c
}

// SetKeystoreRef sets the reference name of a keystore in the binding context.
func (c *Configuration) SetKeystoreRef(name string) *Configuration {
	c.keystore.setRef(name)
	return c
}

// SetRandomSource sets the entropy source handed to the signature engine.
func (c *Configuration) SetRandomSource(r io.Reader) *Configuration {
	c.random.set(r, present(r))
	return c
}

// SetRandomSourceRef sets the reference name of a random source in the binding context.
func (c *Configuration) SetRandomSourceRef(name string) *Configuration {
	c.random.setRef(name)
	return c
}

// PrivateKeyRef returns the private key reference name.
func (c *Configuration) PrivateKeyRef() string { return c.privateKey.ref }

// PublicKeyRef returns the public key reference name.
func (c *Configuration) PublicKeyRef() string { return c.publicKey.ref }

// CertificateRef returns the certificate reference name.
func (c *Configuration) CertificateRef() string { return c.certificate.ref }

// KeystoreRef returns the keystore reference name.
func (c *Configuration) KeystoreRef() string { return c.keystore.ref }

// RandomSourceRef returns the random source reference name.
func (c *Configuration) RandomSourceRef() string { return c.random.ref }

// Alias returns the keystore alias used when no alias is passed explicitly.
func (c *Configuration) Alias() string { return c.alias }

// SetAlias sets the default keystore alias.
func (c *Configuration) SetAlias(alias string) *Configuration {
	c.alias = alias
	return c
}

// Password returns the password used to unlock aliased private keys.
func (c *Configuration) Password() []byte { return c.password }

// SetPassword sets the password used to unlock aliased private keys.
// The slice is retained, so the caller may clear it later.
func (c *Configuration) SetPassword(password []byte) *Configuration {
	c.password = password
	return c
}

// Algorithm returns the signature algorithm name, e.g. "SHA256withECDSA".
func (c *Configuration) Algorithm() string { return c.algorithm }

// SetAlgorithm sets the signature algorithm name. Empty restores the default.
func (c *Configuration) SetAlgorithm(algorithm string) *Configuration {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	c.algorithm = algorithm
	return c
}

// BufferSize returns the payload read buffer size.
func (c *Configuration) BufferSize() int { return c.bufferSize }

// SetBufferSize sets the payload read buffer size. Non-positive values
// restore the default.
func (c *Configuration) SetBufferSize(size int) *Configuration {
	if size <= 0 {
		size = DefaultBufferSize
	}
	c.bufferSize = size
	return c
}

// Provider returns the id of the signature provider.
func (c *Configuration) Provider() string { return c.provider }

// SetProvider sets the id of the signature provider.
func (c *Configuration) SetProvider(provider string) *Configuration {
	c.provider = provider
	return c
}

// SignatureHeader returns the message header that carries the base64 signature.
func (c *Configuration) SignatureHeader() string {
	if c.signatureHeader == "" {
		return DefaultSignatureHeader
	}
	return c.signatureHeader
}

// SetSignatureHeader sets the message header that carries the signature.
func (c *Configuration) SetSignatureHeader(name string) *Configuration {
	c.signatureHeader = name
	return c
}

// ClearHeaders reports whether signature related headers are removed from a
// message once it has been signed or verified. Defaults to true.
func (c *Configuration) ClearHeaders() bool { return c.clearHeaders }

// SetClearHeaders controls header clearing. Leaving aliases and passwords on a
// message that travels further is rarely what you want.
func (c *Configuration) SetClearHeaders(enabled bool) *Configuration {
	c.clearHeaders = enabled
	return c
}

// CryptoOperation returns the configured operation, OperationSign or OperationVerify.
func (c *Configuration) CryptoOperation() string { return c.operation }

// SetCryptoOperation sets the operation this configuration is used for.
func (c *Configuration) SetCryptoOperation(op string) *Configuration {
	c.operation = op
	return c
}

// BindingContext returns the context passed to the last Bind call.
func (c *Configuration) BindingContext() BindingContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

func (c *Configuration) log() logging.Logger {
	if c.logger == nil {
		return logging.Discard()
	}
	return c.logger
}
