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
	"crypto"
	"crypto/x509"
	"io"
)

// Bind stores bc and resolves every reference name against it.
//
// The keystore is resolved first, then the public key, private key,
// certificate and random source. A reference that resolves overwrites the
// slot's direct value; one that does not leaves the slot untouched. Bind never
// fails: unresolved references are only logged at debug level, and the
// missing value surfaces later from the Resolve accessors.
//
// Calling Bind again with the same context repeats the same lookups. Passing
// nil detaches the context without touching any slot.
func (c *Configuration) Bind(bc BindingContext) {
	c.mu.Lock()
	c.context = bc
	c.mu.Unlock()
	if bc == nil {
		return
	}

	bindSlot(c, &c.keystore, bc, KindKeystore, asKeystore)
	bindSlot(c, &c.publicKey, bc, KindPublicKey, asPublicKey)
	bindSlot(c, &c.privateKey, bc, KindPrivateKey, asSigner)
	bindSlot(c, &c.certificate, bc, KindCertificate, asCertificate)
	bindSlot(c, &c.random, bc, KindRandomSource, asRandom)
}

// bindSlot runs the lookup without c.mu held and stores the result under the
// write lock.
func bindSlot[T any](c *Configuration, s *slot[T], bc BindingContext, kind Kind, accept func(any) (T, bool)) {
	v, ok, err := s.lookup(bc, kind, accept)
	log := c.log().WithFields(map[string]interface{}{"kind": kind.String(), "ref": s.ref})
	switch {
	case err != nil:
		log.Debug("reference left unresolved: %v", err)
	case ok:
		c.mu.Lock()
		s.set(v, true)
		c.mu.Unlock()
		log.Debugln("reference resolved")
	}
}

// get reads a slot under the read lock.
func get[T any](c *Configuration, s *slot[T]) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return s.get()
}

// PrivateKey resolves the private key with the configured alias and password.
func (c *Configuration) PrivateKey() (crypto.Signer, error) {
	return c.ResolvePrivateKey(c.alias, c.password)
}

// ResolvePrivateKeyAlias resolves the private key for alias with the
// configured password.
func (c *Configuration) ResolvePrivateKeyAlias(alias string) (crypto.Signer, error) {
	return c.ResolvePrivateKey(alias, c.password)
}

// ResolvePrivateKey returns the key to sign with.
//
// When alias is non-empty and a keystore is present, the keystore entry for
// alias wins. A missing entry (or an entry of another type) falls back to the
// private key slot. A keystore that rejects the alias or password yields an
// ErrKeystoreAccess error without falling back. With nothing to return the
// error matches ErrCredentialUnavailable.
func (c *Configuration) ResolvePrivateKey(alias string, password []byte) (crypto.Signer, error) {
	if ks, ok := get(c, &c.keystore); ok && alias != "" {
		key, err := ks.GetPrivateKeyEntry(alias, password)
		switch {
		case err == nil && key != nil:
			return key, nil
		case err != nil && !entryMissing(err):
			return nil, keystoreAccess(KindPrivateKey, alias, err)
		}
		c.log().WithField("alias", alias).Debugln("no private key entry in keystore, using configured key")
	}
	if key, ok := get(c, &c.privateKey); ok {
		return key, nil
	}
	return nil, unavailable(KindPrivateKey, firstNonEmpty(alias, c.privateKey.ref),
		"no keystore entry or private key configured")
}

// Certificate returns the certificate set directly or bound by reference.
// The keystore is not consulted; use ResolveCertificate for an aliased entry.
func (c *Configuration) Certificate() (*x509.Certificate, error) {
	if cert, ok := get(c, &c.certificate); ok {
		return cert, nil
	}
	return nil, unavailable(KindCertificate, c.certificate.ref, "not configured")
}

// ResolveCertificate returns the certificate to verify with, following the
// same precedence as ResolvePrivateKey.
func (c *Configuration) ResolveCertificate(alias string) (*x509.Certificate, error) {
	if ks, ok := get(c, &c.keystore); ok && alias != "" {
		cert, err := ks.GetCertificateEntry(alias)
		switch {
		case err == nil && cert != nil:
			return cert, nil
		case err != nil && !entryMissing(err):
			return nil, keystoreAccess(KindCertificate, alias, err)
		}
		c.log().WithField("alias", alias).Debugln("no certificate entry in keystore, using configured certificate")
	}
	if cert, ok := get(c, &c.certificate); ok {
		return cert, nil
	}
	return nil, unavailable(KindCertificate, firstNonEmpty(alias, c.certificate.ref),
		"no keystore entry or certificate configured")
}

// ResolvePublicKey returns the configured public key.
func (c *Configuration) ResolvePublicKey() (crypto.PublicKey, error) {
	if key, ok := get(c, &c.publicKey); ok {
		return key, nil
	}
	return nil, unavailable(KindPublicKey, c.publicKey.ref, "not configured")
}

// ResolveKeystore returns the configured keystore.
func (c *Configuration) ResolveKeystore() (Keystore, error) {
	if ks, ok := get(c, &c.keystore); ok {
		return ks, nil
	}
	return nil, unavailable(KindKeystore, c.keystore.ref, "not configured")
}

// ResolveRandomSource returns the configured random source.
func (c *Configuration) ResolveRandomSource() (io.Reader, error) {
	if r, ok := get(c, &c.random); ok {
		return r, nil
	}
	return nil, unavailable(KindRandomSource, c.random.ref, "not configured")
}

// SlotState describes what a slot currently holds.
type SlotState struct {
	Kind Kind
	// Ref is the reference name, empty when none was set.
	Ref string
	// Present is true when the slot holds a direct or resolved value.
	Present bool
}

// State reports the contents of every slot in bind order.
func (c *Configuration) State() []SlotState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	states := make([]SlotState, 0, len(Kinds))
	for _, kind := range Kinds {
		var st SlotState
		switch kind {
		case KindKeystore:
			st = SlotState{Ref: c.keystore.ref, Present: c.keystore.present}
		case KindPublicKey:
			st = SlotState{Ref: c.publicKey.ref, Present: c.publicKey.present}
		case KindPrivateKey:
			st = SlotState{Ref: c.privateKey.ref, Present: c.privateKey.present}
		case KindCertificate:
			st = SlotState{Ref: c.certificate.ref, Present: c.certificate.present}
		case KindRandomSource:
			st = SlotState{Ref: c.random.ref, Present: c.random.present}
		}
		st.Kind = kind
		states = append(states, st)
	}
	return states
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
