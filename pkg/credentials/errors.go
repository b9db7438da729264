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
	"errors"
	"fmt"
)

var (
	// ErrCredentialUnavailable matches errors returned when a slot has no usable value.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	// ErrKeystoreAccess matches errors returned when a keystore rejects an alias
	// or password.
	ErrKeystoreAccess = errors.New("keystore access failure")

	// ErrEntryNotFound is returned by Keystore implementations when the alias
	// does not exist. Resolution falls back to the direct value.
	ErrEntryNotFound = errors.New("keystore entry not found")

	// ErrEntryType is returned by Keystore implementations when the alias
	// exists but holds a different kind of entry. Treated like ErrEntryNotFound.
	ErrEntryType = errors.New("keystore entry has unexpected type")
)

// ErrorType represents the category of a credential error.
type ErrorType int

const (
	// ErrTypeUnknown indicates an unclassified error.
	ErrTypeUnknown ErrorType = iota

	// ErrTypeReferenceUnresolved indicates a reference name was not found
	// in the binding context. It is only ever logged.
	ErrTypeReferenceUnresolved

	// ErrTypeCredentialUnavailable indicates no value is available for a slot.
	ErrTypeCredentialUnavailable

	// ErrTypeKeystoreAccess indicates the keystore rejected the request.
	ErrTypeKeystoreAccess
)

// String returns a human-readable name for the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeReferenceUnresolved:
		return "ReferenceUnresolved"
	case ErrTypeCredentialUnavailable:
		return "CredentialUnavailable"
	case ErrTypeKeystoreAccess:
		return "KeystoreAccessFailure"
	default:
		return "UnknownError"
	}
}

// Error describes a failure to produce a credential.
//
// Callers usually test for it with errors.Is against ErrCredentialUnavailable
// or ErrKeystoreAccess, or with IsType:
//
//	key, err := cfg.PrivateKey()
//	if errors.Is(err, credentials.ErrCredentialUnavailable) {
//	    // nothing configured yet, maybe Bind has not run
//	}
type Error struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType

	// Kind is the slot the error relates to.
	Kind Kind

	// Name is the alias or reference name involved, if any.
	Name string

	// Message is a human-readable description of what went wrong.
	Message string

	// Cause is the underlying error, typically from a keystore.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Type, e.Kind, e.Message)
	if e.Name != "" {
		msg = fmt.Sprintf("%s (%q)", msg, e.Name)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches one of the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrCredentialUnavailable:
		return e.Type == ErrTypeCredentialUnavailable
	case ErrKeystoreAccess:
		return e.Type == ErrTypeKeystoreAccess
	default:
		return false
	}
}

// IsType checks if err is an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var credErr *Error
	if errors.As(err, &credErr) {
		return credErr.Type == errType
	}
	return false
}

func unavailable(kind Kind, name, message string) *Error {
	return &Error{Type: ErrTypeCredentialUnavailable, Kind: kind, Name: name, Message: message}
}

func keystoreAccess(kind Kind, alias string, cause error) *Error {
	return &Error{
		Type:    ErrTypeKeystoreAccess,
		Kind:    kind,
		Name:    alias,
		Message: "keystore rejected entry",
		Cause:   cause,
	}
}

func unresolved(kind Kind, name, message string) *Error {
	return &Error{Type: ErrTypeReferenceUnresolved, Kind: kind, Name: name, Message: message}
}

// entryMissing reports whether a keystore error only means "no such entry".
func entryMissing(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrEntryType)
}
