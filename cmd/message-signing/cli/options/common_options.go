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

package options

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigstore/message-signing/pkg/config"
)

// FlagAdder is implemented by any flag group that can register itself to a cobra command.
type FlagAdder interface {
	AddFlags(cmd *cobra.Command)
}

// AddAllFlags is a helper function to register multiple flag groups at once.
func AddAllFlags(cmd *cobra.Command, flagGroups ...FlagAdder) {
	for _, fg := range flagGroups {
		fg.AddFlags(cmd)
	}
}

// CredentialFlags select credentials and signing settings. Every flag
// overrides the matching field of the --config file.
type CredentialFlags struct {
	ConfigPath      string // --config
	PrivateKeyPath  string // --private-key
	PublicKeyPath   string // --public-key
	CertificatePath string // --certificate
	KeystoreDir     string // --keystore-dir
	PKCS11URI       string // --pkcs11-uri
	Alias           string // --alias
	PasswordEnv     string // --password-env
	Algorithm       string // --algorithm
	Provider        string // --provider
}

// AddFlags adds credential flags to the cobra command.
func (o *CredentialFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigPath, "config", "c", "", "Path to a YAML configuration file.")
	_ = cmd.MarkFlagFilename("config", "yaml", "yml")
	cmd.Flags().StringVar(&o.PrivateKeyPath, "private-key", "", "Path to a PEM-encoded private key.")
	cmd.Flags().StringVar(&o.PublicKeyPath, "public-key", "", "Path to a PEM-encoded public key.")
	cmd.Flags().StringVar(&o.CertificatePath, "certificate", "", "Path to a PEM-encoded certificate.")
	cmd.Flags().StringVar(&o.KeystoreDir, "keystore-dir", "", "Directory of PEM files, one alias per file.")
	cmd.Flags().StringVar(&o.PKCS11URI, "pkcs11-uri", "", "PKCS#11 URI of the token to use as keystore.")
	cmd.Flags().StringVar(&o.Alias, "alias", "", "Keystore alias of the key or certificate.")
	cmd.Flags().StringVar(&o.PasswordEnv, "password-env", "",
		fmt.Sprintf("Environment variable holding the key password. Defaults to %s.", config.EnvPassword))
	cmd.Flags().StringVar(&o.Algorithm, "algorithm", "", "Signature algorithm, e.g. SHA256withECDSA.")
	cmd.Flags().StringVar(&o.Provider, "provider", "", "Signature provider (default, sigstore, pkcs11).")
	cmd.MarkFlagsMutuallyExclusive("keystore-dir", "pkcs11-uri")
}

// File loads the --config file, if any, and applies the flags on top.
func (o *CredentialFlags) File() (*config.File, error) {
	f := &config.File{}
	if o.ConfigPath != "" {
		var err error
		if f, err = config.Load(o.ConfigPath); err != nil {
			return nil, err
		}
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&f.PrivateKey.Path, o.PrivateKeyPath)
	set(&f.PublicKey.Path, o.PublicKeyPath)
	set(&f.Certificate.Path, o.CertificatePath)
	set(&f.Alias, o.Alias)
	set(&f.PasswordEnv, o.PasswordEnv)
	set(&f.Algorithm, o.Algorithm)
	set(&f.Provider, o.Provider)
	if o.KeystoreDir != "" || o.PKCS11URI != "" {
		f.Keystore.Dir, f.Keystore.Bundle, f.Keystore.PKCS11 = o.KeystoreDir, "", o.PKCS11URI
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// SignOptions are the flags of the sign command.
type SignOptions struct {
	CredentialFlags
	SignaturePath string // --signature
	Bundle        bool   // --bundle
}

// AddFlags adds sign flags to the cobra command.
func (o *SignOptions) AddFlags(cmd *cobra.Command) {
	o.CredentialFlags.AddFlags(cmd)
	cmd.Flags().StringVar(&o.SignaturePath, "signature", "",
		"Location of the signature file to generate. Defaults to MESSAGE_PATH.sig, or MESSAGE_PATH.sigstore.json with --bundle.")
	cmd.Flags().BoolVar(&o.Bundle, "bundle", false, "Write a Sigstore bundle instead of a raw base64 signature.")
}

// OutputPath returns the signature path for messagePath.
func (o *SignOptions) OutputPath(messagePath string) string {
	switch {
	case o.SignaturePath != "":
		return o.SignaturePath
	case o.Bundle:
		return messagePath + ".sigstore.json"
	default:
		return messagePath + ".sig"
	}
}

// VerifyOptions are the flags of the verify command.
type VerifyOptions struct {
	CredentialFlags
	SignaturePath string // --signature (required)
	Bundle        bool   // --bundle
}

// AddFlags adds verify flags to the cobra command.
func (o *VerifyOptions) AddFlags(cmd *cobra.Command) {
	o.CredentialFlags.AddFlags(cmd)
	cmd.Flags().StringVar(&o.SignaturePath, "signature", "", "Location of the signature file to verify. [required]")
	_ = cmd.MarkFlagRequired("signature")
	cmd.Flags().BoolVar(&o.Bundle, "bundle", false, "The signature file is a Sigstore bundle.")
}
