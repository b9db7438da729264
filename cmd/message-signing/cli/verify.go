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

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigstore/message-signing/cmd/message-signing/cli/options"
	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/engine"
	"github.com/sigstore/message-signing/pkg/logging"
	"github.com/sigstore/message-signing/pkg/processor"
)

// Verify creates the verify command.
func Verify() *cobra.Command {
	o := &options.VerifyOptions{}
	long := `Verify the message at MESSAGE_PATH against the signature from
SIGNATURE_PATH (given via --signature option).

The verification key is the configured public key, or else the certificate
for --alias taken from the keystore or from --certificate. A bundle that
embeds a certificate can be verified without any configured key.

Exits with status 2 when the signature does not match.`

	cmd := &cobra.Command{
		Use:   "verify [OPTIONS] MESSAGE_PATH",
		Short: "Verify a message signature.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runVerify(cmd.Context(), o, args[0])
			if errors.Is(err, engine.ErrSignatureMismatch) {
				return &ExitError{Err: err, Code: 2}
			}
			if err != nil {
				return err
			}
			if ro.GetLogLevel() < logging.LevelSilent {
				fmt.Fprintln(cmd.OutOrStdout(), "Verification succeeded")
			}
			return nil
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func runVerify(ctx context.Context, o *options.VerifyOptions, messagePath string) error {
	logger := ro.NewObservability().Logger
	b, err := build(&o.CredentialFlags, credentials.OperationVerify, logger)
	if err != nil {
		return err
	}
	defer b.Close() //nolint:errcheck

	payload, err := os.ReadFile(messagePath)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	sig, err := os.ReadFile(o.SignaturePath)
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ro.Timeout)
	defer cancel()

	if o.Bundle {
		return verifyBundle(ctx, b.Config, sig, payload, logger)
	}
	msg := processor.NewMessage(payload)
	msg.SetHeader(b.Config.SignatureHeader(), string(bytes.TrimSpace(sig)))
	return processor.NewVerifier(b.Config, nil, logger).Process(ctx, msg)
}

func verifyBundle(ctx context.Context, cfg *credentials.Configuration, bundleJSON, payload []byte, logger logging.Logger) error {
	pub, err := cfg.ResolvePublicKey()
	if err != nil {
		cert, certErr := cfg.ResolveCertificate(cfg.Alias())
		switch {
		case certErr == nil:
			pub = cert.PublicKey
		case errors.Is(certErr, credentials.ErrCredentialUnavailable):
			// the bundle must carry its own certificate
			pub = nil
		default:
			return certErr
		}
	}
	return engine.New(logger).VerifyBundle(ctx, pub, bundleJSON, payload)
}
