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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigstore/message-signing/cmd/message-signing/cli/options"
	"github.com/sigstore/message-signing/pkg/config"
	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/engine"
	"github.com/sigstore/message-signing/pkg/logging"
	"github.com/sigstore/message-signing/pkg/processor"
)

// Sign creates the sign command.
func Sign() *cobra.Command {
	o := &options.SignOptions{}
	long := `Sign the message at MESSAGE_PATH.

The signing key is taken from the keystore entry for --alias when a keystore
is configured and holds that alias, otherwise from --private-key or the
privateKey section of --config. Encrypted keys are unlocked with the password
read from the environment variable named by --password-env.

By default the base64 signature is written to MESSAGE_PATH.sig. With
--bundle a Sigstore bundle embedding the signature (and the certificate, if
one is configured) is written instead.`

	cmd := &cobra.Command{
		Use:   "sign [OPTIONS] MESSAGE_PATH",
		Short: "Sign a message.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runSign(cmd.Context(), o, args[0])
			if err != nil {
				return err
			}
			if ro.GetLogLevel() < logging.LevelSilent {
				fmt.Fprintf(cmd.OutOrStdout(), "Signature written to %s\n", path)
			}
			return nil
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func runSign(ctx context.Context, o *options.SignOptions, messagePath string) (string, error) {
	logger := ro.NewObservability().Logger
	b, err := build(&o.CredentialFlags, credentials.OperationSign, logger)
	if err != nil {
		return "", err
	}
	defer b.Close() //nolint:errcheck

	payload, err := os.ReadFile(messagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ro.Timeout)
	defer cancel()

	var out []byte
	if o.Bundle {
		out, err = signBundle(ctx, b.Config, payload, logger)
	} else {
		msg := processor.NewMessage(payload)
		if err = processor.NewSigner(b.Config, nil, logger).Process(ctx, msg); err == nil {
			sig, _ := msg.Header(b.Config.SignatureHeader())
			out = []byte(fmt.Sprintf("%s\n", sig))
		}
	}
	if err != nil {
		return "", err
	}

	path := o.OutputPath(messagePath)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("failed to write signature: %w", err)
	}
	return path, nil
}

func signBundle(ctx context.Context, cfg *credentials.Configuration, payload []byte, logger logging.Logger) ([]byte, error) {
	key, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	cert, err := cfg.ResolveCertificate(cfg.Alias())
	if err != nil && !errors.Is(err, credentials.ErrCredentialUnavailable) {
		return nil, err
	}
	random, _ := cfg.ResolveRandomSource()
	return engine.New(logger).SignBundle(ctx, key, cert, random, payload)
}

// build loads the configuration selected by flags for op.
func build(flags *options.CredentialFlags, op string, logger logging.Logger) (*config.Built, error) {
	f, err := flags.File()
	if err != nil {
		return nil, err
	}
	if f.Operation == "" {
		f.Operation = op
	}
	return f.Build(logger)
}
