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
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sigstore/message-signing/cmd/message-signing/cli/options"
	"github.com/sigstore/message-signing/pkg/config"
	"github.com/sigstore/message-signing/pkg/credentials"
)

// Resolve creates the resolve command.
func Resolve() *cobra.Command {
	o := &options.CredentialFlags{}
	cmd := &cobra.Command{
		Use:   "resolve [OPTIONS]",
		Short: "Show which credentials resolve.",
		Long: `Load the configuration, bind every reference and print, per credential
slot, its reference name, whether a value resolves and where it came from.
The private key and certificate are resolved for --alias.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := o.File()
			if err != nil {
				return err
			}
			b, err := f.Build(ro.NewObservability().Logger)
			if err != nil {
				return err
			}
			defer b.Close() //nolint:errcheck
			return printResolution(cmd.OutOrStdout(), f, b.Config)
		},
	}
	o.AddFlags(cmd)
	return cmd
}

func printResolution(w io.Writer, f *config.File, cfg *credentials.Configuration) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tREF\tRESOLVES\tSOURCE")
	for _, st := range cfg.State() {
		err := resolveSlot(cfg, st.Kind)
		resolves := "yes"
		if err != nil {
			resolves = "no: " + err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Kind, orDash(st.Ref), resolves, source(f, cfg, st))
	}
	return tw.Flush()
}

func resolveSlot(cfg *credentials.Configuration, kind credentials.Kind) error {
	var err error
	switch kind {
	case credentials.KindPrivateKey:
		_, err = cfg.PrivateKey()
	case credentials.KindPublicKey:
		_, err = cfg.ResolvePublicKey()
	case credentials.KindCertificate:
		_, err = cfg.ResolveCertificate(cfg.Alias())
	case credentials.KindKeystore:
		_, err = cfg.ResolveKeystore()
	case credentials.KindRandomSource:
		_, err = cfg.ResolveRandomSource()
	}
	return err
}

// source names where the value of a slot came from.
func source(f *config.File, cfg *credentials.Configuration, st credentials.SlotState) string {
	alias := cfg.Alias()
	if alias != "" && (st.Kind == credentials.KindPrivateKey || st.Kind == credentials.KindCertificate) {
		if ks, err := cfg.ResolveKeystore(); err == nil {
			var err error
			if st.Kind == credentials.KindPrivateKey {
				_, err = ks.GetPrivateKeyEntry(alias, cfg.Password())
			} else {
				_, err = ks.GetCertificateEntry(alias)
			}
			if err == nil {
				return "keystore:" + alias
			}
		}
	}
	if !st.Present {
		return "-"
	}
	var path string
	switch st.Kind {
	case credentials.KindPrivateKey:
		path = f.PrivateKey.Path
	case credentials.KindPublicKey:
		path = f.PublicKey.Path
	case credentials.KindCertificate:
		path = f.Certificate.Path
	case credentials.KindKeystore:
		path = f.Keystore.Dir + f.Keystore.Bundle + f.Keystore.PKCS11
	}
	switch {
	case st.Ref != "" && path == "":
		return "registry:" + st.Ref
	case st.Ref != "":
		// a resolved reference overwrites the file value
		return "file or registry:" + st.Ref
	case path != "":
		return path
	default:
		return "direct"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
