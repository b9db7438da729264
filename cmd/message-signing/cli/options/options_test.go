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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvName(t *testing.T) {
	assert.Equal(t, "MESSAGE_SIGNING_LOG_LEVEL", EnvName("log-level"))
	assert.Equal(t, "MESSAGE_SIGNING_TIMEOUT", EnvName("timeout"))
}

func TestApplyEnv(t *testing.T) {
	ro := &RootOptions{}
	cmd := &cobra.Command{Use: "x"}
	ro.AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--log-format", "json"}))

	t.Setenv("MESSAGE_SIGNING_LOG_LEVEL", "debug")
	t.Setenv("MESSAGE_SIGNING_LOG_FORMAT", "text")
	require.NoError(t, ApplyEnv(cmd))
	assert.Equal(t, "debug", ro.LogLevel)
	assert.Equal(t, "json", ro.LogFormat, "command line wins")

	t.Setenv("MESSAGE_SIGNING_TIMEOUT", "soon")
	cmd = &cobra.Command{Use: "x"}
	ro.AddFlags(cmd)
	assert.ErrorContains(t, ApplyEnv(cmd), "MESSAGE_SIGNING_TIMEOUT")
}

func TestApplyEnvBeforeParse(t *testing.T) {
	ro := &RootOptions{}
	cmd := &cobra.Command{Use: "x"}
	ro.AddFlags(cmd)

	t.Setenv("MESSAGE_SIGNING_LOG_LEVEL", "warn")
	require.NoError(t, ApplyEnv(cmd))
	assert.Equal(t, "warn", ro.LogLevel)
	assert.True(t, cmd.PersistentFlags().Changed("log-level"))
}

func TestCredentialFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alias: a\nalgorithm: SHA512withRSA\nkeystore: {bundle: /b.pem}\n"), 0o600))

	o := &CredentialFlags{ConfigPath: path, Alias: "b", KeystoreDir: "/keys"}
	f, err := o.File()
	require.NoError(t, err)
	assert.Equal(t, "b", f.Alias)
	assert.Equal(t, "SHA512withRSA", f.Algorithm)
	assert.Equal(t, "/keys", f.Keystore.Dir)
	assert.Empty(t, f.Keystore.Bundle)
}

func TestSignOutputPath(t *testing.T) {
	assert.Equal(t, "m.sig", (&SignOptions{}).OutputPath("m"))
	assert.Equal(t, "m.sigstore.json", (&SignOptions{Bundle: true}).OutputPath("m"))
	assert.Equal(t, "x", (&SignOptions{SignaturePath: "x", Bundle: true}).OutputPath("m"))
}
