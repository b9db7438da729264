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

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"off", LevelSilent},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLogFormat(t *testing.T) {
	if ParseLogFormat("JSON") != FormatJSON {
		t.Error("expected json format")
	}
	if ParseLogFormat("anything") != FormatText {
		t.Error("expected text fallback")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Level: LevelWarn, Output: &buf})

	l.Debug("d")
	l.Info("i")
	l.Warn("w %d", 1)
	l.Errorln("e")

	out := buf.String()
	if strings.Contains(out, "d\n") || strings.Contains(out, "i\n") {
		t.Errorf("debug/info should be filtered, got %q", out)
	}
	if !strings.Contains(out, "w 1\n") || !strings.Contains(out, "e\n") {
		t.Errorf("warn/error missing, got %q", out)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.GetLevel() != LevelSilent {
		t.Fatalf("Discard level = %v", l.GetLevel())
	}
	// must not panic or write anywhere
	l.WithField("k", "v").Error("ignored")
}

func TestWithFieldsTextSortedAndRedacted(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Level: LevelDebug, Output: &buf})

	l.WithFields(map[string]interface{}{
		"zeta":              1,
		"alias":             "signer",
		"keystore-password": "changeit",
	}).Infoln("resolved")

	got := buf.String()
	want := "resolved {alias=signer, keystore-password=[REDACTED], zeta=1}\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithOptions(LoggerOptions{Level: LevelInfo, Output: &buf})
	_ = parent.WithField("child", true)

	parent.Infoln("plain")
	if buf.String() != "plain\n" {
		t.Errorf("parent gained fields: %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	l.WithField("pin", "1234").Warn("token %s", "login")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry["message"] != "token login" {
		t.Errorf("unexpected entry: %v", entry)
	}
	fields, _ := entry["fields"].(map[string]interface{})
	if fields["pin"] != redacted {
		t.Errorf("pin not redacted: %v", fields)
	}
}

func TestTextFormatterShowLevel(t *testing.T) {
	f := &TextFormatter{ShowLevel: true}
	data, err := f.Format(LogEntry{Level: LevelError, Message: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[ERROR] boom\n" {
		t.Errorf("got %q", data)
	}
}

func TestEnsureLogger(t *testing.T) {
	if EnsureLogger(nil) == nil {
		t.Fatal("EnsureLogger(nil) returned nil")
	}
	d := Discard()
	if EnsureLogger(d) != d {
		t.Error("EnsureLogger replaced a non-nil logger")
	}
}
