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

package keystore

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PKCS11URI holds the attributes of an RFC 7512 "pkcs11:" URI that matter
// for opening a token and selecting objects on it.
type PKCS11URI struct {
	// Token is the token label.
	Token string
	// Object is the object label. It becomes the default alias.
	Object string
	// ID is the CKA_ID of the object.
	ID []byte
	// SlotID is -1 when the URI does not name a slot.
	SlotID int

	ModulePath string
	ModuleName string
	PinValue   string
	PinSource  string
}

// DefaultModuleDirs are searched for "module-name" when the URI does not
// carry a "module-path".
var DefaultModuleDirs = []string{
	"/usr/lib64/pkcs11/",
	"/usr/lib/pkcs11/",
	"/usr/lib/x86_64-linux-gnu/softhsm/",
	"/usr/lib/softhsm/",
	"/usr/local/lib/softhsm/",
	"/opt/homebrew/lib/softhsm/",
}

var validObjectTypes = map[string]bool{
	"public": true, "private": true, "cert": true, "secret-key": true, "data": true,
}

// ParsePKCS11URI parses uri. Path attributes are separated by ';', query
// attributes by '&', and values are percent decoded.
func ParsePKCS11URI(uri string) (*PKCS11URI, error) {
	rest, ok := strings.CutPrefix(uri, "pkcs11:")
	if !ok {
		return nil, fmt.Errorf("malformed pkcs11 URI: missing 'pkcs11:' prefix")
	}
	path, query, _ := strings.Cut(rest, "?")

	pathAttrs, err := splitAttributes(path, ";")
	if err != nil {
		return nil, fmt.Errorf("malformed pkcs11 URI path: %w", err)
	}
	queryAttrs, err := splitAttributes(query, "&")
	if err != nil {
		return nil, fmt.Errorf("malformed pkcs11 URI query: %w", err)
	}

	u := &PKCS11URI{
		Token:      pathAttrs["token"],
		Object:     pathAttrs["object"],
		SlotID:     -1,
		ModulePath: queryAttrs["module-path"],
		ModuleName: queryAttrs["module-name"],
		PinValue:   queryAttrs["pin-value"],
		PinSource:  queryAttrs["pin-source"],
	}
	if id, ok := pathAttrs["id"]; ok {
		u.ID = []byte(id)
	}
	if s, ok := pathAttrs["slot-id"]; ok {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("slot-id must be a 32 bit unsigned number: %s", s)
		}
		u.SlotID = int(n)
	}
	if t, ok := pathAttrs["type"]; ok && !validObjectTypes[t] {
		return nil, fmt.Errorf("invalid object type %q", t)
	}
	if u.PinValue != "" && u.PinSource != "" {
		return nil, fmt.Errorf("URI must not contain both pin-source and pin-value")
	}
	if u.ModulePath != "" && !filepath.IsAbs(u.ModulePath) {
		return nil, fmt.Errorf("module-path %s must be absolute", u.ModulePath)
	}
	if u.Token == "" && u.SlotID < 0 {
		return nil, fmt.Errorf("pkcs11 URI must name a token or slot-id")
	}
	return u, nil
}

func splitAttributes(s, sep string) (map[string]string, error) {
	attrs := make(map[string]string)
	if s == "" {
		return attrs, nil
	}
	for _, part := range strings.Split(s, sep) {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("attribute %q is not name=value", part)
		}
		decoded, err := url.PathUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		attrs[k] = decoded
	}
	return attrs, nil
}

// PIN returns the token PIN from pin-value or the file named by pin-source.
// An empty string with a nil error means the URI carries no PIN.
func (u *PKCS11URI) PIN() (string, error) {
	if u.PinValue != "" {
		return u.PinValue, nil
	}
	if u.PinSource == "" {
		return "", nil
	}
	src, err := url.Parse(u.PinSource)
	if err != nil {
		return "", fmt.Errorf("failed to parse pin-source: %w", err)
	}
	if src.Scheme != "" && src.Scheme != "file" {
		return "", fmt.Errorf("pin-source scheme %s is not supported", src.Scheme)
	}
	if !filepath.IsAbs(src.Path) {
		return "", fmt.Errorf("pin-source path %q is not absolute", src.Path)
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Module returns the path of the PKCS#11 library to load. module-path wins
// when it names a file; a directory module-path, or else dirs (defaulting
// to DefaultModuleDirs), is searched for a file whose name contains
// module-name.
func (u *PKCS11URI) Module(dirs []string) (string, error) {
	if u.ModulePath != "" {
		info, err := os.Stat(u.ModulePath)
		if err != nil {
			return "", fmt.Errorf("module-path: %w", err)
		}
		if info.Mode().IsRegular() {
			return u.ModulePath, nil
		}
		if !info.IsDir() {
			return "", fmt.Errorf("module-path %s is not a file or directory", u.ModulePath)
		}
		dirs = []string{u.ModulePath}
	}
	if u.ModuleName == "" {
		return "", fmt.Errorf("pkcs11 URI has neither module-path nor module-name")
	}
	if len(dirs) == 0 {
		dirs = DefaultModuleDirs
	}

	name := strings.ToLower(u.ModuleName)
	for _, dir := range dirs {
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !f.IsDir() && strings.Contains(strings.ToLower(f.Name()), name) {
				return filepath.Join(dir, f.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("no module %q found in %v", u.ModuleName, dirs)
}

// objectSelector turns an alias into a (id, label) pair for crypto11.
// Aliases of the form "id:<hex>" select by CKA_ID; anything else is a label.
func objectSelector(alias string) (id, label []byte, err error) {
	if h, ok := strings.CutPrefix(alias, "id:"); ok {
		id, err = hex.DecodeString(h)
		if err != nil {
			return nil, nil, fmt.Errorf("alias %q: invalid hex id: %w", alias, err)
		}
		return id, nil, nil
	}
	return nil, []byte(alias), nil
}
