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

package registry

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/sigstore/message-signing/pkg/credentials"
)

type key struct {
	name string
	kind credentials.Kind
}

// Memory is a concurrency-safe in-memory registry.
type Memory struct {
	mu         sync.RWMutex
	values     map[key]any
	generation atomic.Uint64
}

var _ credentials.BindingContext = (*Memory)(nil)

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{values: make(map[key]any)}
}

// Put stores value under name and kind.
func (m *Memory) Put(name string, kind credentials.Kind, value any) {
	m.mu.Lock()
	m.values[key{name, kind}] = value
	m.mu.Unlock()
	m.generation.Inc()
}

// PutPEM decodes data with Decode and stores the result.
func (m *Memory) PutPEM(name string, kind credentials.Kind, data []byte) error {
	v, err := Decode(kind, data)
	if err != nil {
		return fmt.Errorf("%s %q: %w", kind, name, err)
	}
	m.Put(name, kind, v)
	return nil
}

// Remove deletes the entry for name and kind, reporting whether it existed.
func (m *Memory) Remove(name string, kind credentials.Kind) bool {
	m.mu.Lock()
	_, ok := m.values[key{name, kind}]
	delete(m.values, key{name, kind})
	m.mu.Unlock()
	if ok {
		m.generation.Inc()
	}
	return ok
}

// Generation increases on every change.
func (m *Memory) Generation() uint64 {
	return m.generation.Load()
}

// LookupByNameAndType implements credentials.BindingContext.
func (m *Memory) LookupByNameAndType(name string, kind credentials.Kind) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key{name, kind}]
	return v, ok
}
