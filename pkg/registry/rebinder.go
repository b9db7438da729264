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
	"context"
	"sync"
	"time"

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/logging"
)

// Generational is a binding context that reports a counter which changes
// whenever its contents do.
type Generational interface {
	credentials.BindingContext
	Generation() uint64
}

// Rebinder keeps configurations bound to a changing registry. Refresh only
// calls Bind, which may run alongside Clone and the Resolve accessors of a
// tracked configuration.
type Rebinder struct {
	source Generational
	logger logging.Logger

	mu      sync.Mutex
	tracked []*credentials.Configuration
	last    uint64
	bound   bool
}

// NewRebinder returns a Rebinder over source.
func NewRebinder(source Generational, logger logging.Logger) *Rebinder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Rebinder{source: source, logger: logger}
}

// Track binds cfg to the source now and on every later Refresh that sees a
// new generation.
func (r *Rebinder) Track(cfg *credentials.Configuration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.Bind(r.source)
	r.tracked = append(r.tracked, cfg)
}

// Refresh re-binds every tracked configuration if the source generation moved
// since the last refresh. It reports whether a re-bind happened.
func (r *Rebinder) Refresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := r.source.Generation()
	if r.bound && gen == r.last {
		return false
	}
	for _, cfg := range r.tracked {
		cfg.Bind(r.source)
	}
	r.last, r.bound = gen, true
	r.logger.WithFields(map[string]interface{}{
		"generation":     gen,
		"configurations": len(r.tracked),
	}).Debugln("re-bound configurations")
	return true
}

// Run calls Refresh every interval until ctx is done.
func (r *Rebinder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh()
		}
	}
}
