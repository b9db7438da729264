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

import "github.com/sigstore/message-signing/pkg/credentials"

// Chain looks a name up in each context in order; the first hit wins.
type Chain []credentials.BindingContext

// LookupByNameAndType implements credentials.BindingContext.
func (c Chain) LookupByNameAndType(name string, kind credentials.Kind) (any, bool) {
	for _, bc := range c {
		if bc == nil {
			continue
		}
		if v, ok := bc.LookupByNameAndType(name, kind); ok {
			return v, true
		}
	}
	return nil, false
}

// Generation sums the generations of the members that report one, so any
// change in a member changes the chain's generation.
func (c Chain) Generation() uint64 {
	var g uint64
	for _, bc := range c {
		if gen, ok := bc.(Generational); ok {
			g += gen.Generation()
		}
	}
	return g
}
