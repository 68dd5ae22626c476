// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package assert guards internal invariants that should never be violated
// short of a programming error (spec.md §7, "internal assertion failures").
//
// Unlike the classification, I/O, and protocol error classes, a violated
// assertion here is not something a caller can meaningfully recover from —
// it means a data structure the calling package owns (such as netsvc's
// pending-connects map) is inconsistent with the code operating on it.
package assert

import "fmt"

// That panics with the given message if cond is false. Call sites should
// only assert conditions that a correct caller can never violate.
func That(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
