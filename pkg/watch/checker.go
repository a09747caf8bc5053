/*
 * Copyright 2025 Statewatch Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package watch implements the entity health monitor: descriptors
// pairing an entity attribute with a checker, the debounce state
// machine, and failure bookkeeping.
package watch

import "fmt"

// Verdict is the outcome of one checker evaluation.
type Verdict struct {
	Passed  bool
	Message string
}

// Checker turns a raw reported value into a pass/fail verdict plus a
// human-readable message. Implementations are pure functions of their
// configuration and the value, so one instance is safe to reuse across
// independent evaluations.
type Checker interface {
	Evaluate(des *Descriptor, value interface{}) Verdict
}

// messages holds optional static pass/fail message overrides shared by
// all checker variants.
type messages struct {
	pass string
	fail string
}

func (m messages) verdict(des *Descriptor, value interface{}, passed bool) Verdict {
	if passed {
		msg := m.pass
		if msg == "" {
			msg = fmt.Sprintf("%s passed check with a current value of `%v`", des.EntityID, value)
		}

		return Verdict{Passed: true, Message: msg}
	}

	msg := m.fail
	if msg == "" {
		msg = fmt.Sprintf("%s failed check with a current value of `%v`", des.EntityID, value)
	}

	return Verdict{Passed: false, Message: msg}
}

// equalValues compares two reported values. Numbers compare
// numerically regardless of concrete type; everything else compares by
// strict equality.
func equalValues(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	if aok != bok {
		return false
	}

	return a == b
}

// toFloat widens any numeric type to float64. Strings do not count as
// numbers; a converter must be configured to compare string payloads
// numerically.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
