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

package watch

import "time"

// DefaultDebounce is how long an entity has to stay failing before the
// failure is confirmed, when the descriptor does not set its own delay.
const DefaultDebounce = 10 * time.Second

// DefaultAttribute is the attribute watched when the descriptor does
// not name one.
const DefaultAttribute = "state"

// Descriptor pairs an entity attribute with a checker and a debounce
// delay. Descriptors are immutable after registration; ID is the
// opaque identity used as the failure-table key and as the
// deduplication tag on outbound notifications. It is unique across the
// registered set and never reused.
type Descriptor struct {
	ID        string
	EntityID  string
	Attribute string
	Checker   Checker
	Debounce  time.Duration
}

// Accessor is the dotted entity-attribute path this descriptor watches.
func (d *Descriptor) Accessor() string {
	return d.EntityID + "." + d.Attribute
}
