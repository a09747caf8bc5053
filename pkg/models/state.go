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

// Package models holds the wire types shared between the platform bus
// and the monitoring core.
package models

// Snapshot is the reported attribute state of an entity as seen by the
// platform. Nested attribute maps decode as map[string]interface{}.
type Snapshot map[string]interface{}

// StateEvent describes one reported attribute change for an entity.
// Delivery is at-least-once and carries no cross-entity ordering
// guarantee.
type StateEvent struct {
	EntityID  string      `json:"entity_id"`
	Attribute string      `json:"attribute"`
	OldValue  interface{} `json:"old_value,omitempty"`
	NewValue  interface{} `json:"new_value,omitempty"`
}
