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

import (
	"strings"

	"github.com/statewatch/statewatch/pkg/models"
)

// sentinel is a value distinct from anything a snapshot can legally
// contain, including nil.
type sentinel struct {
	name string
}

func (s sentinel) String() string {
	return s.name
}

// NotFound is returned by Resolve when any path segment is missing,
// so callers can tell "attribute missing" apart from "attribute
// present but empty".
var NotFound interface{} = sentinel{name: "NOT_FOUND"}

// Resolve walks a dotted attribute path through a snapshot.
// Resolve(snap, "attributes.battery", def) reads
// snap["attributes"]["battery"]; any missing segment or non-map
// intermediate yields def.
func Resolve(snap models.Snapshot, path string, def interface{}) interface{} {
	current := interface{}(snap)

	for _, segment := range strings.Split(path, ".") {
		var m map[string]interface{}

		switch typed := current.(type) {
		case models.Snapshot:
			m = typed
		case map[string]interface{}:
			m = typed
		default:
			return def
		}

		value, ok := m[segment]
		if !ok {
			return def
		}

		current = value
	}

	return current
}
