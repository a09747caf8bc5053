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
	"fmt"

	"github.com/google/uuid"

	"github.com/statewatch/statewatch/pkg/config"
)

// CheckerSpec is the wire form of a checker in the descriptor list.
type CheckerSpec struct {
	Type    string        `json:"type"`
	Op      string        `json:"op,omitempty"`
	Value   interface{}   `json:"value,omitempty"`
	Values  []interface{} `json:"values,omitempty"`
	Convert string        `json:"convert,omitempty"`
	PassMsg string        `json:"pass_msg,omitempty"`
	FailMsg string        `json:"fail_msg,omitempty"`
}

const (
	checkerTypeCompare = "compare"
	checkerTypeOneOf   = "one_of"
	checkerTypeNoneOf  = "none_of"
)

// EntitySpec is the wire form of one entity watch in the configuration
// file. Attribute defaults to "state" and debounce to 10s; an explicit
// zero debounce confirms failures immediately.
type EntitySpec struct {
	EntityID  string           `json:"entity_id"`
	Attribute string           `json:"attribute,omitempty"`
	Check     *CheckerSpec     `json:"check"`
	Debounce  *config.Duration `json:"debounce,omitempty"`
	ID        string           `json:"id,omitempty"`
}

// Config is the monitor's descriptor configuration, supplied once at
// process start. The descriptor set cannot be reconfigured at runtime.
type Config struct {
	Entities []EntitySpec `json:"listen_entities"`
}

// Validate implements config.Validator. Configuration problems here
// are fatal: the monitor must not start partially configured.
func (c *Config) Validate() error {
	_, err := BuildDescriptors(c.Entities)
	return err
}

// BuildDescriptors turns the wire specs into registered descriptors,
// assigning an identity to every spec that does not pin one. It fails
// on the first invalid spec.
func BuildDescriptors(specs []EntitySpec) ([]*Descriptor, error) {
	descriptors := make([]*Descriptor, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for i := range specs {
		des, err := buildDescriptor(&specs[i])
		if err != nil {
			return nil, fmt.Errorf("listen_entities[%d]: %w", i, err)
		}

		if _, dup := seen[des.ID]; dup {
			return nil, fmt.Errorf("listen_entities[%d]: %w: %s", i, ErrDuplicateID, des.ID)
		}

		seen[des.ID] = struct{}{}
		descriptors = append(descriptors, des)
	}

	return descriptors, nil
}

func buildDescriptor(spec *EntitySpec) (*Descriptor, error) {
	if spec.EntityID == "" {
		return nil, ErrEntityRequired
	}

	if spec.Check == nil {
		return nil, ErrCheckerRequired
	}

	checker, err := buildChecker(spec.Check)
	if err != nil {
		return nil, err
	}

	attribute := spec.Attribute
	if attribute == "" {
		attribute = DefaultAttribute
	}

	debounce := DefaultDebounce
	if spec.Debounce != nil {
		debounce = spec.Debounce.Duration()
	}

	if debounce < 0 {
		return nil, ErrNegativeDebounce
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &Descriptor{
		ID:        id,
		EntityID:  spec.EntityID,
		Attribute: attribute,
		Checker:   checker,
		Debounce:  debounce,
	}, nil
}

func buildChecker(spec *CheckerSpec) (Checker, error) {
	msgs := messages{pass: spec.PassMsg, fail: spec.FailMsg}

	switch spec.Type {
	case checkerTypeCompare:
		op := CompareOp(spec.Op)
		if !op.valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, spec.Op)
		}

		if spec.Value == nil {
			return nil, ErrExpectedRequired
		}

		convert, ok := LookupConverter(spec.Convert)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownConverter, spec.Convert)
		}

		return &Compare{Op: op, Expected: spec.Value, Convert: convert, msgs: msgs}, nil

	case checkerTypeOneOf:
		if len(spec.Values) == 0 {
			return nil, ErrValuesRequired
		}

		return &OneOf{Values: spec.Values, msgs: msgs}, nil

	case checkerTypeNoneOf:
		if len(spec.Values) == 0 {
			return nil, ErrValuesRequired
		}

		return &NoneOf{Values: spec.Values, msgs: msgs}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCheckerType, spec.Type)
	}
}
