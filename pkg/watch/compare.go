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
	"strconv"
)

// CompareOp names an ordered or equality comparison.
type CompareOp string

const (
	OpEqual          CompareOp = "eq"
	OpNotEqual       CompareOp = "ne"
	OpLessThan       CompareOp = "lt"
	OpGreaterThan    CompareOp = "gt"
	OpLessOrEqual    CompareOp = "le"
	OpGreaterOrEqual CompareOp = "ge"
)

func (op CompareOp) valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpGreaterThan, OpLessOrEqual, OpGreaterOrEqual:
		return true
	default:
		return false
	}
}

// Converter transforms a raw reported value before comparison.
type Converter func(value interface{}) (interface{}, error)

// converters is the closed set of named converters available to
// comparison checker configuration.
var converters = map[string]Converter{
	// int_of_float parses the value as a float and truncates to an
	// integer, matching how numeric sensor payloads arrive as strings
	// like "21.9".
	"int_of_float": func(value interface{}) (interface{}, error) {
		f, err := parseFloat(value)
		if err != nil {
			return nil, err
		}

		return int64(f), nil
	},
	"float": func(value interface{}) (interface{}, error) {
		return parseFloat(value)
	},
	"string": func(value interface{}) (interface{}, error) {
		return fmt.Sprint(value), nil
	},
}

// LookupConverter returns the named converter, or false for unknown
// names. An empty name means no conversion.
func LookupConverter(name string) (Converter, bool) {
	if name == "" {
		return nil, true
	}

	c, ok := converters[name]

	return c, ok
}

func parseFloat(value interface{}) (float64, error) {
	if f, ok := toFloat(value); ok {
		return f, nil
	}

	s, ok := value.(string)
	if !ok {
		return 0, fmt.Errorf("%w: %T", errNotANumber, value)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errNotANumber, s)
	}

	return f, nil
}

// Compare checks the observed value against an expected value with one
// of the comparison operators. An optional converter is applied to the
// raw value first; if conversion fails the raw value is compared
// unconverted, and if the comparison itself cannot be evaluated the
// verdict is FAIL rather than an error.
type Compare struct {
	Op       CompareOp
	Expected interface{}
	Convert  Converter

	msgs messages
}

func (c *Compare) Evaluate(des *Descriptor, value interface{}) Verdict {
	observed := value

	if c.Convert != nil {
		converted, err := c.Convert(value)
		if err == nil {
			observed = converted
		}
	}

	passed := c.compare(observed)

	return c.msgs.verdict(des, value, passed)
}

func (c *Compare) compare(observed interface{}) bool {
	switch c.Op {
	case OpEqual:
		return equalValues(observed, c.Expected)
	case OpNotEqual:
		return !equalValues(observed, c.Expected)
	case OpLessThan, OpGreaterThan, OpLessOrEqual, OpGreaterOrEqual:
		return c.compareOrdered(observed)
	default:
		return false
	}
}

// compareOrdered evaluates the ordered operators in float64 space.
// Non-numeric operands cannot be ordered, which reports FAIL.
func (c *Compare) compareOrdered(observed interface{}) bool {
	o, ook := toFloat(observed)
	e, eok := toFloat(c.Expected)

	if !ook || !eok {
		return false
	}

	switch c.Op {
	case OpLessThan:
		return o < e
	case OpGreaterThan:
		return o > e
	case OpLessOrEqual:
		return o <= e
	case OpGreaterOrEqual:
		return o >= e
	default:
		return false
	}
}
