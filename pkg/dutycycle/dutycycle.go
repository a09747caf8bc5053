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

// Package dutycycle keeps a device on for a target fraction of the
// time: on for the minimum on-duration, then off long enough that the
// on-fraction works out to the target, forever. It shares no state
// with the health monitor.
package dutycycle

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrDeviceRequired = errors.New("duty cycle requires a device")
	ErrInvalidPercent = errors.New("percent must be between 0 and 1 exclusive")
	ErrInvalidMinOn   = errors.New("min_on_seconds must be positive")

	errNotANumber = errors.New("entity value is not a number")
)

// Config describes one duty-cycled device. Percent and MinOnSeconds
// may be pinned here or sourced from entities; a sourced value
// overrides the pinned one and the schedule re-derives whenever the
// source entity changes. Percent entities report 0-100.
type Config struct {
	Device        string  `json:"device"`
	Percent       float64 `json:"percent,omitempty"`
	MinOnSeconds  float64 `json:"min_on_seconds,omitempty"`
	PercentEntity string  `json:"percent_entity,omitempty"`
	MinOnEntity   string  `json:"min_on_entity,omitempty"`
}

func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrDeviceRequired
	}

	if c.PercentEntity == "" {
		if c.Percent <= 0 || c.Percent >= 1 {
			return fmt.Errorf("%w: %v", ErrInvalidPercent, c.Percent)
		}
	}

	if c.MinOnEntity == "" {
		if c.MinOnSeconds <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidMinOn, c.MinOnSeconds)
		}
	}

	return nil
}

// OnOffTimes derives the schedule for a target on-fraction: on-time is
// the minimum on-duration, off-time is scaled so on/(on+off) equals
// percent. percent=0.25 with 100s on yields 300s off.
func OnOffTimes(percent, minOnSeconds float64) (on, off time.Duration, err error) {
	if percent <= 0 || percent >= 1 {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidPercent, percent)
	}

	if minOnSeconds <= 0 {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidMinOn, minOnSeconds)
	}

	on = time.Duration(minOnSeconds * float64(time.Second))
	off = time.Duration(minOnSeconds * (1 - percent) / percent * float64(time.Second))

	return on, off, nil
}

// parseNumber widens a reported entity value to float64. Sensor
// payloads arrive as JSON numbers or numeric strings.
func parseNumber(value interface{}) (float64, error) {
	switch n := value.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotANumber, n)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T", errNotANumber, value)
	}
}
