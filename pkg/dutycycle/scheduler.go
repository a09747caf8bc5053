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

package dutycycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/statewatch/statewatch/pkg/bus"
	"github.com/statewatch/statewatch/pkg/logger"
	"github.com/statewatch/statewatch/pkg/models"
)

const (
	actionTurnOn  = "turn_on"
	actionTurnOff = "turn_off"

	stateAttribute = "state"
)

// Scheduler alternates turn_on/turn_off invocations against one device
// so it stays on for the configured fraction of the time.
type Scheduler struct {
	cfg    Config
	store  bus.StateStore
	cmd    bus.Commander
	events bus.EventSource
	clock  bus.Clock
	logger logger.Logger

	mu      sync.Mutex
	gen     uint64
	timers  []bus.Timer
	unsubs  []func()
	stopped bool
}

// NewScheduler validates the configuration and wires the scheduler's
// collaborators. A nil clock defaults to the system clock.
func NewScheduler(
	cfg *Config,
	store bus.StateStore,
	cmd bus.Commander,
	events bus.EventSource,
	clock bus.Clock,
	log logger.Logger,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = bus.SystemClock()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Scheduler{
		cfg:    *cfg,
		store:  store,
		cmd:    cmd,
		events: events,
		clock:  clock,
		logger: log,
	}, nil
}

// Start begins the on/off cycle and, when the percent or min-on values
// come from entities, subscribes so the schedule re-derives on change.
func (s *Scheduler) Start(ctx context.Context) error {
	percent, minOn, err := s.currentSettings(ctx)
	if err != nil {
		return err
	}

	on, off, err := OnOffTimes(percent, minOn)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("device", s.cfg.Device).
		Float64("percent", percent).
		Dur("on_for", on).
		Dur("off_for", off).
		Msg("Running duty cycle")

	s.mu.Lock()
	s.onThenOff(ctx)
	s.mu.Unlock()

	for _, entityID := range []string{s.cfg.PercentEntity, s.cfg.MinOnEntity} {
		if entityID == "" {
			continue
		}

		s.logger.Info().Str("entity", entityID).Msg("Tracking duty cycle setting from entity")

		unsub, err := s.events.Subscribe(ctx, entityID, func(ev models.StateEvent) {
			s.handleSettingChange(ctx, ev)
		})
		if err != nil {
			s.Stop(ctx)
			return fmt.Errorf("failed to subscribe to %q: %w", entityID, err)
		}

		s.mu.Lock()
		s.unsubs = append(s.unsubs, unsub)
		s.mu.Unlock()
	}

	return nil
}

// Stop cancels outstanding timers and subscriptions.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()

	s.stopped = true
	s.cancelTimersLocked()

	unsubs := s.unsubs
	s.unsubs = nil

	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	return nil
}

// handleSettingChange re-derives the schedule after a sourced setting
// changed. Existing timers are canceled so the new cycle starts clean.
func (s *Scheduler) handleSettingChange(ctx context.Context, ev models.StateEvent) {
	s.logger.Info().
		Str("entity", ev.EntityID).
		Interface("old", ev.OldValue).
		Interface("new", ev.NewValue).
		Msg("Duty cycle setting changed, rescheduling")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.cancelTimersLocked()
	s.onThenOff(ctx)
}

// onThenOff runs one cycle: ensure the device is on, schedule the turn
// off after the on-duration, and schedule the next cycle after
// on+off. Caller holds the lock.
func (s *Scheduler) onThenOff(ctx context.Context) {
	if s.stopped {
		return
	}

	percent, minOn, err := s.currentSettings(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Cannot read duty cycle settings, keeping previous schedule")
		return
	}

	on, off, err := OnOffTimes(percent, minOn)
	if err != nil {
		s.logger.Error().Err(err).Msg("Duty cycle settings out of range, keeping previous schedule")
		return
	}

	if s.deviceState(ctx) != "on" {
		s.logger.Debug().Str("device", s.cfg.Device).Msg("Turning device on")

		if err := s.cmd.Invoke(ctx, s.cfg.Device, actionTurnOn); err != nil {
			s.logger.Error().Err(err).Str("device", s.cfg.Device).Msg("Failed to turn device on")
		}
	}

	s.logger.Debug().
		Str("device", s.cfg.Device).
		Dur("off_in", on).
		Dur("on_again_in", on+off).
		Msg("Scheduling duty cycle timers")

	gen := s.gen
	s.timers = []bus.Timer{
		s.clock.AfterFunc(on, func() { s.turnOff(ctx, gen) }),
		s.clock.AfterFunc(on+off, func() { s.nextCycle(ctx, gen) }),
	}
}

func (s *Scheduler) nextCycle(ctx context.Context, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A timer that fired before cancelTimersLocked could stop it still
	// gets here; the generation bump disarms it.
	if s.stopped || gen != s.gen {
		return
	}

	s.onThenOff(ctx)
}

func (s *Scheduler) turnOff(ctx context.Context, gen uint64) {
	s.mu.Lock()
	stale := s.stopped || gen != s.gen
	s.mu.Unlock()

	if stale {
		return
	}

	if err := s.cmd.Invoke(ctx, s.cfg.Device, actionTurnOff); err != nil {
		s.logger.Error().Err(err).Str("device", s.cfg.Device).Msg("Failed to turn device off")
	}
}

func (s *Scheduler) cancelTimersLocked() {
	s.gen++

	for _, timer := range s.timers {
		timer.Stop()
	}

	s.timers = nil
}

// currentSettings resolves percent and min-on, preferring sourced
// entity values over pinned configuration. Percent entities report
// 0-100.
func (s *Scheduler) currentSettings(ctx context.Context) (percent, minOn float64, err error) {
	percent = s.cfg.Percent

	if s.cfg.PercentEntity != "" {
		raw, err := s.entityNumber(ctx, s.cfg.PercentEntity)
		if err != nil {
			return 0, 0, err
		}

		percent = raw / 100
	}

	minOn = s.cfg.MinOnSeconds

	if s.cfg.MinOnEntity != "" {
		minOn, err = s.entityNumber(ctx, s.cfg.MinOnEntity)
		if err != nil {
			return 0, 0, err
		}
	}

	return percent, minOn, nil
}

func (s *Scheduler) entityNumber(ctx context.Context, entityID string) (float64, error) {
	snap, err := s.store.GetSnapshot(ctx, entityID)
	if err != nil {
		return 0, err
	}

	value, ok := snap[stateAttribute]
	if !ok {
		return 0, fmt.Errorf("%w: %s has no %s", errNotANumber, entityID, stateAttribute)
	}

	return parseNumber(value)
}

func (s *Scheduler) deviceState(ctx context.Context) string {
	snap, err := s.store.GetSnapshot(ctx, s.cfg.Device)
	if err != nil {
		return ""
	}

	state, _ := snap[stateAttribute].(string)

	return state
}
