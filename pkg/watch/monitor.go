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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/statewatch/statewatch/pkg/alerts"
	"github.com/statewatch/statewatch/pkg/bus"
	"github.com/statewatch/statewatch/pkg/logger"
	"github.com/statewatch/statewatch/pkg/models"
)

const (
	failureTitle  = "Abnormal State"
	recoveryTitle = "Re-Enter Normal State"
)

// Monitor owns the failure and pending-recheck tables and runs the
// debounce state machine. Per-descriptor state is the union of table
// memberships rather than a materialized field:
//
//	OK       absent from both tables
//	SUSPECT  pending-recheck entry only
//	FAILED   failure-table entry
//
// All transitions run under one mutex, so each is atomic relative to
// the others; no other component reads or writes the tables.
type Monitor struct {
	descriptors []*Descriptor
	byEntity    map[string][]*Descriptor

	store   bus.StateStore
	events  bus.EventSource
	alerter alerts.AlertService
	clock   bus.Clock
	logger  logger.Logger

	mu       sync.Mutex
	failures map[string]time.Time
	pending  map[string]*pendingRecheck
	unsubs   []func()
	stopped  bool
}

// pendingRecheck tracks one scheduled debounce recheck. The callback
// holds its own entry, so a recheck whose timer fired before a
// cancellation could stop it can tell it no longer owns the table
// slot and must not act.
type pendingRecheck struct {
	timer bus.Timer
}

// NewMonitor builds and registers the descriptor set and wires the
// monitor's collaborators. A nil clock defaults to the system clock.
// Configuration errors are fatal: the monitor refuses to start
// partially configured.
func NewMonitor(
	cfg *Config,
	store bus.StateStore,
	events bus.EventSource,
	alerter alerts.AlertService,
	clock bus.Clock,
	log logger.Logger,
) (*Monitor, error) {
	descriptors, err := BuildDescriptors(cfg.Entities)
	if err != nil {
		return nil, err
	}

	if clock == nil {
		clock = bus.SystemClock()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	byEntity := make(map[string][]*Descriptor)
	for _, des := range descriptors {
		byEntity[des.EntityID] = append(byEntity[des.EntityID], des)
	}

	return &Monitor{
		descriptors: descriptors,
		byEntity:    byEntity,
		store:       store,
		events:      events,
		alerter:     alerter,
		clock:       clock,
		logger:      log,
		failures:    make(map[string]time.Time),
		pending:     make(map[string]*pendingRecheck),
	}, nil
}

// Start checks every descriptor once synchronously, then subscribes for
// change events. The startup sweep means a deployment that is already
// broken alerts immediately instead of waiting for a future event.
func (m *Monitor) Start(ctx context.Context) error {
	for _, des := range m.descriptors {
		m.logger.Info().
			Str("entity", des.EntityID).
			Str("descriptor_id", des.ID).
			Msg("Doing startup check and registering listener")

		m.checkDescriptor(ctx, des)
	}

	for entityID := range m.byEntity {
		unsub, err := m.events.Subscribe(ctx, entityID, func(ev models.StateEvent) {
			m.handleStateEvent(ctx, ev)
		})
		if err != nil {
			m.Stop(ctx)
			return fmt.Errorf("failed to subscribe to %q: %w", entityID, err)
		}

		m.mu.Lock()
		m.unsubs = append(m.unsubs, unsub)
		m.mu.Unlock()
	}

	return nil
}

// Stop cancels subscriptions and outstanding debounce timers. It is
// safe to call more than once.
func (m *Monitor) Stop(_ context.Context) error {
	m.mu.Lock()

	m.stopped = true

	for id, entry := range m.pending {
		entry.timer.Stop()
		delete(m.pending, id)
	}

	unsubs := m.unsubs
	m.unsubs = nil

	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	return nil
}

// handleStateEvent dispatches a change event to the descriptors
// watching that entity. An event with no attached descriptor is a
// wiring defect: it is logged loudly and must never reach the state
// machine.
func (m *Monitor) handleStateEvent(ctx context.Context, ev models.StateEvent) {
	descriptors := m.byEntity[ev.EntityID]
	if len(descriptors) == 0 {
		m.logger.Error().
			Str("entity", ev.EntityID).
			Msg("State event fired without an attached descriptor")

		return
	}

	for _, des := range descriptors {
		m.checkDescriptor(ctx, des)
	}
}

// checkDescriptor runs one transition of the state machine for a
// change event (or the startup sweep). Notifications and table edits
// happen here and in recheck only.
func (m *Monitor) checkDescriptor(ctx context.Context, des *Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	m.logger.Debug().Str("accessor", des.Accessor()).Msg("Checking entity state")

	verdict := m.evaluate(ctx, des)

	failedAt, isFailed := m.failures[des.ID]
	_, isSuspect := m.pending[des.ID]

	switch {
	case verdict.Passed && isFailed:
		// Failed but came back into compliance.
		elapsed := m.clock.Now().Sub(failedAt).Round(time.Second)

		delete(m.failures, des.ID)

		// If the entity goes compliant and then non-compliant again
		// before a recheck happens, a stray timer could still be
		// ticking; clear it on any transition to OK.
		m.cancelRecheck(des)

		m.logger.Info().
			Str("accessor", des.Accessor()).
			Dur("failed_for", elapsed).
			Msg("Entity failed but came back, removing from current failures")

		m.notifyRecovery(ctx, des, verdict.Message, elapsed)

	case verdict.Passed && isSuspect:
		// Flicker self-resolved before the debounce elapsed.
		m.cancelRecheck(des)
		m.logger.Debug().Str("accessor", des.Accessor()).Msg("Entity recovered before recheck")

	case verdict.Passed:
		m.logger.Debug().Str("accessor", des.Accessor()).Msg("Entity is fine")

	case isFailed:
		// A currently failed entity moved from one failed state to
		// another; re-notify with the new reason, no debounce restart.
		m.notifyFailure(ctx, des, verdict.Message)

	case isSuspect:
		// A recheck is already scheduled and owns the next decision.

	default:
		m.logger.Info().
			Str("accessor", des.Accessor()).
			Dur("debounce", des.Debounce).
			Msg("Entity in fail state, scheduling recheck")

		entry := &pendingRecheck{}
		entry.timer = m.clock.AfterFunc(des.Debounce, func() {
			m.recheck(ctx, des, entry)
		})
		m.pending[des.ID] = entry
	}
}

// recheck is the debounce timer entry point: it re-evaluates the
// checker fresh and either confirms the failure or drops the incident
// as a transient blip.
func (m *Monitor) recheck(ctx context.Context, des *Descriptor, entry *pendingRecheck) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A timer that fired before cancelRecheck could stop it still runs
	// this callback once the lock frees up. The table entry is gone (or
	// replaced by a newer debounce window) by then, so ownership of the
	// slot decides whether this recheck is still live.
	if m.pending[des.ID] != entry {
		return
	}

	delete(m.pending, des.ID)

	if m.stopped {
		return
	}

	verdict := m.evaluate(ctx, des)
	if verdict.Passed {
		m.logger.Debug().
			Str("accessor", des.Accessor()).
			Msg("Entity was temporarily in a fail state")

		return
	}

	m.failures[des.ID] = m.clock.Now()
	m.notifyFailure(ctx, des, verdict.Message)
}

// cancelRecheck stops a pending debounce timer if one exists. When the
// timer already fired, removing the table entry is what disarms the
// in-flight callback.
func (m *Monitor) cancelRecheck(des *Descriptor) {
	if entry, ok := m.pending[des.ID]; ok {
		entry.timer.Stop()
		delete(m.pending, des.ID)
	}
}

// evaluate resolves the watched attribute and runs the checker. A
// missing entity or attribute is itself abnormal: it surfaces as an
// ordinary failing evaluation, never as a crash.
func (m *Monitor) evaluate(ctx context.Context, des *Descriptor) Verdict {
	snap, err := m.store.GetSnapshot(ctx, des.EntityID)
	if err != nil {
		msg := fmt.Sprintf("cannot find `%s`", des.Accessor())
		m.logger.Error().Err(err).Str("accessor", des.Accessor()).Msg(msg)

		return Verdict{Passed: false, Message: msg}
	}

	value := Resolve(snap, des.Attribute, NotFound)
	if value == NotFound {
		msg := fmt.Sprintf("cannot find `%s`", des.Accessor())
		m.logger.Error().Str("accessor", des.Accessor()).Msg(msg)

		return Verdict{Passed: false, Message: msg}
	}

	return des.Checker.Evaluate(des, value)
}

func (m *Monitor) notifyFailure(ctx context.Context, des *Descriptor, msg string) {
	m.logger.Warn().Str("descriptor_id", des.ID).Msg(msg)

	alert := &alerts.WebhookAlert{
		Level:     alerts.Error,
		Title:     failureTitle,
		Message:   msg,
		Tag:       des.ID,
		Timestamp: m.clock.Now().UTC().Format(time.RFC3339),
		Details: map[string]interface{}{
			"entity_id": des.EntityID,
			"attribute": des.Attribute,
		},
	}

	m.sendAlert(ctx, alert)
}

func (m *Monitor) notifyRecovery(ctx context.Context, des *Descriptor, msg string, elapsed time.Duration) {
	m.logger.Info().Str("descriptor_id", des.ID).Msg(msg)

	alert := &alerts.WebhookAlert{
		Level:     alerts.Info,
		Title:     recoveryTitle,
		Message:   fmt.Sprintf("%s (failed for: %s)", msg, elapsed),
		Tag:       des.ID,
		Timestamp: m.clock.Now().UTC().Format(time.RFC3339),
		Details: map[string]interface{}{
			"entity_id":  des.EntityID,
			"attribute":  des.Attribute,
			"failed_for": elapsed.String(),
		},
	}

	m.sendAlert(ctx, alert)
}

func (m *Monitor) sendAlert(ctx context.Context, alert *alerts.WebhookAlert) {
	err := m.alerter.Alert(ctx, alert)
	if err == nil {
		return
	}

	if errors.Is(err, alerts.ErrWebhookCooldown) || errors.Is(err, alerts.ErrWebhookDisabled) {
		m.logger.Debug().Err(err).Str("tag", alert.Tag).Msg("Alert suppressed")
		return
	}

	m.logger.Warn().Err(err).Str("tag", alert.Tag).Msg("Failed to send alert")
}
