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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/statewatch/statewatch/pkg/bus"
	"github.com/statewatch/statewatch/pkg/models"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) bus.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{clock: c, when: c.now.Add(d), fn: f}
	c.timers = append(c.timers, timer)

	return timer
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer

	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired && !timer.when.After(c.now) {
			timer.fired = true

			due = append(due, timer)
		}
	}
	c.mu.Unlock()

	for _, timer := range due {
		timer.fn()
	}
}

// expire marks the i-th registered timer as fired without running its
// callback and returns the callback, modeling a wall-clock timer whose
// function is already in flight when Stop is attempted.
func (c *fakeClock) expire(i int) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := c.timers[i]
	timer.fired = true

	return timer.fn
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}

	t.stopped = true

	return true
}

// schedulerHarness tracks invoked actions and mirrors them back into
// the device's reported state, the way a real actuator would.
type schedulerHarness struct {
	scheduler *Scheduler
	clock     *fakeClock

	mu      sync.Mutex
	state   map[string]interface{}
	actions []string
	fires   map[string]func(models.StateEvent)
}

func (h *schedulerHarness) setState(entityID string, value interface{}) {
	h.mu.Lock()
	h.state[entityID] = value
	h.mu.Unlock()
}

func (h *schedulerHarness) invoked() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.actions))
	copy(out, h.actions)

	return out
}

func newSchedulerHarness(t *testing.T, cfg *Config, initial map[string]interface{}) *schedulerHarness {
	t.Helper()

	ctrl := gomock.NewController(t)

	h := &schedulerHarness{
		clock: newFakeClock(),
		state: initial,
		fires: make(map[string]func(models.StateEvent)),
	}

	store := bus.NewMockStateStore(ctrl)
	store.EXPECT().GetSnapshot(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(
		func(_ context.Context, entityID string) (models.Snapshot, error) {
			h.mu.Lock()
			defer h.mu.Unlock()

			value, ok := h.state[entityID]
			if !ok {
				return nil, bus.ErrEntityNotFound
			}

			return models.Snapshot{"state": value}, nil
		})

	cmd := bus.NewMockCommander(ctrl)
	cmd.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(
		func(_ context.Context, entityID, action string) error {
			h.mu.Lock()
			defer h.mu.Unlock()

			h.actions = append(h.actions, entityID+":"+action)

			switch action {
			case actionTurnOn:
				h.state[entityID] = "on"
			case actionTurnOff:
				h.state[entityID] = "off"
			}

			return nil
		})

	events := bus.NewMockEventSource(ctrl)
	events.EXPECT().Subscribe(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(
		func(_ context.Context, entityID string, fn func(models.StateEvent)) (func(), error) {
			h.fires[entityID] = fn
			return func() {}, nil
		})

	scheduler, err := NewScheduler(cfg, store, cmd, events, h.clock, nil)
	require.NoError(t, err)

	h.scheduler = scheduler

	return h
}

func TestSchedulerCyclesDevice(t *testing.T) {
	cfg := &Config{Device: "switch.heater", Percent: 0.25, MinOnSeconds: 100}

	h := newSchedulerHarness(t, cfg, map[string]interface{}{"switch.heater": "off"})

	ctx := context.Background()

	require.NoError(t, h.scheduler.Start(ctx))
	defer func() { _ = h.scheduler.Stop(ctx) }()

	// The device turns on immediately.
	assert.Equal(t, []string{"switch.heater:turn_on"}, h.invoked())

	// Off after the on-duration.
	h.clock.advance(100 * time.Second)
	assert.Equal(t, []string{
		"switch.heater:turn_on",
		"switch.heater:turn_off",
	}, h.invoked())

	// Back on after the off-duration, starting the next cycle.
	h.clock.advance(300 * time.Second)
	assert.Equal(t, []string{
		"switch.heater:turn_on",
		"switch.heater:turn_off",
		"switch.heater:turn_on",
	}, h.invoked())
}

func TestSchedulerSkipsTurnOnWhenAlreadyOn(t *testing.T) {
	cfg := &Config{Device: "switch.heater", Percent: 0.5, MinOnSeconds: 60}

	h := newSchedulerHarness(t, cfg, map[string]interface{}{"switch.heater": "on"})

	ctx := context.Background()

	require.NoError(t, h.scheduler.Start(ctx))
	defer func() { _ = h.scheduler.Stop(ctx) }()

	assert.Empty(t, h.invoked(), "an already-on device is left alone")

	h.clock.advance(60 * time.Second)
	assert.Equal(t, []string{"switch.heater:turn_off"}, h.invoked())
}

func TestSchedulerSourcedSettings(t *testing.T) {
	cfg := &Config{
		Device:        "switch.heater",
		PercentEntity: "input_number.heater_percent",
		MinOnEntity:   "input_number.heater_min_on",
	}

	h := newSchedulerHarness(t, cfg, map[string]interface{}{
		"switch.heater":               "off",
		"input_number.heater_percent": "50",
		"input_number.heater_min_on":  "60",
	})

	ctx := context.Background()

	require.NoError(t, h.scheduler.Start(ctx))
	defer func() { _ = h.scheduler.Stop(ctx) }()

	assert.Contains(t, h.fires, "input_number.heater_percent")
	assert.Contains(t, h.fires, "input_number.heater_min_on")

	// 50 percent with 60s on means 60s off.
	h.clock.advance(60 * time.Second)
	assert.Equal(t, []string{
		"switch.heater:turn_on",
		"switch.heater:turn_off",
	}, h.invoked())

	h.clock.advance(60 * time.Second)
	assert.Equal(t, []string{
		"switch.heater:turn_on",
		"switch.heater:turn_off",
		"switch.heater:turn_on",
	}, h.invoked())
}

func TestSchedulerReschedulesOnSettingChange(t *testing.T) {
	cfg := &Config{
		Device:        "switch.heater",
		PercentEntity: "input_number.heater_percent",
		MinOnSeconds:  100,
	}

	h := newSchedulerHarness(t, cfg, map[string]interface{}{
		"switch.heater":               "off",
		"input_number.heater_percent": "25",
	})

	ctx := context.Background()

	require.NoError(t, h.scheduler.Start(ctx))
	defer func() { _ = h.scheduler.Stop(ctx) }()

	require.Equal(t, []string{"switch.heater:turn_on"}, h.invoked())

	// Halfway through the on-window the percent changes; the old
	// timers are dropped and the cycle restarts from now.
	h.clock.advance(50 * time.Second)
	h.setState("input_number.heater_percent", "50")
	h.fires["input_number.heater_percent"](models.StateEvent{
		EntityID: "input_number.heater_percent",
		OldValue: "25",
		NewValue: "50",
	})

	// The old turn-off at t=100 is canceled; the new one lands at
	// t=50+100=150.
	h.clock.advance(50 * time.Second)
	assert.Equal(t, []string{"switch.heater:turn_on"}, h.invoked())

	h.clock.advance(50 * time.Second)
	assert.Equal(t, []string{
		"switch.heater:turn_on",
		"switch.heater:turn_off",
	}, h.invoked())
}

func TestSchedulerStaleCycleCallbackIsInert(t *testing.T) {
	cfg := &Config{
		Device:        "switch.heater",
		PercentEntity: "input_number.heater_percent",
		MinOnSeconds:  60,
	}

	h := newSchedulerHarness(t, cfg, map[string]interface{}{
		"switch.heater":               "off",
		"input_number.heater_percent": "50",
	})

	ctx := context.Background()

	require.NoError(t, h.scheduler.Start(ctx))
	defer func() { _ = h.scheduler.Stop(ctx) }()

	require.Equal(t, []string{"switch.heater:turn_on"}, h.invoked())

	// The next-cycle timer fires but its callback has not taken the
	// lock yet when a setting change reschedules everything.
	stale := h.clock.expire(1)

	h.fires["input_number.heater_percent"](models.StateEvent{
		EntityID: "input_number.heater_percent",
		OldValue: "50",
		NewValue: "50",
	})

	// The stale callback belongs to the canceled generation; it must
	// not start a second concurrent cycle.
	stale()

	h.clock.advance(60 * time.Second)
	assert.Equal(t, []string{
		"switch.heater:turn_on",
		"switch.heater:turn_off",
	}, h.invoked(), "only the rescheduled cycle's timers may act")

	h.clock.advance(60 * time.Second)
	assert.Equal(t, []string{
		"switch.heater:turn_on",
		"switch.heater:turn_off",
		"switch.heater:turn_on",
	}, h.invoked())
}

func TestSchedulerStopCancelsTimers(t *testing.T) {
	cfg := &Config{Device: "switch.heater", Percent: 0.25, MinOnSeconds: 100}

	h := newSchedulerHarness(t, cfg, map[string]interface{}{"switch.heater": "off"})

	ctx := context.Background()

	require.NoError(t, h.scheduler.Start(ctx))
	require.NoError(t, h.scheduler.Stop(ctx))

	h.clock.advance(500 * time.Second)

	assert.Equal(t, []string{"switch.heater:turn_on"}, h.invoked(),
		"no actions after stop")
}

func TestSchedulerStartFailsWhenSourceMissing(t *testing.T) {
	cfg := &Config{
		Device:        "switch.heater",
		PercentEntity: "input_number.missing",
		MinOnSeconds:  100,
	}

	h := newSchedulerHarness(t, cfg, map[string]interface{}{"switch.heater": "off"})

	assert.Error(t, h.scheduler.Start(context.Background()))
}

func TestNewSchedulerRejectsBadConfig(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := NewScheduler(
		&Config{Percent: 0.25, MinOnSeconds: 100},
		bus.NewMockStateStore(ctrl),
		bus.NewMockCommander(ctrl),
		bus.NewMockEventSource(ctrl),
		nil, nil)

	assert.ErrorIs(t, err, ErrDeviceRequired)
}
