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

// Package bus defines the interfaces the monitoring core consumes from
// its host platform, plus the NATS adapter that implements them.
package bus

//go:generate mockgen -destination=mock_bus.go -package=bus github.com/statewatch/statewatch/pkg/bus StateStore,EventSource,Commander,Clock,Timer

import (
	"context"
	"time"

	"github.com/statewatch/statewatch/pkg/models"
)

// StateStore provides the current reported snapshot of an entity.
type StateStore interface {
	GetSnapshot(ctx context.Context, entityID string) (models.Snapshot, error)
}

// EventSource delivers state-change events for one entity. The returned
// function cancels the subscription and is safe to call more than once.
type EventSource interface {
	Subscribe(ctx context.Context, entityID string, fn func(models.StateEvent)) (func(), error)
}

// Commander invokes a service action against a target entity.
type Commander interface {
	Invoke(ctx context.Context, entityID, action string) error
}

// Clock abstracts time-related operations so deferred work can be
// driven deterministically under test.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is an outstanding deferred callback. Stop is best-effort: it
// reports false if the callback already fired, and stopping twice is
// benign.
type Timer interface {
	Stop() bool
}
