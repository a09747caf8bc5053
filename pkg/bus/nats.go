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

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/statewatch/statewatch/pkg/logger"
	"github.com/statewatch/statewatch/pkg/models"
)

var (
	ErrNATSURLRequired = errors.New("nats url is required")
	ErrEntityNotFound  = errors.New("no snapshot for entity")
)

const (
	defaultBucket        = "statewatch_state"
	defaultSubjectPrefix = "statewatch"

	connectTimeout = 5 * time.Second
)

// NATSConfig describes the connection to the platform bus.
type NATSConfig struct {
	URL           string `json:"url"`
	Name          string `json:"name,omitempty"`
	Bucket        string `json:"bucket,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty"`
	CredsFile     string `json:"creds_file,omitempty"`
}

func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return ErrNATSURLRequired
	}

	return nil
}

// Client implements StateStore, EventSource and Commander over NATS.
// Entity snapshots live in a JetStream KV bucket keyed by entity id;
// state-change events arrive as JSON on <prefix>.event.<entity_id>;
// service invocations publish to <prefix>.cmd.<entity_id>.
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	prefix string
	logger logger.Logger
}

var (
	_ StateStore  = (*Client)(nil)
	_ EventSource = (*Client)(nil)
	_ Commander   = (*Client)(nil)
)

// NewClient connects to NATS and binds the snapshot bucket, creating it
// if it does not exist yet.
func NewClient(ctx context.Context, cfg *NATSConfig, log logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []nats.Option{nats.Timeout(connectTimeout)}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}

	kvStore, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to bind KV bucket %q: %w", bucket, err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	return &Client{
		nc:     nc,
		js:     js,
		kv:     kvStore,
		prefix: prefix,
		logger: log,
	}, nil
}

// GetSnapshot reads the entity's attribute map from the KV bucket.
func (c *Client) GetSnapshot(ctx context.Context, entityID string) (models.Snapshot, error) {
	entry, err := c.kv.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
		}

		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %q: %w", entityID, err)
	}

	return snap, nil
}

// Subscribe delivers state-change events for one entity. Malformed
// payloads are logged and dropped.
func (c *Client) Subscribe(_ context.Context, entityID string, fn func(models.StateEvent)) (func(), error) {
	subject := fmt.Sprintf("%s.event.%s", c.prefix, entityID)

	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev models.StateEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			c.logger.Warn().
				Err(err).
				Str("subject", msg.Subject).
				Msg("Dropping undecodable state event")

			return
		}

		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %q: %w", subject, err)
	}

	var once sync.Once

	unsubscribe := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				c.logger.Warn().
					Err(err).
					Str("subject", subject).
					Msg("Failed to unsubscribe")
			}
		})
	}

	return unsubscribe, nil
}

// Invoke publishes a service action for a target entity.
func (c *Client) Invoke(_ context.Context, entityID, action string) error {
	subject := fmt.Sprintf("%s.cmd.%s", c.prefix, entityID)

	payload, err := json.Marshal(map[string]string{
		"entity_id": entityID,
		"action":    action,
	})
	if err != nil {
		return err
	}

	return c.nc.Publish(subject, payload)
}

// Close drains the connection, letting in-flight handlers finish.
func (c *Client) Close() error {
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return err
	}

	return nil
}
