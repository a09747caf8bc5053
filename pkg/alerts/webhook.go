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

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/statewatch/statewatch/pkg/config"
	"github.com/statewatch/statewatch/pkg/logger"
)

const defaultHTTPTimeout = 10 * time.Second

// Header is an extra HTTP header sent with webhook requests.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebhookConfig describes one notification webhook. Cooldown, when set,
// rate-limits alerts sharing a tag and severity; it defaults to zero so
// every alert is delivered.
type WebhookConfig struct {
	Enabled  bool            `json:"enabled"`
	URL      string          `json:"url"`
	Headers  []Header        `json:"headers,omitempty"`
	Cooldown config.Duration `json:"cooldown,omitempty"`
}

func (c *WebhookConfig) Validate() error {
	if c.Enabled && c.URL == "" {
		return ErrURLRequired
	}

	return nil
}

// WebhookAlerter posts alerts as JSON to a configured URL.
type WebhookAlerter struct {
	config WebhookConfig
	client *http.Client
	logger logger.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

var _ AlertService = (*WebhookAlerter)(nil)

// NewWebhookAlerter creates an alerter for a single webhook destination.
func NewWebhookAlerter(cfg WebhookConfig, log logger.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		config:   cfg,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		logger:   log,
		lastSent: make(map[string]time.Time),
	}
}

// Alert implements AlertService.
func (w *WebhookAlerter) Alert(ctx context.Context, alert *WebhookAlert) error {
	if !w.config.Enabled {
		return ErrWebhookDisabled
	}

	if err := w.checkCooldown(alert); err != nil {
		return err
	}

	if alert.Timestamp == "" {
		alert.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for _, h := range w.config.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post alert: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", errWebhookStatus, resp.StatusCode)
	}

	w.recordSent(alert)

	return nil
}

// checkCooldown suppresses alerts whose tag fired at the same severity
// within the cooldown window. Severity is part of the key so repeated
// failures are rate limited without a failure ever muting the recovery
// that follows it. Tagless alerts key on the title.
func (w *WebhookAlerter) checkCooldown(alert *WebhookAlert) error {
	cooldown := w.config.Cooldown.Duration()
	if cooldown <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	last, ok := w.lastSent[w.cooldownKey(alert)]
	if ok && time.Since(last) < cooldown {
		return ErrWebhookCooldown
	}

	return nil
}

func (w *WebhookAlerter) recordSent(alert *WebhookAlert) {
	if w.config.Cooldown.Duration() <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSent[w.cooldownKey(alert)] = time.Now()
}

func (*WebhookAlerter) cooldownKey(alert *WebhookAlert) string {
	key := alert.Tag
	if key == "" {
		key = alert.Title
	}

	return string(alert.Level) + ":" + key
}
