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

// Package alerts delivers notifications to downstream channels. The
// Tag field carries the originating descriptor identity so a channel
// can supersede earlier notifications for the same alert instead of
// stacking duplicates.
package alerts

//go:generate mockgen -destination=mock_alerts.go -package=alerts github.com/statewatch/statewatch/pkg/alerts AlertService

import (
	"context"
	"errors"
)

// Severity of an outbound alert.
type Severity string

const (
	Info    Severity = "info"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// WebhookAlert is the payload posted to notification webhooks.
type WebhookAlert struct {
	Level     Severity               `json:"level"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Tag       string                 `json:"tag,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertService sends an alert to one downstream channel.
type AlertService interface {
	Alert(ctx context.Context, alert *WebhookAlert) error
}

var (
	// ErrWebhookCooldown indicates the alert was suppressed because an
	// alert with the same tag fired too recently. Callers should treat
	// it as benign.
	ErrWebhookCooldown = errors.New("alert is within cooldown period")

	// ErrWebhookDisabled indicates the webhook is configured but turned off.
	ErrWebhookDisabled = errors.New("webhook is disabled")

	errWebhookStatus = errors.New("webhook returned non-success status")

	// ErrURLRequired indicates an enabled webhook without a URL.
	ErrURLRequired = errors.New("webhook url is required")
)
