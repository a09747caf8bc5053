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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/statewatch/statewatch/pkg/alerts"
	"github.com/statewatch/statewatch/pkg/bus"
	"github.com/statewatch/statewatch/pkg/config"
	"github.com/statewatch/statewatch/pkg/dutycycle"
	"github.com/statewatch/statewatch/pkg/lifecycle"
	"github.com/statewatch/statewatch/pkg/logger"
	"github.com/statewatch/statewatch/pkg/watch"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

// serviceConfig is the whole statewatch configuration file.
type serviceConfig struct {
	Entities   []watch.EntitySpec     `json:"listen_entities"`
	Webhooks   []alerts.WebhookConfig `json:"webhooks,omitempty"`
	NATS       bus.NATSConfig         `json:"nats"`
	DutyCycles []dutycycle.Config     `json:"duty_cycles,omitempty"`
	Logging    *logger.Config         `json:"logging,omitempty"`
}

// Validate implements config.Validator. Any problem here aborts
// startup; the service never runs partially configured.
func (c *serviceConfig) Validate() error {
	if err := c.NATS.Validate(); err != nil {
		return err
	}

	watchCfg := watch.Config{Entities: c.Entities}
	if err := watchCfg.Validate(); err != nil {
		return err
	}

	for i := range c.Webhooks {
		if err := c.Webhooks[i].Validate(); err != nil {
			return fmt.Errorf("webhooks[%d]: %w", i, err)
		}
	}

	for i := range c.DutyCycles {
		if err := c.DutyCycles[i].Validate(); err != nil {
			return fmt.Errorf("duty_cycles[%d]: %w", i, err)
		}
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/statewatch/statewatch.json", "Path to statewatch config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg serviceConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	mainLogger, err := lifecycle.CreateComponentLogger("statewatch", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	client, err := bus.NewClient(ctx, &cfg.NATS, mainLogger)
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			mainLogger.Warn().Err(err).Msg("Error closing NATS connection")
		}
	}()

	alerter := make(alerts.Fanout, 0, len(cfg.Webhooks))
	for _, webhookCfg := range cfg.Webhooks {
		alerter = append(alerter, alerts.NewWebhookAlerter(webhookCfg, mainLogger))
	}

	monitor, err := watch.NewMonitor(
		&watch.Config{Entities: cfg.Entities},
		client, client, alerter, nil, mainLogger)
	if err != nil {
		return err
	}

	services := []lifecycle.Service{monitor}

	for i := range cfg.DutyCycles {
		schedLogger, err := lifecycle.CreateComponentLogger("dutycycle", cfg.Logging)
		if err != nil {
			return err
		}

		scheduler, err := dutycycle.NewScheduler(
			&cfg.DutyCycles[i], client, client, client, nil, schedLogger)
		if err != nil {
			return err
		}

		services = append(services, scheduler)
	}

	return lifecycle.Run(ctx, mainLogger, services...)
}
