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

// Package lifecycle runs services until the process receives a
// shutdown signal, then stops them in reverse start order.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/statewatch/statewatch/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Service is a component with a managed start/stop lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// CreateComponentLogger creates a logger carrying the component name on
// every event. A nil config uses the defaults.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	return logger.NewComponentLogger(component, config)
}

// Run starts every service in order and blocks until the context is
// canceled or SIGINT/SIGTERM arrives, then stops them in reverse
// order. A service that fails to start rolls back the ones already
// running.
func Run(ctx context.Context, log logger.Logger, services ...Service) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var started []Service

	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			stopServices(log, started)
			return err
		}

		started = append(started, svc)
	}

	<-ctx.Done()

	log.Info().Msg("Shutting down")

	return stopServices(log, started)
}

func stopServices(log logger.Logger, started []Service) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error

	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping service")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
