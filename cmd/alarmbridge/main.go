/*
 * Copyright 2025 Carver Automation Corporation.
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
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/alarmbridge/pkg/admin"
	"github.com/carverauto/alarmbridge/pkg/bridge"
	"github.com/carverauto/alarmbridge/pkg/config"
	"github.com/carverauto/alarmbridge/pkg/events"
	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/version"
)

const shutdownTimeout = 15 * time.Second

var (
	errFailedToLoadConfig = errors.New("failed to load config")
	errFailedToInitLogger = errors.New("failed to initialize logger")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/alarmbridge/alarmbridge.json", "Path to alarmbridge config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg bridge.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	mainLogger, shutdownLogger, err := logger.NewComponentLogger(ctx, "alarmbridge", cfg.Logging)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToInitLogger, err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = shutdownLogger(shutdownCtx)
	}()

	mainLogger.Info().
		Str("version", version.GetFullVersion()).
		Interface("config", config.Redact(&cfg)).
		Msg("Configuration loaded")

	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = version.GetVersion()
	}

	telemetry, err := logger.InitializeTelemetry(ctx, cfg.Telemetry, mainLogger)

	switch {
	case errors.Is(err, logger.ErrTelemetryDisabled):
		mainLogger.Debug().Msg("Trace and metric export disabled")
	case err != nil:
		return err
	default:
		defer shutdown(mainLogger, "telemetry", telemetry.Shutdown)
	}

	var forwarder *events.NATSForwarder

	if cfg.NATS.URL != "" {
		forwarder, err = events.NewNATSForwarder(ctx, cfg.NATS, logger.Component(mainLogger, "nats"))
		if err != nil {
			return err
		}

		defer shutdown(mainLogger, "nats forwarder", forwarder.Close)
	}

	b, err := bridge.New(ctx, cfg, mainLogger)
	if err != nil {
		return err
	}

	// Closed before the forwarder so the last updates are flushed.
	defer shutdown(mainLogger, "bridge", b.Close)

	if forwarder != nil {
		forwarder.Attach(b.Bus())
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Admin.ListenAddr != "" {
		server, err := admin.NewServer(b, cfg.Admin.APIKey, logger.Component(mainLogger, "admin"))
		if err != nil {
			return err
		}

		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.Admin.ListenAddr)
		})
	}

	b.StartPolling()

	g.Go(func() error {
		<-gctx.Done()

		mainLogger.Info().Msg("Shutting down")

		return nil
	})

	return g.Wait()
}

func shutdown(mainLogger logger.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		mainLogger.Error().Err(err).Str("component", name).Msg("Shutdown failed")
	}
}
