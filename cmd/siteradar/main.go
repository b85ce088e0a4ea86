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

	"github.com/carverauto/siteradar/pkg/aggregator"
	"github.com/carverauto/siteradar/pkg/api"
	"github.com/carverauto/siteradar/pkg/checker"
	"github.com/carverauto/siteradar/pkg/config"
	"github.com/carverauto/siteradar/pkg/identity"
	"github.com/carverauto/siteradar/pkg/kv"
	"github.com/carverauto/siteradar/pkg/lifecycle"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/poller"
	"github.com/carverauto/siteradar/pkg/registry"
	"github.com/carverauto/siteradar/pkg/telemetry"
	"github.com/carverauto/siteradar/pkg/version"
)

const shutdownGrace = 5 * time.Second

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/siteradar/siteradar.json", "Path to siteradar config file")
	flag.Parse()

	ctx := context.Background()

	// Step 1: Load configuration
	cfgLoader := config.NewConfig(nil)

	var cfg Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Logging, tracing and metrics
	mainLogger, err := lifecycle.CreateComponentLogger(ctx, cfg.ServiceName, cfg.Logging)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		_ = lifecycle.ShutdownLogger(shutdownCtx)
	}()

	mainLogger.Info().Str("version", version.GetFullVersion()).Str("config", *configPath).Msg("Starting siteradar")

	if safe, err := models.FilterSensitiveFields(&cfg); err == nil {
		mainLogger.Debug().Interface("config", safe).Msg("Effective configuration")
	}

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.GetVersion(),
		OTel:           &cfg.Logging.OTel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		_ = tp.Shutdown(shutdownCtx)
	}()

	if _, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.GetVersion(),
		OTel:           &cfg.Logging.OTel,
	}); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		mainLogger.Warn().Err(err).Msg("Metrics export disabled")
	}

	// Step 3: Sources
	store, err := openIdentityStore(ctx, &cfg.Identity, mainLogger.WithComponent("kv"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			mainLogger.Warn().Err(err).Msg("Error closing identity store")
		}
	}()

	devices, closeRegistry, err := openRegistry(ctx, &cfg.Registry, mainLogger.WithComponent("registry"))
	if err != nil {
		return err
	}
	defer closeRegistry()

	samples, err := telemetry.NewInfluxSource(cfg.Telemetry, nil, mainLogger.WithComponent("telemetry"))
	if err != nil {
		return fmt.Errorf("failed to create telemetry source: %w", err)
	}

	probes, err := checker.NewProbeSet(ctx, checker.NewDefaultRegistry(), cfg.Probes,
		time.Duration(cfg.Poller.ProbeTimeout), nil, mainLogger.WithComponent("checker"))
	if err != nil {
		return fmt.Errorf("failed to create health probes: %w", err)
	}

	defer func() {
		if err := probes.Close(); err != nil {
			mainLogger.Warn().Err(err).Msg("Error closing health probes")
		}
	}()

	// Step 4: Aggregation, polling and the read API
	agg := aggregator.New(samples,
		identity.NewCache(store, mainLogger.WithComponent("identity")),
		mainLogger.WithComponent("aggregator"),
		aggregator.WithStalenessThreshold(cfg.Poller.Staleness()),
		aggregator.WithIdentityTimeout(time.Duration(cfg.Identity.Timeout)))

	p, err := poller.New(&cfg.Poller, devices, agg, probes, nil, mainLogger.WithComponent("poller"))
	if err != nil {
		return err
	}

	go watchReload(ctx, cfgLoader, *configPath, p, mainLogger)

	apiServer := api.NewAPIServer(cfg.CORS, p, mainLogger.WithComponent("api"))

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName:     cfg.ServiceName,
		Service:         p,
		HTTPAddr:        cfg.ListenAddr,
		HTTPHandler:     apiServer.Handler(),
		GRPCAddr:        cfg.GRPCListenAddr,
		ShutdownTimeout: time.Duration(cfg.Poller.StopTimeout) + shutdownGrace,
	}, mainLogger)
}

func openIdentityStore(ctx context.Context, cfg *IdentityConfig, log logger.Logger) (kv.Store, error) {
	if cfg.NATS != nil {
		store, err := kv.NewNatsStore(ctx, cfg.NATS, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open identity bucket: %w", err)
		}

		return store, nil
	}

	store, err := kv.NewFileStore(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity file: %w", err)
	}

	log.Info().Str("path", cfg.FilePath).Msg("Using file-backed identity store")

	return store, nil
}

func openRegistry(ctx context.Context, cfg *registry.Config, log logger.Logger) (registry.Source, func(), error) {
	if cfg.CNPG == nil {
		src, err := registry.NewStaticSource(cfg.Devices)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build static registry: %w", err)
		}

		return src, func() {}, nil
	}

	pool, err := registry.NewPool(ctx, cfg.CNPG, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to registry database: %w", err)
	}

	return registry.NewCNPGSource(pool, cfg.Table, time.Duration(cfg.Timeout), log), pool.Close, nil
}

// watchReload re-reads the config file on SIGHUP and applies poll interval,
// timeout and staleness changes. Other sections need a restart.
func watchReload(ctx context.Context, loader *config.Config, path string, p *poller.FleetPoller, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			var next Config

			if err := loader.LoadAndValidate(ctx, path, &next); err != nil {
				log.Error().Err(err).Msg("Config reload failed, keeping current settings")
				continue
			}

			if err := p.UpdateConfig(&next.Poller); err != nil {
				log.Error().Err(err).Msg("Poller config rejected")
				continue
			}

			log.Info().Msg("Poller config reloaded")
		}
	}
}
