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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/carverauto/siteradar/pkg/logger"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

var errServiceRequired = errors.New("service is required")

// Service is a long-running component driven by RunServer.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerOptions describes what RunServer hosts next to the service.
type ServerOptions struct {
	ServiceName string
	Service     Service

	// HTTPAddr and HTTPHandler enable the HTTP listener when both are set.
	HTTPAddr    string
	HTTPHandler http.Handler

	// GRPCAddr enables a grpc.health.v1 endpoint reporting ServiceName.
	GRPCAddr string

	ShutdownTimeout time.Duration
}

// RunServer starts the service and its listeners, then blocks until ctx is
// cancelled, SIGINT/SIGTERM arrives, or a listener fails. Everything is
// stopped within ShutdownTimeout before it returns.
func RunServer(ctx context.Context, opts *ServerOptions, log logger.Logger) error {
	if opts == nil || opts.Service == nil {
		return errServiceRequired
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	var httpServer *http.Server

	if opts.HTTPAddr != "" && opts.HTTPHandler != nil {
		httpServer = &http.Server{
			Addr:              opts.HTTPAddr,
			Handler:           opts.HTTPHandler,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		go func() {
			log.Info().Str("addr", opts.HTTPAddr).Msg("Starting HTTP server")

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	var (
		grpcServer   *grpc.Server
		healthServer *health.Server
	)

	if opts.GRPCAddr != "" {
		lis, err := net.Listen("tcp", opts.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", opts.GRPCAddr, err)
		}

		grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		healthServer = health.NewServer()
		healthServer.SetServingStatus(opts.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)

		go func() {
			log.Info().Str("addr", opts.GRPCAddr).Msg("Starting gRPC health server")

			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error

	if err := opts.Service.Start(ctx); err != nil {
		runErr = fmt.Errorf("failed to start %s: %w", opts.ServiceName, err)
	} else {
		if healthServer != nil {
			healthServer.SetServingStatus(opts.ServiceName, healthpb.HealthCheckResponse_SERVING)
		}

		log.Info().Str("service", opts.ServiceName).Msg("Service started")

		select {
		case <-ctx.Done():
			log.Info().Msg("Shutdown signal received")
		case runErr = <-errCh:
			log.Error().Err(runErr).Msg("Listener failed")
		}
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if healthServer != nil {
		healthServer.Shutdown()
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Str("service", opts.ServiceName).Msg("Service stop incomplete")
	}

	return runErr
}
