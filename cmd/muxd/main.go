/*

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command muxd runs the device channel multiplexer as a standalone process,
// registering a bundled fake adapter so the CLI is useful out of the box for
// demos and manual poking; real adapters are expected to be wired in by a
// deployment-specific build that imports this package's pieces directly.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/fxbox/devicemux/adapter/fake"
	"github.com/fxbox/devicemux/internal/config"
	"github.com/fxbox/devicemux/internal/dispatch"
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/logging"
)

var (
	metricsAddr        string
	adapterCallTimeout time.Duration
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "muxd",
		Short: "Run the device channel multiplexer daemon",
		RunE:  runDaemon,
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the Prometheus metrics endpoint binds to")
	cmd.Flags().DurationVar(&adapterCallTimeout, "adapter-call-timeout", 5*time.Second, "timeout applied to each adapter call")
	return cmd
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	log := logging.NewZap("muxd")
	cfg := config.Default()
	cfg.MetricsAddr = metricsAddr
	cfg.AdapterCallTimeout = adapterCallTimeout

	shutdownMetrics, err := setupMetrics(cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("setting up metrics: %w", err)
	}
	defer shutdownMetrics()

	d := dispatch.New(log, cfg)
	defer d.Shutdown()

	demo := fake.New(ids.NewAdapterId(), "demo-adapter", "devicemux")
	defer demo.Close()
	if err := d.RegisterAdapter(demo); err != nil {
		return fmt.Errorf("registering demo adapter: %w", err)
	}
	log.Info("registered demo adapter", logging.AdapterID, demo.ID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("muxd running", "metrics_addr", cfg.MetricsAddr)
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// setupMetrics wires the otel SDK's global MeterProvider to a Prometheus
// exporter served at /metrics, so internal/topology's observable gauges
// (registered against otel.GetMeterProvider()) are scraped without that
// package ever importing Prometheus directly.
func setupMetrics(addr string) (shutdown func(), err error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	if addr == "" {
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		_ = provider.Shutdown(ctx)
	}, nil
}
