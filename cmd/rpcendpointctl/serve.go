package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/firi/rpcendpoint/internal/daemon"
	"github.com/firi/rpcendpoint/internal/logger"
	"github.com/firi/rpcendpoint/internal/rpc"
	"github.com/firi/rpcendpoint/internal/rpcdemo"
	"github.com/firi/rpcendpoint/internal/rpcmetrics"
)

var (
	serveIdleTimeout time.Duration
	serveMaxWorkers  int
	serveMetricsAddr string
	serveRateLimit   float64
	serveRateBurst   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a daemon hosting the reference endpoint over a Unix socket",
	Long: `serve listens on a Unix domain socket derived from --workdir, accepting
any number of client connections, each hosting its own rpc.Dispatcher wired
to the rpcdemo reference endpoint (ping/echo/slow). It shuts itself down
after --idle-timeout with no connections, or on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&serveIdleTimeout, "idle-timeout", 30*time.Minute, "shut down after this long with no connections")
	serveCmd.Flags().IntVar(&serveMaxWorkers, "max-workers", 4, "WorkerPool size per connection")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 0, "if set, cap job admission per connection to this many per second")
	serveCmd.Flags().IntVar(&serveRateBurst, "rate-burst", 1, "burst size for --rate-limit")
}

func runServe(cmd *cobra.Command, args []string) error {
	var metrics rpc.Metrics
	if serveMetricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = rpcmetrics.NewRecorder(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(serveMetricsAddr, mux); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "metrics server:", err)
			}
		}()
	}

	var limiter *rate.Limiter
	if serveRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(serveRateLimit), serveRateBurst)
	}

	return daemon.Run(daemon.Config{
		WorkDir:     workDir,
		IdleTimeout: serveIdleTimeout,
		MaxWorkers:  serveMaxWorkers,
		Metrics:     metrics,
		RateLimit:   limiter,
		NewEndpoint: func() (rpc.LocalEndpoint, rpc.MessageCatalog) {
			return rpcdemo.New(logger.NullLogger{}), rpcdemo.Catalog()
		},
	})
}
