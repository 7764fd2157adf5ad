package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wippyai/uvcompat"
	"github.com/wippyai/uvcompat/native"
)

type config struct {
	Host           string
	Port           int
	IPv6           bool
	Backlog        int
	ReadBufferSize int
	MetricsAddr    string
	Interactive    bool
	Verbose        bool
	CloseTimeout   time.Duration
}

func defaultConfig() config {
	return config{
		Host:           "127.0.0.1",
		Port:           7000,
		Backlog:        511,
		ReadBufferSize: native.DefaultBufferSize,
		MetricsAddr:    ":9464",
		CloseTimeout:   5 * time.Second,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := defaultConfig()
	cmd := &cobra.Command{
		Use:           "uvecho",
		Short:         "Run a TCP echo server on the uvcompat loop",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Host, "host", cfg.Host, "Address to listen on")
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on (0 picks a free port)")
	flags.BoolVar(&cfg.IPv6, "ipv6", cfg.IPv6, "Listen on an IPv6 address")
	flags.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "Open connections before accepting pauses")
	flags.IntVar(&cfg.ReadBufferSize, "read-buffer", cfg.ReadBufferSize, "Bytes requested per read")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve /metrics on this address (empty disables)")
	flags.BoolVarP(&cfg.Interactive, "interactive", "i", cfg.Interactive, "Show a live dashboard")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Log every connection")
	flags.DurationVar(&cfg.CloseTimeout, "close-timeout", cfg.CloseTimeout, "How long to wait for connections to close on exit")
	return cmd
}

func newLogger(cfg config) (*zap.Logger, error) {
	if cfg.Interactive {
		return zap.NewNop(), nil
	}
	if cfg.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config) error {
	if cfg.Interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, dashboard disabled")
		cfg.Interactive = false
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := uvcompat.DefaultOptions()
	opts.Logger = logger
	opts.Registerer = reg
	opts.ReadBufferSize = cfg.ReadBufferSize
	rt, err := uvcompat.New(opts)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}

	echo, err := listenEcho(rt, cfg)
	if err != nil {
		closeRuntime(rt, cfg, logger)
		return fmt.Errorf("listen on %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return rt.Run(ctx)
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("address", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), cfg.CloseTimeout)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Interactive {
		g.Go(func() error {
			defer cancel()
			return runDashboard(ctx, rt, echo)
		})
	}

	err = g.Wait()
	if stderrors.Is(err, context.Canceled) {
		err = nil
	}
	closeRuntime(rt, cfg, logger)
	return err
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func closeRuntime(rt *uvcompat.Runtime, cfg config, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CloseTimeout)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		logger.Warn("close runtime", zap.Error(err))
	}
}
