package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"mobiletrackpad/input"
	"mobiletrackpad/internal/capture"
	"mobiletrackpad/internal/clients"
	"mobiletrackpad/internal/clipboard"
	"mobiletrackpad/internal/config"
	"mobiletrackpad/internal/filestore"
	handler "mobiletrackpad/internal/input"
	"mobiletrackpad/internal/logging"
	"mobiletrackpad/internal/metrics"
	"mobiletrackpad/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a .toml, .yaml or .json config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	device, err := input.Open(input.Config{Name: cfg.Device.Name, Path: cfg.Device.Path})
	if err != nil {
		return fmt.Errorf("create virtual input device: %w", err)
	}
	defer device.Close()
	logger.Info("virtual input device ready", "name", cfg.Device.Name)

	hub := clipboard.NewHub(
		clipboard.WithBuffer(cfg.Clipboard.Buffer),
		clipboard.WithMetrics(m),
		clipboard.WithLogger(logger),
	)

	blobs, err := filestore.NewDirBlobs(cfg.Files.Dir)
	if err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}
	store := filestore.New(blobs,
		filestore.WithTTL(cfg.Files.TTL.Duration),
		filestore.WithSweepInterval(cfg.Files.SweepInterval.Duration),
		filestore.WithNotifier(hub),
		filestore.WithSource(cfg.Clipboard.SystemSource),
		filestore.WithMetrics(m),
		filestore.WithLogger(logger),
	)

	mgr := clients.NewManager(
		handler.NewHandler(device, m, logger),
		hub,
		clients.Config{
			ClientSource: cfg.Clipboard.ClientSource,
			WriteWait:    cfg.Server.WriteTimeout.Duration,
			PingPeriod:   cfg.Server.PingPeriod.Duration,
		},
		m,
		logger,
	)

	srvCfg := server.Config{
		StaticDir:      cfg.Server.StaticDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ReadTimeout:    cfg.Server.ReadTimeout.Duration,
		Gatherer:       reg,
	}
	if cfg.Metrics.Enabled {
		srvCfg.MetricsPath = cfg.Metrics.Path
	}
	srv := server.New(srvCfg, mgr, store, logger)

	ln, err := server.Listen(cfg.Server.Addr, cfg.Server.MaxConnections)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	logReachable(logger, ln)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx, ln) })
	g.Go(func() error { return store.Run(ctx) })
	if cfg.Files.Watch {
		g.Go(func() error {
			if err := store.Watch(ctx, blobs.Dir()); err != nil {
				logger.Warn("upload dir watch disabled", "err", err)
			}
			return nil
		})
	}
	if cfg.Clipboard.PollHost {
		opts := capture.Options{
			Interval: cfg.Clipboard.PollInterval.Duration,
			Source:   cfg.Clipboard.HostSource,
		}
		if cfg.Clipboard.ApplyRemote {
			opts.ApplyFrom = cfg.Clipboard.ClientSource
		}
		bridge := capture.NewBridge(capture.System(), hub, opts, logger)
		g.Go(func() error { return bridge.Run(ctx) })
	}

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

func logReachable(logger *slog.Logger, ln net.Listener) {
	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return
	}
	urls, err := server.ReachableURLs(port)
	if err != nil {
		logger.Debug("list interfaces", "err", err)
		return
	}
	for _, u := range urls {
		logger.Info("open on your phone", "url", u)
	}
}
