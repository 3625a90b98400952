package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/feed/wire"
	"main/internal/ops"
	"main/internal/service"
	"main/internal/storage"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("lev2d: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "Stats logging interval")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty disables profiling)")
	flag.Parse()

	cfg, err := ops.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := strings.TrimSpace(*pyroscopeAddr); addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "lev2d",
			ServerAddress:   addr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	svc := service.New(service.Option{
		Conn:         cfg.Connection,
		Sub:          cfg.Subscription,
		QueueSize:    cfg.QueueSize,
		Overflow:     cfg.Overflow,
		MaxQuietTime: cfg.MaxQuietTime,
	})

	api, err := wire.New(wire.Option{
		Mode:             cfg.Mode,
		TCPAddress:       cfg.TCPAddress,
		MulticastAddress: cfg.MulticastAddr,
		InterfaceIP:      cfg.InterfaceIP,
	}, svc.Callbacks())
	if err != nil {
		return err
	}
	svc.Bind(api)

	if cfg.Storage.Enabled {
		db, err := storage.Open(storage.Option{
			Host:     cfg.Storage.Host,
			Port:     cfg.Storage.Port,
			User:     cfg.Storage.User,
			Password: cfg.Storage.Password,
			Database: cfg.Storage.Database,
			SSLMode:  cfg.Storage.SSLMode,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = storage.Close(db)
		}()
		if err := storage.Migrate(db); err != nil {
			return err
		}
		writer := storage.NewWriter(db, storage.Config{
			BatchSize:     cfg.Storage.BatchSize,
			FlushInterval: cfg.FlushInterval,
		})
		if _, err := svc.RegisterSubscriber(nil, writer.Handle); err != nil {
			return err
		}
		go writer.Run(ctx)
		logs.Infof("storage sink enabled: %s/%s", cfg.Storage.Host, cfg.Storage.Database)
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}
	logs.Infof("lev2d started, mode %s", cfg.Mode)

	for _, sub := range cfg.Defaults {
		if err := svc.RequestSubscribe(sub.Kind, sub.Securities, sub.Exchange); err != nil {
			logs.Warnf("default subscription %s/%s: %v", sub.Kind, sub.Exchange, err)
		}
	}

	ticker := time.NewTicker(*statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			logs.Info("shutting down")
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return svc.Stop(stopCtx)
		case <-ctx.Done():
			logs.Info("shutting down")
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return svc.Stop(stopCtx)
		case err := <-svc.Fatal():
			logs.Errorf("feed session is gone: %+v", err)
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = svc.Stop(stopCtx)
			return err
		case <-ticker.C:
			logStats(svc)
		}
	}
}

func logStats(svc *service.Service) {
	snap := svc.Stats()
	var events uint64
	for _, v := range snap.EventCounts {
		events += v
	}
	logs.Infof("state=%s events=%d queue=%d drops=%d reconnects=%d",
		svc.State(), events, snap.QueueDepth, snap.QueueDrops, snap.Reconnects)
}
