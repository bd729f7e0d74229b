package main

import (
	"context"
	"errors"
	_ "expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/nulzo/polychat/internal/analytics"
	"github.com/nulzo/polychat/internal/cli"
	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/gateway"
	"github.com/nulzo/polychat/internal/httpclient"
	"github.com/nulzo/polychat/internal/platform/logger"
	"github.com/nulzo/polychat/internal/platform/otel"
	"github.com/nulzo/polychat/internal/server"
	"github.com/nulzo/polychat/internal/store/cache"
	"github.com/nulzo/polychat/internal/store/sqlite"
	"github.com/nulzo/polychat/internal/version"
	"go.uber.org/zap"

	// adapters register themselves with the llm factory
	_ "github.com/nulzo/polychat/internal/llm/anthropic"
	_ "github.com/nulzo/polychat/internal/llm/google"
	_ "github.com/nulzo/polychat/internal/llm/mock"
	_ "github.com/nulzo/polychat/internal/llm/ollama"
	_ "github.com/nulzo/polychat/internal/llm/openai"
)

type Options struct {
	Config    string `short:"c" long:"config" description:"path to config.yaml (overrides CONFIG_FILE)"`
	Port      string `short:"p" long:"port" description:"listen port (overrides server.port)"`
	DebugAddr string `long:"debug-addr" description:"serve expvar on this address, e.g. 127.0.0.1:6060"`
	Version   bool   `short:"v" long:"version" description:"print version and exit"`
}

func main() {
	opts := &Options{}
	if _, err := flags.NewParser(opts, flags.Default).Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.Version {
		fmt.Println(version.AppVersion)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
}

func run(opts *Options) error {
	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Port != "" {
		cfg.Server.Port = opts.Port
	}

	logger.Initialize(logger.FromConfig(cfg.Log))
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer(cfg.Tracing.ServiceName, version.AppVersion, log, os.Stdout)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	var ingestor analytics.Ingestor
	serverOpts := []server.Option{server.WithVersion(version.AppVersion)}
	if cfg.Database.Enabled {
		repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN, log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer repo.Close()

		ingestor = analytics.NewIngestor(log, repo, analytics.Options{})
		// outlives the signal context so rows from draining streams still land;
		// Stop runs before the repository closes
		ingestor.Start(context.Background())
		defer ingestor.Stop()

		serverOpts = append(serverOpts, server.WithAnalytics(analytics.NewService(repo)))
	} else {
		log.Info("Request analytics disabled")
	}

	responseCache, err := cache.New(ctx, cfg.Cache, cfg.Redis)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	if mem, ok := responseCache.(*cache.MemoryCache); ok {
		go sweep(ctx, mem, log)
	}
	if rc, ok := responseCache.(*cache.RedisCache); ok {
		defer rc.Close()
	}

	registry, err := gateway.NewRegistry(cfg.Providers, log)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	service := gateway.NewService(log, registry, ingestor, responseCache, gateway.Options{
		Timeout:        cfg.Dispatch.Timeout,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
		CacheTTL:       cfg.Cache.TTL,
	})

	if cfg.Server.CheckUpdates {
		go checkForUpdates(ctx, log)
	}

	if opts.DebugAddr != "" {
		go func() {
			// expvar registers /debug/vars on the default mux
			if err := http.ListenAndServe(opts.DebugAddr, http.DefaultServeMux); err != nil {
				log.Warn("Debug listener stopped", zap.Error(err))
			}
		}()
	}

	log.Info(fmt.Sprintf("%s %s %s listening on %s with %d models",
		cli.Arrow(),
		cli.Gradient("polychat", cli.BrandBlue, cli.BrandPurple),
		cli.Style(version.AppVersion, cli.Dim),
		cli.Style(":"+cfg.Server.Port, cli.Bold),
		registry.Len(),
	))

	return server.New(cfg, log, service, serverOpts...).Run(ctx)
}

func sweep(ctx context.Context, mem *cache.MemoryCache, log *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := mem.Sweep(); n > 0 {
				log.Debug("Swept expired cache entries", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func checkForUpdates(ctx context.Context, log *zap.Logger) {
	update, err := version.CheckForUpdates(ctx, httpclient.New(), version.ReleaseURL, version.AppVersion)
	if err != nil {
		log.Debug("Update check failed", zap.Error(err))
		return
	}
	if update.Outdated {
		log.Warn(fmt.Sprintf("%s You are running an outdated version", cli.WarningSign()),
			zap.String("current", update.Current),
			zap.String("latest", update.Latest),
		)
	}
}
