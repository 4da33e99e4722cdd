package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nekodylan/OVL-MD/internal/commands"
	"github.com/nekodylan/OVL-MD/internal/config"
	"github.com/nekodylan/OVL-MD/internal/dispatch"
	"github.com/nekodylan/OVL-MD/internal/history"
	httpadmin "github.com/nekodylan/OVL-MD/internal/http"
	"github.com/nekodylan/OVL-MD/internal/httpapi"
	"github.com/nekodylan/OVL-MD/internal/logging"
	"github.com/nekodylan/OVL-MD/internal/metrics"
	"github.com/nekodylan/OVL-MD/internal/moderation"
	"github.com/nekodylan/OVL-MD/internal/observe"
	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/render"
	"github.com/nekodylan/OVL-MD/internal/store"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/version"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	var debug bool
	var noWatchdog bool

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Connect to the gateway and run the bot",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), debug, !noWatchdog)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noWatchdog, "no-watchdog", false, "Do not exit when the /ping liveness check goes stale")

	return cmd
}

// manifestReloader rescans the manifest directory for the admin endpoint.
type manifestReloader struct {
	loader *registry.Loader
	dir    string
}

func (r manifestReloader) ReloadCommands() (int, error) {
	return r.loader.LoadDir(r.dir)
}

func serve(parent context.Context, debug, watchdog bool) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return errors.Wrap(err, "logger")
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Any("config", cfg.Summary()),
	)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	db, err := store.Open(ctx, cfg.Storage.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	writer := history.NewBufferedWriter(db.History(), history.BufferedOptions{
		BatchSize:     cfg.History.BatchSize,
		FlushInterval: cfg.FlushInterval(),
		OnError: func(err error) {
			m.IncHistoryWriteErrors()
			log.Warn("history flush failed", zap.Error(err))
		},
	})
	defer func() {
		if err := writer.Close(); err != nil {
			log.Warn("history close failed", zap.Error(err))
		}
	}()
	cache, err := history.NewCache(cfg.History.CacheSize, writer, db.History(), logging.Component(log, "history"))
	if err != nil {
		return err
	}
	prune, err := history.NewPruneSchedule(cfg.History.PruneCron, cfg.Retention(), logging.Component(log, "prune"), db.History(), db.Warnings())
	if err != nil {
		return err
	}

	gateway := transport.NewGateway(transport.GatewayConfig{
		URL:            cfg.Gateway.URL,
		Token:          cfg.Gateway.Token,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         log,
		Metrics:        m,
	})
	client := transport.NewLimited(gateway, cfg.Gateway.SendRPS, cfg.Gateway.SendBurst, m)

	reg := registry.New(log)
	set := commands.New(commands.Deps{
		Store:    db,
		Render:   render.New(cfg.Render.BaseURL, cfg.Render.APIKey, cfg.Render.ServiceID, 0),
		Registry: reg,
		Mode:     cfg.Bot.Mode,
	})
	loader := &registry.Loader{Registry: reg, Catalog: set.Catalog(), Log: log}
	n, err := commands.Load(loader, cfg.Bot.CommandsDir)
	if err != nil {
		return err
	}
	log.Info("commands registered", zap.Int("added", n), zap.Int("total", reg.Len()))

	engine := moderation.NewEngine(moderation.Deps{
		Client:   client,
		Policies: db.Policies(),
		Warnings: db.Warnings(),
		Settings: db.GroupSettings(),
		History:  cache,
		Logger:   log,
		Metrics:  m,
	}, moderation.Config{
		AntiDelete:   cfg.Features.AntiDelete,
		AntiViewOnce: cfg.AntiViewOnceEnabled(),
		DefaultImage: cfg.Bot.WelcomeImage,
	})
	observer := observe.New(client, db.Ranks(), observe.Options{
		LevelUp:        cfg.LevelUpEnabled(),
		Presence:       cfg.Features.Presence,
		ReadStatus:     cfg.ReadStatusEnabled(),
		LikeStatus:     cfg.LikeStatusEnabled(),
		DownloadStatus: cfg.DownloadStatusEnabled(),
	}, log)

	d := dispatch.New(dispatch.Deps{
		Client:   client,
		Registry: reg,
		Engine:   engine,
		Observer: observer,
		History:  cache,
		Sudo:     db.Sudo(),
		Bans:     db.Bans(),
		Logger:   log,
		Metrics:  m,
	}, dispatch.Config{
		Prefix:            cfg.Bot.Prefix,
		Mode:              cfg.Bot.Mode,
		Owner:             cfg.Bot.Owner,
		Developers:        cfg.DeveloperJIDs(),
		DefaultReact:      cfg.Bot.DefaultReact,
		RestrictedGroup:   cfg.Bot.RestrictedGroup,
		RestrictedAllowed: cfg.Bot.RestrictedAllowed,
	})
	gateway.SetHandler(d)

	srv := httpapi.New(httpapi.Options{
		Addr:       fmt.Sprintf(":%d", cfg.HTTP.Port),
		RateRPS:    cfg.HTTP.RateRPS,
		RateBurst:  cfg.HTTP.RateBurst,
		PingCPUMax: cfg.HTTP.PingCPUMax,
		Build:      buildInfo(),
		Metrics:    m,
		Logger:     log,
	})
	httpadmin.New(reg, manifestReloader{loader: loader, dir: cfg.Bot.CommandsDir}, cfg.Redacted).Register(srv.Routes())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gateway.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return prune.Run(gctx) })
	if watchdog {
		wd := httpapi.NewWatchdog(
			pingURL(cfg),
			srv.LastPing,
			time.Duration(cfg.HTTP.PingIntervalSecs)*time.Second,
			time.Duration(cfg.HTTP.CheckSecs)*time.Second,
			time.Duration(cfg.HTTP.StaleAfterSecs)*time.Second,
			log,
		)
		g.Go(func() error { return wd.Run(gctx) })
	}
	if err := loader.Watch(gctx, cfg.Bot.CommandsDir); err != nil {
		log.Warn("manifest watch disabled", zap.Error(err))
	}

	err = g.Wait()
	gateway.Wait()
	d.Wait()
	_ = gateway.Close()
	if err != nil {
		log.Error("stopped", zap.Error(err))
		return err
	}
	log.Info("stopped")
	return nil
}

func pingURL(cfg config.Config) string {
	base := strings.TrimRight(strings.TrimSpace(cfg.HTTP.PublicURL), "/")
	if base == "" {
		base = fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTP.Port)
	}
	return base + "/ping"
}

func buildInfo() httpapi.BuildInfo {
	return httpapi.BuildInfo{
		Version:  version.Version,
		Revision: version.Commit,
		BuiltAt:  version.BuiltAt(),
	}
}
