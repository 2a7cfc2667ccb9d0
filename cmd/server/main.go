package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/nabi-draft/internal/bot"
	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/config"
	"github.com/DoyleJ11/nabi-draft/internal/httpapi"
	"github.com/DoyleJ11/nabi-draft/internal/hub"
	"github.com/DoyleJ11/nabi-draft/internal/lobby"
	"github.com/DoyleJ11/nabi-draft/internal/logging"
	"github.com/DoyleJ11/nabi-draft/internal/metrics"
	"github.com/DoyleJ11/nabi-draft/internal/publish"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/resultcache"
	"github.com/DoyleJ11/nabi-draft/internal/service"
	"github.com/DoyleJ11/nabi-draft/internal/store"
	"github.com/DoyleJ11/nabi-draft/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tmpl, err := cfg.Template()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	var (
		recorders  []lobby.Recorder
		publishers publish.Multi
		deps       = httpapi.Deps{AllowedOrigins: cfg.AllowedOrigins, Logger: log, Metrics: metrics.Handler(reg)}
	)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	if cfg.DatabaseURL != "" {
		st, err := store.Open(ctx, cfg.DatabaseURL, log.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SeedChampions(ctx, cat.All()); err != nil {
			return err
		}
		if cat, err = st.Catalog(ctx); err != nil {
			return err
		}
		recorders = append(recorders, st)
		deps.Matches = st
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		cache, err := resultcache.New(&resultcache.Config{RedisClient: rdb, TTL: cfg.ResultTTL})
		if err != nil {
			return err
		}
		recorders = append(recorders, cache)
		deps.Results = cache
	}

	if cfg.NatsURL != "" {
		natsCfg := publish.DefaultConfig()
		natsCfg.URL = cfg.NatsURL
		natsCfg.SubjectPrefix = cfg.NatsSubject
		pub, err := publish.Connect(natsCfg, log.Named("nats"))
		if err != nil {
			return err
		}
		defer pub.Close()
		publishers = append(publishers, pub)
	}

	// The bot needs the service, which needs the hub, so it is attached late.
	var announcer atomic.Pointer[bot.Bot]
	recorders = append(recorders, lobby.RecorderFunc(func(ctx context.Context, final result.Final) error {
		b := announcer.Load()
		if b == nil {
			return nil
		}
		return b.Record(ctx, final)
	}))

	lobbyOpts := lobby.Options{
		Template:    tmpl,
		Rules:       cfg.Rules(),
		AutoAdvance: cfg.AutoAdvance,
		Catalog:     cat,
		Recorders:   recorders,
		Metrics:     collector,
		Logger:      log.Named("lobby"),
		IOTimeout:   cfg.IOTimeout,
	}
	if len(publishers) > 0 {
		lobbyOpts.Publisher = publishers
	}

	h := hub.NewHub(ctx, hub.Options{
		Lobby:           lobbyOpts,
		MaxParticipants: cfg.MaxParticipants,
		Logger:          log.Named("hub"),
		OnCount:         collector.SetSessions,
	})
	defer h.Shutdown()

	svc := service.New(h, cat, service.Options{RequireFilledSeats: cfg.RequireFilledSeats, Logger: log.Named("service")})

	if cfg.DiscordToken != "" {
		b, err := bot.New(cfg.DiscordToken, bot.Config{
			ApplicationID: cfg.DiscordAppID,
			GuildID:       cfg.DiscordGuild,
			PublicBaseURL: cfg.PublicBaseURL,
			ResultChannel: cfg.DiscordResultChannel,
			Service:       svc,
			Logger:        log,
			Timeout:       cfg.IOTimeout,
		})
		if err != nil {
			return err
		}
		if err := b.Start(); err != nil {
			return err
		}
		defer b.Stop()
		announcer.Store(b)
	}

	deps.Service = svc
	deps.Catalog = cat
	deps.WS = ws.Handler(svc, ws.Options{
		OriginPatterns: originPatterns(cfg.AllowedOrigins),
		CommandRate:    rate.Limit(cfg.WSCommandRate),
		CommandBurst:   cfg.WSCommandBurst,
		WriteTimeout:   cfg.IOTimeout,
		Logger:         log.Named("ws"),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Int("champions", len(cat.All())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadCatalog(cfg config.Config) (*catalog.Memory, error) {
	if cfg.ChampionFile == "" {
		return catalog.Default()
	}
	f, err := os.Open(cfg.ChampionFile)
	if err != nil {
		return nil, fmt.Errorf("open champion file: %w", err)
	}
	defer f.Close()
	champs, err := catalog.LoadYAML(f)
	if err != nil {
		return nil, err
	}
	return catalog.NewMemory(champs...), nil
}

// originPatterns converts the CORS allow list for websocket.Accept, which
// matches hosts without a scheme.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		out = append(out, strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://"))
	}
	return out
}
