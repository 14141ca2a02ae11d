package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/marketplace-admin-chat/internal/alert"
	"github.com/weiawesome/marketplace-admin-chat/internal/audit"
	"github.com/weiawesome/marketplace-admin-chat/internal/auth"
	"github.com/weiawesome/marketplace-admin-chat/internal/cache"
	"github.com/weiawesome/marketplace-admin-chat/internal/chat"
	"github.com/weiawesome/marketplace-admin-chat/internal/config"
	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/internal/handler"
	"github.com/weiawesome/marketplace-admin-chat/internal/idgen"
	"github.com/weiawesome/marketplace-admin-chat/internal/loop"
	"github.com/weiawesome/marketplace-admin-chat/internal/metrics"
	"github.com/weiawesome/marketplace-admin-chat/internal/transport"
	pkglog "github.com/weiawesome/marketplace-admin-chat/pkg/log"
	"github.com/weiawesome/marketplace-admin-chat/pkg/middleware"
	"github.com/weiawesome/marketplace-admin-chat/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-console",
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The loop outlives ctx so shutdown can still close the console on it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	lp := loop.New(1024, pkglog.Component("loop"))

	source := auth.NewSource(auth.Config{
		UserID:    cfg.Session.UserID,
		Role:      cfg.Session.Role,
		Token:     cfg.Session.Token,
		TokenFile: cfg.Session.TokenFile,
	})

	ids, err := idgen.New(cfg.Chat.IDStrategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid id strategy")
	}

	dialer := transport.NewWSDialer(transport.Config{
		URL:              cfg.Chat.URL,
		HandshakeTimeout: cfg.Chat.HandshakeTimeout,
		PingInterval:     cfg.Chat.PingInterval,
		PongWait:         cfg.Chat.PongWait,
		WriteWait:        cfg.Chat.WriteWait,
		MaxMessageSize:   cfg.Chat.MaxMessageSize,
	}, pkglog.Component("transport"))

	m := metrics.New(cfg.Metrics.Namespace)

	// Cache invalidation sink
	var sink chat.Invalidator
	var redisInv *cache.Invalidator
	if cfg.Cache.Enabled {
		redisCfg := pubsub.DefaultRedisConfig()
		redisCfg.Address = cfg.Cache.Redis.Address
		redisCfg.Password = cfg.Cache.Redis.Password
		redisCfg.DB = cfg.Cache.Redis.DB
		redisInv, err = cache.NewRedisInvalidator(cache.Config{
			Redis:     redisCfg,
			Channel:   cfg.Cache.Channel,
			KeyPrefix: cfg.Cache.KeyPrefix,
			Buffer:    cfg.Cache.Buffer,
		}, pkglog.Component("cache"))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisInv.Close()
		logger.Info().Str("address", cfg.Cache.Redis.Address).Msg("redis invalidation publisher connected")
		sink = redisInv
	} else {
		sink = cache.NewRecorder(0)
	}

	// Alert sinks
	alerters := alert.Fanout{alert.NewLog(pkglog.Component("alert"))}
	if cfg.Notify.Desktop {
		alerters = append(alerters, alert.NewDesktop(alert.DesktopConfig{
			Title: cfg.Notify.Title,
			Sound: cfg.Notify.Sound,
			Icon:  cfg.Notify.Icon,
		}, pkglog.Component("alert")))
	}

	var console *chat.Console
	auditor := audit.New(pkglog.Component("audit"), func() string {
		return console.Manager.SessionUserID()
	})

	console, err = chat.NewConsole(chat.Config{
		Optional:           cfg.Chat.Optional,
		MaxAttempts:        cfg.Chat.MaxAttempts,
		BaseDelay:          cfg.Chat.BaseDelay,
		MaxDelay:           cfg.Chat.MaxDelay,
		TypingTTL:          cfg.Chat.TypingTTL,
		StopOnAuthRejected: cfg.Chat.StopOnAuthRejected,
	}, chat.Deps{
		Dialer:     dialer,
		Exec:       lp,
		IDs:        idgen.Prefixed{Generator: ids, Prefix: "tmp_"},
		Cache:      m.Invalidations(sink),
		Alerter:    m.Alerts(alerters),
		Logger:     pkglog.Component("chat"),
		TokenCheck: source.CheckToken,
		Listeners:  []chat.StateListener{auditor, m},
		Observers:  []chat.RelayObserver{auditor, m},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build chat console")
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	handler.NewHandler(console, lp, source, auditor).RegisterRoutes(r, middleware.RequireAPIKey(cfg.Server.APIKey))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return lp.Run(loopCtx)
	})

	if redisInv != nil {
		g.Go(func() error {
			return redisInv.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("chat_url", cfg.Chat.URL).Msg("chat-console starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control api: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := source.Watch(gctx, pkglog.Component("auth"), func(session domain.Session) {
			lp.Post(func() {
				auditor.Log(audit.ActionSessionRefresh, "", "token file changed")
				if err := console.Restart(session); err != nil {
					logger.Warn().Err(err).Msg("failed to reconnect with refreshed session")
				}
			})
		})
		if err != nil {
			logger.Warn().Err(err).Str("token_file", source.TokenFile()).Msg("token file watch disabled")
		}
		return nil
	})

	// Initial connect
	if session, err := source.Session(); err != nil {
		logger.Warn().Err(err).Msg("no chat session yet, waiting for connect request")
	} else {
		lp.Post(func() {
			if err := console.Start(session); err != nil {
				logger.Warn().Err(err).Msg("failed to start chat session")
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down chat-console")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("control api forced to shutdown")
		}
		if err := lp.Do(shutdownCtx, func() error {
			console.Close()
			return nil
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to close chat console")
		}
		stopLoop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("chat-console exited with error")
		return
	}
	logger.Info().Msg("chat-console stopped")
}
