package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/casehub/internal/auth"
	"github.com/geocoder89/casehub/internal/authn"
	"github.com/geocoder89/casehub/internal/config"
	httpx "github.com/geocoder89/casehub/internal/http"
	"github.com/geocoder89/casehub/internal/http/handlers"
	"github.com/geocoder89/casehub/internal/notifications"
	"github.com/geocoder89/casehub/internal/observability"
	"github.com/geocoder89/casehub/internal/redisclient"
	"github.com/geocoder89/casehub/internal/repo/memory"
	"github.com/geocoder89/casehub/internal/repo/mongodb"
	"github.com/geocoder89/casehub/internal/security"
	"github.com/geocoder89/casehub/internal/throttle"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type stores struct {
	users interface {
		httpx.Users
		authn.UserStore
	}
	otps  authn.OTPStore
	cases handlers.CasesRepo
}

func main() {
	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	bootCtx, bootCancel := config.WithTimeout(15 * time.Second)
	defer bootCancel()

	if cfg.OTelEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(bootCtx, observability.TracerConfig{
			ServiceName: "casehub",
			Env:         cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	checks := map[string]handlers.Pinger{}

	// storage: mongo when configured, otherwise in-process maps
	var st stores
	if cfg.MongoURI != "" {
		client, db, err := mongodb.Connect(bootCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Error("mongo connect failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}()

		if err := mongodb.EnsureIndexes(bootCtx, db); err != nil {
			log.Error("mongo index setup failed", "err", err)
			os.Exit(1)
		}

		st = stores{
			users: mongodb.NewUsersRepo(db, prom),
			otps:  mongodb.NewOTPsRepo(db, prom),
			cases: mongodb.NewCasesRepo(db, prom),
		}
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		log.Info("storage ready", "backend", "mongo", "db", cfg.MongoDB)
	} else {
		if cfg.IsProd() {
			log.Error("MONGO_URI is required in prod")
			os.Exit(1)
		}
		st = stores{
			users: memory.NewUsersRepo(),
			otps:  memory.NewOTPsRepo(),
			cases: memory.NewCasesRepo(),
		}
		log.Warn("MONGO_URI not set, using in-memory storage")
	}

	var limiter throttle.Limiter = throttle.NewMemoryLimiter()
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(bootCtx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		limiter = throttle.NewRedisLimiter(rdb, "casehub")
		checks["redis"] = redisclient.Pinger(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, throttling is per-process")
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.VerifyTokenTTL(), cfg.SessionTokenTTL())

	sender := notifications.NewProtectedSender(
		notifications.NewLogSender(log, notifications.LogSenderConfig{RevealCode: !cfg.IsProd()}),
		notifications.ProtectedSenderConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	)

	svc := authn.NewService(authn.Deps{
		Users:   st.users,
		OTPs:    st.otps,
		Tokens:  tokens,
		Hasher:  security.NewHasher(cfg.PINBcryptCost),
		Sender:  sender,
		Limiter: limiter,
		Events:  prom,
		Log:     log,
	}, authn.Options{
		OTPTTL:         cfg.OTPTTL(),
		OTPMaxAttempts: cfg.OTPMaxAttempts,
		PINMaxFailures: cfg.PINMaxFailures,
		PINLockout:     cfg.PINLockout(),
		RevealOTP:      !cfg.IsProd(),
	})

	if cfg.AdminMobile != "" && cfg.AdminPIN != "" {
		created, err := svc.EnsureAdmin(bootCtx, cfg.AdminName, cfg.AdminMobile, cfg.AdminPIN)
		if err != nil {
			log.Error("admin seed failed", "err", err)
			os.Exit(1)
		}
		if created {
			log.Info("admin user created", "mobile_suffix", cfg.AdminMobile[len(cfg.AdminMobile)-4:])
		}
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:     log,
		Cfg:     cfg,
		Prom:    prom,
		Metrics: reg,
		Tokens:  tokens,
		Auth:    svc,
		Users:   st.users,
		Cases:   st.cases,
		Limiter: limiter,
		Checks:  checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
