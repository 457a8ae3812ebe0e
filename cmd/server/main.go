package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"clinic-management-api/internal/access"
	"clinic-management-api/internal/cache"
	"clinic-management-api/internal/config"
	"clinic-management-api/internal/handler"
	"clinic-management-api/internal/logger"
	"clinic-management-api/internal/middleware"
	"clinic-management-api/internal/notify"
	"clinic-management-api/internal/otp"
	"clinic-management-api/internal/schedule"
	"clinic-management-api/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping")
	}
	log.Info().Msg("connected to postgres")

	st := store.New(pool)
	if err := st.Migrate(ctx, cfg.MigrationsPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.MigrationsPath).Msg("migration skipped")
	} else {
		log.Info().Msg("migration applied")
	}

	checks := handler.NewHealth()
	checks.Add("database", st.Ping)

	// redis is optional; without it the role cache stays in process
	var (
		rdb       *redis.Client
		roleCache cache.Cache
	)
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis ping")
		}
		roleCache = cache.NewRedis(rdb)
		checks.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	} else {
		mem := cache.NewMemory(time.Minute)
		defer mem.Close()
		roleCache = mem
	}

	var challenges otp.Store
	if cfg.OTP.Backend == "redis" {
		challenges = otp.NewRedisStore(rdb)
	} else {
		pg := st.Challenges()
		challenges = pg
		go sweepChallenges(ctx, pg)
	}

	var sender otp.Sender
	switch {
	case cfg.SMTP.Configured():
		sender = notify.NewSMTPSender(cfg.SMTP)
	case cfg.IsProduction():
		log.Fatal().Msg("SMTP_HOST and SMTP_FROM are required in production")
	default:
		log.Warn().Msg("SMTP not configured, verification codes go to the log")
		sender = notify.LogSender{}
	}

	codes := otp.NewService(challenges, sender, otp.Options{
		Length:         cfg.OTP.Length,
		TTL:            cfg.OTP.TTL,
		ResendCooldown: cfg.OTP.ResendCooldown,
		MaxAttempts:    cfg.OTP.MaxAttempts,
	})
	resolver := access.NewResolver(st, roleCache, cfg.RoleCacheTTL)
	h := handler.New(st, schedule.NewService(st), codes, resolver, handler.Options{
		Secret:       cfg.JWTSecret,
		TokenTTL:     cfg.TokenTTL,
		SecureCookie: cfg.IsProduction(),
	})

	if err := h.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatal().Err(err).Msg("admin bootstrap")
	}

	rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	defer rl.Close()

	httpSrv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.Router(handler.RouterConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AuthLimiter:    rl,
			Metrics:        cfg.MetricsEnabled,
			Health:         checks,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http")
		}
	}()

	// grpc health for orchestrators that check liveness over grpc
	grpcSrv := grpc.NewServer()
	grpcHealth := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, grpcHealth)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	go func() {
		log.Info().Str("port", cfg.GRPCPort).Msg("grpc health listening")
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc")
		}
	}()

	grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	checks.SetReady(true)

	<-ctx.Done()
	log.Info().Msg("shutting down")
	checks.SetReady(false)
	grpcHealth.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()
}

// sweepChallenges clears expired codes from postgres; redis expires them itself.
func sweepChallenges(ctx context.Context, c *store.Challenges) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := c.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("sweep expired codes")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("expired codes swept")
			}
		}
	}
}
