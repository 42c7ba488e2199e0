package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"vetcare/backend/internal/cache"
	"vetcare/backend/internal/config"
	"vetcare/backend/internal/logging"
	"vetcare/backend/internal/metrics"
	"vetcare/backend/internal/notify"
	"vetcare/backend/internal/service/scheduling"
	"vetcare/backend/internal/store"
	"vetcare/backend/internal/store/memory"
	"vetcare/backend/internal/store/postgres"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	svc     *scheduling.Service

	db     *bun.DB
	redis  *redis.Client
	amqp   *notify.AMQP
	closer io.Closer
}

// loadConfig reads configuration and swaps the bootstrap logger for the
// configured one.
func loadConfig() (config.Config, *slog.Logger, io.Closer, error) {
	boot := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(boot)

	cfg, err := config.Load()
	if err != nil {
		boot.Error("config load failed", slog.Any("err", err))
		return config.Config{}, nil, nil, err
	}

	log, closer := logging.New(cfg.Log, serviceName)
	slog.SetDefault(log)
	return cfg, log, closer, nil
}

func openDatabase(ctx context.Context, cfg config.Config, log *slog.Logger) (*bun.DB, error) {
	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, err
	}
	return db, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, closer, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, closer: closer, metrics: metrics.New()}

	var (
		availability store.AvailabilityRepository
		bookings     store.BookingStore
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		st := memory.New(cfg.LockTimeout)
		availability, bookings = st, st
	default:
		db, err := openDatabase(ctx, cfg, log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.db = db
		availability = postgres.NewAvailabilityRepo(db)
		bookings = postgres.NewBookingRepo(db, cfg.LockTimeout)
	}

	if cfg.CacheDriver == config.CacheRedis || cfg.NotifyDriver == config.NotifyRedis {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			a.close()
			return nil, err
		}
		a.redis = client
	}

	var slotCache scheduling.SlotCache
	switch cfg.CacheDriver {
	case config.CacheLRU:
		slotCache = cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
	case config.CacheRedis:
		slotCache = cache.NewRedis(a.redis, cfg.CacheTTL)
	}

	var publisher notify.Publisher
	switch cfg.NotifyDriver {
	case config.NotifyRedis:
		publisher = notify.NewRedis(a.redis, cfg.NotifyRedisChannel)
	case config.NotifyAMQP:
		pub, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Error("amqp connection failed", slog.Any("err", err))
			a.close()
			return nil, err
		}
		a.amqp = pub
		publisher = pub
	default:
		publisher = notify.NewLog(log)
	}

	a.svc = scheduling.NewService(availability, bookings, scheduling.Options{
		Location:        cfg.ClinicLocation,
		SlotStepMinutes: cfg.SlotStepMinutes,
		SlotCache:       slotCache,
		Notifier:        publisher,
		NotifyTimeout:   cfg.NotifyTimeout,
		Consultations:   notify.NewConsultationRequester(publisher),
		Metrics:         a.metrics,
		Logger:          log,
	})

	log.Info("scheduling core ready",
		slog.String("storage", cfg.StorageDriver),
		slog.String("cache", cfg.CacheDriver),
		slog.String("notify", cfg.NotifyDriver),
		slog.String("clinic_timezone", cfg.ClinicLocation.String()),
		slog.Int("slot_step_minutes", cfg.SlotStepMinutes),
	)
	return a, nil
}

// ready pings the backing services for /healthz.
func (a *app) ready(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// close waits up to the shutdown timeout for background side effects, then
// releases connections.
func (a *app) close() {
	if a.svc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		if err := a.svc.Shutdown(ctx); err != nil {
			a.log.Warn("background side effects abandoned at shutdown", slog.Any("err", err))
		}
		cancel()
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.log.Warn("amqp close failed", slog.Any("err", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close failed", slog.Any("err", err))
		}
	}
	if err := postgres.Close(a.db); err != nil {
		a.log.Warn("database close failed", slog.Any("err", err))
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
}
