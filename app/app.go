package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"robotics_club_services/booking"
	"robotics_club_services/db"
	"robotics_club_services/redisstore"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	RDB     *redis.Client
	Log     *zap.Logger
	Config  Config
	Booking *booking.Service

	Limiter     *redisstore.RateLimiter
	Idempotency *redisstore.IdempotencyStore
}

// Config 从环境变量读取
type Config struct {
	Port      string
	AppEnv    string
	DB        db.Options
	Store     string // "postgres" or "memory"
	RedisAddr string
	RedisPwd  string
	WebOrigin string

	JWTSecret     string
	AdminTokenTTL time.Duration

	Location    *time.Location
	LockTimeout time.Duration

	SubmitRateLimit  int
	SubmitRateWindow time.Duration
	IdempotencyTTL   time.Duration
}

func (c Config) Dev() bool { return c.AppEnv == "dev" }

// NewLogger follows APP_ENV: development output for dev, JSON otherwise.
func NewLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// New connects the configured backends and assembles the App.
func New(cfg Config, log *zap.Logger) (*App, error) {
	var (
		store booking.Store
		gdb   *gorm.DB
	)
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		store = booking.NewMemStore(cfg.LockTimeout)
	default:
		var err error
		gdb, err = db.ConnectDB(cfg.DB)
		if err != nil {
			return nil, err
		}
		store = db.NewRepo(gdb, cfg.LockTimeout)
		log.Info("database connected", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR empty; submission rate limit and idempotency disabled")
	}

	return Assemble(cfg, log, store, gdb, rdb), nil
}

// Assemble wires an App around already-open backends. gdb and rdb may be nil.
func Assemble(cfg Config, log *zap.Logger, store booking.Store, gdb *gorm.DB, rdb *redis.Client) *App {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if !cfg.Dev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(RequestLogger(log), gin.Recovery())
	useCORS(r, cfg.WebOrigin)

	a := &App{
		Router: r,
		DB:     gdb,
		RDB:    rdb,
		Log:    log,
		Config: cfg,
		Booking: booking.NewService(store,
			booking.WithLogger(log.Named("booking")),
			booking.WithLocation(cfg.Location)),
	}
	if rdb != nil {
		a.Limiter = redisstore.NewRateLimiter(rdb, cfg.SubmitRateLimit, cfg.SubmitRateWindow)
		a.Idempotency = redisstore.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
	}
	return a
}

func (a *App) Close() {
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.Log.Sync()
}

func LoadConfig() (Config, error) {
	get := func(k, def string) string {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			return def
		}
		return v
	}
	var firstErr error
	getInt := func(k string, def int) int {
		v := get(k, "")
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: expected a non-negative integer, got %q", k, v)
			}
			return def
		}
		return n
	}

	tz := get("BOOKING_TIMEZONE", "Asia/Kathmandu")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("BOOKING_TIMEZONE: %w", err)
	}

	cfg := Config{
		Port:   get("PORT", "3001"),
		AppEnv: get("APP_ENV", "prod"),
		DB: db.Options{
			Host:     get("DB_HOST", "127.0.0.1"),
			User:     get("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     get("DB_NAME", "robotics_club"),
			Port:     get("DB_PORT", "5432"),
			SSLMode:  get("DB_SSLMODE", "disable"),
		},
		Store:            get("STORE_BACKEND", "postgres"),
		RedisAddr:        get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:         os.Getenv("REDIS_PASSWORD"),
		WebOrigin:        get("WEB_ORIGIN", "http://localhost:3000"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AdminTokenTTL:    time.Duration(getInt("ADMIN_TOKEN_TTL_HOURS", 720)) * time.Hour,
		Location:         loc,
		LockTimeout:      time.Duration(getInt("LOCK_TIMEOUT_MS", 5000)) * time.Millisecond,
		SubmitRateLimit:  getInt("SUBMIT_RATE_LIMIT", 10),
		SubmitRateWindow: time.Duration(getInt("SUBMIT_RATE_WINDOW_SECONDS", 60)) * time.Second,
		IdempotencyTTL:   time.Duration(getInt("IDEMPOTENCY_TTL_SECONDS", 86400)) * time.Second,
	}
	cfg.DB.Verbose = cfg.Dev()
	if firstErr != nil {
		return Config{}, firstErr
	}
	if cfg.Store != "postgres" && cfg.Store != "memory" {
		return Config{}, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.Store)
	}
	// REDIS_ADDR=- runs without redis
	if cfg.RedisAddr == "-" {
		cfg.RedisAddr = ""
	}
	return cfg, nil
}
