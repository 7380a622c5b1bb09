// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nutriscan/tracker/internal/application/ai"
	"github.com/nutriscan/tracker/internal/application/tracker"
	aiinfra "github.com/nutriscan/tracker/internal/infrastructure/ai"
	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/infrastructure/http/apiserver"
	"github.com/nutriscan/tracker/internal/infrastructure/http/middleware"
	"github.com/nutriscan/tracker/internal/infrastructure/http/realtime"
	"github.com/nutriscan/tracker/internal/infrastructure/monitoring"
	gormRepo "github.com/nutriscan/tracker/internal/infrastructure/persistence/gorm"
	"github.com/nutriscan/tracker/internal/infrastructure/persistence/memory"
	"github.com/nutriscan/tracker/internal/infrastructure/persistence/migrations"
	"github.com/nutriscan/tracker/internal/infrastructure/persistence/postgres"
	redisRepo "github.com/nutriscan/tracker/internal/infrastructure/persistence/redis"
	"github.com/nutriscan/tracker/internal/infrastructure/persistence/sqlite"
	"github.com/nutriscan/tracker/internal/infrastructure/security"
	"github.com/nutriscan/tracker/internal/infrastructure/storage"
	"github.com/nutriscan/tracker/internal/infrastructure/storage/s3"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"github.com/nutriscan/tracker/pkg/healthcheck"
	"github.com/nutriscan/tracker/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cachePrefix = "nutriscan:"

// Module provides all dependency injection modules
var Module = fx.Options(
	// Infrastructure modules
	ConfigModule,
	LoggerModule,
	ObservabilityModule,
	DatabaseModule,
	CacheModule,

	// Repository modules
	RepositoryModule,

	// Service modules
	ServiceModule,

	// HTTP modules
	HTTPModule,

	// Lifecycle hooks
	LifecycleModule,
)

// ConfigPath is the config file handed to config.Load. Empty searches the
// default locations.
type ConfigPath string

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging. The level follows app.log_level in the
// config file while the process runs.
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*logger.Logger, error) {
		return logger.NewAtomic(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
	func(l *logger.Logger, cfg *config.Config) *zap.Logger {
		cfg.Watch(l.Logger, l.SetLevel)
		return l.Logger
	},
)

// ObservabilityModule provides metrics and tracing
var ObservabilityModule = fx.Provide(
	monitoring.NewMetrics,
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		tp, err := monitoring.NewTracingProvider(context.Background(), monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: tp.Shutdown})
		return tp, nil
	},
	func(tp *monitoring.TracingProvider) trace.Tracer {
		return tp.Tracer()
	},
	func(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
		return healthcheck.New(cfg.App.Version, log)
	},
)

// DatabaseModule provides the gorm handle for the configured driver
var DatabaseModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, metrics *monitoring.Metrics, health *healthcheck.HealthCheck) (*gorm.DB, error) {
		var (
			db  *gorm.DB
			err error
		)
		switch cfg.Database.Driver {
		case "postgres":
			db, err = openPostgres(cfg, log)
		default:
			db, err = openSQLite(cfg, log)
		}
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		metrics.RegisterDBStats(sqlDB, cfg.Database.Driver)
		health.Register("database", healthcheck.NewDatabaseChecker(sqlDB))

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return sqlDB.Close()
			},
		})
		return db, nil
	},
)

func openSQLite(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := sqlite.SetupDatabase(cfg.Database.Path, cfg.App.LogLevel, log)
	if err != nil {
		return nil, fmt.Errorf("failed to setup SQLite database: %w", err)
	}
	if cfg.Database.Seed {
		if err := sqlite.SeedDatabase(db, log); err != nil {
			log.Warn("Failed to seed database", zap.Error(err))
		}
	}
	return db, nil
}

func openPostgres(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	cm, err := postgres.NewConnectionManager(cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := migrateUp(cm.SQLDB(), cfg.Database.Database, log); err != nil {
			_ = cm.Close()
			return nil, err
		}
	}
	return cm.GetDB(), nil
}

func migrateUp(db *sql.DB, name string, log *zap.Logger) error {
	m, err := migrations.New(db, name, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close db as well.
	return m.Up()
}

// CacheModule provides the cache and the per-user lock, backed by redis when
// enabled and by process memory otherwise.
var CacheModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, health *healthcheck.HealthCheck) (goredis.UniversalClient, error) {
		if !cfg.Redis.Enabled {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := redisRepo.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		health.Register("redis", healthcheck.NewRedisChecker(client))
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		return client, nil
	},
	func(lc fx.Lifecycle, client goredis.UniversalClient, log *zap.Logger) outbound.CacheRepository {
		if client != nil {
			return redisRepo.NewCacheRepository(client, cachePrefix, log)
		}
		log.Info("Using in-memory cache")
		cache := memory.NewCacheRepository()
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return cache.Close()
			},
		})
		return cache
	},
	func(cfg *config.Config, client goredis.UniversalClient, log *zap.Logger) outbound.UserLocker {
		if client != nil {
			return redisRepo.NewLocker(client, cachePrefix, cfg.Redis.LockTTL, log)
		}
		return memory.NewLocker()
	},
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	fx.Annotate(
		gormRepo.NewProfileRepository,
		fx.As(new(outbound.ProfileRepository)),
	),
	fx.Annotate(
		gormRepo.NewNutritionRepository,
		fx.As(new(outbound.NutritionRepository)),
	),
	fx.Annotate(
		gormRepo.NewHistoryRepository,
		fx.As(new(outbound.HistoryRepository)),
	),
	gormRepo.NewTransactor,
	func(cfg *config.Config, log *zap.Logger) (outbound.ImageStore, error) {
		if cfg.Storage.Provider != "s3" {
			return storage.NopImageStore{}, nil
		}
		return s3.NewImageStore(cfg.Storage, log)
	},
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	func(cfg *config.Config, metrics *monitoring.Metrics, tracer trace.Tracer, log *zap.Logger) (outbound.GenerativeModel, error) {
		model, err := aiinfra.NewGenerativeModel(cfg.AI, log)
		if err != nil {
			return nil, err
		}
		return aiinfra.NewInstrumentedModel(model, metrics, tracer, log), nil
	},
	func(cfg *config.Config, model outbound.GenerativeModel, log *zap.Logger) *ai.FoodRecognizer {
		return ai.NewFoodRecognizer(model, ai.RecognizerConfig{
			VisionModel:   cfg.AI.VisionModel,
			DescribeModel: cfg.AI.DescribeModel,
			Temperature:   cfg.AI.Temperature,
			MaxTokens:     cfg.AI.MaxTokens,
		}, log)
	},
	func(cfg *config.Config, model outbound.GenerativeModel, cache outbound.CacheRepository, log *zap.Logger) *ai.Recommender {
		return ai.NewRecommender(model, cache, ai.RecommenderConfig{
			TextModel:   cfg.AI.TextModel,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			CacheTTL:    cfg.AI.RecommendationCacheTTL,
		}, log)
	},
	func(metrics *monitoring.Metrics, cfg *config.Config, log *zap.Logger) *realtime.Hub {
		return realtime.NewHub(cfg.Server.AllowedOrigins, metrics, log)
	},
	NewTrackerService,
	func(cfg *config.Config, cache outbound.CacheRepository, log *zap.Logger) *security.TokenService {
		return security.NewTokenService(cfg.Auth, cache, log)
	},
)

// TrackerParams collects the tracker service collaborators
type TrackerParams struct {
	fx.In

	Config      *config.Config
	Profiles    outbound.ProfileRepository
	Targets     outbound.NutritionRepository
	History     outbound.HistoryRepository
	Tx          outbound.Transactor
	Locker      outbound.UserLocker
	Recognizer  *ai.FoodRecognizer
	Recommender *ai.Recommender
	Images      outbound.ImageStore
	Hub         *realtime.Hub
	Metrics     *monitoring.Metrics
	Tracer      trace.Tracer
	Logger      *zap.Logger
}

// NewTrackerService builds the tracker use cases from the container
func NewTrackerService(p TrackerParams) (inbound.TrackerService, error) {
	loc, err := p.Config.Location()
	if err != nil {
		return nil, err
	}
	return tracker.NewTrackerService(
		p.Profiles,
		p.Targets,
		p.History,
		p.Tx,
		p.Locker,
		p.Recognizer,
		p.Recommender,
		p.Images,
		p.Hub,
		p.Metrics,
		p.Tracer,
		tracker.Config{
			Location:    loc,
			LockTimeout: p.Config.Tracker.LockTimeout,
		},
		p.Logger,
	), nil
}

// HTTPModule provides the HTTP server and its middleware
var HTTPModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *middleware.RateLimiter {
		return middleware.NewRateLimiter(cfg.RateLimit, log)
	},
	func(
		cfg *config.Config,
		log *zap.Logger,
		svc inbound.TrackerService,
		tokens *security.TokenService,
		hub *realtime.Hub,
		metrics *monitoring.Metrics,
		health *healthcheck.HealthCheck,
		limiter *middleware.RateLimiter,
	) *apiserver.APIServer {
		return apiserver.NewAPIServer(cfg, log, apiserver.Dependencies{
			Tracker: svc,
			Tokens:  tokens,
			Hub:     hub,
			Metrics: metrics,
			Health:  health,
			Limiter: limiter,
		})
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	server *apiserver.APIServer,
	limiter *middleware.RateLimiter,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("Starting NutriScan tracker",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("database", cfg.Database.Driver),
				zap.String("ai_provider", cfg.AI.Provider),
			)

			go limiter.Run(ctx)

			go func() {
				if err := server.Start(); err != nil {
					log.Error("HTTP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			log.Info("Shutting down NutriScan tracker")
			cancel()

			if cfg.Server.ShutdownTimeout > 0 {
				var c context.CancelFunc
				stopCtx, c = context.WithTimeout(stopCtx, cfg.Server.ShutdownTimeout)
				defer c()
			}
			if err := server.Shutdown(stopCtx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			_ = log.Sync()
			return nil
		},
	})
}
