package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/data/db"
	httpH "github.com/yungbote/skillforge-backend/internal/http/handlers"
	"github.com/yungbote/skillforge-backend/internal/observability"
	"github.com/yungbote/skillforge-backend/internal/platform/envutil"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
	"github.com/yungbote/skillforge-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Relay    *realtime.Relay
	Bridge   *bus.Bridge
	Metrics  *observability.Metrics

	closeDB      func() error
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Telemetry)

	theDB, closeDB, err := openDatabase(log, cfg.Database)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		_ = closeDB()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = closeDB()
		log.Sync()
		return nil, err
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	relay := realtime.New(log)
	bridge := bus.NewBridge(relay, clients.RelayBus, log)

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(log, cfg, reposet, clients, bridge, metrics)
	handlerset := wireHandlers(log, cfg, serviceset, bridge, metrics, readinessChecks(theDB))
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, handlerset, middleware, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clients,
		Relay:        relay,
		Bridge:       bridge,
		Metrics:      metrics,
		closeDB:      closeDB,
		otelShutdown: otelShutdown,
	}, nil
}

func openDatabase(log *logger.Logger, cfg DatabaseConfig) (*gorm.DB, func() error, error) {
	if cfg.Driver == "sqlite" {
		theDB, err := db.OpenSQLite(log, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite: %w", err)
		}
		return theDB, func() error {
			sqlDB, err := theDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}, nil
	}
	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}
	return pg.DB(), pg.Close, nil
}

func readinessChecks(theDB *gorm.DB) map[string]httpH.ReadinessCheck {
	return map[string]httpH.ReadinessCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := theDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// Start runs the cross-instance relay forwarder until ctx ends. It returns
// immediately when no bus is configured.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.Bridge == nil {
		return nil
	}
	if err := a.Bridge.Start(ctx); err != nil {
		return fmt.Errorf("start relay bridge: %w", err)
	}
	<-ctx.Done()
	return nil
}

// Close waits for in-flight chat streams, then releases clients, the
// database and the tracer provider.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Services.Chat != nil {
		if err := a.Services.Chat.Wait(ctx); err != nil {
			a.Log.Warn("Chat streams still running at shutdown", "error", err)
		}
	}
	a.Clients.Close()
	if a.closeDB != nil {
		if err := a.closeDB(); err != nil {
			a.Log.Warn("Close database failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("Shutdown tracer provider failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
