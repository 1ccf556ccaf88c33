package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/fundcapital/internal/capital/application"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	infracache "github.com/wyfcoding/fundcapital/internal/capital/infrastructure/cache"
	"github.com/wyfcoding/fundcapital/internal/capital/infrastructure/messaging"
	"github.com/wyfcoding/fundcapital/internal/capital/infrastructure/persistence/mysql"
	capitalhttp "github.com/wyfcoding/fundcapital/internal/capital/interfaces/http"
	"github.com/wyfcoding/fundcapital/pkg/cache"
	"github.com/wyfcoding/fundcapital/pkg/config"
	"github.com/wyfcoding/fundcapital/pkg/db"
	"github.com/wyfcoding/fundcapital/pkg/logger"
	"github.com/wyfcoding/fundcapital/pkg/metrics"
	"github.com/wyfcoding/fundcapital/pkg/middleware"
	"github.com/wyfcoding/fundcapital/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/capital/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting capital service",
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		panic(fmt.Sprintf("init database failed: %v", err))
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&domain.Fund{}, &domain.Deal{},
		&domain.FundAllocation{}, &domain.CapitalCall{},
		&domain.Payment{}, &domain.Distribution{},
	); err != nil {
		panic(fmt.Sprintf("migrate db failed: %v", err))
	}

	// 4. Metrics
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := m.Register(); err != nil {
			panic(fmt.Sprintf("register metrics failed: %v", err))
		}
	}

	// 5. Optional infrastructure: Redis 口径缓存与 Kafka 审计流
	var metricsCache application.MetricsCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			panic(fmt.Sprintf("init redis failed: %v", err))
		}
		defer redisCache.Close()
		metricsCache = infracache.NewMetricsCache(redisCache)
	}

	var recorder domain.EventRecorder
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			panic(fmt.Sprintf("init kafka producer failed: %v", err))
		}
		defer producer.Close()
		recorder = messaging.NewAuditRecorder(producer, cfg.Kafka.AuditTopic)
	}

	// 6. Repositories
	allocRepo := mysql.NewAllocationRepository(database.DB)
	callRepo := mysql.NewCapitalCallRepository(database.DB)
	payRepo := mysql.NewPaymentRepository(database.DB)
	distRepo := mysql.NewDistributionRepository(database.DB)
	fundRepo := mysql.NewFundRepository(database.DB)
	dealRepo := mysql.NewDealRepository(database.DB)

	// 7. Application services
	bounds := application.AllocationBounds{
		Min: decimal.RequireFromString(cfg.Capital.AllocationMin),
		Max: decimal.RequireFromString(cfg.Capital.AllocationMax),
	}
	epsilon := decimal.RequireFromString(cfg.Capital.AggregateEpsilon)

	aggregator := application.NewFundAggregator(allocRepo, fundRepo, metricsCache)
	fundSvc := application.NewFundService(fundRepo, dealRepo)
	allocSvc := application.NewAllocationService(allocRepo, callRepo, payRepo, distRepo, fundRepo, dealRepo, aggregator, recorder, m, bounds)
	callSvc := application.NewCapitalCallService(callRepo, payRepo, allocRepo, dealRepo, aggregator, recorder, m)
	metricsSvc := application.NewMetricsService(allocRepo, callRepo, fundRepo, dealRepo, metricsCache,
		time.Duration(cfg.Capital.MetricsCacheTTL)*time.Second, cfg.Capital.SectorTopN)
	integSvc := application.NewIntegrityService(allocRepo, callRepo, fundRepo, dealRepo, epsilon, m)

	// 8. HTTP interface
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinCORSMiddleware())

	handler := capitalhttp.NewCapitalHandler(fundSvc, allocSvc, callSvc, metricsSvc, integSvc)
	handler.RegisterRoutes(router)

	sys := router.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) {
			if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "READY"})
		})
	}
	pp := router.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	// 9. Start
	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			logger.Info(gctx, "Metrics server starting", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			return metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			logger.Info(gctx, "Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
			return gctx.Err()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error(ctx, "Service exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Capital service stopped")
}
