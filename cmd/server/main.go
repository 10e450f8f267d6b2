package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/partstock/internal/config"
	"github.com/bitfantasy/partstock/internal/middleware"
	orderentity "github.com/bitfantasy/partstock/internal/order/entity"
	orderrepo "github.com/bitfantasy/partstock/internal/order/repository"
	partentity "github.com/bitfantasy/partstock/internal/part/entity"
	parthandler "github.com/bitfantasy/partstock/internal/part/handler"
	partrepo "github.com/bitfantasy/partstock/internal/part/repository"
	partsvc "github.com/bitfantasy/partstock/internal/part/service"
	stockentity "github.com/bitfantasy/partstock/internal/stock/entity"
	stockhandler "github.com/bitfantasy/partstock/internal/stock/handler"
	stockrepo "github.com/bitfantasy/partstock/internal/stock/repository"
	stocksvc "github.com/bitfantasy/partstock/internal/stock/service"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting partstock service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&partentity.User{},
		&partentity.PartCategory{},
		&partentity.Part{},
		&partentity.BomItem{},
		&partentity.PartParameterTemplate{},
		&partentity.PartParameter{},
		&partentity.CategoryParameterTemplate{},
		&partentity.PartStar{},
		&stockentity.StockLocation{},
		&stockentity.StockItem{},
		&orderentity.Company{},
		&orderentity.SupplierPart{},
		&orderentity.SupplierPriceBreak{},
		&orderentity.BuildOrder{},
		&orderentity.BuildItem{},
		&orderentity.SalesOrder{},
		&orderentity.SalesOrderLine{},
		&orderentity.SalesOrderAllocation{},
		&orderentity.PurchaseOrder{},
		&orderentity.PurchaseOrderLine{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	partRepos := partrepo.NewRepositories(db)
	stockRepo := stockrepo.NewStockRepository(db)
	orderRepos := orderrepo.NewRepositories(db)

	services := partsvc.NewServices(db, partRepos, orderRepos, rdb, cfg, zapLogger)
	stockService := stocksvc.NewStockService(stockRepo, partRepos.Part, services.BOM, orderRepos)

	partHandlers := parthandler.NewHandlers(services, stockService)
	stockHandlers := stockhandler.NewHandlers(stockService)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, partHandlers, stockHandlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *parthandler.Handlers, sh *stockhandler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 零件
		parts := v1.Group("/parts")
		{
			parts.POST("", h.Part.Create)
			parts.GET("", h.Part.List)
			parts.GET("/:id", h.Part.Get)
			parts.PUT("/:id", h.Part.Update)
			parts.DELETE("/:id", h.Part.Deactivate)
			parts.PUT("/:id/category", h.Part.SetCategory)
			parts.PUT("/:id/variant-of", h.Part.SetVariantOf)
			parts.GET("/:id/variants", h.Part.Variants)
			parts.GET("/:id/ancestors", h.Part.Ancestors)
			parts.PUT("/:id/trackable", h.Part.SetTrackable)
			parts.POST("/:id/star", h.Part.Star)
			parts.DELETE("/:id/star", h.Part.Unstar)
			parts.GET("/:id/barcode", h.Part.Barcode)
			parts.POST("/:id/copy", h.Part.DeepCopy)
			parts.GET("/:id/context", h.Part.Context)
			parts.GET("/:id/serials", h.Part.Serials)

			// BOM
			parts.GET("/:id/bom", h.BOM.List)
			parts.POST("/:id/bom", h.BOM.Add)
			parts.DELETE("/:id/bom", h.BOM.Clear)
			parts.GET("/:id/used-in", h.BOM.UsedIn)
			parts.POST("/:id/bom/validate", h.BOM.Validate)
			parts.GET("/:id/bom/valid", h.BOM.IsValid)
			parts.POST("/:id/bom/copy", h.BOM.Copy)
			parts.GET("/:id/bom/required", h.BOM.Required)
			parts.GET("/:id/bom/allowed", h.BOM.Allowed)
			parts.GET("/:id/bom/export", h.BOM.Export)
			parts.POST("/:id/bom/import", h.BOM.Import)
			parts.POST("/:id/bom/import-legacy", h.BOM.ImportLegacy)

			// 参数
			parts.GET("/:id/parameters", h.Parameter.List)
			parts.POST("/:id/parameters", h.Parameter.Add)
			parts.POST("/:id/parameters/copy", h.Parameter.CopyFrom)

			// 价格
			parts.GET("/:id/pricing", h.Pricing.PriceRange)
			parts.GET("/:id/pricing/supplier", h.Pricing.SupplierRange)
			parts.DELETE("/:id/pricing/cache", h.Pricing.Invalidate)

			// 库存
			parts.GET("/:id/stock", sh.Stock.ListByPart)
			parts.GET("/:id/stock/metrics", sh.Stock.Metrics)
		}

		// BOM行
		bomItems := v1.Group("/bom-items")
		{
			bomItems.PUT("/:item_id", h.BOM.Update)
			bomItems.DELETE("/:item_id", h.BOM.Delete)
		}
		v1.GET("/bom/template", h.BOM.Template)

		// 分类
		categories := v1.Group("/categories")
		{
			categories.POST("", h.Category.Create)
			categories.GET("", h.Category.List)
			categories.GET("/:id", h.Category.Get)
			categories.GET("/:id/children", h.Category.ListChildren)
			categories.POST("/:id/templates", h.Category.AttachTemplate)
			categories.GET("/:id/parameter-templates", h.Parameter.TemplatesForCategory)
		}
		v1.DELETE("/category-templates/:template_id", h.Category.DetachTemplate)

		// 参数模板
		templates := v1.Group("/parameter-templates")
		{
			templates.POST("", h.Parameter.CreateTemplate)
			templates.GET("", h.Parameter.ListTemplates)
		}

		// 参数值
		parameters := v1.Group("/parameters")
		{
			parameters.PUT("/:param_id", h.Parameter.UpdateValue)
			parameters.DELETE("/:param_id", h.Parameter.Delete)
		}

		// 库存
		stock := v1.Group("/stock")
		{
			stock.POST("", sh.Stock.Add)
			stock.POST("/locations", sh.Stock.CreateLocation)
		}
	}
}
