package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "backoffice/api/swagger" // swagger docs
	"backoffice/internal/config"
	"backoffice/internal/database"
	"backoffice/internal/handler"
	"backoffice/internal/middleware"
	"backoffice/internal/repository"
	"backoffice/internal/service"
	"backoffice/internal/websocket"
	"backoffice/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Back-office API
// @version         1.0
// @description     Catalog, stock ledger, orders, invoices and expenses for a furniture retailer.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	appLog, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	if cfg.JWT.Secret == "" {
		appLog.Fatal("JWT_SECRET must be set")
	}
	secret := []byte(cfg.JWT.Secret)

	db, err := database.NewConnection(cfg.Postgres, appLog, cfg.IsDevelopment())
	if err != nil {
		appLog.Fatalw("database connection failed", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		appLog.Fatalw("database migration failed", "error", err)
	}
	appLog.Info("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(appLog)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	productRepo := repository.NewProductRepository(db)
	specialRepo := repository.NewSpecialProductRepository(db)
	logRepo := repository.NewInventoryLogRepository(db)
	alertRepo := repository.NewStockAlertRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	jobRepo := repository.NewJobRepository(db)

	numerator := service.NewNumerator(sequenceRepo, cfg.Numbering.MaxAttempts, appLog)
	inventoryService := service.NewInventoryService(productRepo, specialRepo, logRepo, alertRepo,
		txManager, wsHub, cfg.Inventory.LowStockThreshold, appLog)
	catalogService := service.NewCatalogService(productRepo, specialRepo, auditRepo, inventoryService, txManager, appLog)
	pricer := service.NewPricer(productRepo, specialRepo, cfg.Inventory.CompositeCostRatio)
	orderService := service.NewOrderService(orderRepo, inventoryService, pricer, numerator,
		txManager, wsHub, cfg.Billing.DefaultTaxRate, appLog)
	invoiceService := service.NewInvoiceService(invoiceRepo, orderRepo, numerator, txManager, cfg.Billing.InvoiceDueDays, appLog)
	expenseService := service.NewExpenseService(expenseRepo, auditRepo, numerator, txManager, appLog)
	jobService := service.NewJobService(jobRepo, cfg.Jobs.Async, cfg.Jobs.MaxAttempts, appLog)
	documents := service.NewInvoiceDocuments(jobService, invoiceService,
		service.NewSnapshotRenderer(cfg.Billing.DocumentDir), service.NewLogEmailSender(appLog))

	// Initialize Handlers
	catalogHandler := handler.NewCatalogHandler(catalogService)
	inventoryHandler := handler.NewInventoryHandler(inventoryService)
	orderHandler := handler.NewOrderHandler(orderService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, documents)
	expenseHandler := handler.NewExpenseHandler(expenseService)
	jobHandler := handler.NewJobHandler(jobService)

	workerDone := make(chan struct{})
	if cfg.Jobs.Async {
		worker := service.NewWorker(jobService, cfg.Jobs.Workers, cfg.Jobs.PollInterval, appLog)
		go func() {
			defer close(workerDone)
			if err := worker.Run(ctx); err != nil {
				appLog.Errorw("job worker stopped", "error", err)
			}
		}()
	} else {
		close(workerDone)
	}

	// Set up Gin Router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(appLog))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	api := router.Group("/api", middleware.RequireActor(secret))
	catalogHandler.RegisterRoutes(api)
	inventoryHandler.RegisterRoutes(api)
	orderHandler.RegisterRoutes(api)
	invoiceHandler.RegisterRoutes(api)
	expenseHandler.RegisterRoutes(api)
	jobHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Infow("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Errorw("server shutdown failed", "error", err)
	}
	<-workerDone

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
