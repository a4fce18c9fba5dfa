// File: plancosmique/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plancosmique/backend"
	"plancosmique/config"
	"plancosmique/handlers"
	"plancosmique/routes"
	"plancosmique/services/analysis"
	"plancosmique/services/catalog"
	"plancosmique/services/consultation"
	"plancosmique/services/fulfillment"
	"plancosmique/services/payment"
	"plancosmique/services/wallet"
	"plancosmique/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	utils.InitSessionCache()
	utils.InitAuthCache()
	utils.StartHealthMonitor([]*redis.Client{
		utils.GetSessionCacheClient(),
		utils.GetAuthCacheClient(),
	})

	catalogResolver, err := catalog.LoadFromFile(config.AppConfig.CatalogPath)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to load consultation catalog: %v", err)
	}

	// One client per backend concern, all sharing the same base URL.
	backendClient := backend.NewClient(config.AppConfig.BackendBaseURL, backend.WithLogger(logger))

	provisioner := consultation.NewProvisionerService(backendClient, logger)
	consumption := wallet.NewConsumptionService(backendClient, backendClient, logger)
	payments := payment.NewWorkflowService(backendClient, logger)
	stream := analysis.NewStreamClient(backendClient, logger)
	sessions := fulfillment.NewRedisSessionStore(utils.GetSessionCacheClient())

	orchestrator := fulfillment.NewOrchestratorService(
		catalogResolver,
		backendClient,
		provisioner,
		consumption,
		payments,
		stream,
		sessions,
		logger,
	)
	orchestrator.MarketplaceURL = config.AppConfig.MarketplaceURL
	handlers.FulfillmentService = orchestrator
	handlers.ConsultationService = provisioner

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	routes.RegisterRoutes(router)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
