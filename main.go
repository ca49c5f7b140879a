package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-trader/config"
	"signal-trader/controllers"
	"signal-trader/database"
	"signal-trader/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg := config.Load()

	storage, err := database.NewLocalStorage(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}

	journal, err := services.NewTradeJournal(cfg.JournalDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open trade journal")
	}

	creds := services.NewCredentialSource(storage, cfg.AlpacaAPIKey, cfg.AlpacaAPISecret)
	apiKey, apiSecret := creds.AlpacaKeys()

	broker := services.NewAlpacaBroker(apiKey, apiSecret, cfg.AlpacaBaseURL)
	quotes := services.NewTradierQuotes(cfg.TradierToken, cfg.TradierSandbox)
	resolver := services.NewAlpacaContractResolver(creds, cfg.AlpacaBaseURL, cfg.AlpacaDataURL)

	exits := services.NewExitManager(broker, quotes, storage, journal, cfg.PollInterval)
	trading := services.NewTradingService(broker, resolver, exits, storage, cfg)

	router := setupRouter(trading, exits, storage, broker, creds)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	// Aborts active monitors; protective stops stay resting at the broker
	exits.Shutdown()

	if err := storage.Close(); err != nil {
		logger.WithError(err).Error("Failed to close database")
	}

	logger.Info("Shutdown complete")
}

func setupRouter(
	trading *services.TradingService,
	exits *services.ExitManager,
	storage *database.LocalStorage,
	broker *services.AlpacaBroker,
	creds *services.CredentialSource,
) *gin.Engine {
	router := gin.Default()

	webhookController := controllers.NewWebhookController(trading)
	orderController := controllers.NewOrderController(storage, broker)
	settingsController := controllers.NewSettingsController(storage, broker, creds)
	supervisionController := controllers.NewSupervisionController(exits)

	router.POST("/webhook", webhookController.HandleWebhook)

	api := router.Group("/api")
	{
		api.GET("/orders", orderController.HandleListOrders)
		api.GET("/orders/:id", orderController.HandleGetOrder)
		api.GET("/stats", orderController.HandleStats)
		api.GET("/webhook-logs", orderController.HandleListWebhookLogs)

		api.GET("/settings", settingsController.HandleGetSettings)
		api.POST("/settings", settingsController.HandleUpdateSettings)
		api.GET("/settings/test", settingsController.HandleTestConnection)

		api.GET("/positions/supervised", supervisionController.HandleListPositions)
		api.GET("/positions/supervised/:id", supervisionController.HandleGetPosition)
		api.DELETE("/positions/supervised/:id", supervisionController.HandleAbortPosition)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
