package controllers

import (
	"net/http"
	"strings"

	"signal-trader/database"
	"signal-trader/models"
	"signal-trader/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SettingsController manages stored broker credentials
type SettingsController struct {
	storage *database.LocalStorage
	broker  *services.AlpacaBroker
	creds   *services.CredentialSource
	logger  *logrus.Logger
}

// NewSettingsController creates a settings controller
func NewSettingsController(storage *database.LocalStorage, broker *services.AlpacaBroker, creds *services.CredentialSource) *SettingsController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &SettingsController{
		storage: storage,
		broker:  broker,
		creds:   creds,
		logger:  logger,
	}
}

// UpdateSettingsRequest carries new broker credentials
type UpdateSettingsRequest struct {
	AlpacaAPIKey    string `json:"alpaca_api_key" binding:"required"`
	AlpacaSecretKey string `json:"alpaca_secret_key" binding:"required"`
}

// HandleGetSettings handles GET /api/settings
func (sc *SettingsController) HandleGetSettings(c *gin.Context) {
	config, err := sc.storage.GetTradingConfig()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	apiKey := ""
	if config != nil {
		apiKey = config.AlpacaAPIKey
	}

	c.JSON(http.StatusOK, gin.H{
		"alpaca_api_key": maskKey(apiKey),
		"configured":     apiKey != "",
	})
}

// HandleUpdateSettings handles POST /api/settings
func (sc *SettingsController) HandleUpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config := &models.DBTradingConfig{
		AlpacaAPIKey:    strings.TrimSpace(req.AlpacaAPIKey),
		AlpacaSecretKey: strings.TrimSpace(req.AlpacaSecretKey),
	}
	if err := sc.storage.SaveTradingConfig(config); err != nil {
		sc.logger.WithError(err).Error("Failed to save settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Swap the broker client onto the new keys right away
	key, secret := sc.creds.AlpacaKeys()
	sc.broker.Reload(key, secret)

	connected := true
	message := "Settings saved; connection successful"
	if _, err := sc.broker.GetAccount(c.Request.Context()); err != nil {
		connected = false
		message = "Settings saved; connection test failed: " + err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"connected": connected,
	})
}

// HandleTestConnection handles GET /api/settings/test
func (sc *SettingsController) HandleTestConnection(c *gin.Context) {
	account, err := sc.broker.GetAccount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"connected": false,
			"message":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected": true,
		"message":   "Connection successful",
		"account":   account,
	})
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
