package controllers

import (
	"net/http"
	"strconv"

	"signal-trader/database"
	"signal-trader/interfaces"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OrderController serves order history and dashboard statistics
type OrderController struct {
	storage *database.LocalStorage
	broker  interfaces.Broker
	logger  *logrus.Logger
}

// NewOrderController creates an order controller
func NewOrderController(storage *database.LocalStorage, broker interfaces.Broker) *OrderController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &OrderController{
		storage: storage,
		broker:  broker,
		logger:  logger,
	}
}

// HandleListOrders handles GET /api/orders?limit=50
func (oc *OrderController) HandleListOrders(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	orders, err := oc.storage.GetRecentOrders(limit)
	if err != nil {
		oc.logger.WithError(err).Error("Failed to list orders")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(orders),
		"orders": orders,
	})
}

// HandleGetOrder handles GET /api/orders/:id
func (oc *OrderController) HandleGetOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := oc.storage.GetOrderByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, order)
}

// HandleStats handles GET /api/stats
func (oc *OrderController) HandleStats(c *gin.Context) {
	total, err := oc.storage.CountOrders("")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filled, _ := oc.storage.CountOrders("filled")
	submitted, _ := oc.storage.CountOrders("submitted")
	failed, _ := oc.storage.CountOrders("failed")
	processing, _ := oc.storage.CountOrders("processing")

	connected := true
	connectionMsg := "Connection successful"
	marketOpen := false

	if _, err := oc.broker.GetAccount(c.Request.Context()); err != nil {
		connected = false
		connectionMsg = err.Error()
	} else if clock, err := oc.broker.GetClock(c.Request.Context()); err == nil {
		marketOpen = clock.IsOpen
	}

	c.JSON(http.StatusOK, gin.H{
		"total_orders":      total,
		"filled_orders":     filled,
		"submitted_orders":  submitted,
		"failed_orders":     failed,
		"processing_orders": processing,
		"is_connected":      connected,
		"connection_msg":    connectionMsg,
		"market_open":       marketOpen,
	})
}

// HandleListWebhookLogs handles GET /api/webhook-logs
func (oc *OrderController) HandleListWebhookLogs(c *gin.Context) {
	logs, err := oc.storage.GetRecentWebhookLogs(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(logs),
		"logs":  logs,
	})
}
