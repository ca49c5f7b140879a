package models

import (
	"time"

	"gorm.io/gorm"
)

// DBOrder represents a webhook-initiated entry order in the database
type DBOrder struct {
	gorm.Model
	Ticker         string `gorm:"index"`
	Signal         string // CALL or PUT
	ContractSymbol string
	Quantity       int
	StrikePrice    float64
	ExpiryDate     string
	Status         string `gorm:"index"` // processing, submitted, filled, failed
	BrokerOrderID  string
	FillPrice      *float64
	ErrorMessage   string
	FilledAt       *time.Time
}

// DBWebhookLog represents an inbound webhook request and its outcome
type DBWebhookLog struct {
	gorm.Model
	Payload         string
	IPAddress       string
	UserAgent       string
	ResponseStatus  int
	ResponseMessage string
}

// DBTradingConfig holds broker credentials entered through the settings
// page; values here take precedence over environment variables
type DBTradingConfig struct {
	gorm.Model
	AlpacaAPIKey    string
	AlpacaSecretKey string
}

// DBSupervisedPosition persists the exit supervisor's state machine so
// final dispositions survive a restart
type DBSupervisedPosition struct {
	gorm.Model
	PositionID      string `gorm:"uniqueIndex"`
	OrderID         uint   `gorm:"index"` // entry DBOrder row, 0 when untracked
	Symbol          string `gorm:"index"`
	Quantity        int
	EntryPrice      float64
	TakeProfitPrice float64
	StopPrice       float64
	StopOrderID     string
	ExitOrderID     string
	State           string `gorm:"index"` // ACTIVE, TAKE_PROFIT_FILLED, STOP_FILLED, ABORTED
	UseMarketForTP  bool
	ExitPrice       *float64
	ClosedAt        *time.Time
}

// TableName overrides for cleaner table names
func (DBOrder) TableName() string {
	return "orders"
}

func (DBWebhookLog) TableName() string {
	return "webhook_logs"
}

func (DBTradingConfig) TableName() string {
	return "trading_configs"
}

func (DBSupervisedPosition) TableName() string {
	return "supervised_positions"
}
