package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TradeJournal appends entry and exit events to daily JSONL files so a
// day's trading can be reviewed without querying the database.
type TradeJournal struct {
	dir    string
	mu     sync.Mutex
	logger *logrus.Logger
}

// JournalEvent is one line in the daily journal
type JournalEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Event      string    `json:"event"` // entry, take_profit, stop_loss, aborted
	PositionID string    `json:"position_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// NewTradeJournal creates a journal writing under the given directory
func NewTradeJournal(dir string) (*TradeJournal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &TradeJournal{
		dir:    dir,
		logger: logger,
	}, nil
}

// Record appends an event to today's journal file. Journal failures are
// logged and dropped; they never affect trading.
func (tj *TradeJournal) Record(event JournalEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	line, err := json.Marshal(event)
	if err != nil {
		tj.logger.WithError(err).Warn("Failed to encode journal event")
		return
	}

	path := filepath.Join(tj.dir, fmt.Sprintf("trades-%s.jsonl", event.Timestamp.Format("2006-01-02")))

	tj.mu.Lock()
	defer tj.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		tj.logger.WithError(err).Warn("Failed to open journal file")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		tj.logger.WithError(err).Warn("Failed to write journal event")
	}
}
