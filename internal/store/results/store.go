// Package results persists completed backtest runs and their trade logs.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stratlab/internal/backtest"
)

// ErrNotFound reports a run id with no stored row.
var ErrNotFound = errors.New("run not found")

// RunModel is one completed run summary.
type RunModel struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Symbol         string         `gorm:"index;size:32" json:"symbol"`
	Timeframe      string         `gorm:"size:8" json:"timeframe"`
	StartDate      int64          `json:"start_date"`
	EndDate        int64          `json:"end_date"`
	InitialCapital float64        `json:"initial_capital"`
	Parameters     datatypes.JSON `json:"parameters"`
	TotalPnL       float64        `json:"total_pnl"`
	ROI            float64        `json:"roi"`
	SharpeRatio    float64        `json:"sharpe_ratio"`
	MaxDrawdown    float64        `json:"max_drawdown"`
	WinRate        float64        `json:"win_rate"`
	TotalTrades    int            `json:"total_trades"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (RunModel) TableName() string { return "backtest_runs" }

// TradeModel is one closed trade belonging to a run.
type TradeModel struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID          string  `gorm:"index;size:36" json:"run_id"`
	Side           string  `gorm:"size:8" json:"side"`
	EntryTimestamp int64   `json:"entry_timestamp"`
	EntryPrice     float64 `json:"entry_price"`
	ExitTimestamp  int64   `json:"exit_timestamp"`
	ExitPrice      float64 `json:"exit_price"`
	Quantity       float64 `json:"quantity"`
	PnL            float64 `json:"pnl"`
}

func (TradeModel) TableName() string { return "backtest_trades" }

// Store is the gorm-backed run archive. Satisfies backtest.RunStore.
type Store struct {
	db *gorm.DB
}

// NewStore opens (creating if needed) the results database at path.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("results database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunModel{}, &TradeModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun writes the run summary and its trades in one transaction.
func (s *Store) SaveRun(ctx context.Context, run backtest.RunRecord, trades []backtest.Trade) error {
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	model := RunModel{
		ID:             run.ID,
		Symbol:         run.Symbol,
		Timeframe:      run.Timeframe,
		StartDate:      run.StartDate,
		EndDate:        run.EndDate,
		InitialCapital: run.InitialCapital,
		Parameters:     datatypes.JSON(params),
		TotalPnL:       run.TotalPnL,
		ROI:            run.ROI,
		SharpeRatio:    run.SharpeRatio,
		MaxDrawdown:    run.MaxDrawdown,
		WinRate:        run.WinRate,
		TotalTrades:    run.TotalTrades,
		CreatedAt:      run.CreatedAt,
	}
	rows := make([]TradeModel, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, TradeModel{
			RunID:          run.ID,
			Side:           string(t.Side),
			EntryTimestamp: t.EntryTimestamp,
			EntryPrice:     t.EntryPrice,
			ExitTimestamp:  t.ExitTimestamp,
			ExitPrice:      t.ExitPrice,
			Quantity:       t.Quantity,
			PnL:            t.PnL,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

// ListRuns returns run summaries newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var runs []RunModel
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// GetRun returns one run summary by id.
func (s *Store) GetRun(ctx context.Context, id string) (RunModel, error) {
	var run RunModel
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunModel{}, ErrNotFound
	}
	return run, err
}

// ListTrades returns the trade log of one run in entry order.
func (s *Store) ListTrades(ctx context.Context, runID string) ([]TradeModel, error) {
	var trades []TradeModel
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("entry_timestamp ASC").
		Find(&trades).Error
	return trades, err
}
