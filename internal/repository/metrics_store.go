package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"
)

const (
	MetricsTable = "metrics_snapshots"
	TradesTable  = "user_trades"
)

// Schema is the idempotent DDL for the ClickHouse tables used here.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + MetricsTable + ` (
		ts               DateTime64(3, 'UTC'),
		symbol           LowCardinality(String),
		vix              Float64,
		vix_source       LowCardinality(String),
		regime           LowCardinality(String),
		risk_index       Int32,
		asset_volatility Float64,
		risk_level       LowCardinality(String),
		regime_color     String
	) ENGINE = MergeTree ORDER BY (symbol, ts)`,
	`CREATE TABLE IF NOT EXISTS ` + TradesTable + ` (
		user_id String,
		ts      DateTime64(3, 'UTC'),
		symbol  LowCardinality(String),
		action  LowCardinality(String),
		price   Float64,
		pnl     Float64,
		status  LowCardinality(String)
	) ENGINE = MergeTree ORDER BY (user_id, symbol, ts)`,
}

// CHMetricsStore keeps metrics snapshots in ClickHouse.
type CHMetricsStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHMetricsStore(db *sql.DB, l *applogger.Logger) *CHMetricsStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHMetricsStore{db: db, l: l}
}

func (s *CHMetricsStore) Save(ctx context.Context, snap models.MetricsSnapshot) error {
	const q = `INSERT INTO ` + MetricsTable + ` (ts, symbol, vix, vix_source, regime, risk_index, asset_volatility, risk_level, regime_color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		snap.ComputedAt,
		snap.Symbol,
		snap.VolatilityIndex,
		string(snap.IndexSource),
		string(snap.MarketRegime),
		int32(snap.RiskIndex),
		snap.AssetVolatility,
		snap.RiskLevel,
		snap.RegimeColor,
	)
	if err != nil {
		return fmt.Errorf("save metrics snapshot: %w", err)
	}
	return nil
}

// History returns the latest snapshots for symbol, newest first.
func (s *CHMetricsStore) History(ctx context.Context, symbol string, limit int) ([]models.MetricsSnapshot, error) {
	start := time.Now()
	const q = `SELECT ts, symbol, vix, vix_source, regime, risk_index, asset_volatility, risk_level, regime_color
		FROM ` + MetricsTable + `
		WHERE symbol = ?
		ORDER BY ts DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		s.l.Error("clickhouse metrics_history query error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("metrics history: %w", err)
	}
	defer rows.Close()

	out := make([]models.MetricsSnapshot, 0, limit)
	for rows.Next() {
		var (
			snap      models.MetricsSnapshot
			src, reg  string
			riskIndex int32
		)
		if err := rows.Scan(&snap.ComputedAt, &snap.Symbol, &snap.VolatilityIndex, &src, &reg,
			&riskIndex, &snap.AssetVolatility, &snap.RiskLevel, &snap.RegimeColor); err != nil {
			return nil, fmt.Errorf("scan metrics snapshot: %w", err)
		}
		snap.IndexSource = models.IndexSource(src)
		snap.MarketRegime = models.MarketRegime(reg)
		snap.RiskIndex = int(riskIndex)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse metrics_history ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("took", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.MetricsStore = (*CHMetricsStore)(nil)
