package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xx6620/lostark-quant/internal/backtest"
	"github.com/xx6620/lostark-quant/internal/forecast"
	"github.com/xx6620/lostark-quant/internal/market"
	"github.com/xx6620/lostark-quant/internal/store"
)

// Service 负责持久化分析事件并同步更新指标。
type Service struct {
	db      *sql.DB
	metrics *Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewService 初始化监控服务，创建所需表结构。metrics 可为空。
func NewService(store *store.Store, metrics *Recorder, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:      store.DB(),
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Metrics 返回指标记录器，可能为空。
func (s *Service) Metrics() *Recorder {
	return s.metrics
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordAnalysis 记录一次训练评估。
func (s *Service) RecordAnalysis(ctx context.Context, payload AnalysisRunPayload) {
	s.metrics.ObserveTraining(payload.Item.Label(), time.Duration(payload.TrainSeconds*float64(time.Second)), payload.RMSE)
	s.metrics.ObserveRun(StatusOK)

	if err := s.Record(ctx, Event{Type: EventAnalysisRun, Payload: payload}); err != nil {
		s.logger.Warn("记录分析事件失败", zap.Error(err))
	}
}

// RecordBacktest 记录投资模拟结果。
func (s *Service) RecordBacktest(ctx context.Context, item market.Item, cfg backtest.Config, result backtest.Result) {
	s.metrics.ObserveBacktest(item.Label(), result.ROIPercent)

	if err := s.Record(ctx, Event{
		Type:    EventBacktest,
		Payload: BacktestPayload{Item: item, Config: cfg, Result: result},
	}); err != nil {
		s.logger.Warn("记录回测事件失败", zap.Error(err))
	}
}

// RecordForecast 记录未来价格预测。
func (s *Service) RecordForecast(ctx context.Context, item market.Item, points []forecast.Point) {
	if err := s.Record(ctx, Event{
		Type:    EventForecast,
		Payload: ForecastPayload{Item: item, Points: points},
	}); err != nil {
		s.logger.Warn("记录预测事件失败", zap.Error(err))
	}
}

// RecordError 记录异常，status 用于区分数据不足与其它失败。
func (s *Service) RecordError(ctx context.Context, status, msg string, err error, ctxMap map[string]interface{}) {
	s.metrics.ObserveRun(status)

	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{Type: EventError, Payload: payload}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件时间 %q 失败: %w", created, parseErr)
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
