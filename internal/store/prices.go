package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xx6620/lostark-quant/internal/market"
)

// ErrItemNotFound 表示检索条件未匹配任何有价格日志的物品。
var ErrItemNotFound = errors.New("store: 未找到匹配的物品")

// 价格日志统一以 UTC 存储，文本可直接按字典序排序。
const timeLayout = "2006-01-02 15:04:05"

// PriceRepository 读写物品与价格日志。
type PriceRepository struct {
	db     *sql.DB
	loc    *time.Location
	logger *zap.Logger
}

// NewPriceRepository 创建仓储，读取的时间转换到 loc。
func NewPriceRepository(store *Store, loc *time.Location, logger *zap.Logger) (*PriceRepository, error) {
	if store == nil {
		return nil, fmt.Errorf("store: store 不能为空")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceRepository{db: store.DB(), loc: loc, logger: logger}, nil
}

// LoadItemSeries 返回匹配条件且日志条数最多的物品的全部价格记录，按时间升序。
//
// 关键字为名称子串匹配，等级为空或“전체”时不过滤。条数相同时取 id 最小者。
func (r *PriceRepository) LoadItemSeries(ctx context.Context, filter market.Filter) ([]market.PriceRecord, error) {
	query := `
SELECT i.id, i.name, i.grade, i.category_code, COUNT(l.id) AS n
FROM market_items i
JOIN market_price_logs l ON l.item_id = i.id
WHERE i.name LIKE ? ESCAPE '\'`
	args := []interface{}{"%" + escapeLike(filter.Keyword) + "%"}
	if filter.Grade != "" && filter.Grade != market.AllGrades {
		query += ` AND i.grade = ?`
		args = append(args, filter.Grade)
	}
	query += `
GROUP BY i.id
ORDER BY n DESC, i.id ASC
LIMIT 1`

	var (
		item  market.Item
		count int
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&item.ID, &item.Name, &item.Grade, &item.Category, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: keyword=%q grade=%q", ErrItemNotFound, filter.Keyword, filter.Grade)
	}
	if err != nil {
		return nil, fmt.Errorf("store: 查询物品失败: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT current_min_price, logged_at FROM market_price_logs WHERE item_id = ? ORDER BY logged_at ASC, id ASC`,
		item.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: 查询价格日志失败: %w", err)
	}
	defer rows.Close()

	records := make([]market.PriceRecord, 0, count)
	for rows.Next() {
		var (
			price  float64
			logged string
		)
		if err := rows.Scan(&price, &logged); err != nil {
			return nil, fmt.Errorf("store: 解析价格日志失败: %w", err)
		}
		ts, err := time.ParseInLocation(timeLayout, logged, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("store: 解析时间 %q 失败: %w", logged, err)
		}
		records = append(records, market.PriceRecord{
			Date:     ts.In(r.loc),
			ItemID:   item.ID,
			Name:     item.Name,
			Grade:    item.Grade,
			Category: item.Category,
			Price:    price,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 读取价格日志失败: %w", err)
	}

	r.logger.Debug("加载价格序列",
		zap.Int64("item_id", item.ID),
		zap.String("item", item.Label()),
		zap.Int("records", len(records)),
	)

	return records, nil
}

// ListGrades 返回可选等级，首项固定为“전체”。
func (r *PriceRepository) ListGrades(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT grade FROM market_items WHERE grade <> '' ORDER BY grade ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: 查询等级失败: %w", err)
	}
	defer rows.Close()

	grades := []string{market.AllGrades}
	for rows.Next() {
		var grade string
		if err := rows.Scan(&grade); err != nil {
			return nil, fmt.Errorf("store: 解析等级失败: %w", err)
		}
		grades = append(grades, grade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 读取等级失败: %w", err)
	}
	return grades, nil
}

// UpsertItem 写入或更新物品元数据。
func (r *PriceRepository) UpsertItem(ctx context.Context, item market.Item) error {
	return upsertItem(ctx, r.db, item)
}

// InsertPriceLogs 在单个事务中写入价格日志，并同步记录中的物品元数据。
// 相同物品与时间的重复日志会被忽略，返回实际新增条数。
func (r *PriceRepository) InsertPriceLogs(ctx context.Context, records []market.PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seen := make(map[int64]struct{})
	for _, rec := range records {
		if _, ok := seen[rec.ItemID]; ok {
			continue
		}
		seen[rec.ItemID] = struct{}{}
		if err := upsertItem(ctx, tx, rec.Item()); err != nil {
			return 0, err
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO market_price_logs (item_id, current_min_price, logged_at) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("store: 预编译写入语句失败: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx, rec.ItemID, rec.Price, rec.Date.UTC().Format(timeLayout))
		if err != nil {
			return 0, fmt.Errorf("store: 写入价格日志失败: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("store: 读取影响行数失败: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: 提交事务失败: %w", err)
	}

	r.logger.Info("写入价格日志",
		zap.Int("records", len(records)),
		zap.Int("inserted", inserted),
		zap.Int("items", len(seen)),
	)
	return inserted, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertItem(ctx context.Context, db execer, item market.Item) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO market_items (id, name, grade, category_code) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	grade = excluded.grade,
	category_code = excluded.category_code`,
		item.ID, item.Name, item.Grade, item.Category,
	)
	if err != nil {
		return fmt.Errorf("store: 写入物品 %d 失败: %w", item.ID, err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
