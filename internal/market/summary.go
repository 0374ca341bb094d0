package market

import (
	"errors"
	"time"
)

// ErrNoRecords 表示没有可汇总的价格记录。
var ErrNoRecords = errors.New("market: 价格记录为空")

// Snapshot 汇总物品的当前价格与前一日均价。
type Snapshot struct {
	Item           Item      `json:"item"`
	LatestAt       time.Time `json:"latest_at"`
	CurrentPrice   float64   `json:"current_price"`
	PrevDayAverage float64   `json:"prev_day_average"`
	HasPrevDay     bool      `json:"has_prev_day"`
	Records        int       `json:"records"`
}

// Summarize 计算最新价格与前一自然日（最新记录所在时区）的平均价格。
func Summarize(records []PriceRecord) (Snapshot, error) {
	if len(records) == 0 {
		return Snapshot{}, ErrNoRecords
	}

	latest := records[0]
	for _, r := range records[1:] {
		if !r.Date.Before(latest.Date) {
			latest = r
		}
	}

	dayStart := startOfDay(latest.Date)
	prevStart := dayStart.AddDate(0, 0, -1)

	var sum float64
	var count int
	for _, r := range records {
		if !r.Date.Before(prevStart) && r.Date.Before(dayStart) {
			sum += r.Price
			count++
		}
	}

	snap := Snapshot{
		Item:         latest.Item(),
		LatestAt:     latest.Date,
		CurrentPrice: latest.Price,
		Records:      len(records),
	}
	if count > 0 {
		snap.PrevDayAverage = sum / float64(count)
		snap.HasPrevDay = true
	}
	return snap, nil
}

func startOfDay(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}
