package market

import "time"

// ResetWeekday 为每周重置日。
const ResetWeekday = time.Wednesday

// IsResetDay 判断时间点是否落在重置日（按 ts 所在时区）。
func IsResetDay(ts time.Time) bool {
	return ts.Weekday() == ResetWeekday
}

// ResetStats 对比重置日与其它日期的平均价格。
type ResetStats struct {
	ResetDays    int     `json:"reset_days"`
	ResetAverage float64 `json:"reset_average"`
	OtherAverage float64 `json:"other_average"`
}

// Premium 返回重置日均价相对其它日期的溢价百分比，任一侧无数据时返回 false。
func (s ResetStats) Premium() (float64, bool) {
	if s.ResetDays == 0 || s.OtherAverage == 0 {
		return 0, false
	}
	return (s.ResetAverage - s.OtherAverage) / s.OtherAverage * 100, true
}

// ResetImpact 统计重置日效应。
func ResetImpact(records []PriceRecord) ResetStats {
	var (
		stats                ResetStats
		resetSum, otherSum   float64
		resetCount, otherCnt int
	)
	days := make(map[time.Time]struct{})

	for _, r := range records {
		if IsResetDay(r.Date) {
			resetSum += r.Price
			resetCount++
			days[startOfDay(r.Date)] = struct{}{}
			continue
		}
		otherSum += r.Price
		otherCnt++
	}

	stats.ResetDays = len(days)
	if resetCount > 0 {
		stats.ResetAverage = resetSum / float64(resetCount)
	}
	if otherCnt > 0 {
		stats.OtherAverage = otherSum / float64(otherCnt)
	}
	return stats
}
