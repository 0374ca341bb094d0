package feature

import "time"

// DayOfWeek 返回以周一为0的星期序号（0-6）。
func DayOfWeek(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}

// TimeValues 返回 hour 与 day_of_week 两列的值。
func TimeValues(ts time.Time) []float64 {
	return []float64{float64(ts.Hour()), float64(DayOfWeek(ts))}
}
