package market

import "time"

// SampleInterval 为价格日志的采集周期。
const SampleInterval = 10 * time.Minute

// PointsPerDay 为单日采样点数量（10分钟一条）。
const PointsPerDay = int(24 * time.Hour / SampleInterval)

// Item 描述交易所物品元数据。
type Item struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Grade    string `json:"grade"`
	Category string `json:"category"`
}

// Label 返回用于展示的物品名称。
func (i Item) Label() string {
	if i.Grade == "" {
		return i.Name
	}
	return i.Name + " (" + i.Grade + ")"
}

// PriceRecord 代表单条价格日志，加载后不可变。
type PriceRecord struct {
	Date     time.Time `json:"date"`
	ItemID   int64     `json:"item_id"`
	Name     string    `json:"name"`
	Grade    string    `json:"grade"`
	Category string    `json:"category"`
	Price    float64   `json:"price"`
}

// Item 返回记录所属物品。
func (r PriceRecord) Item() Item {
	return Item{ID: r.ItemID, Name: r.Name, Grade: r.Grade, Category: r.Category}
}

// Filter 控制物品检索条件。
type Filter struct {
	Keyword string
	Grade   string
}

// AllGrades 表示不过滤等级。
const AllGrades = "전체"

// MatchesGrade 判断等级是否满足过滤条件。
func (f Filter) MatchesGrade(grade string) bool {
	return f.Grade == "" || f.Grade == AllGrades || f.Grade == grade
}
