package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// CSVHeader 为价格日志导入文件的列顺序。
var CSVHeader = []string{"logged_at", "item_id", "name", "grade", "category_code", "price"}

var csvTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"}

// ReadCSV 解析价格日志 CSV。首行为表头时跳过；不带时区的时间按 loc 解释。
// 任一行非法时返回全部行的错误汇总。
func ReadCSV(r io.Reader, loc *time.Location) ([]PriceRecord, error) {
	if loc == nil {
		loc = time.UTC
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(CSVHeader)
	reader.TrimLeadingSpace = true

	var (
		records []PriceRecord
		errs    error
		line    int
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				errs = multierr.Append(errs, fmt.Errorf("第 %d 行: %w", line, err))
				continue
			}
			return nil, fmt.Errorf("market: 读取 CSV 失败: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), CSVHeader[0]) {
			continue
		}

		rec, err := parseCSVRow(row, loc)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("第 %d 行: %w", line, err))
			continue
		}
		records = append(records, rec)
	}

	if errs != nil {
		return nil, fmt.Errorf("market: CSV 解析失败: %w", errs)
	}
	return records, nil
}

func parseCSVRow(row []string, loc *time.Location) (PriceRecord, error) {
	ts, err := parseTime(strings.TrimSpace(row[0]), loc)
	if err != nil {
		return PriceRecord{}, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("item_id 非法: %w", err)
	}
	name := strings.TrimSpace(row[2])
	if name == "" {
		return PriceRecord{}, errors.New("name 不能为空")
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("price 非法: %w", err)
	}
	if !(price > 0) || math.IsInf(price, 1) {
		return PriceRecord{}, fmt.Errorf("price 必须为正，当前 %v", price)
	}

	return PriceRecord{
		Date:     ts,
		ItemID:   id,
		Name:     name,
		Grade:    strings.TrimSpace(row[3]),
		Category: strings.TrimSpace(row[4]),
		Price:    price,
	}, nil
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("logged_at 格式非法: %q", value)
}
