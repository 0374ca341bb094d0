package market

import (
	"errors"
	"testing"
	"time"
)

func TestSummarize_PrevDayAverage(t *testing.T) {
	base := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	records := []PriceRecord{
		{Date: base.Add(-30 * time.Hour), ItemID: 7, Name: "원한", Price: 999}, // 两天前，不计入
		{Date: base.Add(-23 * time.Hour), ItemID: 7, Name: "원한", Price: 100},
		{Date: base.Add(-1 * time.Hour), ItemID: 7, Name: "원한", Price: 200},
		{Date: base.Add(2 * time.Hour), ItemID: 7, Name: "원한", Price: 180},
	}

	snap, err := Summarize(records)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if snap.CurrentPrice != 180 {
		t.Errorf("expected current price 180, got %v", snap.CurrentPrice)
	}
	if !snap.HasPrevDay || snap.PrevDayAverage != 150 {
		t.Errorf("expected prev day average 150, got %+v", snap)
	}
	if snap.Item.ID != 7 || snap.Records != 4 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestSummarize_NoPrevDay(t *testing.T) {
	ts := time.Date(2025, 3, 12, 5, 0, 0, 0, time.UTC)
	snap, err := Summarize([]PriceRecord{{Date: ts, Price: 10}})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if snap.HasPrevDay {
		t.Errorf("expected no previous day data, got %+v", snap)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if _, err := Summarize(nil); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestFilter_MatchesGrade(t *testing.T) {
	cases := []struct {
		filter Filter
		grade  string
		want   bool
	}{
		{Filter{Grade: ""}, "유물", true},
		{Filter{Grade: AllGrades}, "전설", true},
		{Filter{Grade: "유물"}, "유물", true},
		{Filter{Grade: "유물"}, "전설", false},
	}
	for _, tc := range cases {
		if got := tc.filter.MatchesGrade(tc.grade); got != tc.want {
			t.Errorf("MatchesGrade(%q) with %+v = %v, want %v", tc.grade, tc.filter, got, tc.want)
		}
	}
}
