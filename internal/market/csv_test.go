package market

import (
	"strings"
	"testing"
	"time"
)

func TestReadCSV(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	input := `logged_at,item_id,name,grade,category_code,price
2025-03-01 00:00:00,65201505,원한 각인서,유물,40000,1200
2025-03-01T00:10:00Z, 65201505, 원한 각인서, 유물, 40000, 1210.5
`
	records, err := ReadCSV(strings.NewReader(input), kst)
	if err != nil {
		t.Fatalf("ReadCSV returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if !first.Date.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, kst)) {
		t.Errorf("naive timestamps must use the given location, got %s", first.Date)
	}
	if first.ItemID != 65201505 || first.Name != "원한 각인서" || first.Grade != "유물" || first.Category != "40000" || first.Price != 1200 {
		t.Errorf("unexpected record %+v", first)
	}
	if !records[1].Date.Equal(time.Date(2025, 3, 1, 0, 10, 0, 0, time.UTC)) || records[1].Price != 1210.5 {
		t.Errorf("unexpected record %+v", records[1])
	}
}

func TestReadCSV_AggregatesRowErrors(t *testing.T) {
	input := `2025-03-01 00:00:00,1,a,,,100
yesterday,1,a,,,100
2025-03-01 00:20:00,x,a,,,100
2025-03-01 00:30:00,1,a,,,-5
2025-03-01 00:40:00,1,a,,
`
	_, err := ReadCSV(strings.NewReader(input), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"第 2 行", "第 3 行", "第 4 行", "第 5 行"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if strings.Contains(err.Error(), "第 1 行") {
		t.Errorf("valid row reported as error: %v", err)
	}
}
