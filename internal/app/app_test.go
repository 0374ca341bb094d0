package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xx6620/lostark-quant/internal/config"
	"github.com/xx6620/lostark-quant/internal/pipeline"
	"github.com/xx6620/lostark-quant/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
app:
  environment: test
  timezone: Asia/Seoul
database:
  in_memory: true
model:
  trees: 5
  max_depth: 4
forecast:
  steps: 12
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return cfg
}

func writePriceCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("logged_at,item_id,name,grade,category_code,price\n")
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * 10 * time.Minute)
		price := math.Round(1000 + 120*math.Sin(float64(i)/10))
		fmt.Fprintf(&b, "%s,65201505,원한 각인서,유물,40000,%v\n", ts.Format(time.RFC3339), price)
	}
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := testConfig(t)
	st, err := store.NewSQLite(cfg.Database)
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(cfg, nil, st)
}

func TestRun_ImportAndAnalyze(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	err := a.Run(context.Background(), RunOptions{
		ImportPath: writePriceCSV(t, 500),
		Target:     &pipeline.Target{Keyword: "원한", Grade: "유물"},
		Out:        &out,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	text := out.String()
	for _, want := range []string{"원한 각인서 (유물)", "投资模拟", "未来 12 步预测"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestRun_ReportsInsufficientData(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	err := a.Run(context.Background(), RunOptions{
		ImportPath: writePriceCSV(t, 200),
		Target:     &pipeline.Target{Keyword: "원한"},
		Out:        &out,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "分析失败") {
		t.Errorf("expected a failure line, got:\n%s", out.String())
	}
}

func TestRun_NoTargets(t *testing.T) {
	a := newTestApp(t)

	err := a.Run(context.Background(), RunOptions{Out: &bytes.Buffer{}})
	if !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}

	// 仅导入时没有目标也视为成功。
	if err := a.Run(context.Background(), RunOptions{ImportPath: writePriceCSV(t, 3), Out: &bytes.Buffer{}}); err != nil {
		t.Fatalf("import-only run returned error: %v", err)
	}
}

func TestRun_MonitorOnlyWithServe(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	a := newTestApp(t)
	a.cfg.Monitor.Port = busy.Addr().(*net.TCPAddr).Port
	target := &pipeline.Target{Keyword: "원한"}

	// 未指定 Serve 时不监听端口，占用的端口不影响分析。
	err = a.Run(context.Background(), RunOptions{ImportPath: writePriceCSV(t, 3), Target: target, Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Run without serve returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = a.Run(ctx, RunOptions{Target: target, Serve: true, Out: &bytes.Buffer{}})
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected bind error, got %v", err)
	}
}
