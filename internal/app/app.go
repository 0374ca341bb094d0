package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/xx6620/lostark-quant/internal/config"
	"github.com/xx6620/lostark-quant/internal/market"
	"github.com/xx6620/lostark-quant/internal/monitor"
	"github.com/xx6620/lostark-quant/internal/pipeline"
	"github.com/xx6620/lostark-quant/internal/report"
	"github.com/xx6620/lostark-quant/internal/store"
)

// ErrNoTargets 表示既没有命令行目标也没有配置目标。
var ErrNoTargets = errors.New("app: 未指定分析目标")

// RunOptions 为单次运行的命令行参数。
type RunOptions struct {
	ImportPath string
	Target     *pipeline.Target
	Serve      bool
	Out        io.Writer
}

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	registry *prometheus.Registry
	metrics  *monitor.Recorder
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		metrics:  monitor.NewRecorder(registry),
	}
}

// Run 导入数据（可选）、分析全部目标并输出报告。
// Serve 为真且配置了监控端口时才启动监控接口，输出后继续运行直到 ctx 结束；端口监听失败直接返回错误。
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	loc, err := a.cfg.App.Location()
	if err != nil {
		return fmt.Errorf("解析时区失败: %w", err)
	}

	repo, err := store.NewPriceRepository(a.store, loc, a.logger)
	if err != nil {
		return err
	}

	monitorSvc, err := monitor.NewService(a.store, a.metrics, a.logger)
	if err != nil {
		return fmt.Errorf("初始化监控服务失败: %w", err)
	}

	serve := opts.Serve && a.cfg.Monitor.Port > 0
	if serve {
		if err := monitor.Serve(ctx, monitor.Handler(monitorSvc, a.registry, a.logger), a.cfg.Monitor.Port, a.logger); err != nil {
			return err
		}
	}

	if opts.ImportPath != "" {
		if err := a.importCSV(ctx, repo, opts.ImportPath, loc); err != nil {
			return err
		}
	}

	targets := pipeline.TargetsFromConfig(a.cfg.Analysis.Targets)
	if opts.Target != nil {
		targets = []pipeline.Target{*opts.Target}
	}

	a.logger.Info("分析系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("timezone", loc.String()),
		zap.Int("targets", len(targets)),
	)

	if len(targets) == 0 {
		if opts.ImportPath != "" {
			return nil
		}
		return ErrNoTargets
	}

	p, err := pipeline.New(pipeline.OptionsFromConfig(a.cfg), repo, monitorSvc, a.logger)
	if err != nil {
		return err
	}

	outcomes, err := p.Run(ctx, targets)
	if err != nil {
		return err
	}
	if err := report.NewRenderer(0).RenderAll(opts.Out, outcomes); err != nil {
		return fmt.Errorf("输出报告失败: %w", err)
	}

	if serve {
		a.logger.Info("分析完成，监控接口保持运行")
		<-ctx.Done()
		if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("系统异常退出: %w", err)
		}
		a.logger.Info("系统收到退出信号，正在停止")
	}
	return nil
}

func (a *App) importCSV(ctx context.Context, repo *store.PriceRepository, path string, loc *time.Location) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开导入文件失败: %w", err)
	}
	defer f.Close()

	records, err := market.ReadCSV(f, loc)
	if err != nil {
		return err
	}
	inserted, err := repo.InsertPriceLogs(ctx, records)
	if err != nil {
		return err
	}
	a.logger.Info("导入价格日志完成",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Int("inserted", inserted),
	)
	return nil
}
