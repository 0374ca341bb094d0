package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xx6620/lostark-quant/internal/app"
	"github.com/xx6620/lostark-quant/internal/config"
	"github.com/xx6620/lostark-quant/internal/log"
	"github.com/xx6620/lostark-quant/internal/pipeline"
	"github.com/xx6620/lostark-quant/internal/store"
)

func main() {
	var (
		configPath string
		importPath string
		keyword    string
		grade      string
		serve      bool
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&importPath, "import", "", "导入价格日志 CSV (logged_at,item_id,name,grade,category_code,price)")
	flag.StringVar(&keyword, "keyword", "", "物品名关键字，指定时忽略配置中的目标")
	flag.StringVar(&grade, "grade", "", "物品等级，空或 전체 表示全部")
	flag.BoolVar(&serve, "serve", false, "分析完成后保持监控接口运行")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	opts := app.RunOptions{
		ImportPath: importPath,
		Serve:      serve,
		Out:        os.Stdout,
	}
	if keyword != "" {
		opts.Target = &pipeline.Target{Keyword: keyword, Grade: grade}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, logger, sqliteStore).Run(ctx, opts); err != nil {
		logger.Error("系统运行异常", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("系统已安全退出")
}
