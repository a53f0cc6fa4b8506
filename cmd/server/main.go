package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinledger/internal/config"
	"coinledger/internal/handler"
	"coinledger/internal/infrastructure/cache"
	"coinledger/internal/infrastructure/database"
	"coinledger/internal/infrastructure/mq"
	"coinledger/internal/job"
	"coinledger/internal/ledger"
	"coinledger/internal/notify"
	"coinledger/internal/store"
	"coinledger/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化账户文件存储
	// 开户默认值与备份策略通过闭包跟随账本当前策略，热更新后即时生效
	var l *ledger.Ledger
	accountStore, err := store.NewAccountStore(cfg.Storage.DataDir, cfg.Storage.BackupDir,
		func() config.LedgerConfig { return l.Policy() })
	if err != nil {
		log.Fatalf("初始化账户存储失败: %v", err)
	}

	// 初始化归档库
	db := database.InitSQLite(&cfg.Archive)
	archiveRepo := store.NewArchiveRepository(db)

	// 初始化 Redis（通知通道）
	redisClient := cache.InitRedis(&cfg.Redis)
	notifier := notify.NewRedisNotifier(redisClient)

	// 初始化 Kafka
	producer, err := mq.NewProducer(&cfg.Kafka)
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}
	defer producer.Close()

	// 组装账本：策略、存储、货币协作方、通知协作方全部显式注入
	l = ledger.NewLedger(accountStore, cfg.Ledger, ledger.TellerCurrency{}, notifier)

	// 策略热更新
	config.WatchLedgerPolicy(l.UpdatePolicy)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	queueDrain := job.NewQueueDrain(l.Queue(), archiveRepo)
	go queueDrain.Start(ctx)

	archiveSender := job.NewArchiveSender(archiveRepo, producer, cfg)
	go archiveSender.Start(ctx)

	maintenance := job.NewMaintenance(l, accountStore)
	maintenance.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(l, archiveRepo)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()
	maintenance.Stop()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	// 退出前全量刷盘
	if _, err := l.SaveAll(context.Background()); err != nil {
		log.Printf("退出刷盘存在失败项: %v", err)
	}

	log.Println("服务已关闭")
}
