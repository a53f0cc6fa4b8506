package database

import (
	"log"

	"coinledger/internal/config"
	"coinledger/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitSQLite 初始化归档库连接
// 归档库与账户文件同属一个数据目录，整个进程的状态可整体搬迁
func InitSQLite(cfg *config.ArchiveConfig) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("打开归档库失败: %v", err)
	}

	// 自动迁移表结构
	if err := db.AutoMigrate(&model.TransactionArchive{}); err != nil {
		log.Fatalf("自动迁移归档表失败: %v", err)
	}

	log.Println("归档库就绪:", cfg.Path)
	return db
}
