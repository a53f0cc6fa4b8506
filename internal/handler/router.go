package handler

import (
	"coinledger/internal/ledger"
	"coinledger/internal/store"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(l *ledger.Ledger, archiveRepo *store.ArchiveRepository) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(l)
	ah := NewArchiveHandler(archiveRepo)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.GET("/history", h.GetHistory)
			account.GET("/daily-limit", h.GetDailyLimit)
			account.GET("/archive", ah.ListByOwner)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
		}

		// 转账相关
		transfer := api.Group("/transfer")
		{
			transfer.POST("/execute", h.Transfer)
		}

		// 管理相关
		admin := api.Group("/admin")
		{
			admin.POST("/save-all", h.SaveAll)
			admin.POST("/cache/clear", h.ClearCache)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
