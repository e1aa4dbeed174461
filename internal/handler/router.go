package handler

import (
	"taskreward/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 用户相关
		user := api.Group("/user")
		{
			user.POST("/register", h.Register)
			user.POST("/login", h.Login)
			user.POST("/check-in", h.CheckIn)
			user.GET("/status", h.GetStatus)
		}

		// 任务相关
		task := api.Group("/task")
		{
			task.POST("/claim", h.ClaimTask)
			task.POST("/reset", h.ResetTaskSet)
			task.GET("/list", h.ListTasks)
		}

		// 任务结算
		campaign := api.Group("/campaign")
		{
			campaign.POST("/complete", h.CompleteCampaign)
			campaign.GET("/list", h.ListCampaigns)
		}

		// 充值
		deposit := api.Group("/deposit")
		{
			deposit.POST("/create", h.CreateDeposit)
			deposit.POST("/approve", h.ApproveDeposit)
			deposit.POST("/reject", h.RejectDeposit)
		}

		// 提现
		withdrawal := api.Group("/withdrawal")
		{
			withdrawal.POST("/create", h.CreateWithdrawal)
			withdrawal.POST("/process", h.ProcessWithdrawal)
		}

		// 记损
		ledger := api.Group("/ledger")
		{
			ledger.POST("/negative-commission", h.ApplyNegativeCommission)
		}

		// 账务修复（幂等，可重复调用）
		fix := api.Group("/fix")
		{
			fix.POST("/negative-balance", h.FixNegativeBalance)
			fix.POST("/hold", h.FixHold)
			fix.POST("/trial-reset", h.FixTrialReset)
			fix.POST("/after-deposit", h.FixAfterDeposit)
		}

		// 流水查询
		transaction := api.Group("/transaction")
		{
			transaction.GET("/list", h.ListTransactions)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
