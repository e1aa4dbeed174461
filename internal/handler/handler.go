package handler

import (
	"errors"
	"log"
	"strconv"

	"taskreward/internal/config"
	"taskreward/internal/repository"
	"taskreward/internal/service"
	"taskreward/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg             *config.Config
	userService     *service.UserService
	claimService    *service.ClaimService
	campaignService *service.CampaignService
	resetService    *service.ResetService
	fundsService    *service.FundsService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		cfg:             cfg,
		userService:     service.NewUserService(db, cfg),
		claimService:    service.NewClaimService(db, rdb, cfg),
		campaignService: service.NewCampaignService(db, rdb, cfg),
		resetService:    service.NewResetService(db, cfg),
		fundsService:    service.NewFundsService(db, rdb, cfg),
	}
}

// renderError 把各层 sentinel 错误翻译成对外契约
// 未识别的错误只回通用 500 文案，细节留在服务端日志
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		response.NotFound(c, "用户不存在")
	case errors.Is(err, repository.ErrTaskNotFound):
		response.NotFound(c, "任务不存在")
	case errors.Is(err, repository.ErrCampaignNotFound):
		response.NotFound(c, "任务模板不存在")
	case errors.Is(err, repository.ErrDepositNotFound):
		response.NotFound(c, "充值申请不存在")
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		response.NotFound(c, "提现申请不存在")
	case errors.Is(err, repository.ErrClaimExists):
		response.BusinessError(c, response.CodeAlreadyClaimed, "任务已领取，请勿重复操作")
	case errors.Is(err, repository.ErrTaskStatusInvalid):
		response.BusinessError(c, response.CodeTaskStatusInvalid, "任务状态不可领取")
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.InsufficientBalance(c, "余额不足，请先充值", h.cfg.Business.DepositRedirect)
	case errors.Is(err, repository.ErrOptimisticLock):
		response.BusinessError(c, response.CodeDuplicateOperation, "操作冲突，请稍后重试")
	case errors.Is(err, repository.ErrDailyQuotaExceeded):
		response.BusinessError(c, response.CodeQuotaExceeded, "已达当日任务上限，请明日再来")
	case errors.Is(err, service.ErrResetNotReady):
		response.BusinessError(c, response.CodeResetNotAllowed, "必须完成当前组 30 单任务后才能进入下一组")
	case errors.Is(err, service.ErrMaxSetsReached):
		response.BusinessError(c, response.CodeResetNotAllowed, "已达当前档位的最大任务组数量")
	case errors.Is(err, service.ErrWithdrawNotAllowed):
		response.BusinessError(c, response.CodeWithdrawNotAllowed, "未达到提现所需任务量")
	case errors.Is(err, service.ErrWithdrawHeld):
		response.BusinessError(c, response.CodeWithdrawNotAllowed, "存在未结清的冻结或欠款，暂不可提现")
	case errors.Is(err, service.ErrHoldOutstanding):
		response.BusinessError(c, response.CodeDuplicateOperation, "存在未结清欠款，不可重复记损")
	case errors.Is(err, service.ErrUsernameTaken):
		response.BusinessError(c, response.CodeDuplicateOperation, "用户名已被占用")
	case errors.Is(err, service.ErrAlreadyCheckedIn):
		response.BusinessError(c, response.CodeDuplicateOperation, "今日已签到")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.BusinessError(c, response.CodeParamError, "用户名或密码错误")
	case errors.Is(err, service.ErrAccountInactive):
		response.BusinessError(c, response.CodeAccountInactive, "账户未激活或已停用")
	case errors.Is(err, repository.ErrDepositStatusInvalid):
		response.BusinessError(c, response.CodeDuplicateOperation, "充值申请状态不允许该操作")
	case errors.Is(err, repository.ErrWithdrawalStatusInvalid):
		response.BusinessError(c, response.CodeWithdrawalTerminal, "提现申请状态不允许该操作")
	default:
		log.Printf("[Handler] 内部错误: %v", err)
		response.ServerError(c)
	}
}

// ============================================================
// 用户相关接口
// ============================================================

// Register 注册
// POST /api/v1/user/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, user)
}

// Login 登录
// POST /api/v1/user/login
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, user)
}

// CheckIn 每日签到
// POST /api/v1/user/check-in
func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		UserID int64 `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.userService.CheckIn(c.Request.Context(), req.UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, result)
}

// GetStatus 用户账务状态与任务进度
// GET /api/v1/user/status?user_id=xxx
func (h *Handler) GetStatus(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	progress, err := h.campaignService.GetProgress(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":     user,
		"progress": progress,
	})
}

// ListTransactions 流水查询
// GET /api/v1/transaction/list?user_id=xxx&type=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.userService.ListTransactions(c.Request.Context(), userID, c.Query("type"), page, pageSize)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":     transactions,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// ============================================================
// 任务相关接口
// ============================================================

// ClaimTask 领取任务
// POST /api/v1/task/claim
//
// 【关键点】领取是最核心的资金出口，需要保证：
// 1. 同一 (customerId, taskId) 至多一条在役领取记录
// 2. 扣款与领取记录同生共死（数据库事务）
// 3. 并发安全：分布式锁 + 条件更新 + 唯一索引三重兜底
func (h *Handler) ClaimTask(c *gin.Context) {
	var req service.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	claim, err := h.claimService.Claim(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, claim)
}

// ResetTaskSet 进入下一任务组
// POST /api/v1/task/reset
func (h *Handler) ResetTaskSet(c *gin.Context) {
	var req struct {
		UserID int64 `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.resetService.ResetTaskSet(c.Request.Context(), req.UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, result)
}

// ListTasks 用户任务列表
// GET /api/v1/task/list?customer_id=xxx&status=xxx&page=1&page_size=10
func (h *Handler) ListTasks(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "customer_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	tasks, total, err := h.claimService.ListTasks(c.Request.Context(), customerID, c.Query("status"), page, pageSize)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":     tasks,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// ============================================================
// 任务结算接口
// ============================================================

// CompleteCampaign 完成任务并结算佣金
// POST /api/v1/campaign/complete
func (h *Handler) CompleteCampaign(c *gin.Context) {
	var req service.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.campaignService.CompleteCampaign(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, result)
}

// ListCampaigns 可接任务模板列表
// GET /api/v1/campaign/list?page=1&page_size=10
func (h *Handler) ListCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	campaigns, total, err := h.campaignService.ListCampaigns(c.Request.Context(), page, pageSize)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":     campaigns,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// ============================================================
// 充值 / 提现接口
// ============================================================

// CreateDeposit 创建充值申请
// POST /api/v1/deposit/create
func (h *Handler) CreateDeposit(c *gin.Context) {
	var req service.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	deposit, err := h.fundsService.CreateDeposit(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, deposit)
}

// ApproveDeposit 充值审批通过
// POST /api/v1/deposit/approve
func (h *Handler) ApproveDeposit(c *gin.Context) {
	var req service.ProcessDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.fundsService.ApproveDeposit(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, result)
}

// RejectDeposit 充值审批驳回
// POST /api/v1/deposit/reject
func (h *Handler) RejectDeposit(c *gin.Context) {
	var req service.ProcessDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	deposit, err := h.fundsService.RejectDeposit(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, deposit)
}

// CreateWithdrawal 发起提现
// POST /api/v1/withdrawal/create
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req service.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	withdrawal, err := h.fundsService.RequestWithdrawal(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, withdrawal)
}

// ProcessWithdrawal 提现终审
// POST /api/v1/withdrawal/process
func (h *Handler) ProcessWithdrawal(c *gin.Context) {
	var req service.ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	withdrawal, err := h.fundsService.ProcessWithdrawal(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, withdrawal)
}

// ApplyNegativeCommission 记损（运营触发的负佣金事件）
// POST /api/v1/ledger/negative-commission
func (h *Handler) ApplyNegativeCommission(c *gin.Context) {
	var req service.NegativeCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.fundsService.ApplyNegativeCommission(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, user)
}

// ============================================================
// 账务修复接口（幂等）
// ============================================================

type fixRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

func (h *Handler) renderFix(c *gin.Context, result *service.FixResult, err error) {
	if err != nil {
		h.renderError(c, err)
		return
	}
	if result.Changed {
		response.SuccessMsg(c, "修复完成", result)
		return
	}
	response.SuccessMsg(c, "数据一致，无需修复", result)
}

// FixNegativeBalance POST /api/v1/fix/negative-balance
func (h *Handler) FixNegativeBalance(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.resetService.FixNegativeBalance(c.Request.Context(), req.UserID)
	h.renderFix(c, result, err)
}

// FixHold POST /api/v1/fix/hold
func (h *Handler) FixHold(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.resetService.FixHold(c.Request.Context(), req.UserID)
	h.renderFix(c, result, err)
}

// FixTrialReset POST /api/v1/fix/trial-reset
func (h *Handler) FixTrialReset(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.resetService.FixTrialReset(c.Request.Context(), req.UserID)
	h.renderFix(c, result, err)
}

// FixAfterDeposit POST /api/v1/fix/after-deposit
func (h *Handler) FixAfterDeposit(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.resetService.FixAfterDeposit(c.Request.Context(), req.UserID)
	h.renderFix(c, result, err)
}
