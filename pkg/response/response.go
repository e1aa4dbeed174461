package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 业务错误码
const (
	CodeSuccess             = 0
	CodeParamError          = 400
	CodeNotFound            = 404
	CodeServerError         = 500
	CodeTaskNotFound        = 1001
	CodeTaskStatusInvalid   = 1002
	CodeBalanceNotEnough    = 1003
	CodeAlreadyClaimed      = 1004
	CodeUserNotFound        = 1005
	CodeCampaignNotFound    = 1006
	CodeQuotaExceeded       = 1007
	CodeWithdrawNotAllowed  = 1008
	CodeDepositNotFound     = 1009
	CodeWithdrawalTerminal  = 1010
	CodeAccountInactive     = 1011
	CodeResetNotAllowed     = 1012
	CodeDuplicateOperation  = 1013
)

// Response 统一响应体
// 对外契约：{success, message, data, redirectTo}
// 余额不足时 redirectTo 指向充值页，客户端据此跳转
type Response struct {
	Success    bool        `json:"success"`
	Code       int         `json:"code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	RedirectTo string      `json:"redirectTo,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessMsg 带提示语的成功响应（幂等修复接口用于返回"无需修复"）
func SuccessMsg(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    CodeParamError,
		Message: message,
	})
}

func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Code:    CodeNotFound,
		Message: message,
	})
}

// BusinessError 业务校验失败，HTTP 400 + 业务码
func BusinessError(c *gin.Context, code int, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// InsufficientBalance 余额不足，附带跳转提示
func InsufficientBalance(c *gin.Context, message, redirectTo string) {
	c.JSON(http.StatusBadRequest, Response{
		Success:    false,
		Code:       CodeBalanceNotEnough,
		Message:    message,
		RedirectTo: redirectTo,
	})
}

// ServerError 服务内部错误，对外只给通用文案，细节留在服务端日志
func ServerError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Code:    CodeServerError,
		Message: "服务器内部错误，请稍后重试",
	})
}
