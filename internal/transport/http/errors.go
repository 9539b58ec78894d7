package httptransport

import (
	"heritage/backend/internal/service"
	"heritage/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	service.ErrSelfDesignation:      "不能将自己的账户邮箱指定为受益人",
	service.ErrDuplicateBeneficiary: "该邮箱已存在未撤销的受益人",
	service.ErrBeneficiaryNotFound:  "受益人不存在",
	service.ErrInvalidState:         "受益人当前状态不允许此操作",
	service.ErrInvalidTrigger:       "触发器配置无效",

	storage.ErrConfigNotFound: "遗产访问配置不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"

	// 认证相关
	MsgAuthRequired = "需要登录认证"

	// 公开端点：对外不区分"不存在/已过期/已使用"，防止令牌探测
	MsgLinkInvalidOrExpired = "链接无效或已过期"
	MsgTokenExpired         = "验证链接已过期，请联系所有者重新发送"

	// 业务操作
	MsgConfigGetFailed       = "获取遗产访问配置失败"
	MsgTriggerUpdateFailed   = "更新触发器配置失败"
	MsgActivityRecordFailed  = "记录账户活动失败"
	MsgBeneficiaryAddFailed  = "添加受益人失败"
	MsgBeneficiaryListFailed = "获取受益人列表失败"
	MsgNotifyFailed          = "发送通知失败"
	MsgUnlockFailed          = "触发解锁失败"
	MsgTokenListFailed       = "获取解锁令牌列表失败"
	MsgSweepFailed           = "执行扫描任务失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
