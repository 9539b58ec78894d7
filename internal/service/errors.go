package service

import "errors"

// 遗产访问子系统的业务错误分类。
// 全部以带类型的返回值交给调用方，不跨 API 边界抛出；
// HTTP 层负责映射为面向客户端的消息。
var (
	// ErrSelfDesignation 不能将自己的账户邮箱指定为受益人
	ErrSelfDesignation = errors.New("cannot designate own account as beneficiary")
	// ErrDuplicateBeneficiary 同一邮箱已存在未撤销的受益人
	ErrDuplicateBeneficiary = errors.New("beneficiary with this email already exists")
	// ErrBeneficiaryNotFound 受益人不存在
	ErrBeneficiaryNotFound = errors.New("beneficiary not found")
	// ErrInvalidState 当前状态不允许此操作
	ErrInvalidState = errors.New("operation not valid for current status")
	// ErrTokenExpired 验证令牌已过期
	ErrTokenExpired = errors.New("verification token expired")
	// ErrTokenNotFound 令牌不存在（覆盖"从未存在/已验证/已撤销"，不区分泄露原因）
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidTrigger 触发器配置无效
	ErrInvalidTrigger = errors.New("invalid trigger configuration")
)
