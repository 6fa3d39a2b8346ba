package txn

import "errors"

var (
	// ErrLabelAlreadyUsed label 已被另一个未中止的事务占用
	ErrLabelAlreadyUsed = errors.New("label already used")
	// ErrDuplicatedRequest 相同 request id 的重复开启请求
	ErrDuplicatedRequest = errors.New("duplicated request")
	// ErrBeginTxn 当前无法开启事务（配额耗尽或状态异常）
	ErrBeginTxn = errors.New("begin transaction failed")
	// ErrAnalysis 请求参数不合法
	ErrAnalysis = errors.New("invalid transaction request")

	ErrTxnNotFound   = errors.New("transaction not found")
	ErrIllegalStatus = errors.New("illegal transaction status transition")
)
