package ecode

// 接口错误码，0 表示成功
const (
	Success     = 0
	Unknown     = 10000
	ValidateErr = 10001
	NotFoundErr = 10002
	ConflictErr = 10003 // 状态不允许该操作
	Unavailable = 10004 // 交易引擎未运行或未持有租约
)
