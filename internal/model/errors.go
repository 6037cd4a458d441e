package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition 非法的状态迁移，属于调用方的编程错误
	ErrInvalidTransition = errors.New("invalid position state transition")
	// ErrOrderRejected 市价和限价都被拒绝
	ErrOrderRejected = errors.New("order rejected")
	// ErrInvalidSize 计算出的开仓数量不大于0
	ErrInvalidSize = errors.New("invalid open size")
	// ErrPersistence 持久化失败
	ErrPersistence = errors.New("persistence failure")
	// ErrAmbiguousTracking 重启后当前合约与下一合约相同
	ErrAmbiguousTracking = errors.New("ambiguous tracking state")
)

// FatalError 需要停止该主连合约处理并通知人工介入的错误
type FatalError struct {
	Scope string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal [%s]: %v", e.Scope, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func Fatal(scope string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Scope: scope, Err: err}
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
