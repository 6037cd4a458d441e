package errors

import (
	"errors"
	"futureflow/pkg/errors/ecode"
)

// Error 带错误码的接口错误
type Error struct {
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func WithCode(code int, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap 保留原始错误，对外只返回 msg
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, cause: err}
}

// DecodeErr 解析出错误码和提示信息，nil 为成功
func DecodeErr(err error) (int, string) {
	if err == nil {
		return ecode.Success, "success"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return ecode.Unknown, err.Error()
}
