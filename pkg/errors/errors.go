// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 认证授权错误 (2xxx)
	CodeTokenExpired     ErrorCode = "2001"
	CodeTokenInvalid     ErrorCode = "2002"
	CodeTokenMissing     ErrorCode = "2003"
	CodePermissionDenied ErrorCode = "2004"

	// 资源错误 (3xxx)
	CodeChapterNotFound ErrorCode = "3001"
	CodeTestNotFound    ErrorCode = "3002"
	CodeAccountNotFound ErrorCode = "3003"

	// 业务错误 (4xxx)
	CodeInsufficientCredits ErrorCode = "4001"
	CodeAlreadySubmitted    ErrorCode = "4002"
	CodeNotEnrolled         ErrorCode = "4003"

	// 外部服务错误 (5xxx)
	CodeStorageUnavailable      ErrorCode = "5001"
	CodeUpstreamUnavailable     ErrorCode = "5002"
	CodeUpstreamInvalidResponse ErrorCode = "5003"
	CodeConfiguration           ErrorCode = "5004"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，使 errors.Is(err, ErrInsufficientCredits) 对派生错误同样成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 返回带详细信息的副本（预定义错误是共享变量，不能原地修改）
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 返回带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf 创建带格式化消息的应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid, CodeTokenMissing:
		return http.StatusUnauthorized
	case CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case CodeForbidden, CodePermissionDenied, CodeNotEnrolled:
		return http.StatusForbidden
	case CodeNotFound, CodeChapterNotFound, CodeTestNotFound, CodeAccountNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadySubmitted:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUpstreamUnavailable, CodeUpstreamInvalidResponse:
		return http.StatusBadGateway
	case CodeServiceUnavailable, CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing = New(CodeTokenMissing, "token missing")

	ErrChapterNotFound = New(CodeChapterNotFound, "chapter not found")
	ErrTestNotFound    = New(CodeTestNotFound, "test not found")
	ErrAccountNotFound = New(CodeAccountNotFound, "account not found")

	ErrInsufficientCredits = New(CodeInsufficientCredits, "insufficient credits")
	ErrAlreadySubmitted    = New(CodeAlreadySubmitted, "test already submitted")
	ErrNotEnrolled         = New(CodeNotEnrolled, "not enrolled in this course")

	ErrStorageUnavailable      = New(CodeStorageUnavailable, "storage unavailable")
	ErrUpstreamUnavailable     = New(CodeUpstreamUnavailable, "language model unavailable")
	ErrUpstreamInvalidResponse = New(CodeUpstreamInvalidResponse, "language model returned an invalid response")
	ErrConfiguration           = New(CodeConfiguration, "configuration error")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 判断错误链中是否包含指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
