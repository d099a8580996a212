// Package errors 提供目錄服務的錯誤分類
//
// 錯誤碼與 HTTP 狀態的對應由 handler 層負責：
//
//	NOT_FOUND / RESTAURANT_NOT_FOUND → 404
//	INVALID_INPUT                    → 400
//	STORE_UNAVAILABLE                → 503
//	其他                              → 500
//
// 「找不到」不是故障，「儲存不可用」才是；兩者必須能被區分，
// 否則基礎設施故障會被誤當成空結果回傳給使用者。
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeNotFound 實體不存在
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeRestaurantNotFound 被引用的餐廳不存在
	ErrCodeRestaurantNotFound = "RESTAURANT_NOT_FOUND"
	// ErrCodeStoreUnavailable 底層儲存呼叫無法完成
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	// ErrCodeInvalidInput 輸入驗證失敗
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼比對，讓 errors.Is(err, ErrNotFound) 對包裝後的錯誤也成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 回傳附帶詳細資訊的副本，不修改預定義的哨兵錯誤
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrNotFound 實體不存在
	ErrNotFound = New(ErrCodeNotFound, "entity not found")

	// ErrRestaurantNotFound 餐廳不存在
	ErrRestaurantNotFound = New(ErrCodeRestaurantNotFound, "restaurant not found")

	// ErrStoreUnavailable 儲存不可用
	ErrStoreUnavailable = New(ErrCodeStoreUnavailable, "store unavailable")

	// ErrValidation 輸入驗證失敗
	ErrValidation = New(ErrCodeInvalidInput, "validation failed")
)

// Unavailable 將底層儲存錯誤包裝為 STORE_UNAVAILABLE
func Unavailable(op string, err error) *AppError {
	return Wrap(err, ErrCodeStoreUnavailable, op)
}

// Invalid 建立帶欄位說明的驗證錯誤
func Invalid(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// CodeOf 回傳錯誤鏈中第一個 AppError 的錯誤碼，沒有則為 INTERNAL_ERROR
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsNotFound 檢查是否為未找到錯誤（包含餐廳不存在）
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeNotFound || code == ErrCodeRestaurantNotFound
}

// IsStoreUnavailable 檢查是否為儲存不可用錯誤
func IsStoreUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeStoreUnavailable
}

// IsInvalidInput 檢查是否為驗證錯誤
func IsInvalidInput(err error) bool {
	return CodeOf(err) == ErrCodeInvalidInput
}
