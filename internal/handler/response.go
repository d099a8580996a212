package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
)

// envelope 所有回應共用的外層結構
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	h.writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.writeEnvelope(w, status, envelope{Success: false, Error: message, Code: code})
}

func (h *Handler) writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err, "status", status)
	}
}

// respondAppError 依錯誤碼對應 HTTP 狀態
//
//	NOT_FOUND / RESTAURANT_NOT_FOUND → 404
//	INVALID_INPUT                    → 400
//	STORE_UNAVAILABLE                → 503（不能當成空結果）
//	其他                             → 500
func (h *Handler) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)

	var status int
	switch code {
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeRestaurantNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case apperrors.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
		h.logger.ErrorContext(r.Context(), "store unavailable", "path", r.URL.Path, "error", err)
	default:
		code = apperrors.ErrCodeInternal
		status = http.StatusInternalServerError
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	h.respondError(w, status, code, publicMessage(err, code))
}

// publicMessage 對外訊息：驗證與不存在錯誤帶上說明，其餘只給通用文字
func publicMessage(err error, code string) string {
	switch code {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeNotFound, apperrors.ErrCodeRestaurantNotFound:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.Details != "" {
				return appErr.Message + ": " + appErr.Details
			}
			return appErr.Message
		}
	case apperrors.ErrCodeStoreUnavailable:
		return "store unavailable"
	}
	return "internal server error"
}
