package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
	"github.com/koopa0/system-design/restaurant-catalog/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// requestID 沿用上游傳入的請求 ID，沒有就產生一個；寫入 context 供日誌使用
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// logRequests 每個請求記錄一行
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// recoverer 恢復 panic 並回傳 500
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger.ErrorContext(r.Context(), "panic recovered", "error", rec)
				h.respondError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// restaurantExists 在進入核心前確認餐廳存在，不存在回 404 RESTAURANT_NOT_FOUND
//
// 只用 EXISTS 檢查，不會觸發 viewCount 遞增。
func (h *Handler) restaurantExists(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "restaurantId")

		ok, err := h.repo.RestaurantExists(r.Context(), id)
		if err != nil {
			h.respondAppError(w, r, err)
			return
		}
		if !ok {
			h.respondAppError(w, r, apperrors.ErrRestaurantNotFound.WithDetails(id))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter 包裝以捕獲狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
