// Package handler 是目錄服務的 HTTP 層
//
// 負責解析與驗證請求、在呼叫核心前確認餐廳存在，
// 並把核心的錯誤分類對應到 HTTP 狀態碼。核心只會收到已驗證的參數。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
)

// Pinger 就緒檢查用
type Pinger interface {
	Ping(ctx context.Context) error
	ConsecutiveFailures() int32
}

// Limits 請求參數的邊界
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	MinRating       float64
	MaxRating       float64
	RequestTimeout  time.Duration // 0 表示不設
}

// Handler HTTP 請求處理器
type Handler struct {
	repo   *catalog.Repository
	agg    *catalog.Aggregator
	store  Pinger
	limits Limits
	logger *slog.Logger
}

// New 建立 HTTP 處理器
func New(repo *catalog.Repository, agg *catalog.Aggregator, store Pinger, limits Limits, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		repo:   repo,
		agg:    agg,
		store:  store,
		limits: limits,
		logger: logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// 中間件鏈：請求 ID → 真實 IP → 日誌 → 恢復 → 業務處理
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(h.recoverer)
	if h.limits.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.limits.RequestTimeout))
	}

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)

	r.Route("/restaurants", func(r chi.Router) {
		r.Post("/", h.createRestaurant)
		r.Get("/", h.listRestaurants)

		r.Route("/{restaurantId}", func(r chi.Router) {
			r.Use(h.restaurantExists)

			r.Get("/", h.getRestaurant)
			r.Post("/reviews", h.addReview)
			r.Get("/reviews", h.listReviews)
			r.Delete("/reviews/{reviewId}", h.deleteReview)
			r.Post("/details", h.setDetails)
			r.Get("/details", h.getDetails)
		})
	})

	r.Get("/cuisines", h.listCuisines)
	r.Get("/cuisines/{cuisine}", h.listByCuisine)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		h.respondError(w, http.StatusNotFound, apperrors.ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		h.respondError(w, http.StatusMethodNotAllowed, apperrors.ErrCodeInvalidInput, "method not allowed")
	})

	return r
}

func (h *Handler) createRestaurant(w http.ResponseWriter, r *http.Request) {
	var req createRestaurantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondAppError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.respondAppError(w, r, err)
		return
	}

	restaurant, err := h.repo.CreateRestaurant(r.Context(), req.Name, req.Location, req.Cuisines)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, restaurant)
}

// listRestaurants 依評分遞增分頁（最低分在前）
func (h *Handler) listRestaurants(w http.ResponseWriter, r *http.Request) {
	page, limit, err := h.pagination(r)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}

	restaurants, err := h.repo.ListRestaurantsByRating(r.Context(), page, limit)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, restaurants)
}

func (h *Handler) getRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurant, err := h.repo.GetRestaurant(r.Context(), chi.URLParam(r, "restaurantId"))
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, restaurant)
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	var req addReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondAppError(w, r, err)
		return
	}
	if err := req.validate(h.limits.MinRating, h.limits.MaxRating); err != nil {
		h.respondAppError(w, r, err)
		return
	}

	review, err := h.agg.AddReview(r.Context(), chi.URLParam(r, "restaurantId"), *req.Rating, req.Review)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, review)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	page, limit, err := h.pagination(r)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}

	reviews, err := h.agg.ListReviews(r.Context(), chi.URLParam(r, "restaurantId"), page, limit)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, reviews)
}

func (h *Handler) deleteReview(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantId")
	reviewID := chi.URLParam(r, "reviewId")

	if err := h.agg.DeleteReview(r.Context(), restaurantID, reviewID); err != nil {
		h.respondAppError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"id": reviewID})
}

func (h *Handler) setDetails(w http.ResponseWriter, r *http.Request) {
	var details catalog.Details
	if err := decodeJSON(r, &details); err != nil {
		h.respondAppError(w, r, err)
		return
	}
	if err := validateDetails(details); err != nil {
		h.respondAppError(w, r, err)
		return
	}

	if err := h.repo.SetRestaurantDetails(r.Context(), chi.URLParam(r, "restaurantId"), details); err != nil {
		h.respondAppError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, details)
}

func (h *Handler) getDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.repo.GetRestaurantDetails(r.Context(), chi.URLParam(r, "restaurantId"))
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, details)
}

func (h *Handler) listCuisines(w http.ResponseWriter, r *http.Request) {
	cuisines, err := h.repo.ListCuisines(r.Context())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	if cuisines == nil {
		cuisines = []string{}
	}
	h.respondJSON(w, http.StatusOK, cuisines)
}

func (h *Handler) listByCuisine(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.repo.ListRestaurantsByCuisine(r.Context(), chi.URLParam(r, "cuisine"))
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, restaurants)
}

// health 存活檢查
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready 就緒檢查：Redis 可用才算就緒
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := h.store.Ping(ctx)
	status := readiness{Status: "ready", ConsecutiveFailures: h.store.ConsecutiveFailures()}
	if err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed",
			"consecutive_failures", status.ConsecutiveFailures, "error", err)
		status.Status = "unavailable"
		h.writeEnvelope(w, http.StatusServiceUnavailable, envelope{
			Data:  status,
			Error: "redis not ready",
			Code:  apperrors.ErrCodeStoreUnavailable,
		})
		return
	}
	h.respondJSON(w, http.StatusOK, status)
}

// readiness /ready 的回應內容；失敗次數包含一般請求遇到的 Redis 錯誤
type readiness struct {
	Status              string `json:"status"`
	ConsecutiveFailures int32  `json:"consecutive_failures"`
}
