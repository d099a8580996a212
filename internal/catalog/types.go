package catalog

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
)

// Restaurant 餐廳記錄
//
// ViewCount 每次查詢詳情時 +1；TotalStars / AvgStars 只由 Aggregator 修改。
type Restaurant struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Location   string   `json:"location"`
	Cuisines   []string `json:"cuisines,omitempty"`
	ViewCount  int64    `json:"viewCount"`
	TotalStars float64  `json:"totalStars"`
	AvgStars   float64  `json:"avgStars"`
}

// Review 評論記錄，建立後除刪除外不可變
type Review struct {
	ID           string  `json:"id"`
	RestaurantID string  `json:"restaurantId"`
	Rating       float64 `json:"rating"`
	Text         string  `json:"review"`
	Timestamp    int64   `json:"timestamp"` // epoch 毫秒
}

// Details 餐廳的延伸資料（連結與聯絡方式）
type Details struct {
	Links   []Link  `json:"links"`
	Contact Contact `json:"contact"`
}

// Link 外部連結
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Contact 聯絡方式
type Contact struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Store 目錄核心需要的儲存能力
//
// 由 internal/store.Redis 實作。所有錯誤原樣往上傳，核心不重試。
type Store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]any) error
	HIncrBy(ctx context.Context, key, field string, n int64) (int64, error)
	HIncrByFloat(ctx context.Context, key, field string, n float64) (float64, error)
	Del(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	LPush(ctx context.Context, key, value string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key, value string) (int64, error)

	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Listener 在寫入成功後收到通知（歸檔、事件發布）
//
// 同步呼叫、依註冊順序執行，不可阻塞；其結果不影響核心操作的回傳值。
type Listener interface {
	RestaurantCreated(ctx context.Context, r Restaurant)
	ReviewAdded(ctx context.Context, r Review)
	ReviewDeleted(ctx context.Context, restaurantID, reviewID string)
}

// hash 欄位名稱
const (
	fieldID         = "id"
	fieldName       = "name"
	fieldLocation   = "location"
	fieldViewCount  = "viewCount"
	fieldTotalStars = "totalStars"
	fieldAvgStars   = "avgStars"

	fieldRestaurantID = "restaurantId"
	fieldRating       = "rating"
	fieldReview       = "review"
	fieldTimestamp    = "timestamp"
)

func (r Review) fields() map[string]any {
	return map[string]any{
		fieldID:           r.ID,
		fieldRestaurantID: r.RestaurantID,
		fieldRating:       r.Rating,
		fieldReview:       r.Text,
		fieldTimestamp:    r.Timestamp,
	}
}

// decodeRestaurant 將 hash 轉為 Restaurant；缺少的數值欄位視為 0
func decodeRestaurant(h map[string]string) (Restaurant, error) {
	r := Restaurant{
		ID:       h[fieldID],
		Name:     h[fieldName],
		Location: h[fieldLocation],
	}

	var err error
	if r.ViewCount, err = parseInt(h, fieldViewCount); err != nil {
		return Restaurant{}, err
	}
	if r.TotalStars, err = parseFloat(h, fieldTotalStars); err != nil {
		return Restaurant{}, err
	}
	if r.AvgStars, err = parseFloat(h, fieldAvgStars); err != nil {
		return Restaurant{}, err
	}
	return r, nil
}

func decodeReview(h map[string]string) (Review, error) {
	r := Review{
		ID:           h[fieldID],
		RestaurantID: h[fieldRestaurantID],
		Text:         h[fieldReview],
	}

	var err error
	if r.Rating, err = parseFloat(h, fieldRating); err != nil {
		return Review{}, err
	}
	if r.Timestamp, err = parseInt(h, fieldTimestamp); err != nil {
		return Review{}, err
	}
	return r, nil
}

func parseInt(h map[string]string, field string) (int64, error) {
	v, ok := h[field]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, corrupt(field, v, err)
	}
	return n, nil
}

func parseFloat(h map[string]string, field string) (float64, error) {
	v, ok := h[field]
	if !ok || v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, corrupt(field, v, err)
	}
	return f, nil
}

func corrupt(field, value string, err error) error {
	return apperrors.Wrap(err, apperrors.ErrCodeInternal,
		fmt.Sprintf("corrupt field %s=%q", field, value))
}
