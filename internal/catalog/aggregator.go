package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koopa0/system-design/restaurant-catalog/internal/keys"
	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
	"github.com/koopa0/system-design/restaurant-catalog/pkg/idgen"
)

// Aggregator 管理評論與餐廳的平均評分
//
// 狀態：NoReviews → HasReviews（單向）。刪除到零則評論也不會回到 NoReviews，
// avgStars 保持最後一次計算的值。
type Aggregator struct {
	store     Store
	keys      keys.Namer
	ids       idgen.Generator
	logger    *slog.Logger
	now       func() time.Time
	listeners []Listener
	locks     *keyedMutex // nil 表示不序列化
}

// NewAggregator 建立評論聚合器
func NewAggregator(store Store, namer keys.Namer, opts ...Option) *Aggregator {
	o := buildOptions(opts)
	a := &Aggregator{
		store:     store,
		keys:      namer,
		ids:       o.ids,
		logger:    o.logger,
		now:       o.now,
		listeners: o.listeners,
	}
	if o.serialize {
		a.locks = newKeyedMutex()
	}
	return a
}

// AddReview 新增評論並增量更新平均分
//
// 第一階段（並行）：
//
//	LPUSH reviews:<rid> <id>                → 回傳新長度 = reviewCount
//	HSET review_details:<id> ...
//	HINCRBYFLOAT restaurants:<rid> totalStars <rating> → 回傳新總分
//
// 第二階段（並行）：
//
//	HSET restaurants:<rid> avgStars <avg>
//	ZADD restaurants_by_rating <avg> <rid>
//
// reviewCount 必須取本次 LPUSH 的回傳值，不另外維護計數器，
// 否則並發推入時計數會漂移。餐廳是否存在由呼叫端事先檢查。
func (a *Aggregator) AddReview(ctx context.Context, restaurantID string, rating float64, text string) (*Review, error) {
	if a.locks != nil {
		unlock := a.locks.Lock(restaurantID)
		defer unlock()
	}

	review := Review{
		ID:           a.ids.NewID(),
		RestaurantID: restaurantID,
		Rating:       rating,
		Text:         text,
		Timestamp:    a.now().UnixMilli(),
	}
	restaurantKey := a.keys.Restaurant(restaurantID)

	var (
		reviewCount int64
		totalStars  float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		reviewCount, err = a.store.LPush(gctx, a.keys.Reviews(restaurantID), review.ID)
		return err
	})
	g.Go(func() error {
		return a.store.HSet(gctx, a.keys.ReviewDetails(review.ID), review.fields())
	})
	g.Go(func() (err error) {
		totalStars, err = a.store.HIncrByFloat(gctx, restaurantKey, fieldTotalStars, rating)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("add review to %s: %w", restaurantID, err)
	}

	avg := averageStars(totalStars, reviewCount)

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.store.HSet(gctx, restaurantKey, map[string]any{fieldAvgStars: avg})
	})
	g.Go(func() error {
		return a.store.ZAdd(gctx, a.keys.RestaurantsByRating(), restaurantID, avg)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("update rating of %s: %w", restaurantID, err)
	}

	a.logger.DebugContext(ctx, "review added",
		"restaurant_id", restaurantID,
		"review_id", review.ID,
		"review_count", reviewCount,
		"avg_stars", avg)

	for _, l := range a.listeners {
		l.ReviewAdded(ctx, review)
	}

	return &review, nil
}

// ListReviews 分頁列出評論（新到舊），頁碼規則同 ListRestaurantsByRating
func (a *Aggregator) ListReviews(ctx context.Context, restaurantID string, page, pageSize int) ([]Review, error) {
	start, stop, ok := pageRange(page, pageSize)
	if !ok {
		return []Review{}, nil
	}

	ids, err := a.store.LRange(ctx, a.keys.Reviews(restaurantID), start, stop)
	if err != nil {
		return nil, fmt.Errorf("list reviews of %s: %w", restaurantID, err)
	}

	hashes := make([]map[string]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() (err error) {
			hashes[i], err = a.store.HGetAll(gctx, a.keys.ReviewDetails(id))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list reviews of %s: %w", restaurantID, err)
	}

	reviews := make([]Review, 0, len(ids))
	for i, h := range hashes {
		if h[fieldID] == "" {
			a.logger.WarnContext(ctx, "listed review has no record", "review_id", ids[i])
			continue
		}
		review, err := decodeReview(h)
		if err != nil {
			return nil, fmt.Errorf("decode review %s: %w", ids[i], err)
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// DeleteReview 移除評論
//
// LREM 與 DEL 互不依賴、都會執行；兩者都沒有改動任何資料才回傳 ErrNotFound。
// 不重算 totalStars / avgStars / 評分索引。
func (a *Aggregator) DeleteReview(ctx context.Context, restaurantID, reviewID string) error {
	var removed, deleted int64

	// 不用 WithContext：一邊失敗不能取消另一邊
	var g errgroup.Group
	g.Go(func() (err error) {
		removed, err = a.store.LRem(ctx, a.keys.Reviews(restaurantID), reviewID)
		return err
	})
	g.Go(func() (err error) {
		deleted, err = a.store.Del(ctx, a.keys.ReviewDetails(reviewID))
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("delete review %s: %w", reviewID, err)
	}

	if removed == 0 && deleted == 0 {
		return apperrors.ErrNotFound.WithDetails("review " + reviewID)
	}

	for _, l := range a.listeners {
		l.ReviewDeleted(ctx, restaurantID, reviewID)
	}
	return nil
}
