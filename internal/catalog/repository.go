// Package catalog 實現餐廳目錄的資料模型與評分聚合
//
// 系統設計問題：
//
//	只靠 key-value 儲存，如何同時支援「依菜系查詢」「依評分分頁」
//	與「新增評論時即時更新平均分」，且不需要重讀全部評論？
//
// 設計方案：
//
//	✅ 一筆餐廳 = 一個 hash；菜系關係以三個 set 物化（全域、菜系→餐廳、餐廳→菜系）
//	✅ 評分索引 = 一個 zset，score 永遠等於該餐廳的 avgStars（新餐廳為 0）
//	✅ 新增評論時 LPUSH 的回傳長度就是評論數，搭配 HINCRBYFLOAT 的總分算出平均
//	✅ 同一操作內的多個儲存呼叫並行送出、一起等待結果
//
// 已知限制：
//   - 並行送出不是交易：中途失敗不回滾，可能留下部分寫入
//   - 同一餐廳的兩個 AddReview 交錯時，avgStars 與索引可能短暫不一致
//     （可開啟 WithSerializedReviews 在單一行程內序列化）
//   - 刪除評論不重算 totalStars / avgStars / 評分索引
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/koopa0/system-design/restaurant-catalog/internal/keys"
	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
	"github.com/koopa0/system-design/restaurant-catalog/pkg/idgen"
)

// Repository 管理餐廳、菜系與餐廳詳細資料
type Repository struct {
	store     Store
	keys      keys.Namer
	ids       idgen.Generator
	logger    *slog.Logger
	listeners []Listener
}

// NewRepository 建立餐廳儲存庫
func NewRepository(store Store, namer keys.Namer, opts ...Option) *Repository {
	o := buildOptions(opts)
	return &Repository{
		store:     store,
		keys:      namer,
		ids:       o.ids,
		logger:    o.logger,
		listeners: o.listeners,
	}
}

// CreateRestaurant 建立餐廳
//
// 寫入（並行）：
//  1. HSET restaurants:<id>（viewCount=0, totalStars=0, avgStars=0）
//  2. ZADD restaurants_by_rating 0 <id>
//  3. 每個菜系：SADD cuisines、SADD restaurant_cuisines:<id>、SADD cuisine:<name>
//
// 任一寫入失敗即回傳錯誤，已完成的寫入不回滾。
func (r *Repository) CreateRestaurant(ctx context.Context, name, location string, cuisines []string) (*Restaurant, error) {
	id := r.ids.NewID()
	cuisines = uniqueSorted(cuisines)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.store.HSet(gctx, r.keys.Restaurant(id), map[string]any{
			fieldID:         id,
			fieldName:       name,
			fieldLocation:   location,
			fieldViewCount:  0,
			fieldTotalStars: 0,
			fieldAvgStars:   0,
		})
	})
	g.Go(func() error {
		return r.store.ZAdd(gctx, r.keys.RestaurantsByRating(), id, 0)
	})

	if len(cuisines) > 0 {
		g.Go(func() error {
			return r.store.SAdd(gctx, r.keys.Cuisines(), cuisines...)
		})
		g.Go(func() error {
			return r.store.SAdd(gctx, r.keys.RestaurantCuisines(id), cuisines...)
		})
		for _, c := range cuisines {
			c := c
			g.Go(func() error {
				return r.store.SAdd(gctx, r.keys.Cuisine(c), id)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("create restaurant %s: %w", id, err)
	}

	restaurant := &Restaurant{
		ID:       id,
		Name:     name,
		Location: location,
		Cuisines: cuisines,
	}

	r.logger.DebugContext(ctx, "restaurant created", "restaurant_id", id, "cuisines", len(cuisines))
	for _, l := range r.listeners {
		l.RestaurantCreated(ctx, *restaurant)
	}

	return restaurant, nil
}

// GetRestaurant 讀取餐廳並將 viewCount +1
//
// HINCRBY、HGETALL、SMEMBERS 並行送出。回傳的 ViewCount 取 HINCRBY
// 的結果，不受 HGETALL 先後影響。
//
// 餐廳不存在時 HINCRBY 會建立只含 viewCount 的 hash，
// 這裡以缺少 id 欄位判斷不存在，並清掉這個殘留 key。
func (r *Repository) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	key := r.keys.Restaurant(id)

	var (
		views    int64
		fields   map[string]string
		cuisines []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		views, err = r.store.HIncrBy(gctx, key, fieldViewCount, 1)
		return err
	})
	g.Go(func() (err error) {
		fields, err = r.store.HGetAll(gctx, key)
		return err
	})
	g.Go(func() (err error) {
		cuisines, err = r.store.SMembers(gctx, r.keys.RestaurantCuisines(id))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get restaurant %s: %w", id, err)
	}

	if fields[fieldID] == "" {
		if _, err := r.store.Del(ctx, key); err != nil {
			r.logger.WarnContext(ctx, "failed to remove stray view counter", "restaurant_id", id, "error", err)
		}
		return nil, apperrors.ErrNotFound.WithDetails("restaurant " + id)
	}

	restaurant, err := decodeRestaurant(fields)
	if err != nil {
		return nil, fmt.Errorf("get restaurant %s: %w", id, err)
	}
	restaurant.ViewCount = views
	restaurant.Cuisines = uniqueSorted(cuisines)

	return &restaurant, nil
}

// RestaurantExists 檢查餐廳是否存在（供 handler 在呼叫核心前檢查）
func (r *Repository) RestaurantExists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.keys.Restaurant(id))
	if err != nil {
		return false, fmt.Errorf("restaurant exists %s: %w", id, err)
	}
	return ok, nil
}

// ListRestaurantsByRating 依評分遞增分頁列出餐廳
//
// page 從 1 開始：start=(page-1)*pageSize，stop=start+pageSize-1。
// 注意結果是「最低分在前」，呈現順序由呼叫端決定。
// 超出範圍回傳空切片而非錯誤。
func (r *Repository) ListRestaurantsByRating(ctx context.Context, page, pageSize int) ([]Restaurant, error) {
	start, stop, ok := pageRange(page, pageSize)
	if !ok {
		return []Restaurant{}, nil
	}

	ids, err := r.store.ZRange(ctx, r.keys.RestaurantsByRating(), start, stop)
	if err != nil {
		return nil, fmt.Errorf("list restaurants by rating: %w", err)
	}

	return r.fetchRestaurants(ctx, ids)
}

// ListCuisines 列出所有菜系（字母序）
func (r *Repository) ListCuisines(ctx context.Context) ([]string, error) {
	cuisines, err := r.store.SMembers(ctx, r.keys.Cuisines())
	if err != nil {
		return nil, fmt.Errorf("list cuisines: %w", err)
	}
	return uniqueSorted(cuisines), nil
}

// ListRestaurantsByCuisine 列出某菜系下的餐廳（依名稱排序）
func (r *Repository) ListRestaurantsByCuisine(ctx context.Context, cuisine string) ([]Restaurant, error) {
	ids, err := r.store.SMembers(ctx, r.keys.Cuisine(cuisine))
	if err != nil {
		return nil, fmt.Errorf("list restaurants by cuisine %s: %w", cuisine, err)
	}

	restaurants, err := r.fetchRestaurants(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(restaurants, func(i, j int) bool {
		if restaurants[i].Name != restaurants[j].Name {
			return restaurants[i].Name < restaurants[j].Name
		}
		return restaurants[i].ID < restaurants[j].ID
	})
	return restaurants, nil
}

// SetRestaurantDetails 寫入餐廳詳細資料（整份覆蓋）
func (r *Repository) SetRestaurantDetails(ctx context.Context, id string, details Details) error {
	data, err := json.Marshal(details)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode restaurant details")
	}
	if err := r.store.Set(ctx, r.keys.RestaurantDetails(id), string(data)); err != nil {
		return fmt.Errorf("set restaurant details %s: %w", id, err)
	}
	return nil
}

// GetRestaurantDetails 讀取餐廳詳細資料
func (r *Repository) GetRestaurantDetails(ctx context.Context, id string) (*Details, error) {
	data, ok, err := r.store.Get(ctx, r.keys.RestaurantDetails(id))
	if err != nil {
		return nil, fmt.Errorf("get restaurant details %s: %w", id, err)
	}
	if !ok {
		return nil, apperrors.ErrNotFound.WithDetails("restaurant details " + id)
	}

	var details Details
	if err := json.Unmarshal([]byte(data), &details); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode restaurant details")
	}
	return &details, nil
}

// fetchRestaurants 並行讀取多筆餐廳 hash，保持 ids 的順序；不存在的略過
func (r *Repository) fetchRestaurants(ctx context.Context, ids []string) ([]Restaurant, error) {
	hashes := make([]map[string]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() (err error) {
			hashes[i], err = r.store.HGetAll(gctx, r.keys.Restaurant(id))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch restaurants: %w", err)
	}

	restaurants := make([]Restaurant, 0, len(ids))
	for i, h := range hashes {
		if h[fieldID] == "" {
			r.logger.WarnContext(ctx, "indexed restaurant has no record", "restaurant_id", ids[i])
			continue
		}
		restaurant, err := decodeRestaurant(h)
		if err != nil {
			return nil, fmt.Errorf("fetch restaurant %s: %w", ids[i], err)
		}
		restaurants = append(restaurants, restaurant)
	}
	return restaurants, nil
}

// uniqueSorted 去重並排序；nil 輸入回傳 nil
func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
