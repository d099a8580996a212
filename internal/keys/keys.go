// Package keys 產生 Redis key 名稱
//
// 命名規則：<prefix>:<kind>[:<id>]
//
//	bites:restaurants:<id>             Hash   餐廳主記錄
//	bites:cuisines                     Set    所有菜系名稱
//	bites:cuisine:<name>               Set    該菜系的餐廳 ID
//	bites:restaurant_cuisines:<id>     Set    該餐廳的菜系名稱
//	bites:restaurants_by_rating        ZSet   餐廳 ID → 平均評分
//	bites:reviews:<restaurantID>       List   評論 ID（新到舊）
//	bites:review_details:<reviewID>    Hash   評論記錄
//	bites:restaurant_details:<id>      String 餐廳詳細資料（JSON）
//
// kind 永遠是第二段且彼此不同，因此不同種類的 key 不會碰撞，
// 即使 id 本身含有冒號。
package keys

import "strings"

// DefaultPrefix 預設 key 前綴
const DefaultPrefix = "bites"

// Namer 依前綴產生 key，無狀態、無副作用
type Namer struct {
	prefix string
}

// New 建立 Namer；prefix 為空時使用 DefaultPrefix
func New(prefix string) Namer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Namer{prefix: prefix}
}

// Prefix 目前使用的前綴
func (n Namer) Prefix() string {
	if n.prefix == "" {
		return DefaultPrefix
	}
	return n.prefix
}

func (n Namer) name(parts ...string) string {
	return n.Prefix() + ":" + strings.Join(parts, ":")
}

// Restaurant 餐廳主記錄
func (n Namer) Restaurant(id string) string { return n.name("restaurants", id) }

// Cuisines 全域菜系集合
func (n Namer) Cuisines() string { return n.name("cuisines") }

// Cuisine 某菜系下的餐廳 ID 集合
func (n Namer) Cuisine(name string) string { return n.name("cuisine", name) }

// RestaurantCuisines 某餐廳的菜系集合
func (n Namer) RestaurantCuisines(id string) string { return n.name("restaurant_cuisines", id) }

// RestaurantsByRating 評分排序索引
func (n Namer) RestaurantsByRating() string { return n.name("restaurants_by_rating") }

// Reviews 某餐廳的評論 ID 列表
func (n Namer) Reviews(restaurantID string) string { return n.name("reviews", restaurantID) }

// ReviewDetails 評論記錄
func (n Namer) ReviewDetails(reviewID string) string { return n.name("review_details", reviewID) }

// RestaurantDetails 餐廳詳細資料
func (n Namer) RestaurantDetails(id string) string { return n.name("restaurant_details", id) }
