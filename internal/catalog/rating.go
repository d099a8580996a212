package catalog

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

// averageStars 計算 total/count 並四捨五入到小數一位
//
// 用 decimal 而非 math.Round(x*10)/10：後者在 3.25、0.15 這類值上
// 會因二進位誤差捨錯方向。count 為 0 時回傳 0。
func averageStars(total float64, count int64) float64 {
	if count <= 0 {
		return 0
	}
	avg := decimal.NewFromFloat(total).
		Div(decimal.NewFromInt(count)).
		Round(1)
	f, _ := avg.Float64()
	return f
}

// pageRange 把 1 起算的頁碼換成 0 起算的名次範圍 [start, stop]（含兩端）
//
// ok 為 false 表示範圍為空；不能直接把 stop=-1 交給 Redis，
// 那在 ZRANGE / LRANGE 代表「到最後一個」。負的 start 同理會從尾端算起，
// 所以 stop 超出 int64 的頁碼也視為空範圍。
func pageRange(page, pageSize int) (start, stop int64, ok bool) {
	if pageSize < 1 {
		return 0, 0, false
	}
	if page < 1 {
		page = 1
	}
	size := int64(pageSize)
	if int64(page-1) > (math.MaxInt64-size)/size {
		return 0, 0, false
	}
	start = int64(page-1) * size
	stop = start + size - 1
	return start, stop, true
}

// keyedMutex 每個 key 一把鎖，沒人持有時回收
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock 鎖住 key，回傳解鎖函數
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size 目前持有或等待中的 key 數量（測試用）
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
