// Package idgen 產生餐廳與評論的不透明 ID
//
// 使用 UUIDv4：各實例獨立產生、無需協調，碰撞機率可忽略。
// ID 只作為 key 的一部分，不需要可排序（評論順序由 list 維護）。
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator 產生新的 ID
type Generator interface {
	NewID() string
}

// UUID 以隨機 UUID 作為 ID
type UUID struct{}

// NewID 實現 Generator
func (UUID) NewID() string {
	return uuid.NewString()
}

// Sequence 產生 "<prefix><n>" 形式的遞增 ID，讓測試可以預先知道 ID
type Sequence struct {
	Prefix string
	n      atomic.Int64
}

// NewID 實現 Generator
func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s%d", s.Prefix, s.n.Add(1))
}
