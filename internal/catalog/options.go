package catalog

import (
	"log/slog"
	"time"

	"github.com/koopa0/system-design/restaurant-catalog/pkg/idgen"
)

type options struct {
	ids       idgen.Generator
	logger    *slog.Logger
	now       func() time.Time
	listeners []Listener
	serialize bool
}

// Option 調整 Repository / Aggregator 的依賴
type Option func(*options)

// WithIDGenerator 指定 ID 產生器（預設 UUID）
func WithIDGenerator(g idgen.Generator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger 指定日誌記錄器
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock 指定時間來源（評論時間戳）
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithListeners 註冊寫入後的通知對象
func WithListeners(ls ...Listener) Option {
	return func(o *options) {
		for _, l := range ls {
			if l != nil {
				o.listeners = append(o.listeners, l)
			}
		}
	}
}

// WithSerializedReviews 以每餐廳一把鎖序列化評分更新
//
// 只在單一行程內有效；多實例部署時兩個 AddReview 仍可能交錯。
func WithSerializedReviews(enabled bool) Option {
	return func(o *options) { o.serialize = enabled }
}

func buildOptions(opts []Option) options {
	o := options{
		ids:    idgen.UUID{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
