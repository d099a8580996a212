package main

import (
	"context"
	"log/slog"
	"sync"
)

// drainer 收集背景元件的關閉步驟，run 時以登記的相反順序執行一次
//
// 啟動順序是 歸檔 → 事件 → HTTP，關閉則先停 HTTP 再排空事件與歸檔；
// 任何一步失敗只記錄日誌，後面的步驟照樣執行。
type drainer struct {
	log   *slog.Logger
	once  sync.Once
	steps []drainStep
}

type drainStep struct {
	name string
	fn   func(ctx context.Context) error
}

func newDrainer(log *slog.Logger) *drainer {
	return &drainer{log: log}
}

// add 登記一個關閉步驟
func (d *drainer) add(name string, fn func(ctx context.Context) error) {
	d.steps = append(d.steps, drainStep{name: name, fn: fn})
}

// run 執行所有步驟；重複呼叫不會再執行
func (d *drainer) run(ctx context.Context) {
	d.once.Do(func() {
		for i := len(d.steps) - 1; i >= 0; i-- {
			step := d.steps[i]
			if err := step.fn(ctx); err != nil {
				d.log.Error("failed to drain", "component", step.name, "error", err)
				continue
			}
			d.log.Debug("drained", "component", step.name)
		}
	})
}
