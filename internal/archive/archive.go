// Package archive 將餐廳與評論非同步寫入 PostgreSQL
//
// Redis 是唯一的真實來源；這裡保存一份可查詢的歷史（含已刪除評論），
// 供報表與重建使用。
//
// 寫入策略：
//
//	核心操作成功 → Listener 回呼 → 放入緩衝通道（不阻塞）
//	背景 worker：累積到 BatchSize 或每隔 FlushInterval 以一個 pgx.Batch 寫入
//	緩衝區滿 → 呼叫端阻塞等待空位（背壓），最多等 WriteTimeout，逾時丟棄並記錄
//
// 所有項目都經過同一個通道與同一個 worker，寫入順序與送入順序一致；
// 刪除標記不會比對應的新增先到 PostgreSQL。
//
// 歸檔失敗只記錄日誌，不影響原本的核心操作。
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
)

// Kind 歸檔項目類型
type Kind string

const (
	KindRestaurantCreated Kind = "restaurant.created"
	KindReviewAdded       Kind = "review.added"
	KindReviewDeleted     Kind = "review.deleted"
)

// Entry 一筆待寫入的歸檔項目
//
// 依 Kind 只會填入 Restaurant 或 Review 其中之一；刪除只帶 ID。
type Entry struct {
	Kind         Kind
	Restaurant   catalog.Restaurant
	Review       catalog.Review
	RestaurantID string
	ReviewID     string
	At           time.Time
}

// Sink 批次寫入目的地
type Sink interface {
	Write(ctx context.Context, entries []Entry) error
}

// Options 批次參數
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration // 單次批次寫入與緩衝區滿時等待的上限，預設 5s
}

// ErrClosed Shutdown 之後仍有項目送入
var ErrClosed = errors.New("archive: closed")

// Archiver 實作 catalog.Listener，批次轉寫到 Sink
type Archiver struct {
	sink   Sink
	logger *slog.Logger
	opts   Options
	now    func() time.Time

	mu     sync.RWMutex // 保護 closed 與 buffer 的關閉
	closed bool
	buffer chan Entry
	wg     sync.WaitGroup
}

var _ catalog.Listener = (*Archiver)(nil)

// New 建立歸檔器並啟動背景 worker
func New(sink Sink, opts Options, logger *slog.Logger) *Archiver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Archiver{
		sink:   sink,
		logger: logger,
		opts:   opts,
		now:    time.Now,
		// 2 倍批量大小：容許突發流量
		buffer: make(chan Entry, opts.BatchSize*2),
	}

	a.wg.Add(1)
	go a.worker()

	return a
}

// RestaurantCreated 歸檔新餐廳
func (a *Archiver) RestaurantCreated(ctx context.Context, r catalog.Restaurant) {
	a.enqueue(ctx, Entry{Kind: KindRestaurantCreated, Restaurant: r, RestaurantID: r.ID, At: a.now()})
}

// ReviewAdded 歸檔新評論
func (a *Archiver) ReviewAdded(ctx context.Context, r catalog.Review) {
	a.enqueue(ctx, Entry{
		Kind:         KindReviewAdded,
		Review:       r,
		RestaurantID: r.RestaurantID,
		ReviewID:     r.ID,
		At:           time.UnixMilli(r.Timestamp),
	})
}

// ReviewDeleted 標記評論已刪除（歸檔保留原始資料）
func (a *Archiver) ReviewDeleted(ctx context.Context, restaurantID, reviewID string) {
	a.enqueue(ctx, Entry{Kind: KindReviewDeleted, RestaurantID: restaurantID, ReviewID: reviewID, At: a.now()})
}

func (a *Archiver) enqueue(ctx context.Context, e Entry) {
	// 持有讀鎖直到送出或放棄，Shutdown 不會在送出途中關閉通道
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.logger.WarnContext(ctx, "archive entry dropped after shutdown", "kind", e.Kind, "id", e.id())
		return
	}

	select {
	case a.buffer <- e:
		return
	default:
	}

	// 緩衝區滿：排隊等待 worker 騰出空位，呼叫端取消不影響等待
	timer := time.NewTimer(a.opts.WriteTimeout)
	defer timer.Stop()

	select {
	case a.buffer <- e:
	case <-timer.C:
		a.logger.ErrorContext(ctx, "archive buffer full, entry dropped",
			"kind", e.Kind, "id", e.id(), "waited", a.opts.WriteTimeout)
	}
}

// worker 依批量大小或定時器刷新
func (a *Archiver) worker() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, a.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.opts.WriteTimeout)
		defer cancel()

		if err := a.sink.Write(ctx, batch); err != nil {
			a.logger.Error("archive batch write failed", "entries", len(batch), "error", err)
		} else {
			a.logger.Debug("archive batch written", "entries", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-a.buffer:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= a.opts.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// Shutdown 停止接收新項目，刷新剩餘批次後返回
//
// ctx 到期時不再等待 worker，回傳 ctx 的錯誤。
func (a *Archiver) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.closed = true
	close(a.buffer)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("archive shutdown: %w", ctx.Err())
	}
}

func (e Entry) id() string {
	if e.ReviewID != "" {
		return e.ReviewID
	}
	return e.RestaurantID
}
