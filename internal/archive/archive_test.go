package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
	"github.com/koopa0/system-design/restaurant-catalog/pkg/logger"
)

// fakeSink 記錄每次 Write 的批次；block 非 nil 時 Write 會等它關閉
type fakeSink struct {
	mu      sync.Mutex
	batches [][]Entry
	err     error
	block   chan struct{}
}

func (s *fakeSink) Write(_ context.Context, entries []Entry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Entry(nil), entries...))
	return s.err
}

func (s *fakeSink) snapshot() [][]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Entry(nil), s.batches...)
}

func (s *fakeSink) total() int {
	n := 0
	for _, b := range s.snapshot() {
		n += len(b)
	}
	return n
}

func review(id string) catalog.Review {
	return catalog.Review{ID: id, RestaurantID: "R1", Rating: 4, Timestamp: 1_700_000_000_000}
}

func TestArchiver_FlushesOnBatchSize(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink, Options{BatchSize: 3, FlushInterval: time.Hour}, logger.Discard())
	ctx := context.Background()

	for _, id := range []string{"V1", "V2", "V3"} {
		a.ReviewAdded(ctx, review(id))
	}

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 1 },
		time.Second, 5*time.Millisecond, "達到批量大小立即刷新")

	batch := sink.snapshot()[0]
	require.Len(t, batch, 3)
	assert.Equal(t, KindReviewAdded, batch[0].Kind)
	assert.Equal(t, "V1", batch[0].ReviewID)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000), batch[0].At)

	require.NoError(t, a.Shutdown(ctx))
}

func TestArchiver_FlushesOnInterval(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, logger.Discard())
	ctx := context.Background()

	a.RestaurantCreated(ctx, catalog.Restaurant{ID: "R1", Name: "Pasta House"})
	a.ReviewDeleted(ctx, "R1", "V9")

	assert.Eventually(t, func() bool { return sink.total() == 2 },
		time.Second, 5*time.Millisecond, "定時器刷新未滿的批次")

	var kinds []Kind
	for _, b := range sink.snapshot() {
		for _, e := range b {
			kinds = append(kinds, e.Kind)
		}
	}
	assert.Equal(t, []Kind{KindRestaurantCreated, KindReviewDeleted}, kinds, "保持送入順序")

	require.NoError(t, a.Shutdown(ctx))
}

func TestArchiver_ShutdownDrains(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink, Options{BatchSize: 100, FlushInterval: time.Hour}, logger.Discard())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		a.ReviewAdded(ctx, review("V"))
	}
	require.NoError(t, a.Shutdown(ctx))
	assert.Equal(t, 5, sink.total())

	// 關閉後送入的項目直接丟棄
	a.ReviewAdded(ctx, review("late"))
	assert.Equal(t, 5, sink.total())

	assert.ErrorIs(t, a.Shutdown(ctx), ErrClosed)
}

// fill 讓 worker 卡在第一筆的 Write，再把容量 BatchSize*2 的緩衝區填滿
func fill(t *testing.T, a *Archiver, ids ...string) {
	t.Helper()
	ctx := context.Background()

	a.ReviewAdded(ctx, review(ids[0]))
	require.Eventually(t, func() bool { return len(a.buffer) == 0 }, time.Second, time.Millisecond)
	for _, id := range ids[1:] {
		a.ReviewAdded(ctx, review(id))
	}
	require.Equal(t, cap(a.buffer), len(a.buffer))
}

func flatten(batches [][]Entry) []string {
	var out []string
	for _, b := range batches {
		for _, e := range b {
			out = append(out, string(e.Kind)+":"+e.id())
		}
	}
	return out
}

// TestArchiver_BackPressure 緩衝區滿時呼叫端等待空位，順序不變
func TestArchiver_BackPressure(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	a := New(sink, Options{BatchSize: 1, FlushInterval: time.Hour}, logger.Discard())
	ctx := context.Background()

	fill(t, a, "V1", "V2", "V3")

	done := make(chan struct{})
	go func() {
		a.ReviewAdded(ctx, review("V4"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("緩衝區滿時應等待空位，在 sink 解除阻塞前不會返回")
	case <-time.After(20 * time.Millisecond):
	}

	close(sink.block)
	<-done

	require.NoError(t, a.Shutdown(ctx))
	assert.Equal(t, []string{
		"review.added:V1", "review.added:V2", "review.added:V3", "review.added:V4",
	}, flatten(sink.snapshot()))
}

// TestArchiver_DeleteAfterAddUnderBackPressure 緩衝區滿時送入的刪除仍排在新增之後
func TestArchiver_DeleteAfterAddUnderBackPressure(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	a := New(sink, Options{BatchSize: 1, FlushInterval: time.Hour}, logger.Discard())
	ctx := context.Background()

	fill(t, a, "V0", "V1", "V2")

	done := make(chan struct{})
	go func() {
		a.ReviewDeleted(ctx, "R1", "V2")
		close(done)
	}()

	// 刪除在等待期間不可繞過佇列寫入
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.snapshot())

	close(sink.block)
	<-done

	require.NoError(t, a.Shutdown(ctx))
	assert.Equal(t, []string{
		"review.added:V0", "review.added:V1", "review.added:V2", "review.deleted:V2",
	}, flatten(sink.snapshot()))
}

// TestArchiver_BackPressureTimeout 等待超過 WriteTimeout 就丟棄該筆
func TestArchiver_BackPressureTimeout(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	a := New(sink, Options{BatchSize: 1, FlushInterval: time.Hour, WriteTimeout: 20 * time.Millisecond},
		logger.Discard())
	ctx := context.Background()

	fill(t, a, "V1", "V2", "V3")

	start := time.Now()
	a.ReviewAdded(ctx, review("V4"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	close(sink.block)
	require.NoError(t, a.Shutdown(ctx))
	assert.Equal(t, []string{
		"review.added:V1", "review.added:V2", "review.added:V3",
	}, flatten(sink.snapshot()))
}

func TestArchiver_SinkErrorsAreSwallowed(t *testing.T) {
	sink := &fakeSink{err: errors.New("connection refused")}
	a := New(sink, Options{BatchSize: 1, FlushInterval: time.Hour}, logger.Discard())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		a.ReviewAdded(ctx, review("V1"))
		a.ReviewDeleted(ctx, "R1", "V1")
	})
	require.NoError(t, a.Shutdown(ctx))
	assert.Equal(t, 2, sink.total())
}

func TestArchiver_ShutdownTimeout(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	defer close(sink.block)

	a := New(sink, Options{BatchSize: 1, FlushInterval: time.Hour}, logger.Discard())
	a.ReviewAdded(context.Background(), review("V1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := a.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
