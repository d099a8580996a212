package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertRestaurantSQL = `
		INSERT INTO restaurants (id, name, location, cuisines, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	insertReviewSQL = `
		INSERT INTO reviews (id, restaurant_id, rating, review, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	// 歸檔刪除只做標記；Archiver 依送入順序寫入，新增一定先於刪除。
	// 新增若因緩衝區逾時被丟棄，這裡不會命中任何列
	markReviewDeletedSQL = `
		UPDATE reviews SET deleted_at = $3
		WHERE id = $1 AND restaurant_id = $2 AND deleted_at IS NULL`
)

// PostgresSink 以 pgx.Batch 寫入 PostgreSQL
type PostgresSink struct {
	pool *pgxpool.Pool
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink 建立 PostgreSQL 寫入端
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Write 依序將整批項目放入單一 pgx.Batch 送出，全部在同一個交易中
func (s *PostgresSink) Write(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, e := range entries {
		queueEntry(batch, e)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("archive batch of %d: %w", len(entries), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

func queueEntry(batch *pgx.Batch, e Entry) {
	switch e.Kind {
	case KindRestaurantCreated:
		r := e.Restaurant
		cuisines := r.Cuisines
		if cuisines == nil {
			cuisines = []string{}
		}
		batch.Queue(insertRestaurantSQL, r.ID, r.Name, r.Location, cuisines, e.At)
	case KindReviewAdded:
		r := e.Review
		batch.Queue(insertReviewSQL, r.ID, r.RestaurantID, r.Rating, r.Text, e.At)
	case KindReviewDeleted:
		batch.Queue(markReviewDeletedSQL, e.ReviewID, e.RestaurantID, e.At)
	}
}

// ArchivedReview 歸檔中的評論（查詢用）
type ArchivedReview struct {
	ID           string
	RestaurantID string
	Rating       float64
	Text         string
	Deleted      bool
}

// Reviews 列出某餐廳的歸檔評論（含已刪除），新到舊
func (s *PostgresSink) Reviews(ctx context.Context, restaurantID string) ([]ArchivedReview, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, restaurant_id, rating, review, deleted_at IS NOT NULL
		FROM reviews
		WHERE restaurant_id = $1
		ORDER BY created_at DESC, id`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query archived reviews: %w", err)
	}

	reviews, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ArchivedReview, error) {
		var r ArchivedReview
		err := row.Scan(&r.ID, &r.RestaurantID, &r.Rating, &r.Text, &r.Deleted)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan archived reviews: %w", err)
	}
	return reviews, nil
}
