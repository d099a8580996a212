// Package events 將目錄的領域事件發布到 NATS
//
// 主題：
//
//	<prefix>.restaurant.created
//	<prefix>.review.added
//	<prefix>.review.deleted
//
// 使用 core NATS（at-most-once）：事件是通知而非真實來源，
// 訂閱者錯過時應回頭查 API。發布失敗只記錄日誌。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
)

// 事件類型（也是主題後綴）
const (
	TypeRestaurantCreated = "restaurant.created"
	TypeReviewAdded       = "review.added"
	TypeReviewDeleted     = "review.deleted"
)

// Event 發布到 NATS 的訊息本體
type Event struct {
	Type         string              `json:"type"`
	RestaurantID string              `json:"restaurantId"`
	ReviewID     string              `json:"reviewId,omitempty"`
	Restaurant   *catalog.Restaurant `json:"restaurant,omitempty"`
	Review       *catalog.Review     `json:"review,omitempty"`
	OccurredAt   time.Time           `json:"occurredAt"`
}

// Conn Publisher 需要的 NATS 連線能力，*nats.Conn 滿足此介面
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher 實作 catalog.Listener，把事件送到 NATS
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

var _ catalog.Listener = (*Publisher)(nil)

// Connect 連線到 NATS 並建立 Publisher
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("restaurant-catalog"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}

	return NewPublisher(conn, prefix, logger), nil
}

// NewPublisher 以既有連線建立 Publisher；prefix 空字串時不加前綴
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger, now: time.Now}
}

// Subject 事件類型對應的完整主題
func (p *Publisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *Publisher) RestaurantCreated(ctx context.Context, r catalog.Restaurant) {
	p.publish(ctx, Event{
		Type:         TypeRestaurantCreated,
		RestaurantID: r.ID,
		Restaurant:   &r,
		OccurredAt:   p.now().UTC(),
	})
}

func (p *Publisher) ReviewAdded(ctx context.Context, r catalog.Review) {
	p.publish(ctx, Event{
		Type:         TypeReviewAdded,
		RestaurantID: r.RestaurantID,
		ReviewID:     r.ID,
		Review:       &r,
		OccurredAt:   time.UnixMilli(r.Timestamp).UTC(),
	})
}

func (p *Publisher) ReviewDeleted(ctx context.Context, restaurantID, reviewID string) {
	p.publish(ctx, Event{
		Type:         TypeReviewDeleted,
		RestaurantID: restaurantID,
		ReviewID:     reviewID,
		OccurredAt:   p.now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.ErrorContext(ctx, "encode event failed", "type", e.Type, "error", err)
		return
	}

	subject := p.Subject(e.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.WarnContext(ctx, "publish event failed",
			"subject", subject,
			"restaurant_id", e.RestaurantID,
			"error", err)
	}
}

// Close 送出緩衝中的訊息後關閉連線
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
