package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
	"github.com/koopa0/system-design/restaurant-catalog/pkg/logger"
)

type published struct {
	subject string
	event   Event
}

type fakeConn struct {
	mu       sync.Mutex
	messages []published
	err      error
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{subject: subject, event: e})
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublisher_Subjects(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"catalog", "catalog.review.added"},
		{"", "review.added"},
	}

	for _, tt := range tests {
		p := NewPublisher(&fakeConn{}, tt.prefix, logger.Discard())
		assert.Equal(t, tt.want, p.Subject(TypeReviewAdded))
	}
}

func TestPublisher_PublishesEvents(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "catalog", logger.Discard())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	ctx := context.Background()

	p.RestaurantCreated(ctx, catalog.Restaurant{ID: "R1", Name: "Pasta House", Cuisines: []string{"italian"}})
	p.ReviewAdded(ctx, catalog.Review{ID: "V1", RestaurantID: "R1", Rating: 4, Text: "great", Timestamp: fixed.UnixMilli()})
	p.ReviewDeleted(ctx, "R1", "V1")

	require.Len(t, conn.messages, 3)

	created := conn.messages[0]
	assert.Equal(t, "catalog.restaurant.created", created.subject)
	require.NotNil(t, created.event.Restaurant)
	assert.Equal(t, "Pasta House", created.event.Restaurant.Name)
	assert.True(t, fixed.Equal(created.event.OccurredAt))

	added := conn.messages[1]
	assert.Equal(t, "catalog.review.added", added.subject)
	assert.Equal(t, "V1", added.event.ReviewID)
	require.NotNil(t, added.event.Review)
	assert.Equal(t, 4.0, added.event.Review.Rating)

	deleted := conn.messages[2]
	assert.Equal(t, "catalog.review.deleted", deleted.subject)
	assert.Equal(t, TypeReviewDeleted, deleted.event.Type)
	assert.Nil(t, deleted.event.Review)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestPublisher_FailuresAreLoggedOnly(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewPublisher(conn, "catalog", logger.Discard())

	assert.NotPanics(t, func() {
		p.ReviewDeleted(context.Background(), "R1", "V1")
	})
	assert.Empty(t, conn.messages)
}
