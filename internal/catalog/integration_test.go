package catalog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
	"github.com/koopa0/system-design/restaurant-catalog/internal/keys"
	"github.com/koopa0/system-design/restaurant-catalog/internal/store"
	"github.com/koopa0/system-design/restaurant-catalog/internal/testutils"
)

// TestCatalog_RealRedis 以真實 Redis 驗證評分索引與並發評論
func TestCatalog_RealRedis(t *testing.T) {
	client := testutils.RedisContainer(t)
	ctx := context.Background()

	namer := keys.New("it")
	st := store.NewRedis(client, testutils.TestLogger())
	repo := catalog.NewRepository(st, namer, catalog.WithLogger(testutils.TestLogger()))
	agg := catalog.NewAggregator(st, namer,
		catalog.WithLogger(testutils.TestLogger()),
		catalog.WithSerializedReviews(true))

	low, err := repo.CreateRestaurant(ctx, "Low", "NYC", []string{"diner"})
	require.NoError(t, err)
	high, err := repo.CreateRestaurant(ctx, "High", "NYC", []string{"italian", "vegan"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := agg.AddReview(ctx, high.ID, 5, "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := agg.AddReview(ctx, low.ID, 2, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ranked, err := repo.ListRestaurantsByRating(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, low.ID, ranked[0].ID)
	assert.Equal(t, 2.0, ranked[0].AvgStars)
	assert.Equal(t, high.ID, ranked[1].ID)
	assert.Equal(t, 5.0, ranked[1].AvgStars)

	count, err := client.LLen(ctx, namer.Reviews(high.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)

	vegan, err := repo.ListRestaurantsByCuisine(ctx, "vegan")
	require.NoError(t, err)
	require.Len(t, vegan, 1)
	assert.Equal(t, high.ID, vegan[0].ID)

	require.NoError(t, st.Ping(ctx))
	assert.Zero(t, st.ConsecutiveFailures())
}
