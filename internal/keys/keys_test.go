package keys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koopa0/system-design/restaurant-catalog/internal/keys"
)

func TestNamer_Keys(t *testing.T) {
	n := keys.New("")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"restaurant", n.Restaurant("R1"), "bites:restaurants:R1"},
		{"cuisines", n.Cuisines(), "bites:cuisines"},
		{"cuisine", n.Cuisine("italian"), "bites:cuisine:italian"},
		{"restaurant cuisines", n.RestaurantCuisines("R1"), "bites:restaurant_cuisines:R1"},
		{"rating index", n.RestaurantsByRating(), "bites:restaurants_by_rating"},
		{"reviews", n.Reviews("R1"), "bites:reviews:R1"},
		{"review details", n.ReviewDetails("V1"), "bites:review_details:V1"},
		{"restaurant details", n.RestaurantDetails("R1"), "bites:restaurant_details:R1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestNamer_Deterministic(t *testing.T) {
	a := keys.New("test")
	b := keys.New("test")

	assert.Equal(t, a.Restaurant("x"), b.Restaurant("x"))
	assert.Equal(t, "test:reviews:x", a.Reviews("x"))

	var zero keys.Namer
	assert.Equal(t, "bites:restaurants:x", zero.Restaurant("x"), "零值 Namer 應使用預設前綴")
	assert.Equal(t, keys.DefaultPrefix, zero.Prefix())
	assert.Equal(t, "test", a.Prefix())
}

func TestNamer_KindsNeverCollide(t *testing.T) {
	n := keys.New("")
	id := "same"

	all := []string{
		n.Restaurant(id),
		n.Cuisine(id),
		n.RestaurantCuisines(id),
		n.Reviews(id),
		n.ReviewDetails(id),
		n.RestaurantDetails(id),
		n.Cuisines(),
		n.RestaurantsByRating(),
	}

	seen := make(map[string]bool)
	for _, k := range all {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}
