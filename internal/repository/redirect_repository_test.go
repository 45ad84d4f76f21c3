package repository

import (
	"context"
	"encoding/json"
	"testing"

	"quizpath_backend/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedirectCacheKey(t *testing.T) {
	session := uint(9)
	assert.Equal(t, "redirect:1:advanced", redirectCacheKey(1, "advanced", nil))
	assert.Equal(t, "redirect:1:advanced:9", redirectCacheKey(1, "advanced", &session))
}

func TestFindServesFromCache(t *testing.T) {
	rdb := testRedis(t)
	// a nil DB proves the cache path never touches the database
	repo := NewRedirectRepository(nil, rdb)

	want := model.ContentRedirect{
		BaseModel:    model.BaseModel{ID: 3},
		AssignmentID: 1,
		Level:        "advanced",
		TargetURL:    "https://example.com/next",
	}
	data, err := json.Marshal(&want)
	require.NoError(t, err)
	require.NoError(t, rdb.Set(context.Background(), redirectCacheKey(1, "advanced", nil), data, 0).Err())

	got, err := repo.Find(context.Background(), 1, "advanced", nil)
	require.NoError(t, err)
	assert.Equal(t, want.TargetURL, got.TargetURL)
	assert.Equal(t, want.Level, got.Level)
}

func TestInvalidateDropsBothKeys(t *testing.T) {
	rdb := testRedis(t)
	repo := NewRedirectRepository(nil, rdb)
	ctx := context.Background()

	session := uint(9)
	require.NoError(t, rdb.Set(ctx, redirectCacheKey(1, "advanced", &session), "x", 0).Err())
	require.NoError(t, rdb.Set(ctx, redirectCacheKey(1, "advanced", nil), "y", 0).Err())

	repo.invalidate(ctx, &model.ContentRedirect{AssignmentID: 1, Level: "advanced", SessionID: &session})

	assert.Equal(t, redis.Nil, rdb.Get(ctx, redirectCacheKey(1, "advanced", &session)).Err())
	assert.Equal(t, redis.Nil, rdb.Get(ctx, redirectCacheKey(1, "advanced", nil)).Err())
}
