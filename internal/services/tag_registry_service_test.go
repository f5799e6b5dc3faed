package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptbank-backend/internal/database"
	"promptbank-backend/internal/models"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	database.RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		database.RedisClient = nil
		mr.Close()
	})
	return mr
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	id1, err := registry.ResolveOrCreate(ctx, "golang")
	require.NoError(t, err)
	id2, err := registry.ResolveOrCreate(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Where("tag_name = ?", "golang").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveOrCreateStartsAtZero(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)

	_, err := registry.ResolveOrCreate(context.Background(), "fresh")
	require.NoError(t, err)

	tag, err := registry.GetByName(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, tag.TemplateCount)
}

func TestResolveOrCreateIsCaseSensitive(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	lower, err := registry.ResolveOrCreate(ctx, "sales")
	require.NoError(t, err)
	upper, err := registry.ResolveOrCreate(ctx, "Sales")
	require.NoError(t, err)
	assert.NotEqual(t, lower, upper)
}

func TestSetCount(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	assert.ErrorIs(t, registry.SetCount(ctx, "missing", 3), ErrTagNotFound)

	_, err := registry.ResolveOrCreate(ctx, "golang")
	require.NoError(t, err)
	require.NoError(t, registry.SetCount(ctx, "golang", 5))

	tag, err := registry.GetByName(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, 5, tag.TemplateCount)
}

func TestDeleteTag(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	assert.ErrorIs(t, registry.Delete(ctx, "missing"), ErrTagNotFound)

	_, err := registry.ResolveOrCreate(ctx, "golang")
	require.NoError(t, err)
	require.NoError(t, registry.Delete(ctx, "golang"))

	_, err = registry.GetByName(ctx, "golang")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestGetByID(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	id, err := registry.ResolveOrCreate(ctx, "golang")
	require.NoError(t, err)

	tag, err := registry.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "golang", tag.TagName)

	_, err = registry.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestResolveTagsBuildsTagMap(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)

	tags, err := registry.ResolveTags(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	for id, name := range tags {
		assert.NotEmpty(t, id)
		assert.Contains(t, []string{"alpha", "beta"}, name)
	}
}

func TestSeedProtectedTagsIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	require.NoError(t, registry.SeedProtectedTags(ctx))
	require.NoError(t, registry.SeedProtectedTags(ctx))

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	for _, seed := range models.ProtectedTags {
		tag, err := registry.GetByName(ctx, seed.TagName)
		require.NoError(t, err)
		assert.Equal(t, seed.TagID, tag.TagID)
		assert.Equal(t, 0, tag.TemplateCount)
	}
}

func TestListByUsageOrderingAndCursor(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("tag-%02d", i)
		_, err := registry.ResolveOrCreate(ctx, name)
		require.NoError(t, err)
		require.NoError(t, registry.SetCount(ctx, name, i%7))
	}

	page1, next, err := registry.ListByUsage(ctx, nil)
	require.NoError(t, err)
	require.Len(t, page1, TagListPageSize)
	require.NotNil(t, next)

	for i := 1; i < len(page1); i++ {
		if page1[i-1].TemplateCount == page1[i].TemplateCount {
			assert.Less(t, page1[i-1].TagName, page1[i].TagName)
		} else {
			assert.Greater(t, page1[i-1].TemplateCount, page1[i].TemplateCount)
		}
	}

	page2, next2, err := registry.ListByUsage(ctx, next)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
	assert.Nil(t, next2)

	seen := map[string]bool{}
	for _, tag := range append(page1, page2...) {
		assert.False(t, seen[tag.TagName], "tag %s appeared twice", tag.TagName)
		seen[tag.TagName] = true
	}
}

func TestListByUsageFirstPageCached(t *testing.T) {
	db := setupTestDB(t)
	mr := setupTestRedis(t)
	registry := NewTagRegistry(db)
	ctx := context.Background()

	_, err := registry.ResolveOrCreate(ctx, "golang")
	require.NoError(t, err)
	mr.Del(TagRankingCacheKey)

	_, _, err = registry.ListByUsage(ctx, nil)
	require.NoError(t, err)
	assert.True(t, mr.Exists(TagRankingCacheKey))

	// Any registry write drops the cached ranking.
	require.NoError(t, registry.SetCount(ctx, "golang", 2))
	assert.False(t, mr.Exists(TagRankingCacheKey))
}
