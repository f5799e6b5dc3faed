package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"promptbank-backend/internal/database"
	"promptbank-backend/internal/models"
	"promptbank-backend/pkg/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	// Drop tables if exist to ensure clean state and schema update
	db.Migrator().DropTable(&models.User{}, &models.Template{}, &models.TemplateTag{}, &models.Tag{})

	err = db.AutoMigrate(&models.User{}, &models.Template{}, &models.TemplateTag{}, &models.Tag{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	database.DB = db
	database.RedisClient = nil
	logger.Log = zap.NewNop()
	return db
}

func newTestTemplate(userID uint, createdDate string, tags models.TagMap) *models.Template {
	return &models.Template{
		TemplateID:      uuid.New().String(),
		Title:           "weekly report",
		Prompt:          "summarize the following notes",
		Public:          true,
		UserID:          userID,
		UserMailAddress: "owner@example.com",
		Tags:            tags,
		CreatedDate:     createdDate,
		CopyCount:       0,
		OwnerKey:        models.OwnerKey(userID, createdDate),
	}
}

func associationTagIDs(t *testing.T, db *gorm.DB, templateID string) map[string]bool {
	t.Helper()

	var assocs []models.TemplateTag
	require.NoError(t, db.Where("template_id = ?", templateID).Find(&assocs).Error)

	ids := make(map[string]bool, len(assocs))
	for _, a := range assocs {
		ids[a.TagID] = true
	}
	return ids
}

func TestCreateWritesAssociationPerTag(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	tags := models.TagMap{"tag-a": "designer", "tag-b": "sales"}
	tmpl := newTestTemplate(1, "0000000001000", tags)
	require.NoError(t, store.Create(ctx, tmpl))

	ids := associationTagIDs(t, db, tmpl.TemplateID)
	assert.Equal(t, map[string]bool{"tag-a": true, "tag-b": true}, ids)

	var assoc models.TemplateTag
	require.NoError(t, db.Where("tag_id = ? AND template_id = ?", "tag-a", tmpl.TemplateID).First(&assoc).Error)
	assert.Equal(t, tmpl.CreatedDate, assoc.CreatedDate)
	assert.Equal(t, tmpl.CopyCount, assoc.CopyCount)
}

func TestGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestUpdateRealignsAssociations(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	tmpl := newTestTemplate(1, "0000000001000", models.TagMap{"tag-a": "alpha", "tag-b": "beta"})
	require.NoError(t, store.Create(ctx, tmpl))

	updated, removed, err := store.Update(ctx, tmpl.TemplateID, "new title", "new prompt", true,
		models.TagMap{"tag-b": "beta", "tag-c": "gamma"})
	require.NoError(t, err)

	// A removed, C added, B kept
	assert.Equal(t, models.TagMap{"tag-a": "alpha"}, removed)
	ids := associationTagIDs(t, db, tmpl.TemplateID)
	assert.Equal(t, map[string]bool{"tag-b": true, "tag-c": true}, ids)

	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, tmpl.CreatedDate, updated.CreatedDate)
	assert.Equal(t, tmpl.UserID, updated.UserID)
	assert.Equal(t, tmpl.OwnerKey, updated.OwnerKey)
}

func TestUpdatePreservesCopyCount(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	tmpl := newTestTemplate(1, "0000000001000", models.TagMap{"tag-a": "alpha"})
	require.NoError(t, store.Create(ctx, tmpl))

	_, err := store.IncrementCopyCount(ctx, tmpl.TemplateID)
	require.NoError(t, err)
	_, err = store.IncrementCopyCount(ctx, tmpl.TemplateID)
	require.NoError(t, err)

	updated, _, err := store.Update(ctx, tmpl.TemplateID, "t", "p", true, models.TagMap{"tag-a": "alpha"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CopyCount)
}

func TestUpdateNotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)

	_, _, err := store.Update(context.Background(), "missing", "t", "p", true, models.TagMap{})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestDeleteRemovesAssociationsAndReturnsFormerTags(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	tags := models.TagMap{"tag-a": "alpha", "tag-b": "beta"}
	tmpl := newTestTemplate(1, "0000000001000", tags)
	require.NoError(t, store.Create(ctx, tmpl))

	former, err := store.Delete(ctx, tmpl.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, tags, former)

	_, err = store.Get(ctx, tmpl.TemplateID)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Empty(t, associationTagIDs(t, db, tmpl.TemplateID))
}

func TestIncrementCopyCountPropagatesToAssociations(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	tmpl := newTestTemplate(1, "0000000001000", models.TagMap{"tag-a": "alpha", "tag-b": "beta"})
	require.NoError(t, store.Create(ctx, tmpl))

	count, err := store.IncrementCopyCount(ctx, tmpl.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var assocs []models.TemplateTag
	require.NoError(t, db.Where("template_id = ?", tmpl.TemplateID).Find(&assocs).Error)
	require.Len(t, assocs, 2)
	for _, a := range assocs {
		assert.Equal(t, 1, a.CopyCount)
	}

	_, err = store.IncrementCopyCount(ctx, "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestListByOwnerPagination(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		tmpl := newTestTemplate(1, fmt.Sprintf("%013d", 1000+i), nil)
		require.NoError(t, store.Create(ctx, tmpl))
	}
	// Another owner's template must never leak into the listing.
	require.NoError(t, store.Create(ctx, newTestTemplate(2, "0000000002000", nil)))

	page1, next, err := store.ListByOwner(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, page1, OwnerPageSize)
	require.NotNil(t, next)
	assert.Equal(t, fmt.Sprintf("%013d", 1014), page1[0].CreatedDate)

	// Newest first
	for i := 1; i < len(page1); i++ {
		assert.Greater(t, page1[i-1].OwnerKey, page1[i].OwnerKey)
	}

	page2, next2, err := store.ListByOwner(ctx, 1, next)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
	assert.Nil(t, next2)
	assert.Equal(t, fmt.Sprintf("%013d", 1000), page2[len(page2)-1].CreatedDate)
}

func TestListByTagPopularityTopThree(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	tagID := "tag-pop"
	for i := 0; i < 5; i++ {
		tmpl := newTestTemplate(1, fmt.Sprintf("%013d", 1000+i), models.TagMap{tagID: "designer"})
		require.NoError(t, store.Create(ctx, tmpl))
		for j := 0; j < i; j++ {
			_, err := store.IncrementCopyCount(ctx, tmpl.TemplateID)
			require.NoError(t, err)
		}
	}

	top, next, err := store.ListByTag(ctx, tagID, SortByPopularity, nil)
	require.NoError(t, err)
	require.Len(t, top, TagPopularityPageSize)
	require.NotNil(t, next)

	assert.Equal(t, 4, top[0].CopyCount)
	assert.Equal(t, 3, top[1].CopyCount)
	assert.Equal(t, 2, top[2].CopyCount)
}

func TestListByTagDateOrderAndCursor(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	tagID := "tag-date"
	for i := 0; i < 12; i++ {
		tmpl := newTestTemplate(1, fmt.Sprintf("%013d", 1000+i), models.TagMap{tagID: "designer"})
		require.NoError(t, store.Create(ctx, tmpl))
	}

	page1, next, err := store.ListByTag(ctx, tagID, SortByDate, nil)
	require.NoError(t, err)
	require.Len(t, page1, TagDatePageSize)
	require.NotNil(t, next)
	assert.Equal(t, fmt.Sprintf("%013d", 1011), page1[0].CreatedDate)

	for i := 1; i < len(page1); i++ {
		assert.GreaterOrEqual(t, page1[i-1].CreatedDate, page1[i].CreatedDate)
	}

	page2, next2, err := store.ListByTag(ctx, tagID, SortByDate, next)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.Nil(t, next2)
}

func TestCountAssociations(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestTemplate(1, "0000000001000", models.TagMap{"tag-a": "alpha"})))
	require.NoError(t, store.Create(ctx, newTestTemplate(1, "0000000001001", models.TagMap{"tag-a": "alpha", "tag-b": "beta"})))

	count, err := store.CountAssociations(ctx, "tag-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = store.CountAssociations(ctx, "tag-missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
