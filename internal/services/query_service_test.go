package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptbank-backend/internal/models"
)

func TestCursorRoundTrip(t *testing.T) {
	cc := 7
	keys := []*AssociationPageKey{
		{CreatedDate: "0000000001000", TemplateID: "t-1"},
		{CopyCount: &cc, TemplateID: "t-2"},
	}

	for _, key := range keys {
		cursor, err := encodeCursor(key)
		require.NoError(t, err)
		require.NotEmpty(t, cursor)

		var decoded AssociationPageKey
		require.NoError(t, decodeCursor(cursor, &decoded))
		assert.Equal(t, *key, decoded)
	}
}

func TestEncodeCursorNilMeansNoMorePages(t *testing.T) {
	for _, key := range []any{
		nil,
		(*OwnerPageKey)(nil),
		(*AssociationPageKey)(nil),
		(*TagPageKey)(nil),
	} {
		cursor, err := encodeCursor(key)
		require.NoError(t, err)
		assert.Empty(t, cursor)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	var key OwnerPageKey

	// not base64
	assert.ErrorIs(t, decodeCursor("!!!", &key), ErrInvalidCursor)

	// base64 but not percent-decodable
	bad := base64.StdEncoding.EncodeToString([]byte("%zz"))
	assert.ErrorIs(t, decodeCursor(bad, &key), ErrInvalidCursor)

	// decodes but is not JSON
	notJSON := base64.StdEncoding.EncodeToString([]byte("not json"))
	assert.ErrorIs(t, decodeCursor(notJSON, &key), ErrInvalidCursor)
}

func TestListTemplatesByOwnerThroughFacade(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	registry := NewTagRegistry(db)
	queries := NewQueryFacade(store, registry)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, store.Create(ctx, newTestTemplate(1, fmt.Sprintf("%013d", 1000+i), nil)))
	}

	page1, cursor, err := queries.ListTemplatesByOwner(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, page1, OwnerPageSize)
	require.NotEmpty(t, cursor)

	page2, cursor2, err := queries.ListTemplatesByOwner(ctx, 1, cursor)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
	assert.Empty(t, cursor2)

	_, _, err = queries.ListTemplatesByOwner(ctx, 1, "not-a-cursor")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestListTemplatesByTagThroughFacade(t *testing.T) {
	db := setupTestDB(t)
	store := NewTemplateStore(db)
	registry := NewTagRegistry(db)
	queries := NewQueryFacade(store, registry)
	ctx := context.Background()

	tagID, err := registry.ResolveOrCreate(ctx, "designer")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Create(ctx, newTestTemplate(1, fmt.Sprintf("%013d", 1000+i), models.TagMap{tagID: "designer"})))
	}

	top, cursor, err := queries.ListTemplatesByTag(ctx, tagID, SortByPopularity, "")
	require.NoError(t, err)
	assert.Len(t, top, TagPopularityPageSize)
	assert.NotEmpty(t, cursor)

	_, _, err = queries.ListTemplatesByTag(ctx, tagID, SortByDate, "@@@")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestListTagsThroughFacade(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	queries := NewQueryFacade(NewTemplateStore(db), registry)
	ctx := context.Background()

	require.NoError(t, registry.SeedProtectedTags(ctx))

	tags, cursor, err := queries.ListTags(ctx, "")
	require.NoError(t, err)
	assert.Len(t, tags, 3)
	assert.Empty(t, cursor)

	_, _, err = queries.ListTags(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestGetTagThroughFacade(t *testing.T) {
	db := setupTestDB(t)
	registry := NewTagRegistry(db)
	queries := NewQueryFacade(NewTemplateStore(db), registry)
	ctx := context.Background()

	id, err := registry.ResolveOrCreate(ctx, "golang")
	require.NoError(t, err)

	tag, err := queries.GetTagByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "golang", tag.TagName)

	_, err = queries.GetTagByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrTagNotFound)
}
