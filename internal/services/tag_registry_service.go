package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promptbank-backend/internal/database"
	"promptbank-backend/internal/models"
)

const (
	TagRankingCacheKey      = "tags:ranking"
	tagRankingCacheDuration = 1 * time.Hour

	TagListPageSize = 20
)

// TagRegistry owns tag identity and the denormalized usage counter. It
// performs no counter arithmetic of its own: counter values are handed to
// SetCount by the reconciliation engine, and ResolveOrCreate inserts new
// tags at zero.
type TagRegistry struct {
	db *gorm.DB
}

func NewTagRegistry(db *gorm.DB) *TagRegistry {
	return &TagRegistry{db: db}
}

// ResolveOrCreate maps a display name to its surrogate id, allocating a new
// id for an unseen name. The name is the table primary key, so two
// concurrent creations of the same unseen name cannot both insert; the
// loser re-reads the winner's row.
func (r *TagRegistry) ResolveOrCreate(ctx context.Context, name string) (string, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	var tag models.Tag
	err := r.db.WithContext(ctx).Where("tag_name = ?", name).First(&tag).Error
	if err == nil {
		return tag.TagID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("looking up tag %q: %w", name, err)
	}

	tag = models.Tag{TagName: name, TagID: uuid.New().String(), TemplateCount: 0}
	if createErr := r.db.WithContext(ctx).Create(&tag).Error; createErr != nil {
		if lookupErr := r.db.WithContext(ctx).Where("tag_name = ?", name).First(&tag).Error; lookupErr != nil {
			return "", fmt.Errorf("creating tag %q: %w", name, createErr)
		}
	}

	r.invalidateRanking()
	return tag.TagID, nil
}

// ResolveTags resolves a list of display names to a tag set, creating
// unseen tags along the way.
func (r *TagRegistry) ResolveTags(ctx context.Context, names []string) (models.TagMap, error) {
	tags := models.TagMap{}
	for _, name := range names {
		id, err := r.ResolveOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		tags[id] = name
	}
	return tags, nil
}

// SetCount overwrites the usage counter unconditionally.
func (r *TagRegistry) SetCount(ctx context.Context, name string, count int) error {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Model(&models.Tag{}).
		Where("tag_name = ?", name).
		Update("template_count", count)
	if result.Error != nil {
		return fmt.Errorf("setting count for tag %q: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTagNotFound
	}

	r.invalidateRanking()
	return nil
}

// Delete removes the tag record. Protection is the reconciler's policy
// decision and is not re-checked here.
func (r *TagRegistry) Delete(ctx context.Context, name string) error {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Where("tag_name = ?", name).Delete(&models.Tag{})
	if result.Error != nil {
		return fmt.Errorf("deleting tag %q: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTagNotFound
	}

	r.invalidateRanking()
	return nil
}

func (r *TagRegistry) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	var tag models.Tag
	err := r.db.WithContext(ctx).Where("tag_name = ?", name).First(&tag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("fetching tag %q: %w", name, err)
	}
	return &tag, nil
}

func (r *TagRegistry) GetByID(ctx context.Context, tagID string) (*models.Tag, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	var tag models.Tag
	err := r.db.WithContext(ctx).Where("tag_id = ?", tagID).First(&tag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("fetching tag by id %s: %w", tagID, err)
	}
	return &tag, nil
}

// TagPageKey is the continuation key for the usage ranking.
type TagPageKey struct {
	TemplateCount int    `json:"templateCount"`
	TagName       string `json:"tagname"`
}

type tagRankingPage struct {
	Items []models.Tag `json:"items"`
	Next  *TagPageKey  `json:"next,omitempty"`
}

// ListByUsage pages through tags ordered by usage counter descending, ties
// broken by tag name ascending. The first page is cached in Redis and the
// cache dropped on any registry write.
func (r *TagRegistry) ListByUsage(ctx context.Context, startKey *TagPageKey) ([]models.Tag, *TagPageKey, error) {
	if startKey == nil && database.RedisClient != nil {
		if val, err := database.RedisClient.Get(database.Ctx, TagRankingCacheKey).Result(); err == nil {
			var cached tagRankingPage
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached.Items, cached.Next, nil
			}
		}
	}

	ctx, cancel := storeContext(ctx)
	defer cancel()

	q := r.db.WithContext(ctx).
		Order("template_count DESC").
		Order("tag_name ASC").
		Limit(TagListPageSize)
	if startKey != nil {
		q = q.Where("template_count < ? OR (template_count = ? AND tag_name > ?)",
			startKey.TemplateCount, startKey.TemplateCount, startKey.TagName)
	}

	var tags []models.Tag
	if err := q.Find(&tags).Error; err != nil {
		return nil, nil, fmt.Errorf("listing tags by usage: %w", err)
	}

	var next *TagPageKey
	if len(tags) == TagListPageSize {
		last := tags[len(tags)-1]
		next = &TagPageKey{TemplateCount: last.TemplateCount, TagName: last.TagName}
	}

	if startKey == nil && database.RedisClient != nil {
		if data, err := json.Marshal(tagRankingPage{Items: tags, Next: next}); err == nil {
			database.RedisClient.Set(database.Ctx, TagRankingCacheKey, data, tagRankingCacheDuration)
		}
	}

	return tags, next, nil
}

// SeedProtectedTags inserts the protected tags with their fixed surrogate
// ids if they are not present yet.
func (r *TagRegistry) SeedProtectedTags(ctx context.Context) error {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	for _, seed := range models.ProtectedTags {
		tag := models.Tag{TagName: seed.TagName, TagID: seed.TagID, TemplateCount: 0}
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
			return fmt.Errorf("seeding protected tag %q: %w", seed.TagName, err)
		}
	}
	return nil
}

func (r *TagRegistry) invalidateRanking() {
	if database.RedisClient != nil {
		database.RedisClient.Del(database.Ctx, TagRankingCacheKey)
	}
}
