package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promptbank-backend/internal/models"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTagNotFound      = errors.New("tag not found")
)

const (
	OwnerPageSize         = 10
	TagDatePageSize       = 10
	TagPopularityPageSize = 3

	SortByDate       = "createdDate"
	SortByPopularity = "copycount"
)

// storeTimeout bounds every store operation; a timed-out call surfaces as a
// storage error, never a hang. Overridden from config at boot.
var storeTimeout = 5 * time.Second

func SetStoreTimeout(d time.Duration) {
	if d > 0 {
		storeTimeout = d
	}
}

func storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, storeTimeout)
}

// TemplateStore owns the template primary records and their per-tag
// association records. Mutations touching both are sequential single-record
// writes, not a transaction: a failure mid-sequence leaves the earlier
// writes persisted, and counter drift from such a failure is repaired by the
// next reconciliation recount.
type TemplateStore struct {
	db *gorm.DB
}

func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Create writes the primary record, then one association record per tag.
func (s *TemplateStore) Create(ctx context.Context, tmpl *models.Template) error {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return fmt.Errorf("writing template record: %w", err)
	}

	for tagID := range tmpl.Tags {
		assoc := models.TemplateTag{
			TagID:       tagID,
			TemplateID:  tmpl.TemplateID,
			CreatedDate: tmpl.CreatedDate,
			CopyCount:   tmpl.CopyCount,
		}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&assoc).Error; err != nil {
			return fmt.Errorf("writing tag association for %s: %w", tagID, err)
		}
	}

	return nil
}

// Get fetches a primary record by template id.
func (s *TemplateStore) Get(ctx context.Context, templateID string) (*models.Template, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	var tmpl models.Template
	err := s.db.WithContext(ctx).Where("template_id = ?", templateID).First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("fetching template %s: %w", templateID, err)
	}
	return &tmpl, nil
}

// Update rewrites the primary record and realigns the association records
// with the new tag set. Identity, creation date, owner and copy count are
// carried over from the stored record; the copy count is never
// client-settable. The returned map is the removed tag set (stored minus
// new), which the caller hands to the reconciler together with the new set.
func (s *TemplateStore) Update(ctx context.Context, templateID, title, prompt string, public bool, tags models.TagMap) (*models.Template, models.TagMap, error) {
	existing, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}

	removed := models.TagMap{}
	for tagID, name := range existing.Tags {
		if _, kept := tags[tagID]; !kept {
			removed[tagID] = name
		}
	}

	ctx, cancel := storeContext(ctx)
	defer cancel()

	tmpl := &models.Template{
		TemplateID:      existing.TemplateID,
		Title:           title,
		Prompt:          prompt,
		Public:          public,
		UserID:          existing.UserID,
		UserMailAddress: existing.UserMailAddress,
		Tags:            tags,
		CreatedDate:     existing.CreatedDate,
		CopyCount:       existing.CopyCount,
		OwnerKey:        existing.OwnerKey,
	}
	if err := s.db.WithContext(ctx).Save(tmpl).Error; err != nil {
		return nil, nil, fmt.Errorf("rewriting template record: %w", err)
	}

	// Put every tag of the new set (carried-over and new alike), then drop
	// the removed ones.
	for tagID := range tags {
		assoc := models.TemplateTag{
			TagID:       tagID,
			TemplateID:  tmpl.TemplateID,
			CreatedDate: tmpl.CreatedDate,
			CopyCount:   tmpl.CopyCount,
		}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&assoc).Error; err != nil {
			return nil, nil, fmt.Errorf("writing tag association for %s: %w", tagID, err)
		}
	}
	for tagID := range removed {
		if err := s.db.WithContext(ctx).
			Where("tag_id = ? AND template_id = ?", tagID, templateID).
			Delete(&models.TemplateTag{}).Error; err != nil {
			return nil, nil, fmt.Errorf("deleting tag association for %s: %w", tagID, err)
		}
	}

	return tmpl, removed, nil
}

// Delete removes the primary record and every association record, returning
// the former tag set for reconciliation.
func (s *TemplateStore) Delete(ctx context.Context, templateID string) (models.TagMap, error) {
	existing, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := storeContext(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Where("template_id = ?", templateID).Delete(&models.Template{}).Error; err != nil {
		return nil, fmt.Errorf("deleting template record: %w", err)
	}

	for tagID := range existing.Tags {
		if err := s.db.WithContext(ctx).
			Where("tag_id = ? AND template_id = ?", tagID, templateID).
			Delete(&models.TemplateTag{}).Error; err != nil {
			return nil, fmt.Errorf("deleting tag association for %s: %w", tagID, err)
		}
	}

	return existing.Tags, nil
}

// IncrementCopyCount atomically bumps the primary record's copy count and
// propagates the new value to every association record, so per-tag
// popularity listings agree with the primary.
func (s *TemplateStore) IncrementCopyCount(ctx context.Context, templateID string) (int, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).Model(&models.Template{}).
		Where("template_id = ?", templateID).
		UpdateColumn("copy_count", gorm.Expr("copy_count + 1"))
	if result.Error != nil {
		return 0, fmt.Errorf("incrementing copy count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrTemplateNotFound
	}

	var tmpl models.Template
	if err := s.db.WithContext(ctx).Where("template_id = ?", templateID).First(&tmpl).Error; err != nil {
		return 0, fmt.Errorf("reading back copy count: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.TemplateTag{}).
		Where("template_id = ?", templateID).
		UpdateColumn("copy_count", tmpl.CopyCount).Error; err != nil {
		return 0, fmt.Errorf("propagating copy count to associations: %w", err)
	}

	return tmpl.CopyCount, nil
}

// OwnerPageKey is the continuation key for per-owner listings.
type OwnerPageKey struct {
	OwnerKey string `json:"ownerKey"`
}

// ListByOwner lists an owner's templates newest first (owner key descending).
func (s *TemplateStore) ListByOwner(ctx context.Context, userID uint, startKey *OwnerPageKey) ([]models.Template, *OwnerPageKey, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("owner_key DESC").
		Limit(OwnerPageSize)
	if startKey != nil {
		q = q.Where("owner_key < ?", startKey.OwnerKey)
	}

	var templates []models.Template
	if err := q.Find(&templates).Error; err != nil {
		return nil, nil, fmt.Errorf("listing templates by owner: %w", err)
	}

	var next *OwnerPageKey
	if len(templates) == OwnerPageSize {
		next = &OwnerPageKey{OwnerKey: templates[len(templates)-1].OwnerKey}
	}
	return templates, next, nil
}

// AssociationPageKey is the continuation key for per-tag listings. Exactly
// one of CreatedDate/CopyCount is set, matching the sort in use.
type AssociationPageKey struct {
	CreatedDate string `json:"createdDate,omitempty"`
	CopyCount   *int   `json:"copycount,omitempty"`
	TemplateID  string `json:"templateid"`
}

// ListByTag queries the association index for a tag (descending by date or
// popularity), then batch-fetches the primary records and re-sorts the batch
// to the association order, since the batch fetch does not preserve it.
// Page size is 10 for date order and a fixed top-3 for popularity.
func (s *TemplateStore) ListByTag(ctx context.Context, tagID, sortBy string, startKey *AssociationPageKey) ([]models.Template, *AssociationPageKey, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	limit := TagDatePageSize
	q := s.db.WithContext(ctx).Where("tag_id = ?", tagID)

	if sortBy == SortByPopularity {
		limit = TagPopularityPageSize
		q = q.Order("copy_count DESC").Order("template_id DESC")
		if startKey != nil && startKey.CopyCount != nil {
			q = q.Where("copy_count < ? OR (copy_count = ? AND template_id < ?)",
				*startKey.CopyCount, *startKey.CopyCount, startKey.TemplateID)
		}
	} else {
		q = q.Order("created_date DESC").Order("template_id DESC")
		if startKey != nil {
			q = q.Where("created_date < ? OR (created_date = ? AND template_id < ?)",
				startKey.CreatedDate, startKey.CreatedDate, startKey.TemplateID)
		}
	}

	var assocs []models.TemplateTag
	if err := q.Limit(limit).Find(&assocs).Error; err != nil {
		return nil, nil, fmt.Errorf("querying tag associations: %w", err)
	}
	if len(assocs) == 0 {
		return []models.Template{}, nil, nil
	}

	ids := make([]string, len(assocs))
	for i, a := range assocs {
		ids[i] = a.TemplateID
	}

	var fetched []models.Template
	if err := s.db.WithContext(ctx).Where("template_id IN ?", ids).Find(&fetched).Error; err != nil {
		return nil, nil, fmt.Errorf("batch fetching templates: %w", err)
	}

	byID := make(map[string]models.Template, len(fetched))
	for _, t := range fetched {
		byID[t.TemplateID] = t
	}
	templates := make([]models.Template, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			templates = append(templates, t)
		}
	}

	var next *AssociationPageKey
	if len(assocs) == limit {
		last := assocs[len(assocs)-1]
		next = &AssociationPageKey{TemplateID: last.TemplateID}
		if sortBy == SortByPopularity {
			cc := last.CopyCount
			next.CopyCount = &cc
		} else {
			next.CreatedDate = last.CreatedDate
		}
	}
	return templates, next, nil
}

// CountAssociations is the reconciler's live recount: the number of
// association records currently referencing the tag.
func (s *TemplateStore) CountAssociations(ctx context.Context, tagID string) (int64, error) {
	ctx, cancel := storeContext(ctx)
	defer cancel()

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TemplateTag{}).
		Where("tag_id = ?", tagID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting associations for tag %s: %w", tagID, err)
	}
	return count, nil
}
