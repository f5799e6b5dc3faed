package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"promptbank-backend/internal/models"
	"promptbank-backend/pkg/logger"
)

// TagReconciler recomputes tag usage counters after any mutation that
// changed a template's tag membership. Counters are set from a live recount
// of the association index rather than an incremental delta, so a crash
// between the non-transactional record writes is repaired by the next
// mutation touching the tag. The sequence is safe to retry for the same
// reason: it re-derives truth each time.
type TagReconciler struct {
	store    *TemplateStore
	registry *TagRegistry
}

func NewTagReconciler(store *TemplateStore, registry *TagRegistry) *TagReconciler {
	return &TagReconciler{store: store, registry: registry}
}

// Reconcile processes the affected tag sets in argument order (callers pass
// the removed set before the kept/added set), each tag id at most once:
//
//  1. live recount of association records for the tag,
//  2. protected tag: counter overwritten with the recount, never deleted,
//  3. recount zero: tag record deleted,
//  4. otherwise: counter overwritten with the recount.
func (r *TagReconciler) Reconcile(ctx context.Context, affected ...models.TagMap) error {
	seen := make(map[string]bool)

	for _, set := range affected {
		for tagID, tagName := range set {
			if seen[tagID] {
				continue
			}
			seen[tagID] = true

			count, err := r.store.CountAssociations(ctx, tagID)
			if err != nil {
				return err
			}

			if models.IsProtectedTag(tagName) {
				if err := r.registry.SetCount(ctx, tagName, int(count)); err != nil {
					return err
				}
				continue
			}

			if count == 0 {
				err := r.registry.Delete(ctx, tagName)
				if err != nil && !errors.Is(err, ErrTagNotFound) {
					return err
				}
				logger.Log.Info("pruned orphaned tag",
					zap.String("tagid", tagID),
					zap.String("tagname", tagName))
				continue
			}

			if err := r.registry.SetCount(ctx, tagName, int(count)); err != nil {
				return err
			}
		}
	}

	return nil
}
