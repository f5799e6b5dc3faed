package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"promptbank-backend/internal/models"
)

// ErrInvalidCursor marks a pagination cursor that could not be decoded.
// It is a client error, not a storage failure.
var ErrInvalidCursor = errors.New("invalid pagination cursor")

// QueryFacade is the read-side composition layer: thin pass-throughs to the
// registry and store with the opaque-cursor codec applied at the edges.
// Reads never trigger reconciliation.
type QueryFacade struct {
	store    *TemplateStore
	registry *TagRegistry
}

func NewQueryFacade(store *TemplateStore, registry *TagRegistry) *QueryFacade {
	return &QueryFacade{store: store, registry: registry}
}

func (q *QueryFacade) GetTemplateByID(ctx context.Context, templateID string) (*models.Template, error) {
	return q.store.Get(ctx, templateID)
}

func (q *QueryFacade) ListTemplatesByOwner(ctx context.Context, userID uint, cursor string) ([]models.Template, string, error) {
	var startKey *OwnerPageKey
	if cursor != "" {
		startKey = &OwnerPageKey{}
		if err := decodeCursor(cursor, startKey); err != nil {
			return nil, "", err
		}
	}

	templates, next, err := q.store.ListByOwner(ctx, userID, startKey)
	if err != nil {
		return nil, "", err
	}
	nextCursor, err := encodeCursor(next)
	if err != nil {
		return nil, "", err
	}
	return templates, nextCursor, nil
}

func (q *QueryFacade) ListTemplatesByTag(ctx context.Context, tagID, sortBy, cursor string) ([]models.Template, string, error) {
	var startKey *AssociationPageKey
	if cursor != "" {
		startKey = &AssociationPageKey{}
		if err := decodeCursor(cursor, startKey); err != nil {
			return nil, "", err
		}
	}

	templates, next, err := q.store.ListByTag(ctx, tagID, sortBy, startKey)
	if err != nil {
		return nil, "", err
	}
	nextCursor, err := encodeCursor(next)
	if err != nil {
		return nil, "", err
	}
	return templates, nextCursor, nil
}

func (q *QueryFacade) GetTagByID(ctx context.Context, tagID string) (*models.Tag, error) {
	return q.registry.GetByID(ctx, tagID)
}

func (q *QueryFacade) GetTagByName(ctx context.Context, name string) (*models.Tag, error) {
	return q.registry.GetByName(ctx, name)
}

func (q *QueryFacade) ListTags(ctx context.Context, cursor string) ([]models.Tag, string, error) {
	var startKey *TagPageKey
	if cursor != "" {
		startKey = &TagPageKey{}
		if err := decodeCursor(cursor, startKey); err != nil {
			return nil, "", err
		}
	}

	tags, next, err := q.registry.ListByUsage(ctx, startKey)
	if err != nil {
		return nil, "", err
	}
	nextCursor, err := encodeCursor(next)
	if err != nil {
		return nil, "", err
	}
	return tags, nextCursor, nil
}

// encodeCursor serializes a store continuation key the way the web client
// has always consumed it: JSON, percent-encoded, then base64. A nil key
// (no further pages) encodes to the empty string.
func encodeCursor(key any) (string, error) {
	if key == nil {
		return "", nil
	}
	// Typed nil pointers also mean "no further pages".
	switch k := key.(type) {
	case *OwnerPageKey:
		if k == nil {
			return "", nil
		}
	case *AssociationPageKey:
		if k == nil {
			return "", nil
		}
	case *TagPageKey:
		if k == nil {
			return "", nil
		}
	}

	data, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encoding cursor: %w", err)
	}
	return base64.StdEncoding.EncodeToString([]byte(url.QueryEscape(string(data)))), nil
}

func decodeCursor(cursor string, key any) error {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return ErrInvalidCursor
	}
	unescaped, err := url.QueryUnescape(string(raw))
	if err != nil {
		return ErrInvalidCursor
	}
	if err := json.Unmarshal([]byte(unescaped), key); err != nil {
		return ErrInvalidCursor
	}
	return nil
}
