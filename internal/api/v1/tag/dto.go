package tag

import "promptbank-backend/internal/models"

// TagListResponse is a page of the usage ranking plus the opaque
// continuation cursor.
type TagListResponse struct {
	Items            []models.Tag `json:"items"`
	LastEvaluatedKey string       `json:"lastEvaluatedKey,omitempty"`
}

type TagTemplateListResponse struct {
	Items            []models.Template `json:"items"`
	LastEvaluatedKey string            `json:"lastEvaluatedKey,omitempty"`
}
