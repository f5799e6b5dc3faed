package template

import "promptbank-backend/internal/models"

// TemplateInput is the request body for create and update. Tag names are
// only resolved for public templates; a private template carries no tags.
type TemplateInput struct {
	Title    string   `json:"title" binding:"required"`
	Prompt   string   `json:"prompt" binding:"required"`
	Public   bool     `json:"public"`
	TagNames []string `json:"tags"`
}

// TemplateListResponse is a page of templates plus the opaque continuation
// cursor, present only when another page may exist.
type TemplateListResponse struct {
	Items            []models.Template `json:"items"`
	LastEvaluatedKey string            `json:"lastEvaluatedKey,omitempty"`
}

type CopyCountResponse struct {
	CopyCount int `json:"copycount"`
}
