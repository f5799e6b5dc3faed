package models

// Tag is a named category. The display name is the natural key
// (case-sensitive); TagID is the surrogate identifier embedded in
// templates and association records; TemplateCount is the denormalized
// number of templates currently carrying the tag, maintained by the
// reconciliation engine.
type Tag struct {
	TagName       string `gorm:"primarykey" json:"tagname"`
	TagID         string `gorm:"uniqueIndex;not null" json:"tagid"`
	TemplateCount int    `gorm:"index;not null;default:0" json:"templateCount"`
}

// ProtectedTags are pre-seeded and never deleted, even at zero usage.
// Names are case-sensitive: a user-created "designer" is an ordinary tag.
var ProtectedTags = []Tag{
	{TagName: "Designer", TagID: "00000000-0000-0000-0000-000000000001"},
	{TagName: "Sales", TagID: "00000000-0000-0000-0000-000000000002"},
	{TagName: "Merchandiser", TagID: "00000000-0000-0000-0000-000000000003"},
}

func IsProtectedTag(name string) bool {
	for _, t := range ProtectedTags {
		if t.TagName == name {
			return true
		}
	}
	return false
}
