package models

import "fmt"

// Template is the primary record for a user-authored prompt template.
// CreatedDate is epoch milliseconds kept as a decimal string so that
// lexicographic order equals chronological order; OwnerKey is the
// "userID#createdDate" composite the per-owner listing sorts on.
type Template struct {
	TemplateID      string `gorm:"primarykey" json:"templateid"`
	Title           string `gorm:"not null" json:"title"`
	Prompt          string `gorm:"type:text;not null" json:"prompt"`
	Public          bool   `gorm:"index" json:"public"`
	UserID          uint   `gorm:"index;not null" json:"userid"`
	UserMailAddress string `json:"usermailaddress"`
	Tags            TagMap `gorm:"type:json" json:"tags"`
	CreatedDate     string `gorm:"not null" json:"createdDate"`
	CopyCount       int    `gorm:"not null;default:0" json:"copycount"`
	OwnerKey        string `gorm:"index;not null" json:"-"`
}

// TemplateTag is the association record, one per (template, tag) pair.
// It duplicates CreatedDate and CopyCount from the primary record so that
// "templates for tag X by date/popularity" is an index query instead of a
// scan; TemplateStore keeps the duplicates in sync on every mutation.
type TemplateTag struct {
	TagID       string `gorm:"primarykey" json:"tagid"`
	TemplateID  string `gorm:"primarykey" json:"templateid"`
	CreatedDate string `gorm:"index" json:"createdDate"`
	CopyCount   int    `gorm:"index" json:"copycount"`
}

// OwnerKey builds the composite sort key for per-owner listings.
func OwnerKey(userID uint, createdDate string) string {
	return fmt.Sprintf("%d#%s", userID, createdDate)
}

// TagIDs returns the tag identifiers of a tag set.
func (t TagMap) TagIDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	return ids
}
