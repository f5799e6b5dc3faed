package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// TagMap is a JSON column mapping tag id to tag display name.
type TagMap map[string]string

// Value implements the driver.Valuer interface
func (t TagMap) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface
func (t *TagMap) Scan(value interface{}) error {
	if value == nil {
		*t = make(TagMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal TagMap value:", value))
	}

	if len(bytes) == 0 {
		*t = make(TagMap)
		return nil
	}

	var result map[string]string
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*t = TagMap(result)
	return nil
}
