package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// ResourceCategory classifies a scheduling resource as a practitioner or a room
type ResourceCategory int

const (
	ResourceCategoryPractitioner ResourceCategory = 0
	ResourceCategoryLocation     ResourceCategory = 1
)

func (c ResourceCategory) String() string {
	return [...]string{"Practitioner", "Location"}[c]
}

func (c ResourceCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ResourceCategory) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*c = ResourceCategory(i)
		return nil
	}
	switch str {
	case "Practitioner", "practitioner":
		*c = ResourceCategoryPractitioner
	case "Location", "location", "room":
		*c = ResourceCategoryLocation
	}
	return nil
}

func (c ResourceCategory) Value() (driver.Value, error) {
	return int64(c), nil
}

func (c *ResourceCategory) Scan(value interface{}) error {
	if value == nil {
		*c = ResourceCategoryPractitioner
		return nil
	}
	switch v := value.(type) {
	case int64:
		*c = ResourceCategory(v)
	case int:
		*c = ResourceCategory(v)
	}
	return nil
}
