package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// EncounterState represents the lifecycle state of an encounter header
type EncounterState int

const (
	EncounterStateOpen   EncounterState = 0
	EncounterStateClosed EncounterState = 1
)

func (s EncounterState) String() string {
	return [...]string{"Open", "Closed"}[s]
}

func (s EncounterState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *EncounterState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = EncounterState(i)
		return nil
	}
	switch str {
	case "Open":
		*s = EncounterStateOpen
	case "Closed":
		*s = EncounterStateClosed
	}
	return nil
}

func (s EncounterState) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *EncounterState) Scan(value interface{}) error {
	if value == nil {
		*s = EncounterStateOpen
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = EncounterState(v)
	case int:
		*s = EncounterState(v)
	}
	return nil
}
