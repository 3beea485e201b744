package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// LineSource records which workflow created an encounter line
type LineSource int

const (
	LineSourceManual      LineSource = 0
	LineSourcePendingItem LineSource = 1
	LineSourceAppointment LineSource = 2
)

func (s LineSource) String() string {
	return [...]string{"Manual", "PendingItem", "Appointment"}[s]
}

func (s LineSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *LineSource) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = LineSource(i)
		return nil
	}
	switch str {
	case "Manual":
		*s = LineSourceManual
	case "PendingItem":
		*s = LineSourcePendingItem
	case "Appointment":
		*s = LineSourceAppointment
	}
	return nil
}

func (s LineSource) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *LineSource) Scan(value interface{}) error {
	if value == nil {
		*s = LineSourceManual
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = LineSource(v)
	case int:
		*s = LineSource(v)
	}
	return nil
}
