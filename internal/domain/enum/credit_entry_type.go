package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// CreditEntryType distinguishes additions to a customer credit balance from
// consumptions of it.
type CreditEntryType int

const (
	CreditEntryTypeCredit CreditEntryType = 0
	CreditEntryTypeDebit  CreditEntryType = 1
)

func (t CreditEntryType) String() string {
	return [...]string{"Credit", "Debit"}[t]
}

func (t CreditEntryType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *CreditEntryType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*t = CreditEntryType(i)
		return nil
	}
	switch str {
	case "Credit":
		*t = CreditEntryTypeCredit
	case "Debit":
		*t = CreditEntryTypeDebit
	}
	return nil
}

func (t CreditEntryType) Value() (driver.Value, error) {
	return int64(t), nil
}

func (t *CreditEntryType) Scan(value interface{}) error {
	if value == nil {
		*t = CreditEntryTypeCredit
		return nil
	}
	switch v := value.(type) {
	case int64:
		*t = CreditEntryType(v)
	case int:
		*t = CreditEntryType(v)
	}
	return nil
}
