package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// PaymentStatus represents the payment state of an encounter line
type PaymentStatus int

const (
	PaymentStatusPending   PaymentStatus = 0
	PaymentStatusPartial   PaymentStatus = 1
	PaymentStatusPaid      PaymentStatus = 2
	PaymentStatusRefunded  PaymentStatus = 3
	PaymentStatusCancelled PaymentStatus = 4
)

func (s PaymentStatus) String() string {
	return [...]string{"Pending", "Partial", "Paid", "Refunded", "Cancelled"}[s]
}

// Payable reports whether a line in this status can still receive payment
func (s PaymentStatus) Payable() bool {
	return s == PaymentStatusPending || s == PaymentStatusPartial
}

func (s PaymentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		// Try unmarshaling as int
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = PaymentStatus(i)
		return nil
	}
	switch str {
	case "Pending":
		*s = PaymentStatusPending
	case "Partial":
		*s = PaymentStatusPartial
	case "Paid":
		*s = PaymentStatusPaid
	case "Refunded":
		*s = PaymentStatusRefunded
	case "Cancelled":
		*s = PaymentStatusCancelled
	}
	return nil
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *PaymentStatus) Scan(value interface{}) error {
	if value == nil {
		*s = PaymentStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = PaymentStatus(v)
	case int:
		*s = PaymentStatus(v)
	}
	return nil
}
