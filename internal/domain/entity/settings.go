package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClinicSettings holds the single row of clinic-wide configuration
type ClinicSettings struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	ClinicName   string         `gorm:"size:255;not null" json:"clinic_name"`
	CurrencyCode string         `gorm:"size:3;not null;default:'KWD'" json:"currency_code"`
	Address      *string        `gorm:"type:text" json:"address,omitempty"`
	Phone        *string        `gorm:"size:50" json:"phone,omitempty"`
	Email        *string        `gorm:"size:255" json:"email,omitempty"`
	ReceiptNote  *string        `gorm:"type:text" json:"receipt_note,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate generates a UUID before creating the settings row
func (s *ClinicSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the ClinicSettings model
func (ClinicSettings) TableName() string {
	return "clinic_settings"
}
