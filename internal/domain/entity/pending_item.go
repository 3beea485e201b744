package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PendingItem is a product queued for an encounter from elsewhere in the
// clinic (lab, pharmacy, boarding) that has not been added to the cart yet.
// Converting it to an encounter line marks it consumed.
type PendingItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	EncounterID uuid.UUID       `gorm:"type:uuid;not null;index" json:"encounter_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	PatientID   *uuid.UUID      `gorm:"type:uuid" json:"patient_id,omitempty"`
	Qty         decimal.Decimal `gorm:"type:numeric(12,3);not null;default:1" json:"qty"`
	Note        *string         `gorm:"size:255" json:"note,omitempty"`
	Consumed    bool            `gorm:"default:false;index" json:"consumed"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Encounter Encounter `gorm:"foreignKey:EncounterID" json:"-"`
	Product   Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Patient   *Patient  `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
}

// BeforeCreate generates a UUID before creating a new pending item
func (p *PendingItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PendingItem model
func (PendingItem) TableName() string {
	return "pending_items"
}
