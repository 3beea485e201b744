package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"gorm.io/gorm"
)

// Resource represents a schedulable clinic resource: a practitioner or a
// treatment room. Rooms carry the department of the practitioners that may
// use them; a room with no department is usable by anyone.
type Resource struct {
	ID           uuid.UUID             `gorm:"type:uuid;primary_key" json:"id"`
	Name         string                `gorm:"size:255;not null" json:"name"`
	Category     enum.ResourceCategory `gorm:"default:0;index" json:"category"`
	DepartmentID *uuid.UUID            `gorm:"type:uuid;index" json:"department_id,omitempty"`
	Active       bool                  `gorm:"default:true" json:"active"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	DeletedAt    gorm.DeletedAt        `gorm:"index" json:"-"`
}

// BeforeCreate generates a UUID before creating a new resource
func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Resource model
func (Resource) TableName() string {
	return "resources"
}

// UsableWith reports whether a room can be used by a practitioner from the
// given department. Rooms without a department are unrestricted.
func (r *Resource) UsableWith(departmentID *uuid.UUID) bool {
	if r.DepartmentID == nil || departmentID == nil {
		return true
	}
	return *r.DepartmentID == *departmentID
}
