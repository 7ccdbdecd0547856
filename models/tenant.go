package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the owning company of campaigns, webhooks, and directory users.
// Account management lives outside this service; the engine only reads tenants.
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_tenants_uuid" json:"uuid"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (Tenant) TableName() string {
	return "tenants"
}

// BeforeCreate is called before creating a new record
func (t *Tenant) BeforeCreate() error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

// DirectoryUser is a member of a tenant's directory, the raw material the
// target resolver works on. Users flagged opted-out are excluded from every
// campaign regardless of target specs.
type DirectoryUser struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"not null;index:idx_directory_users_tenant_id" json:"tenant_id"`
	Email      string    `gorm:"type:varchar(255);not null;index:idx_directory_users_email" json:"email"`
	FirstName  string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName   string    `gorm:"type:varchar(100)" json:"last_name"`
	Department string    `gorm:"type:varchar(100);index:idx_directory_users_department" json:"department"`
	Role       string    `gorm:"type:varchar(100);index:idx_directory_users_role" json:"role"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	OptedOut   *bool     `gorm:"not null;default:false" json:"opted_out"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
}

// TableName returns the table name for the model
func (DirectoryUser) TableName() string {
	return "directory_users"
}
