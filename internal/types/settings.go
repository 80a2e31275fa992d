package types

import (
	"time"

	"github.com/google/uuid"
)

// BusinessSettings holds the performer-side party fields rendered into
// every contract, plus notification preferences. One row per performer.
type BusinessSettings struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:user_id" json:"user_id"`

	BusinessName    string `gorm:"not null;column:business_name" json:"business_name"`
	BusinessAddress string `gorm:"column:business_address" json:"business_address"`
	BusinessEmail   string `gorm:"not null;column:business_email" json:"business_email"`
	BusinessPhone   string `gorm:"column:business_phone" json:"business_phone"`

	// Optional distinct address for "contract was signed" notifications.
	NotificationEmail string `gorm:"column:notification_email" json:"notification_email"`

	// Default message body for the signing-request email.
	DefaultEmailMessage string `gorm:"column:default_email_message" json:"default_email_message"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (BusinessSettings) TableName() string {
	return "business_settings"
}
