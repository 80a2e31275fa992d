package types

import (
	"time"

	"github.com/google/uuid"
)

// Contract lifecycle statuses. Signed is terminal.
const (
	ContractStatusDraft  = "draft"
	ContractStatusSent   = "sent"
	ContractStatusSigned = "signed"
)

// Contract is the authoritative record of a performance contract.
// Signature facts live as columns on this row so the sent->signed
// transition is a single conditional write.
type Contract struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	ContractNumber string    `gorm:"not null;index:idx_contract_number_user,unique;column:contract_number" json:"contract_number"`

	// Client party. Mutable until signed, then frozen.
	ClientName    string `gorm:"not null;column:client_name" json:"client_name"`
	ClientEmail   string `gorm:"not null;column:client_email" json:"client_email"`
	ClientPhone   string `gorm:"column:client_phone" json:"client_phone"`
	ClientAddress string `gorm:"column:client_address" json:"client_address"`

	// Event facts.
	EventDate    time.Time `gorm:"not null;column:event_date" json:"event_date"`
	StartTime    string    `gorm:"column:start_time" json:"start_time"`
	EndTime      string    `gorm:"column:end_time" json:"end_time"`
	Venue        string    `gorm:"column:venue" json:"venue"`
	VenueAddress string    `gorm:"column:venue_address" json:"venue_address"`
	Fee          float64   `gorm:"column:fee" json:"fee"`
	Deposit      float64   `gorm:"column:deposit" json:"deposit"`

	// Lifecycle.
	Status          string     `gorm:"not null;default:draft;index;column:status" json:"status"`
	SignedAt        *time.Time `gorm:"column:signed_at" json:"signed_at"`
	SignatureName   string     `gorm:"column:signature_name" json:"signature_name"`
	ClientIPAddress string     `gorm:"column:client_ip_address" json:"-"`

	// Publication metadata for the cloud-hosted signing page.
	CloudStorageKey     string     `gorm:"column:cloud_storage_key" json:"cloud_storage_key"`
	CloudStorageURL     string     `gorm:"column:cloud_storage_url" json:"cloud_storage_url"`
	SigningURLCreatedAt *time.Time `gorm:"column:signing_url_created_at" json:"signing_url_created_at"`

	// Canonical PDF pointers, repointed after signing.
	ContractPDFKey string `gorm:"column:contract_pdf_key" json:"contract_pdf_key"`
	ContractPDFURL string `gorm:"column:contract_pdf_url" json:"contract_pdf_url"`

	// Reminder metadata, consumed by the reminder service.
	ReminderEnabled  bool       `gorm:"not null;default:true;column:reminder_enabled" json:"reminder_enabled"`
	ReminderDays     int        `gorm:"not null;default:3;column:reminder_days" json:"reminder_days"`
	LastReminderSent *time.Time `gorm:"column:last_reminder_sent" json:"last_reminder_sent"`
	ReminderCount    int        `gorm:"not null;default:0;column:reminder_count" json:"reminder_count"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Contract) TableName() string {
	return "contract"
}

func (c *Contract) IsSigned() bool {
	return c != nil && c.Status == ContractStatusSigned
}

// SignatureFacts are the immutable facts recorded by the winning sign
// transition.
type SignatureFacts struct {
	SignatureName   string    `json:"signature_name"`
	SignedAt        time.Time `json:"signed_at"`
	ClientIPAddress string    `json:"-"`
}

func (c *Contract) Signature() *SignatureFacts {
	if c == nil || c.SignedAt == nil {
		return nil
	}
	return &SignatureFacts{
		SignatureName:   c.SignatureName,
		SignedAt:        *c.SignedAt,
		ClientIPAddress: c.ClientIPAddress,
	}
}
