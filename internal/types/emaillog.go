package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Email kinds written by the notification dispatcher.
const (
	EmailKindSigningRequest        = "signing_request"
	EmailKindSignedClientCopy      = "signed_client_copy"
	EmailKindSignedPerformerNotice = "signed_performer_notice"
)

const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailLog is the audit trail for outbound mail. Dispatcher failures are
// recorded here rather than propagated into the signing flow.
type EmailLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContractID uint           `gorm:"not null;index;column:contract_id" json:"contract_id"`
	Kind       string         `gorm:"not null;column:kind" json:"kind"`
	Recipient  string         `gorm:"not null;column:recipient" json:"recipient"`
	Status     string         `gorm:"not null;column:status" json:"status"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Payload    datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (EmailLog) TableName() string {
	return "email_log"
}
