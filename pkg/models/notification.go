package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery channels a notification can be sent through. In-app delivery is
// implicit: every notification is stored in the inbox.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	NotificationPaymentReceived = "payment_received"
	NotificationPaymentOverdue  = "payment_overdue"
	NotificationImportFinished  = "bank_import_finished"
	NotificationGeneral         = "general"
)

type Notification struct {
	ID        uuid.UUID         `db:"id"         json:"id"`
	CompanyID uuid.UUID         `db:"company_id" json:"company_id"`
	Recipient string            `db:"recipient"  json:"recipient"`
	Type      string            `db:"type"       json:"type"`
	Title     string            `db:"title"      json:"title"`
	Body      string            `db:"body"       json:"body"`
	Channels  []string          `db:"channels"   json:"channels"`
	Email     *string           `db:"email"      json:"email,omitempty"`
	Phone     *string           `db:"phone"      json:"phone,omitempty"`
	Metadata  map[string]string `db:"metadata"   json:"metadata,omitempty"`
	ReadAt    *time.Time        `db:"read_at"    json:"read_at,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

func (n Notification) IsRead() bool { return n.ReadAt != nil }
