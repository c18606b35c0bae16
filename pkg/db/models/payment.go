package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/enums"
)

// Payment is the persisted record for one peer-to-peer payment, extended with
// the commission fields this service maintains. Keyed by (community_id,
// transaction_id); all commission writes are merge-upserts on that key.
type Payment struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	CommunityID   int64               `gorm:"column:community_id;not null;uniqueIndex:idx_payments_community_transaction"`
	TransactionID int64               `gorm:"column:transaction_id;not null;uniqueIndex:idx_payments_community_transaction"`
	PayerID       *string             `gorm:"column:payer_id"`
	ReceiverID    *string             `gorm:"column:receiver_id"`
	MerchantID    *string             `gorm:"column:merchant_id"`
	Currency      string              `gorm:"column:currency;not null;default:'USD'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	PaymentTotal  *decimal.Decimal    `gorm:"column:payment_total;type:numeric(12,2)"`

	CommissionStatus        enums.CommissionStatus `gorm:"column:commission_status;not null;default:''"`
	CommissionPaymentID     *string                `gorm:"column:commission_payment_id"`
	CommissionPaymentDate   *time.Time             `gorm:"column:commission_payment_date"`
	CommissionTotal         *decimal.Decimal       `gorm:"column:commission_total;type:numeric(12,2)"`
	CommissionFeeTotal      *decimal.Decimal       `gorm:"column:commission_fee_total;type:numeric(12,2)"`
	CommissionPendingReason *string                `gorm:"column:commission_pending_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
