// Package payments persists payment rows and their commission outcome fields.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/danielvasquez-dev/marketplace-billing/internal/repo"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/db"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/enums"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
)

// Repository exposes payment persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a payment repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Update describes a partial write against a payment row. Nil fields are left
// untouched on merge.
type Update struct {
	PayerID                 *string
	ReceiverID              *string
	MerchantID              *string
	Currency                *string
	PaymentStatus           *enums.PaymentStatus
	PaymentTotal            *decimal.Decimal
	CommissionStatus        *enums.CommissionStatus
	CommissionPaymentID     *string
	CommissionPaymentDate   *time.Time
	CommissionTotal         *decimal.Decimal
	CommissionFeeTotal      *decimal.Decimal
	CommissionPendingReason *string
}

func (u Update) assignments() map[string]any {
	out := map[string]any{}
	if u.PayerID != nil {
		out["payer_id"] = *u.PayerID
	}
	if u.ReceiverID != nil {
		out["receiver_id"] = *u.ReceiverID
	}
	if u.MerchantID != nil {
		out["merchant_id"] = *u.MerchantID
	}
	if u.Currency != nil {
		out["currency"] = *u.Currency
	}
	if u.PaymentStatus != nil {
		out["payment_status"] = u.PaymentStatus.String()
	}
	if u.PaymentTotal != nil {
		out["payment_total"] = *u.PaymentTotal
	}
	if u.CommissionStatus != nil {
		out["commission_status"] = u.CommissionStatus.String()
	}
	if u.CommissionPaymentID != nil {
		out["commission_payment_id"] = *u.CommissionPaymentID
	}
	if u.CommissionPaymentDate != nil {
		out["commission_payment_date"] = *u.CommissionPaymentDate
	}
	if u.CommissionTotal != nil {
		out["commission_total"] = *u.CommissionTotal
	}
	if u.CommissionFeeTotal != nil {
		out["commission_fee_total"] = *u.CommissionFeeTotal
	}
	if u.CommissionPendingReason != nil {
		out["commission_pending_reason"] = *u.CommissionPendingReason
	}
	return out
}

func (u Update) apply(p *models.Payment) {
	if u.PayerID != nil {
		p.PayerID = u.PayerID
	}
	if u.ReceiverID != nil {
		p.ReceiverID = u.ReceiverID
	}
	if u.MerchantID != nil {
		p.MerchantID = u.MerchantID
	}
	if u.Currency != nil {
		p.Currency = *u.Currency
	}
	if u.PaymentStatus != nil {
		p.PaymentStatus = *u.PaymentStatus
	}
	if u.PaymentTotal != nil {
		p.PaymentTotal = u.PaymentTotal
	}
	if u.CommissionStatus != nil {
		p.CommissionStatus = *u.CommissionStatus
	}
	if u.CommissionPaymentID != nil {
		p.CommissionPaymentID = u.CommissionPaymentID
	}
	if u.CommissionPaymentDate != nil {
		p.CommissionPaymentDate = u.CommissionPaymentDate
	}
	if u.CommissionTotal != nil {
		p.CommissionTotal = u.CommissionTotal
	}
	if u.CommissionFeeTotal != nil {
		p.CommissionFeeTotal = u.CommissionFeeTotal
	}
	if u.CommissionPendingReason != nil {
		p.CommissionPendingReason = u.CommissionPendingReason
	}
}

// Find returns the payment keyed by (communityID, transactionID), or a typed
// NOT_FOUND error when no row exists.
func (r *Repository) Find(ctx context.Context, communityID, transactionID int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.DB(ctx).
		Where("community_id = ? AND transaction_id = ?", communityID, transactionID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment")
	}
	return &payment, nil
}

// Create inserts a new payment row. A second insert for the same
// (communityID, transactionID) pair yields a typed CONFLICT error.
func (r *Repository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.DB(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating payment")
	}
	return payment, nil
}

// Merge upserts the payment keyed by (communityID, transactionID): a missing
// row is created from the update, an existing row keeps every field the update
// does not set. The merged row is returned.
func (r *Repository) Merge(ctx context.Context, communityID, transactionID int64, update Update) (*models.Payment, error) {
	seed := models.Payment{
		CommunityID:   communityID,
		TransactionID: transactionID,
	}
	update.apply(&seed)

	tx := r.DB(ctx)
	assignments := update.assignments()
	if len(assignments) == 0 {
		// Nothing to merge; still guarantee the row exists.
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "community_id"}, {Name: "transaction_id"}},
			DoNothing: true,
		}).Create(&seed).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upserting payment")
		}
		return r.Find(ctx, communityID, transactionID)
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "transaction_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&seed).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upserting payment")
	}
	return r.Find(ctx, communityID, transactionID)
}
