// Package commission charges the marketplace commission for a completed
// payment against the merchant's billing agreement, synchronously or through
// an async dispatcher with pollable process tokens.
package commission

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
)

// OpChargeCommission tags queued jobs with the operation they carry.
const OpChargeCommission = "charge_commission"

// ChargeParams is the full input for one commission charge.
type ChargeParams struct {
	CommunityID       int64           `json:"community_id"`
	PersonID          string          `json:"person_id"`
	TransactionID     int64           `json:"transaction_id"`
	CommissionToAdmin decimal.Decimal `json:"commission_to_admin"`
	MinimumCommission decimal.Decimal `json:"minimum_commission"`
	PaymentName       string          `json:"payment_name"`
	PaymentDesc       string          `json:"payment_desc,omitempty"`
}

// Job is one queued charge, bound to the process token that tracks it.
type Job struct {
	ProcessToken string       `json:"process_token"`
	Op           string       `json:"op"`
	Params       ChargeParams `json:"params"`
}

// PaymentOutcome is the JSON-safe snapshot of a payment's commission fields,
// stored against the process token when a charge settles.
type PaymentOutcome struct {
	CommunityID             int64      `json:"community_id"`
	TransactionID           int64      `json:"transaction_id"`
	MerchantID              string     `json:"merchant_id,omitempty"`
	CommissionStatus        string     `json:"commission_status"`
	CommissionPaymentID     string     `json:"commission_payment_id,omitempty"`
	CommissionPaymentDate   *time.Time `json:"commission_payment_date,omitempty"`
	CommissionTotal         string     `json:"commission_total,omitempty"`
	CommissionFeeTotal      string     `json:"commission_fee_total,omitempty"`
	CommissionPendingReason string     `json:"commission_pending_reason,omitempty"`
}

// PaymentOutcomeFrom flattens a payment row into its outcome snapshot.
func PaymentOutcomeFrom(payment *models.Payment) *PaymentOutcome {
	if payment == nil {
		return nil
	}
	out := &PaymentOutcome{
		CommunityID:           payment.CommunityID,
		TransactionID:         payment.TransactionID,
		CommissionStatus:      payment.CommissionStatus.String(),
		CommissionPaymentDate: payment.CommissionPaymentDate,
	}
	if payment.MerchantID != nil {
		out.MerchantID = *payment.MerchantID
	}
	if payment.CommissionPaymentID != nil {
		out.CommissionPaymentID = *payment.CommissionPaymentID
	}
	if payment.CommissionTotal != nil {
		out.CommissionTotal = payment.CommissionTotal.StringFixed(2)
	}
	if payment.CommissionFeeTotal != nil {
		out.CommissionFeeTotal = payment.CommissionFeeTotal.StringFixed(2)
	}
	if payment.CommissionPendingReason != nil {
		out.CommissionPendingReason = *payment.CommissionPendingReason
	}
	return out
}

// Outcome is the terminal result of one dispatched charge.
type Outcome struct {
	Success      bool            `json:"success"`
	Payment      *PaymentOutcome `json:"payment,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// ProcessStatus is the pollable state of a dispatched charge.
type ProcessStatus struct {
	ProcessToken string   `json:"process_token"`
	Completed    bool     `json:"completed"`
	Result       *Outcome `json:"result,omitempty"`
}
