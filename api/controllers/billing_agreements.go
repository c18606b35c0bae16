package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/danielvasquez-dev/marketplace-billing/api/responses"
	"github.com/danielvasquez-dev/marketplace-billing/api/validators"
	"github.com/danielvasquez-dev/marketplace-billing/internal/commission"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
)

// ChargeCommissionBody is the request payload for charging a commission.
type ChargeCommissionBody struct {
	TransactionID     int64           `json:"transaction_id" validate:"required"`
	CommissionToAdmin decimal.Decimal `json:"commission_to_admin" validate:"required"`
	MinimumCommission decimal.Decimal `json:"minimum_commission"`
	PaymentName       string          `json:"payment_name" validate:"required,max=127"`
	PaymentDesc       string          `json:"payment_desc" validate:"max=127"`
	Async             bool            `json:"async"`
}

// PaymentResponse is the public shape of a payment row.
type PaymentResponse struct {
	CommunityID             int64      `json:"community_id"`
	TransactionID           int64      `json:"transaction_id"`
	MerchantID              *string    `json:"merchant_id,omitempty"`
	PaymentStatus           string     `json:"payment_status"`
	CommissionStatus        string     `json:"commission_status"`
	CommissionPaymentID     *string    `json:"commission_payment_id,omitempty"`
	CommissionPaymentDate   *time.Time `json:"commission_payment_date,omitempty"`
	CommissionTotal         *string    `json:"commission_total,omitempty"`
	CommissionFeeTotal      *string    `json:"commission_fee_total,omitempty"`
	CommissionPendingReason *string    `json:"commission_pending_reason,omitempty"`
}

func paymentResponseFrom(payment *models.Payment) PaymentResponse {
	resp := PaymentResponse{
		CommunityID:             payment.CommunityID,
		TransactionID:           payment.TransactionID,
		MerchantID:              payment.MerchantID,
		PaymentStatus:           payment.PaymentStatus.String(),
		CommissionStatus:        payment.CommissionStatus.String(),
		CommissionPaymentID:     payment.CommissionPaymentID,
		CommissionPaymentDate:   payment.CommissionPaymentDate,
		CommissionPendingReason: payment.CommissionPendingReason,
	}
	if payment.CommissionTotal != nil {
		total := payment.CommissionTotal.StringFixed(2)
		resp.CommissionTotal = &total
	}
	if payment.CommissionFeeTotal != nil {
		fee := payment.CommissionFeeTotal.StringFixed(2)
		resp.CommissionFeeTotal = &fee
	}
	return resp
}

// ChargeCommission charges the marketplace commission for one transaction,
// synchronously by default or through the dispatcher when async is requested.
func ChargeCommission(svc *commission.Service, dispatcher *commission.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		communityID, personID, err := chargePathParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body ChargeCommissionBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// validator's required cannot catch a JSON zero here: it decodes into
		// a non-zero decimal.Decimal struct.
		if !body.CommissionToAdmin.IsPositive() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "commission_to_admin must be positive"))
			return
		}
		if body.MinimumCommission.IsNegative() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "commission amounts must not be negative"))
			return
		}

		params := commission.ChargeParams{
			CommunityID:       communityID,
			PersonID:          personID,
			TransactionID:     body.TransactionID,
			CommissionToAdmin: body.CommissionToAdmin,
			MinimumCommission: body.MinimumCommission,
			PaymentName:       validators.SanitizeString(body.PaymentName, 127),
			PaymentDesc:       validators.SanitizeString(body.PaymentDesc, 127),
		}

		if body.Async {
			if dispatcher == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatcher unavailable"))
				return
			}
			status, err := dispatcher.Enqueue(r.Context(), params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusAccepted, status)
			return
		}

		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		payment, err := svc.Charge(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentResponseFrom(payment))
	}
}

// GetProcess reports the state of a dispatched charge.
func GetProcess(dispatcher *commission.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatcher unavailable"))
			return
		}

		token := chi.URLParam(r, "token")
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "process token required"))
			return
		}

		status, err := dispatcher.Poll(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// BillingAgreementResponse is the public shape of an account's agreement state.
type BillingAgreementResponse struct {
	CommunityID        int64   `json:"community_id"`
	PersonID           string  `json:"person_id"`
	Email              string  `json:"email"`
	BillingAgreementID *string `json:"billing_agreement_id,omitempty"`
	Active             bool    `json:"active"`
}

type memberFinder interface {
	FindMember(ctx context.Context, communityID int64, personID string) (*models.Account, error)
}

// GetBillingAgreement returns a member's billing agreement state.
func GetBillingAgreement(accounts memberFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if accounts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account repository unavailable"))
			return
		}

		communityID, personID, err := chargePathParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := accounts.FindMember(r.Context(), communityID, personID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, BillingAgreementResponse{
			CommunityID:        account.CommunityID,
			PersonID:           account.PersonID,
			Email:              account.Email,
			BillingAgreementID: account.BillingAgreementID,
			Active:             account.BillingAgreementID != nil && *account.BillingAgreementID != "",
		})
	}
}

func chargePathParams(r *http.Request) (int64, string, error) {
	communityID, err := strconv.ParseInt(chi.URLParam(r, "communityID"), 10, 64)
	if err != nil || communityID <= 0 {
		return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "community id must be a positive integer")
	}
	personID := chi.URLParam(r, "personID")
	if personID == "" {
		return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "person id required")
	}
	return communityID, personID, nil
}
