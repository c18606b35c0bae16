package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielvasquez-dev/marketplace-billing/internal/invoice"
	"github.com/danielvasquez-dev/marketplace-billing/internal/lookup"
	"github.com/danielvasquez-dev/marketplace-billing/internal/payments"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/enums"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/metrics"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/paypal"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/request"
)

// Gateway is the billing-agreement charge surface of the payment gateway.
type Gateway interface {
	DoReferenceTransaction(ctx context.Context, params paypal.ReferenceTransactionParams) (*paypal.ReferenceTransactionResult, error)
}

type lookupService interface {
	WithAccounts(ctx context.Context, communityID int64, personID string) (lookup.Accounts, error)
	WithCompletedPayment(ctx context.Context, communityID, transactionID int64) (*models.Payment, error)
}

type paymentStore interface {
	Merge(ctx context.Context, communityID, transactionID int64, update payments.Update) (*models.Payment, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Lookup   lookupService
	Payments paymentStore
	Gateway  Gateway
	Lock     ChargeLock
	Logger   *logger.Logger
	Metrics  *metrics.ChargeMetrics
	Policy   request.Policy
	Currency string
}

// Service charges marketplace commissions against billing agreements.
type Service struct {
	lookup   lookupService
	payments paymentStore
	gateway  Gateway
	lock     ChargeLock
	logg     *logger.Logger
	metrics  *metrics.ChargeMetrics
	policy   request.Policy
	currency string
}

// NewService validates dependencies and builds the commission service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Lookup == nil {
		return nil, fmt.Errorf("lookup service required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("charge lock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		lookup:   params.Lookup,
		payments: params.Payments,
		gateway:  params.Gateway,
		lock:     params.Lock,
		logg:     params.Logger,
		metrics:  params.Metrics,
		policy:   params.Policy,
		currency: currency,
	}, nil
}

// Charge collects the commission for one completed payment. Eligibility gates
// short-circuit without touching the gateway; gateway failures retry per the
// configured policy and leave the payment record unchanged when exhausted.
func (s *Service) Charge(ctx context.Context, params ChargeParams) (*models.Payment, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration(time.Since(start)) }()

	ctx = s.logg.WithCommunityID(ctx, params.CommunityID)
	ctx = s.logg.WithTransactionID(ctx, params.TransactionID)

	release, ok, err := s.lock.Acquire(ctx, params.CommunityID, params.TransactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring charge lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "commission charge already in progress")
	}
	defer release(context.WithoutCancel(ctx))

	accounts, err := s.lookup.WithAccounts(ctx, params.CommunityID, params.PersonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookup.WithCompletedPayment(ctx, params.CommunityID, params.TransactionID); err != nil {
		return nil, err
	}

	if status, skip := s.eligibility(accounts, params); skip {
		return s.skipCharge(ctx, params, accounts, status)
	}

	if accounts.Merchant.BillingAgreementID == nil || *accounts.Merchant.BillingAgreementID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "merchant has no active billing agreement")
	}

	description := params.PaymentDesc
	if description == "" {
		description = params.PaymentName
	}
	gwParams := paypal.ReferenceTransactionParams{
		ReceiverEmail:      accounts.Admin.Email,
		BillingAgreementID: *accounts.Merchant.BillingAgreementID,
		Total:              params.CommissionToAdmin,
		Currency:           s.currency,
		Name:               params.PaymentName,
		Description:        description,
		InvoiceNumber:      invoice.Create(params.CommunityID, params.TransactionID, invoice.PurposeCommission),
	}

	executor := request.Executor{
		Logger: s.logg,
		Hooks: request.Hooks{
			OnAttempt: func(attempt int, err error) {
				result := "success"
				if err != nil {
					result = "failure"
				}
				s.metrics.IncAttempt(result)
			},
			OnRetry: func(code string, attempt int) {
				s.metrics.IncRetry(code)
			},
		},
	}

	var updated *models.Payment
	err = request.Do(ctx, executor, s.policy,
		func(ctx context.Context) (*paypal.ReferenceTransactionResult, error) {
			return s.gateway.DoReferenceTransaction(ctx, gwParams)
		},
		func(ctx context.Context, result *paypal.ReferenceTransactionResult) error {
			merged, mergeErr := s.recordCharge(ctx, params, accounts, result)
			if mergeErr != nil {
				return mergeErr
			}
			updated = merged
			return nil
		},
	)
	if err != nil {
		var terminal *request.TerminalError
		if errors.As(err, &terminal) {
			s.metrics.IncOutcome("failed")
			s.logg.Error(ctx, "commission charge exhausted retries", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "commission charge failed").
				WithDetails(map[string]any{
					"failure_code": terminal.Code,
					"attempts":     terminal.Attempts,
				})
		}
		return nil, err
	}

	s.metrics.IncOutcome(updated.CommissionStatus.String())
	s.logg.Info(ctx, "commission charged")
	return updated, nil
}

// eligibility applies the local gates that make a charge unnecessary.
func (s *Service) eligibility(accounts lookup.Accounts, params ChargeParams) (enums.CommissionStatus, bool) {
	if accounts.Merchant.SamePayer(*accounts.Admin) {
		return enums.CommissionStatusSellerIsAdmin, true
	}
	if params.CommissionToAdmin.LessThan(params.MinimumCommission) {
		return enums.CommissionStatusBelowMinimum, true
	}
	return enums.CommissionStatusUnset, false
}

func (s *Service) skipCharge(ctx context.Context, params ChargeParams, accounts lookup.Accounts, status enums.CommissionStatus) (*models.Payment, error) {
	merchantID := accounts.Merchant.PersonID
	payment, err := s.payments.Merge(ctx, params.CommunityID, params.TransactionID, payments.Update{
		MerchantID:       &merchantID,
		CommissionStatus: &status,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncOutcome(status.String())
	s.logg.Info(s.logg.WithField(ctx, "commission_status", status.String()), "commission not applicable")
	return payment, nil
}

func (s *Service) recordCharge(ctx context.Context, params ChargeParams, accounts lookup.Accounts, result *paypal.ReferenceTransactionResult) (*models.Payment, error) {
	merchantID := accounts.Merchant.PersonID
	status := enums.CommissionStatus(strings.ToLower(result.Status))
	update := payments.Update{
		MerchantID:          &merchantID,
		CommissionStatus:    &status,
		CommissionPaymentID: &result.PaymentID,
		CommissionTotal:     &result.Total,
		CommissionFeeTotal:  &result.FeeTotal,
	}
	if !result.PaymentDate.IsZero() {
		date := result.PaymentDate
		update.CommissionPaymentDate = &date
	}
	if result.PendingReason != "" {
		reason := result.PendingReason
		update.CommissionPendingReason = &reason
	}
	return s.payments.Merge(ctx, params.CommunityID, params.TransactionID, update)
}
