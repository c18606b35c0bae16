// Package lookup resolves the accounts and payment a commission charge needs,
// failing fast with typed errors when any prerequisite is missing.
package lookup

import (
	"context"
	"fmt"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/enums"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
)

type accountFinder interface {
	FindMember(ctx context.Context, communityID int64, personID string) (*models.Account, error)
	FindAdmin(ctx context.Context, communityID int64) (*models.Account, error)
}

type paymentFinder interface {
	Find(ctx context.Context, communityID, transactionID int64) (*models.Payment, error)
}

// Service resolves charge prerequisites from persistence.
type Service struct {
	accounts accountFinder
	payments paymentFinder
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Accounts accountFinder
	Payments paymentFinder
}

// NewService validates dependencies and builds a lookup service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("account repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	return &Service{accounts: params.Accounts, payments: params.Payments}, nil
}

// Accounts holds the two parties of a commission charge.
type Accounts struct {
	Merchant *models.Account
	Admin    *models.Account
}

// WithAccounts resolves the merchant's account and the community admin's
// account, returning NOT_FOUND when either is missing.
func (s *Service) WithAccounts(ctx context.Context, communityID int64, personID string) (Accounts, error) {
	merchant, err := s.accounts.FindMember(ctx, communityID, personID)
	if err != nil {
		return Accounts{}, err
	}
	admin, err := s.accounts.FindAdmin(ctx, communityID)
	if err != nil {
		return Accounts{}, err
	}
	return Accounts{Merchant: merchant, Admin: admin}, nil
}

// WithCompletedPayment returns the payment for the transaction and requires it
// to be in the completed state. A missing row is NOT_FOUND; any other payment
// state is STATE_CONFLICT.
func (s *Service) WithCompletedPayment(ctx context.Context, communityID, transactionID int64) (*models.Payment, error) {
	payment, err := s.payments.Find(ctx, communityID, transactionID)
	if err != nil {
		return nil, err
	}
	if payment.PaymentStatus != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not completed").
			WithDetails(map[string]any{"payment_status": payment.PaymentStatus.String()})
	}
	return payment, nil
}
