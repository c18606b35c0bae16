package lookup

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/danielvasquez-dev/marketplace-billing/internal/repo"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
)

// AccountRepository loads gateway accounts by marketplace identity.
type AccountRepository struct {
	repo.Base
}

// NewAccountRepository constructs an account repository tied to the provided GORM DB.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{Base: repo.NewBase(db)}
}

// FindMember returns the account for one member of a community.
func (r *AccountRepository) FindMember(ctx context.Context, communityID int64, personID string) (*models.Account, error) {
	var account models.Account
	err := r.DB(ctx).
		Where("community_id = ? AND person_id = ?", communityID, personID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading member account")
	}
	return &account, nil
}

// FindAdmin returns the community admin's account.
func (r *AccountRepository) FindAdmin(ctx context.Context, communityID int64) (*models.Account, error) {
	var account models.Account
	err := r.DB(ctx).
		Where("community_id = ? AND is_admin = ?", communityID, true).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "community admin account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading admin account")
	}
	return &account, nil
}
