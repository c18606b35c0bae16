package models

import (
	"time"
)

// Account is a marketplace member's gateway account, holding the identities
// needed to charge a commission against their billing agreement.
type Account struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CommunityID        int64     `gorm:"column:community_id;not null;uniqueIndex:idx_accounts_community_person"`
	PersonID           string    `gorm:"column:person_id;not null;uniqueIndex:idx_accounts_community_person"`
	PayerID            string    `gorm:"column:payer_id;not null"`
	Email              string    `gorm:"column:email;not null"`
	BillingAgreementID *string   `gorm:"column:billing_agreement_id"`
	IsAdmin            bool      `gorm:"column:is_admin;not null;default:false"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SamePayer reports whether two accounts resolve to the same gateway payer.
func (a Account) SamePayer(other Account) bool {
	return a.PayerID == other.PayerID
}
