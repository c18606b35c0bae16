package payments

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/enums"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Each test gets its own shared-cache database so rows never leak between tests.
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  community_id INTEGER NOT NULL,
  transaction_id INTEGER NOT NULL,
  payer_id TEXT,
  receiver_id TEXT,
  merchant_id TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_total NUMERIC,
  commission_status TEXT NOT NULL DEFAULT '',
  commission_payment_id TEXT,
  commission_payment_date DATETIME,
  commission_total NUMERIC,
  commission_fee_total NUMERIC,
  commission_pending_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (community_id, transaction_id)
);`
	require.NoError(t, db.Exec(payments).Error)

	return db
}

func strPtr(v string) *string { return &v }

func statusPtr(v enums.PaymentStatus) *enums.PaymentStatus { return &v }

func commissionPtr(v enums.CommissionStatus) *enums.CommissionStatus { return &v }

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestFindMissingReturnsNotFound(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))

	_, err := repo.Find(context.Background(), 1, 42)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestMergeCreatesMissingRow(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))

	got, err := repo.Merge(context.Background(), 1, 42, Update{
		PayerID:       strPtr("payer-a"),
		PaymentStatus: statusPtr(enums.PaymentStatusCompleted),
		PaymentTotal:  decPtr("120.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.CommunityID)
	assert.Equal(t, int64(42), got.TransactionID)
	require.NotNil(t, got.PayerID)
	assert.Equal(t, "payer-a", *got.PayerID)
	assert.Equal(t, enums.PaymentStatusCompleted, got.PaymentStatus)
	require.NotNil(t, got.PaymentTotal)
	assert.True(t, got.PaymentTotal.Equal(decimal.RequireFromString("120.00")))
	assert.Equal(t, enums.CommissionStatusUnset, got.CommissionStatus)
}

func TestMergeKeepsUnsetFields(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	ctx := context.Background()

	_, err := repo.Merge(ctx, 1, 42, Update{
		PayerID:       strPtr("payer-a"),
		ReceiverID:    strPtr("payer-b"),
		PaymentStatus: statusPtr(enums.PaymentStatusCompleted),
		PaymentTotal:  decPtr("120.00"),
	})
	require.NoError(t, err)

	when := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)
	got, err := repo.Merge(ctx, 1, 42, Update{
		CommissionStatus:      commissionPtr(enums.CommissionStatus("completed")),
		CommissionPaymentID:   strPtr("9XY12345AB678901C"),
		CommissionPaymentDate: &when,
		CommissionTotal:       decPtr("12.00"),
		CommissionFeeTotal:    decPtr("0.65"),
	})
	require.NoError(t, err)

	// The earlier payment fields survive the commission merge.
	require.NotNil(t, got.PayerID)
	assert.Equal(t, "payer-a", *got.PayerID)
	require.NotNil(t, got.ReceiverID)
	assert.Equal(t, "payer-b", *got.ReceiverID)
	assert.Equal(t, enums.PaymentStatusCompleted, got.PaymentStatus)
	require.NotNil(t, got.PaymentTotal)
	assert.True(t, got.PaymentTotal.Equal(decimal.RequireFromString("120.00")))

	assert.Equal(t, enums.CommissionStatus("completed"), got.CommissionStatus)
	require.NotNil(t, got.CommissionPaymentID)
	assert.Equal(t, "9XY12345AB678901C", *got.CommissionPaymentID)
	require.NotNil(t, got.CommissionTotal)
	assert.True(t, got.CommissionTotal.Equal(decimal.RequireFromString("12.00")))
	require.NotNil(t, got.CommissionFeeTotal)
	assert.True(t, got.CommissionFeeTotal.Equal(decimal.RequireFromString("0.65")))
}

func TestMergeWithEmptyUpdateEnsuresRow(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	ctx := context.Background()

	got, err := repo.Merge(ctx, 7, 9, Update{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.CommunityID)
	assert.Equal(t, int64(9), got.TransactionID)

	// Merging nothing against an existing row leaves it untouched.
	_, err = repo.Merge(ctx, 7, 9, Update{MerchantID: strPtr("merchant-1")})
	require.NoError(t, err)
	again, err := repo.Merge(ctx, 7, 9, Update{})
	require.NoError(t, err)
	require.NotNil(t, again.MerchantID)
	assert.Equal(t, "merchant-1", *again.MerchantID)
}

func TestMergeScopesByCommunity(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	ctx := context.Background()

	_, err := repo.Merge(ctx, 1, 42, Update{MerchantID: strPtr("community-one")})
	require.NoError(t, err)
	_, err = repo.Merge(ctx, 2, 42, Update{MerchantID: strPtr("community-two")})
	require.NoError(t, err)

	first, err := repo.Find(ctx, 1, 42)
	require.NoError(t, err)
	second, err := repo.Find(ctx, 2, 42)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "community-one", *first.MerchantID)
	assert.Equal(t, "community-two", *second.MerchantID)
}

func TestCreateThenFind(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.Payment{
		CommunityID:   3,
		TransactionID: 77,
		Currency:      "USD",
		PaymentStatus: enums.PaymentStatusPending,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.Find(ctx, 3, 77)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, enums.PaymentStatusPending, got.PaymentStatus)
}

func TestCreateDuplicateReturnsConflict(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.Payment{CommunityID: 3, TransactionID: 77})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.Payment{CommunityID: 3, TransactionID: 77})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}
