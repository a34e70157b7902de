package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/repo"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

// TransactionRepository persists PayeeTransaction rows.
type TransactionRepository struct {
	repo.Base
}

// NewTransactionRepository constructs a transaction repository.
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{Base: repo.NewBase(db)}
}

// ListCompletedUnpaid returns settled transactions in the half-open window
// [start, end) that no completed payout has consumed yet.
func (r *TransactionRepository) ListCompletedUnpaid(ctx context.Context, payeeID uuid.UUID, start, end time.Time) ([]models.PayeeTransaction, error) {
	var transactions []models.PayeeTransaction
	err := r.DB(ctx).
		Where("payee_id = ? AND settled = TRUE AND payout_id IS NULL", payeeID).
		Where("occurred_at >= ? AND occurred_at < ?", start, end).
		Order("occurred_at ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unpaid transactions")
	}
	return transactions, nil
}

// MarkConsumed stamps the payout onto every unpaid settled transaction in the
// window. Called only when the payout completes; deferred and failed windows
// keep payout_id null so the next calculation re-includes them.
func (r *TransactionRepository) MarkConsumed(ctx context.Context, payeeID, payoutID uuid.UUID, start, end time.Time) (int64, error) {
	result := r.DB(ctx).Model(&models.PayeeTransaction{}).
		Where("payee_id = ? AND settled = TRUE AND payout_id IS NULL", payeeID).
		Where("occurred_at >= ? AND occurred_at < ?", start, end).
		Update("payout_id", payoutID)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "mark transactions consumed")
	}
	return result.RowsAffected, nil
}

// Create inserts a transaction row. Exposed for ingestion endpoints and tests.
func (r *TransactionRepository) Create(ctx context.Context, transaction *models.PayeeTransaction) error {
	if err := r.DB(ctx).Create(transaction).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	return nil
}
