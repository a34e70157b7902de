package payouts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/repo"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

// FeeConfigRepository persists PayeeFeeConfig rows.
type FeeConfigRepository struct {
	repo.Base
}

// NewFeeConfigRepository constructs a fee config repository.
func NewFeeConfigRepository(db *gorm.DB) *FeeConfigRepository {
	return &FeeConfigRepository{Base: repo.NewBase(db)}
}

// FindByPayee returns the payee's fee configuration, or nil when none exists.
// Callers treat a nil or inactive row as a configuration error.
func (r *FeeConfigRepository) FindByPayee(ctx context.Context, payeeID uuid.UUID) (*models.PayeeFeeConfig, error) {
	var cfg models.PayeeFeeConfig
	err := r.DB(ctx).Where("payee_id = ?", payeeID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find fee config")
	}
	return &cfg, nil
}

// Upsert creates or replaces the payee's fee configuration.
func (r *FeeConfigRepository) Upsert(ctx context.Context, cfg *models.PayeeFeeConfig) error {
	err := r.DB(ctx).
		Where("payee_id = ?", cfg.PayeeID).
		Assign(map[string]any{
			"override_rate": cfg.OverrideRate,
			"deductions":    cfg.Deductions,
			"account_ref":   cfg.AccountRef,
			"is_active":     cfg.IsActive,
		}).
		FirstOrCreate(&models.PayeeFeeConfig{PayeeID: cfg.PayeeID}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert fee config")
	}
	return nil
}
