package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

type EmailLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.EmailLog) error
	ListByContract(ctx context.Context, tx *gorm.DB, contractID uint) ([]*types.EmailLog, error)
}

type emailLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmailLogRepo(db *gorm.DB, baseLog *logger.Logger) EmailLogRepo {
	return &emailLogRepo{db: db, log: baseLog.With("repo", "EmailLogRepo")}
}

func (er *emailLogRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return er.db
}

func (er *emailLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.EmailLog) error {
	return er.conn(tx).WithContext(ctx).Create(entry).Error
}

func (er *emailLogRepo) ListByContract(ctx context.Context, tx *gorm.DB, contractID uint) ([]*types.EmailLog, error) {
	var results []*types.EmailLog
	if err := er.conn(tx).WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
