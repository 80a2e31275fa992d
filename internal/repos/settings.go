package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

type SettingsRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.BusinessSettings, error)
	Upsert(ctx context.Context, tx *gorm.DB, settings *types.BusinessSettings) error
}

type settingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingsRepo(db *gorm.DB, baseLog *logger.Logger) SettingsRepo {
	return &settingsRepo{db: db, log: baseLog.With("repo", "SettingsRepo")}
}

func (sr *settingsRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return sr.db
}

func (sr *settingsRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.BusinessSettings, error) {
	var result types.BusinessSettings
	err := sr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (sr *settingsRepo) Upsert(ctx context.Context, tx *gorm.DB, settings *types.BusinessSettings) error {
	existing, err := sr.GetByUserID(ctx, tx, settings.UserID)
	if err != nil {
		return err
	}
	if existing == nil {
		if settings.ID == uuid.Nil {
			settings.ID = uuid.New()
		}
		return sr.conn(tx).WithContext(ctx).Create(settings).Error
	}
	settings.ID = existing.ID
	settings.CreatedAt = existing.CreatedAt
	return sr.conn(tx).WithContext(ctx).Save(settings).Error
}
