package services

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

type SettingsService interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.BusinessSettings, error)
	Upsert(ctx context.Context, userID uuid.UUID, settings *types.BusinessSettings) (*types.BusinessSettings, error)
}

type settingsService struct {
	db           *gorm.DB
	log          *logger.Logger
	settingsRepo repos.SettingsRepo
}

func NewSettingsService(db *gorm.DB, baseLog *logger.Logger, settingsRepo repos.SettingsRepo) SettingsService {
	return &settingsService{
		db:           db,
		log:          baseLog.With("service", "SettingsService"),
		settingsRepo: settingsRepo,
	}
}

func (ss *settingsService) Get(ctx context.Context, userID uuid.UUID) (*types.BusinessSettings, error) {
	settings, err := ss.settingsRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if settings == nil {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeNotFound,
			fmt.Errorf("business settings not configured"))
	}
	return settings, nil
}

func (ss *settingsService) Upsert(ctx context.Context, userID uuid.UUID, settings *types.BusinessSettings) (*types.BusinessSettings, error) {
	settings.UserID = userID
	settings.BusinessName = strings.TrimSpace(settings.BusinessName)
	settings.BusinessEmail = strings.TrimSpace(settings.BusinessEmail)
	settings.NotificationEmail = strings.TrimSpace(settings.NotificationEmail)

	if settings.BusinessName == "" {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidation, fmt.Errorf("business name is required"))
	}
	if _, err := mail.ParseAddress(settings.BusinessEmail); err != nil {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidation, fmt.Errorf("invalid business email"))
	}
	if settings.NotificationEmail != "" {
		if _, err := mail.ParseAddress(settings.NotificationEmail); err != nil {
			return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidation, fmt.Errorf("invalid notification email"))
		}
	}

	if err := ss.settingsRepo.Upsert(ctx, nil, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	ss.log.Info("Business settings saved", "user_id", userID)
	return settings, nil
}
