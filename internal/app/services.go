package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/jobs"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/render"
	"github.com/gigfolio/gigfolio-backend/internal/services"
)

type Services struct {
	Auth     services.AuthService
	Settings services.SettingsService
	Contract services.ContractService
	Notify   services.NotificationService
	Signing  services.SigningService

	Renderer  render.Renderer
	JobWorker *jobs.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	renderer, err := render.New(log, cfg.Render)
	if err != nil {
		return Services{}, fmt.Errorf("init renderer: %w", err)
	}

	notify := services.NewNotificationService(db, log, clients.Mailer, renderer, reposet.EmailLog)

	signing := services.NewSigningService(
		db, log,
		reposet.Contract, reposet.Settings,
		renderer, clients.Store, notify,
		cfg.PublicBaseURL,
	)

	worker := jobs.NewWorker(log)
	worker.Register(jobs.NewURLMaintenance(log, reposet.Contract, signing, cfg.SigningURLMaxAge), cfg.MaintenanceInterval)
	worker.Register(jobs.NewReminders(log, reposet.Contract, reposet.Settings, notify, signing), cfg.ReminderInterval)

	return Services{
		Auth:      services.NewAuthService(db, log, reposet.User, reposet.UserToken, cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL),
		Settings:  services.NewSettingsService(db, log, reposet.Settings),
		Contract:  services.NewContractService(db, log, reposet.Contract, reposet.Settings, renderer),
		Notify:    notify,
		Signing:   signing,
		Renderer:  renderer,
		JobWorker: worker,
	}, nil
}
