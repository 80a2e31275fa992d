package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/services"
)

// Reminders re-sends the signing request for sent contracts whose
// reminder interval has elapsed. Reminder bookkeeping is advanced even
// when the email fails so a broken mailer cannot cause a send storm.
type Reminders struct {
	log          *logger.Logger
	contractRepo repos.ContractRepo
	settingsRepo repos.SettingsRepo
	notify       services.NotificationService
	signing      services.SigningService
	now          func() time.Time
}

func NewReminders(
	baseLog *logger.Logger,
	contractRepo repos.ContractRepo,
	settingsRepo repos.SettingsRepo,
	notify services.NotificationService,
	signing services.SigningService,
) *Reminders {
	return &Reminders{
		log:          baseLog.With("job", "Reminders"),
		contractRepo: contractRepo,
		settingsRepo: settingsRepo,
		notify:       notify,
		signing:      signing,
		now:          time.Now,
	}
}

func (r *Reminders) Name() string { return "signing-reminders" }

func (r *Reminders) Run(ctx context.Context) error {
	due, err := r.contractRepo.ListReminderDue(ctx, nil, r.now())
	if err != nil {
		return fmt.Errorf("list reminder-due contracts: %w", err)
	}

	for _, contract := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		settings, err := r.settingsRepo.GetByUserID(ctx, nil, contract.UserID)
		if err != nil || settings == nil {
			r.log.Warn("Reminder skipped: settings unavailable",
				"contract_id", contract.ID, "error", err)
			continue
		}

		signingURL := contract.CloudStorageURL
		if signingURL == "" {
			signingURL = r.signing.FallbackSigningURL(contract.ID)
		}

		if err := r.contractRepo.TouchReminder(ctx, nil, contract.ID, r.now()); err != nil {
			r.log.Warn("Reminder bookkeeping failed, skipping send",
				"contract_id", contract.ID, "error", err)
			continue
		}

		if err := r.notify.SendSigningRequest(ctx, contract, settings, signingURL, ""); err != nil {
			r.log.Warn("Reminder email failed", "contract_id", contract.ID, "error", err)
		}
	}

	if len(due) > 0 {
		r.log.Info("Reminder sweep complete", "due", len(due))
	}
	return nil
}
