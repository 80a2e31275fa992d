package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/services"
)

// URLMaintenance republishes signing pages before their links go stale.
// The sweep is silent: no notifications, no status changes, each contract
// handled independently so one failure never blocks the rest.
type URLMaintenance struct {
	log          *logger.Logger
	contractRepo repos.ContractRepo
	signing      services.SigningService
	maxAge       time.Duration
	now          func() time.Time
}

func NewURLMaintenance(
	baseLog *logger.Logger,
	contractRepo repos.ContractRepo,
	signing services.SigningService,
	maxAge time.Duration,
) *URLMaintenance {
	return &URLMaintenance{
		log:          baseLog.With("job", "URLMaintenance"),
		contractRepo: contractRepo,
		signing:      signing,
		maxAge:       maxAge,
		now:          time.Now,
	}
}

func (m *URLMaintenance) Name() string { return "url-maintenance" }

func (m *URLMaintenance) Run(ctx context.Context) error {
	cutoff := m.now().Add(-m.maxAge)
	stale, err := m.contractRepo.ListStaleSigningPages(ctx, nil, cutoff)
	if err != nil {
		return fmt.Errorf("list stale signing pages: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	refreshed := 0
	for _, contract := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := m.signing.RefreshPublication(ctx, contract.ID); err != nil {
			// Left stale until the next sweep; the old object keeps
			// serving in the meantime.
			m.log.Warn("Refresh failed", "contract_id", contract.ID, "error", err)
			continue
		}
		refreshed++
	}

	m.log.Info("Stale signing pages refreshed", "selected", len(stale), "refreshed", refreshed)
	return nil
}
