package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/services"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// stubContractRepo serves only the queries the sweeps use; embedding the
// interface leaves the rest unimplemented.
type stubContractRepo struct {
	repos.ContractRepo

	mu        sync.Mutex
	stale     []*types.Contract
	due       []*types.Contract
	reminders []uint
}

func (s *stubContractRepo) ListStaleSigningPages(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Contract, error) {
	return s.stale, nil
}

func (s *stubContractRepo) ListReminderDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Contract, error) {
	return s.due, nil
}

func (s *stubContractRepo) TouchReminder(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, id)
	return nil
}

// stubSigning records refresh calls and fails selected contracts.
type stubSigning struct {
	mu        sync.Mutex
	refreshed []uint
	failIDs   map[uint]bool
}

func (s *stubSigning) RefreshPublication(ctx context.Context, contractID uint) (*services.PublicationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[contractID] {
		return nil, fmt.Errorf("store unavailable")
	}
	s.refreshed = append(s.refreshed, contractID)
	return &services.PublicationResult{StorageKey: "signing-pages/fresh", SigningURL: "https://cdn.test/fresh"}, nil
}

func (s *stubSigning) PublishForSending(ctx context.Context, contractID uint) (*services.PublicationResult, error) {
	return nil, fmt.Errorf("not used")
}

func (s *stubSigning) ExecuteSign(ctx context.Context, contractID uint, input services.SignSubmission) (*services.SignResponse, error) {
	return nil, fmt.Errorf("not used")
}

func (s *stubSigning) MarkSentFallback(ctx context.Context, contractID uint) error { return nil }

func (s *stubSigning) FallbackSigningURL(contractID uint) string {
	return fmt.Sprintf("https://app.test/contracts/sign/%d", contractID)
}

func (s *stubSigning) RenderFallbackPage(ctx context.Context, contractID uint) ([]byte, error) {
	return nil, fmt.Errorf("not used")
}

func sentContract(id uint) *types.Contract {
	at := time.Now().Add(-7 * 24 * time.Hour)
	return &types.Contract{
		ID:                  id,
		ContractNumber:      fmt.Sprintf("CN-%04d", id),
		Status:              types.ContractStatusSent,
		CloudStorageKey:     fmt.Sprintf("signing-pages/old-%d.html", id),
		SigningURLCreatedAt: &at,
	}
}

func TestURLMaintenanceRefreshesEveryStaleContract(t *testing.T) {
	repo := &stubContractRepo{stale: []*types.Contract{sentContract(1), sentContract(2), sentContract(3)}}
	signing := &stubSigning{}

	job := NewURLMaintenance(testLogger(t), repo, signing, 6*24*time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(signing.refreshed) != 3 {
		t.Fatalf("refreshed: want=3 got=%d", len(signing.refreshed))
	}
}

func TestURLMaintenanceOneFailureDoesNotBlockTheRest(t *testing.T) {
	repo := &stubContractRepo{stale: []*types.Contract{sentContract(1), sentContract(2), sentContract(3)}}
	signing := &stubSigning{failIDs: map[uint]bool{2: true}}

	job := NewURLMaintenance(testLogger(t), repo, signing, 6*24*time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("a per-contract failure must not fail the sweep: %v", err)
	}

	got := map[uint]bool{}
	for _, id := range signing.refreshed {
		got[id] = true
	}
	if !got[1] || !got[3] || got[2] {
		t.Fatalf("refresh set wrong: %v", signing.refreshed)
	}
}

func TestURLMaintenanceNoStaleIsANoop(t *testing.T) {
	repo := &stubContractRepo{}
	signing := &stubSigning{}

	job := NewURLMaintenance(testLogger(t), repo, signing, 6*24*time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(signing.refreshed) != 0 {
		t.Fatalf("nothing should be refreshed, got %v", signing.refreshed)
	}
}
