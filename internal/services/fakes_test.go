package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/platform/sendgrid"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
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

// fakeContractRepo keeps rows in memory behind a mutex so the
// conditional-write semantics match the real repository.
type fakeContractRepo struct {
	mu        sync.Mutex
	rows      map[uint]*types.Contract
	nextID    uint
	failMarks bool
}

func newFakeContractRepo() *fakeContractRepo {
	return &fakeContractRepo{rows: map[uint]*types.Contract{}, nextID: 1}
}

func (f *fakeContractRepo) put(c *types.Contract) *types.Contract {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		c.ID = f.nextID
		f.nextID++
	}
	cp := *c
	f.rows[c.ID] = &cp
	return c
}

func (f *fakeContractRepo) snapshot(id uint) *types.Contract {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (f *fakeContractRepo) Create(ctx context.Context, tx *gorm.DB, contract *types.Contract) (*types.Contract, error) {
	if contract.Status == "" {
		contract.Status = types.ContractStatusDraft
	}
	return f.put(contract), nil
}

func (f *fakeContractRepo) Update(ctx context.Context, tx *gorm.DB, contract *types.Contract) error {
	f.put(contract)
	return nil
}

func (f *fakeContractRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Contract, error) {
	return f.snapshot(id), nil
}

func (f *fakeContractRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, id uint, userID uuid.UUID) (*types.Contract, error) {
	c := f.snapshot(id)
	if c == nil || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func (f *fakeContractRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Contract
	for _, c := range f.rows {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeContractRepo) CompareAndSetStatus(ctx context.Context, tx *gorm.DB, id uint, expectedStatus, newStatus string, extraFields map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.Status != expectedStatus {
		return false, nil
	}
	c.Status = newStatus
	if v, ok := extraFields["signed_at"].(time.Time); ok {
		c.SignedAt = &v
	}
	if v, ok := extraFields["signature_name"].(string); ok {
		c.SignatureName = v
	}
	if v, ok := extraFields["client_ip_address"].(string); ok {
		c.ClientIPAddress = v
	}
	if v, ok := extraFields["client_phone"].(string); ok {
		c.ClientPhone = v
	}
	if v, ok := extraFields["client_address"].(string); ok {
		c.ClientAddress = v
	}
	if v, ok := extraFields["venue_address"].(string); ok {
		c.VenueAddress = v
	}
	return true, nil
}

func (f *fakeContractRepo) TrySign(ctx context.Context, id uint, write repos.SignWrite) (*repos.SignResult, error) {
	extra := map[string]any{
		"signed_at":         write.SignedAt,
		"signature_name":    write.SignatureName,
		"client_ip_address": write.ClientIPAddress,
	}
	if write.ClientPhone != "" {
		extra["client_phone"] = write.ClientPhone
	}
	if write.ClientAddress != "" {
		extra["client_address"] = write.ClientAddress
	}
	if write.VenueAddress != "" {
		extra["venue_address"] = write.VenueAddress
	}
	won, err := f.CompareAndSetStatus(ctx, nil, id, types.ContractStatusSent, types.ContractStatusSigned, extra)
	if err != nil {
		return nil, err
	}
	c := f.snapshot(id)
	if c == nil {
		return &repos.SignResult{Outcome: repos.SignOutcomeNotFound}, nil
	}
	if won {
		return &repos.SignResult{Outcome: repos.SignOutcomeSigned, Contract: c}, nil
	}
	if c.Status == types.ContractStatusSigned {
		return &repos.SignResult{Outcome: repos.SignOutcomeAlreadySigned, Contract: c}, nil
	}
	return &repos.SignResult{Outcome: repos.SignOutcomeInvalidState, Contract: c}, nil
}

func (f *fakeContractRepo) MarkSent(ctx context.Context, tx *gorm.DB, id uint, meta *repos.PublicationMeta) error {
	if f.failMarks {
		return fmt.Errorf("mark sent unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.Status == types.ContractStatusSigned {
		return nil
	}
	c.Status = types.ContractStatusSent
	if meta != nil {
		c.CloudStorageKey = meta.CloudStorageKey
		c.CloudStorageURL = meta.CloudStorageURL
		at := meta.SigningURLCreatedAt
		c.SigningURLCreatedAt = &at
	}
	return nil
}

func (f *fakeContractRepo) UpdatePublication(ctx context.Context, tx *gorm.DB, id uint, meta repos.PublicationMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil
	}
	c.CloudStorageKey = meta.CloudStorageKey
	c.CloudStorageURL = meta.CloudStorageURL
	at := meta.SigningURLCreatedAt
	c.SigningURLCreatedAt = &at
	return nil
}

func (f *fakeContractRepo) UpdatePDFPointer(ctx context.Context, tx *gorm.DB, id uint, key, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok {
		c.ContractPDFKey = key
		c.ContractPDFURL = url
	}
	return nil
}

func (f *fakeContractRepo) ListStaleSigningPages(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Contract
	for _, c := range f.rows {
		if c.Status == types.ContractStatusSent && c.CloudStorageKey != "" &&
			c.SigningURLCreatedAt != nil && !c.SigningURLCreatedAt.After(cutoff) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeContractRepo) ListReminderDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Contract
	for _, c := range f.rows {
		if c.Status != types.ContractStatusSent || !c.ReminderEnabled || c.SigningURLCreatedAt == nil {
			continue
		}
		since := *c.SigningURLCreatedAt
		if c.LastReminderSent != nil {
			since = *c.LastReminderSent
		}
		if !since.After(now.Add(-time.Duration(c.ReminderDays) * 24 * time.Hour)) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeContractRepo) TouchReminder(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok {
		c.LastReminderSent = &at
		c.ReminderCount++
	}
	return nil
}

type fakeSettingsRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.BusinessSettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{rows: map[uuid.UUID]*types.BusinessSettings{}}
}

func (f *fakeSettingsRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.BusinessSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSettingsRepo) Upsert(ctx context.Context, tx *gorm.DB, settings *types.BusinessSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *settings
	f.rows[settings.UserID] = &cp
	return nil
}

// fakeStore records puts and deletes and can be told to fail.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return "", fmt.Errorf("object store unavailable")
	}
	f.objects[key] = data
	return f.PublicURL(key), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

// fakeRenderer produces deterministic marker bytes per artifact.
type fakeRenderer struct {
	failSigningPage bool
	failPDF         bool
}

func (f *fakeRenderer) SigningPage(contract *types.Contract, settings *types.BusinessSettings, signEndpoint string, now time.Time) ([]byte, error) {
	if contract.IsSigned() {
		return f.SignedPage(contract, settings, now)
	}
	if f.failSigningPage {
		return nil, fmt.Errorf("template exploded")
	}
	return []byte("signing-page:" + signEndpoint), nil
}

func (f *fakeRenderer) SignedPage(contract *types.Contract, settings *types.BusinessSettings, now time.Time) ([]byte, error) {
	return []byte("signed-page:" + contract.SignatureName), nil
}

func (f *fakeRenderer) ContractPDF(contract *types.Contract, settings *types.BusinessSettings, facts *types.SignatureFacts, now time.Time) ([]byte, error) {
	if f.failPDF {
		return nil, fmt.Errorf("pdf exploded")
	}
	if facts != nil {
		return []byte("pdf-signed:" + facts.SignatureName), nil
	}
	return []byte("pdf-unsigned"), nil
}

// fakeMailer records sends and fails per-recipient.
type fakeMailer struct {
	mu     sync.Mutex
	sent   []sendgrid.SendEmailRequest
	failTo map[string]bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failTo: map[string]bool{}}
}

func (f *fakeMailer) Send(ctx context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(req.To) > 0 && f.failTo[req.To[0].Email] {
		return nil, fmt.Errorf("smtp says no")
	}
	f.sent = append(f.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: 202, MessageID: "msg"}, nil
}

func (f *fakeMailer) sentTo(email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.sent {
		if len(r.To) > 0 && r.To[0].Email == email {
			n++
		}
	}
	return n
}

type fakeEmailLogRepo struct {
	mu      sync.Mutex
	entries []*types.EmailLog
}

func (f *fakeEmailLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeEmailLogRepo) ListByContract(ctx context.Context, tx *gorm.DB, contractID uint) ([]*types.EmailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.EmailLog
	for _, e := range f.entries {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	return out, nil
}
