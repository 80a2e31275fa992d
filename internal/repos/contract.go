package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

// SignOutcome classifies the result of a TrySign attempt. AlreadySigned
// is a normal outcome, not an error: callers surface the existing
// signature to the client.
type SignOutcome string

const (
	SignOutcomeSigned        SignOutcome = "signed"
	SignOutcomeAlreadySigned SignOutcome = "already_signed"
	SignOutcomeNotFound      SignOutcome = "not_found"
	SignOutcomeInvalidState  SignOutcome = "invalid_state"
)

type SignResult struct {
	Outcome  SignOutcome
	Contract *types.Contract
}

// SignWrite carries the facts recorded by the winning transition plus
// any client-completed fields, applied in the same conditional write.
type SignWrite struct {
	SignatureName   string
	SignedAt        time.Time
	ClientIPAddress string
	ClientPhone     string
	ClientAddress   string
	VenueAddress    string
}

// PublicationMeta is the signing-page pointer repointed on every publish.
type PublicationMeta struct {
	CloudStorageKey     string
	CloudStorageURL     string
	SigningURLCreatedAt time.Time
}

type ContractRepo interface {
	Create(ctx context.Context, tx *gorm.DB, contract *types.Contract) (*types.Contract, error)
	Update(ctx context.Context, tx *gorm.DB, contract *types.Contract) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Contract, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, id uint, userID uuid.UUID) (*types.Contract, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Contract, error)

	// CompareAndSetStatus performs a single status-guarded conditional
	// write. It reports whether this call performed the transition.
	CompareAndSetStatus(ctx context.Context, tx *gorm.DB, id uint, expectedStatus, newStatus string, extraFields map[string]any) (bool, error)

	// TrySign executes the at-most-once sent->signed transition. Exactly
	// one concurrent caller observes SignOutcomeSigned; all others get a
	// deterministic outcome derived from the row's current state.
	TrySign(ctx context.Context, id uint, write SignWrite) (*SignResult, error)

	MarkSent(ctx context.Context, tx *gorm.DB, id uint, meta *PublicationMeta) error
	UpdatePublication(ctx context.Context, tx *gorm.DB, id uint, meta PublicationMeta) error
	UpdatePDFPointer(ctx context.Context, tx *gorm.DB, id uint, key, url string) error

	// ListStaleSigningPages returns sent contracts whose published
	// signing page is older than the cutoff.
	ListStaleSigningPages(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Contract, error)

	// ListReminderDue returns unsigned sent contracts whose reminder
	// interval has elapsed since the send or the previous reminder.
	ListReminderDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Contract, error)
	TouchReminder(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error
}

type contractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	return &contractRepo{db: db, log: baseLog.With("repo", "ContractRepo")}
}

func (cr *contractRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *contractRepo) Create(ctx context.Context, tx *gorm.DB, contract *types.Contract) (*types.Contract, error) {
	if contract.Status == "" {
		contract.Status = types.ContractStatusDraft
	}
	if err := cr.conn(tx).WithContext(ctx).Create(contract).Error; err != nil {
		return nil, err
	}
	return contract, nil
}

func (cr *contractRepo) Update(ctx context.Context, tx *gorm.DB, contract *types.Contract) error {
	return cr.conn(tx).WithContext(ctx).Save(contract).Error
}

func (cr *contractRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Contract, error) {
	var result types.Contract
	err := cr.conn(tx).WithContext(ctx).First(&result, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (cr *contractRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, id uint, userID uuid.UUID) (*types.Contract, error) {
	var result types.Contract
	err := cr.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (cr *contractRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Contract, error) {
	var results []*types.Contract
	if err := cr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *contractRepo) CompareAndSetStatus(ctx context.Context, tx *gorm.DB, id uint, expectedStatus, newStatus string, extraFields map[string]any) (bool, error) {
	fields := map[string]any{
		"status":     newStatus,
		"updated_at": time.Now(),
	}
	for k, v := range extraFields {
		fields[k] = v
	}
	// The guard is evaluated by the storage layer against the row's
	// current state, never against a value read earlier by this process.
	res := cr.conn(tx).WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (cr *contractRepo) TrySign(ctx context.Context, id uint, write SignWrite) (*SignResult, error) {
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

	won, err := cr.CompareAndSetStatus(ctx, nil, id, types.ContractStatusSent, types.ContractStatusSigned, extra)
	if err != nil {
		return nil, err
	}

	contract, err := cr.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return &SignResult{Outcome: SignOutcomeNotFound}, nil
	}
	if won {
		return &SignResult{Outcome: SignOutcomeSigned, Contract: contract}, nil
	}
	if contract.Status == types.ContractStatusSigned {
		return &SignResult{Outcome: SignOutcomeAlreadySigned, Contract: contract}, nil
	}
	// Still draft: signing was never offered for this contract.
	return &SignResult{Outcome: SignOutcomeInvalidState, Contract: contract}, nil
}

func (cr *contractRepo) MarkSent(ctx context.Context, tx *gorm.DB, id uint, meta *PublicationMeta) error {
	fields := map[string]any{
		"status":     types.ContractStatusSent,
		"updated_at": time.Now(),
	}
	if meta != nil {
		fields["cloud_storage_key"] = meta.CloudStorageKey
		fields["cloud_storage_url"] = meta.CloudStorageURL
		fields["signing_url_created_at"] = meta.SigningURLCreatedAt
	}
	// Plain update: only the owning performer can trigger a send, and
	// signed contracts are never re-marked (status guard below).
	return cr.conn(tx).WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ? AND status <> ?", id, types.ContractStatusSigned).
		Updates(fields).Error
}

func (cr *contractRepo) UpdatePublication(ctx context.Context, tx *gorm.DB, id uint, meta PublicationMeta) error {
	return cr.conn(tx).WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"cloud_storage_key":      meta.CloudStorageKey,
			"cloud_storage_url":      meta.CloudStorageURL,
			"signing_url_created_at": meta.SigningURLCreatedAt,
			"updated_at":             time.Now(),
		}).Error
}

func (cr *contractRepo) UpdatePDFPointer(ctx context.Context, tx *gorm.DB, id uint, key, url string) error {
	return cr.conn(tx).WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"contract_pdf_key": key,
			"contract_pdf_url": url,
			"updated_at":       time.Now(),
		}).Error
}

func (cr *contractRepo) ListStaleSigningPages(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Contract, error) {
	var results []*types.Contract
	if err := cr.conn(tx).WithContext(ctx).
		Where("status = ?", types.ContractStatusSent).
		Where("cloud_storage_key <> ''").
		Where("signing_url_created_at IS NOT NULL AND signing_url_created_at <= ?", cutoff).
		Order("signing_url_created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *contractRepo) ListReminderDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Contract, error) {
	var results []*types.Contract
	// reminder_days counts from the original send when no reminder has
	// gone out yet, otherwise from the last reminder.
	if err := cr.conn(tx).WithContext(ctx).
		Where("status = ?", types.ContractStatusSent).
		Where("reminder_enabled = ?", true).
		Where("signing_url_created_at IS NOT NULL").
		Where(`COALESCE(last_reminder_sent, signing_url_created_at)
			<= ? - (reminder_days * INTERVAL '1 day')`, now).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *contractRepo) TouchReminder(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	return cr.conn(tx).WithContext(ctx).
		Model(&types.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_reminder_sent": at,
			"reminder_count":     gorm.Expr("reminder_count + 1"),
			"updated_at":         at,
		}).Error
}
