package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/render"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

// ContractUpdate carries the performer-editable fields. Lifecycle,
// signature and publication columns are never writable through here.
type ContractUpdate struct {
	ClientName    *string
	ClientEmail   *string
	ClientPhone   *string
	ClientAddress *string

	EventDate    *time.Time
	StartTime    *string
	EndTime      *string
	Venue        *string
	VenueAddress *string
	Fee          *float64
	Deposit      *float64

	ReminderEnabled *bool
	ReminderDays    *int
}

type ContractService interface {
	Create(ctx context.Context, userID uuid.UUID, contract *types.Contract) (*types.Contract, error)
	Update(ctx context.Context, userID uuid.UUID, contractID uint, update ContractUpdate) (*types.Contract, error)
	Get(ctx context.Context, userID uuid.UUID, contractID uint) (*types.Contract, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Contract, error)

	// DownloadPDF renders the canonical PDF for the contract's current
	// state: signed contracts always get the signed variant.
	DownloadPDF(ctx context.Context, userID uuid.UUID, contractID uint) ([]byte, string, error)
}

type contractService struct {
	db           *gorm.DB
	log          *logger.Logger
	contractRepo repos.ContractRepo
	settingsRepo repos.SettingsRepo
	renderer     render.Renderer
}

func NewContractService(
	db *gorm.DB,
	baseLog *logger.Logger,
	contractRepo repos.ContractRepo,
	settingsRepo repos.SettingsRepo,
	renderer render.Renderer,
) ContractService {
	return &contractService{
		db:           db,
		log:          baseLog.With("service", "ContractService"),
		contractRepo: contractRepo,
		settingsRepo: settingsRepo,
		renderer:     renderer,
	}
}

func (cs *contractService) Create(ctx context.Context, userID uuid.UUID, contract *types.Contract) (*types.Contract, error) {
	contract.UserID = userID
	contract.Status = types.ContractStatusDraft
	contract.ContractNumber = strings.TrimSpace(contract.ContractNumber)

	if contract.ContractNumber == "" {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidation, fmt.Errorf("contract number is required"))
	}
	if strings.TrimSpace(contract.ClientName) == "" {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidation, fmt.Errorf("client name is required"))
	}
	if strings.TrimSpace(contract.ClientEmail) == "" {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidation, fmt.Errorf("client email is required"))
	}
	if contract.EventDate.IsZero() {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidation, fmt.Errorf("event date is required"))
	}

	created, err := cs.contractRepo.Create(ctx, nil, contract)
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	cs.log.Info("Contract created", "contract_id", created.ID, "user_id", userID)
	return created, nil
}

func (cs *contractService) Update(ctx context.Context, userID uuid.UUID, contractID uint, update ContractUpdate) (*types.Contract, error) {
	contract, err := cs.Get(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}

	// Signed contracts are frozen: the document the client signed is the
	// document of record.
	if contract.IsSigned() {
		return nil, apierr.New(http.StatusConflict, apierr.CodeInvalidState,
			fmt.Errorf("contract %d is signed and can no longer be edited", contractID))
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&contract.ClientName, update.ClientName)
	applyString(&contract.ClientEmail, update.ClientEmail)
	applyString(&contract.ClientPhone, update.ClientPhone)
	applyString(&contract.ClientAddress, update.ClientAddress)
	applyString(&contract.StartTime, update.StartTime)
	applyString(&contract.EndTime, update.EndTime)
	applyString(&contract.Venue, update.Venue)
	applyString(&contract.VenueAddress, update.VenueAddress)
	if update.EventDate != nil {
		contract.EventDate = *update.EventDate
	}
	if update.Fee != nil {
		contract.Fee = *update.Fee
	}
	if update.Deposit != nil {
		contract.Deposit = *update.Deposit
	}
	if update.ReminderEnabled != nil {
		contract.ReminderEnabled = *update.ReminderEnabled
	}
	if update.ReminderDays != nil {
		contract.ReminderDays = *update.ReminderDays
	}

	if err := cs.contractRepo.Update(ctx, nil, contract); err != nil {
		return nil, fmt.Errorf("update contract %d: %w", contractID, err)
	}
	return contract, nil
}

func (cs *contractService) Get(ctx context.Context, userID uuid.UUID, contractID uint) (*types.Contract, error) {
	contract, err := cs.contractRepo.GetByIDForUser(ctx, nil, contractID, userID)
	if err != nil {
		return nil, fmt.Errorf("load contract %d: %w", contractID, err)
	}
	if contract == nil {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("contract %d not found", contractID))
	}
	return contract, nil
}

func (cs *contractService) List(ctx context.Context, userID uuid.UUID) ([]*types.Contract, error) {
	return cs.contractRepo.ListByUser(ctx, nil, userID)
}

func (cs *contractService) DownloadPDF(ctx context.Context, userID uuid.UUID, contractID uint) ([]byte, string, error) {
	contract, err := cs.Get(ctx, userID, contractID)
	if err != nil {
		return nil, "", err
	}
	settings, err := cs.settingsRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, "", fmt.Errorf("load settings: %w", err)
	}
	if settings == nil {
		return nil, "", apierr.New(http.StatusUnprocessableEntity, apierr.CodeValidation,
			fmt.Errorf("business settings must be configured before rendering contracts"))
	}

	pdfBytes, err := cs.renderer.ContractPDF(contract, settings, contract.Signature(), time.Now())
	if err != nil {
		return nil, "", apierr.New(http.StatusBadGateway, apierr.CodeRenderFailed,
			fmt.Errorf("render contract %d: %w", contractID, err))
	}

	filename := fmt.Sprintf("contract-%s.pdf", contract.ContractNumber)
	if contract.IsSigned() {
		filename = fmt.Sprintf("contract-%s-signed.pdf", contract.ContractNumber)
	}
	return pdfBytes, filename, nil
}
