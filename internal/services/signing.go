package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/platform/gcs"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/render"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

// PublicationResult is what a successful publish hands back to the
// caller: the URL to put in the email, and the key now recorded on the
// contract row.
type PublicationResult struct {
	SigningURL string
	StorageKey string
}

// PublicationError signals that the signing page could not be published
// to object storage. The contract was NOT marked sent; the caller may
// fall back to the app-hosted signing route so the email still carries a
// working link.
type PublicationError struct {
	Err         error
	FallbackURL string
}

func (e *PublicationError) Error() string {
	if e == nil || e.Err == nil {
		return "publication failed"
	}
	return "publication failed: " + e.Err.Error()
}

func (e *PublicationError) Unwrap() error { return e.Err }

type SignSubmission struct {
	SignatureName string
	ClientPhone   string
	ClientAddress string
	VenueAddress  string
	ClientIP      string
}

type SignResponse struct {
	AlreadySigned bool
	SignedBy      string
	SignedAt      time.Time
}

// SigningService coordinates the renderer, the object store and the
// contract repository. It holds no locks across I/O: the at-most-once
// guarantee comes entirely from the repository's conditional write.
type SigningService interface {
	// PublishForSending publishes the unsigned signing page and marks
	// the contract sent. On object-store failure it returns a
	// *PublicationError and leaves the status untouched.
	PublishForSending(ctx context.Context, contractID uint) (*PublicationResult, error)

	// RefreshPublication republishes the current page under a fresh key
	// and repoints the contract's publication metadata. Status is never
	// changed.
	RefreshPublication(ctx context.Context, contractID uint) (*PublicationResult, error)

	// ExecuteSign validates the submission and runs the atomic sign
	// transition. Failures downstream of a committed transition are
	// absorbed and logged, never surfaced.
	ExecuteSign(ctx context.Context, contractID uint, input SignSubmission) (*SignResponse, error)

	// MarkSentFallback records the draft->sent transition without
	// publication metadata, used when the send proceeds on the
	// app-hosted fallback route.
	MarkSentFallback(ctx context.Context, contractID uint) error

	// FallbackSigningURL is the app-hosted signing route for a contract.
	FallbackSigningURL(contractID uint) string

	// RenderFallbackPage renders the current page for the app-hosted
	// route without publishing anything. Signed contracts get the
	// read-only page.
	RenderFallbackPage(ctx context.Context, contractID uint) ([]byte, error)
}

type signingService struct {
	db            *gorm.DB
	log           *logger.Logger
	contractRepo  repos.ContractRepo
	settingsRepo  repos.SettingsRepo
	renderer      render.Renderer
	store         gcs.Store
	notify        NotificationService
	publicBaseURL string
	now           func() time.Time
}

func NewSigningService(
	db *gorm.DB,
	baseLog *logger.Logger,
	contractRepo repos.ContractRepo,
	settingsRepo repos.SettingsRepo,
	renderer render.Renderer,
	store gcs.Store,
	notify NotificationService,
	publicBaseURL string,
) SigningService {
	return &signingService{
		db:            db,
		log:           baseLog.With("service", "SigningService"),
		contractRepo:  contractRepo,
		settingsRepo:  settingsRepo,
		renderer:      renderer,
		store:         store,
		notify:        notify,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		now:           time.Now,
	}
}

func (s *signingService) FallbackSigningURL(contractID uint) string {
	return fmt.Sprintf("%s/contracts/sign/%d", s.publicBaseURL, contractID)
}

func (s *signingService) signEndpoint(contractID uint) string {
	return fmt.Sprintf("%s/contracts/sign/%d", s.publicBaseURL, contractID)
}

func (s *signingService) loadContractAndSettings(ctx context.Context, contractID uint) (*types.Contract, *types.BusinessSettings, error) {
	contract, err := s.contractRepo.GetByID(ctx, nil, contractID)
	if err != nil {
		return nil, nil, fmt.Errorf("load contract %d: %w", contractID, err)
	}
	if contract == nil {
		return nil, nil, apierr.New(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("contract %d not found", contractID))
	}
	settings, err := s.settingsRepo.GetByUserID(ctx, nil, contract.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings for contract %d: %w", contractID, err)
	}
	if settings == nil {
		return nil, nil, apierr.New(http.StatusUnprocessableEntity, apierr.CodeValidation,
			fmt.Errorf("business settings must be configured before sending contracts"))
	}
	return contract, settings, nil
}

func (s *signingService) PublishForSending(ctx context.Context, contractID uint) (*PublicationResult, error) {
	contract, settings, err := s.loadContractAndSettings(ctx, contractID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// Re-sending a signed contract only regenerates the read-only page.
	if contract.IsSigned() {
		return s.republish(ctx, contract, settings, now)
	}

	page, err := s.renderer.SigningPage(contract, settings, s.signEndpoint(contract.ID), now)
	if err != nil {
		// Upstream of the transition: surfaced, transition prevented.
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRenderFailed,
			fmt.Errorf("render signing page: %w", err))
	}

	key := gcs.ArtifactKey(gcs.ArtifactSigningPage, contract.ContractNumber, contract.ID, now)
	url, err := s.store.Put(ctx, key, page, "")
	if err != nil {
		s.log.Warn("Signing page publication failed; caller may fall back to app-hosted route",
			"contract_id", contract.ID, "key", key, "error", err)
		return nil, &PublicationError{Err: err, FallbackURL: s.FallbackSigningURL(contract.ID)}
	}

	oldKey := contract.CloudStorageKey
	if err := s.contractRepo.MarkSent(ctx, nil, contract.ID, &repos.PublicationMeta{
		CloudStorageKey:     key,
		CloudStorageURL:     url,
		SigningURLCreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("mark contract %d sent: %w", contract.ID, err)
	}

	s.cleanupOldKey(ctx, contract.ID, oldKey, key)

	s.log.Info("Signing page published", "contract_id", contract.ID, "key", key)
	return &PublicationResult{SigningURL: url, StorageKey: key}, nil
}

func (s *signingService) RefreshPublication(ctx context.Context, contractID uint) (*PublicationResult, error) {
	contract, settings, err := s.loadContractAndSettings(ctx, contractID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if contract.IsSigned() {
		return s.republish(ctx, contract, settings, now)
	}
	if contract.Status != types.ContractStatusSent {
		return nil, apierr.New(http.StatusConflict, apierr.CodeInvalidState,
			fmt.Errorf("contract %d is %s; nothing published to refresh", contract.ID, contract.Status))
	}

	page, err := s.renderer.SigningPage(contract, settings, s.signEndpoint(contract.ID), now)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRenderFailed,
			fmt.Errorf("render signing page: %w", err))
	}

	// Always a new key: a stale in-flight link keeps serving the old
	// object until cleanup, never half-written content.
	key := gcs.ArtifactKey(gcs.ArtifactSigningPage, contract.ContractNumber, contract.ID, now)
	url, err := s.store.Put(ctx, key, page, "")
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeStoreFailed,
			fmt.Errorf("publish signing page: %w", err))
	}

	oldKey := contract.CloudStorageKey
	if err := s.contractRepo.UpdatePublication(ctx, nil, contract.ID, repos.PublicationMeta{
		CloudStorageKey:     key,
		CloudStorageURL:     url,
		SigningURLCreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("update publication for contract %d: %w", contract.ID, err)
	}

	s.cleanupOldKey(ctx, contract.ID, oldKey, key)

	s.log.Info("Signing page refreshed", "contract_id", contract.ID, "key", key)
	return &PublicationResult{SigningURL: url, StorageKey: key}, nil
}

// republish regenerates the read-only page for an already signed
// contract under a fresh key.
func (s *signingService) republish(ctx context.Context, contract *types.Contract, settings *types.BusinessSettings, now time.Time) (*PublicationResult, error) {
	page, err := s.renderer.SignedPage(contract, settings, now)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRenderFailed,
			fmt.Errorf("render signed page: %w", err))
	}
	key := gcs.ArtifactKey(gcs.ArtifactSigningPage, contract.ContractNumber, contract.ID, now)
	url, err := s.store.Put(ctx, key, page, "")
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeStoreFailed,
			fmt.Errorf("publish signed page: %w", err))
	}
	oldKey := contract.CloudStorageKey
	if err := s.contractRepo.UpdatePublication(ctx, nil, contract.ID, repos.PublicationMeta{
		CloudStorageKey:     key,
		CloudStorageURL:     url,
		SigningURLCreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("update publication for contract %d: %w", contract.ID, err)
	}
	s.cleanupOldKey(ctx, contract.ID, oldKey, key)
	return &PublicationResult{SigningURL: url, StorageKey: key}, nil
}

func (s *signingService) MarkSentFallback(ctx context.Context, contractID uint) error {
	return s.contractRepo.MarkSent(ctx, nil, contractID, nil)
}

func (s *signingService) ExecuteSign(ctx context.Context, contractID uint, input SignSubmission) (*SignResponse, error) {
	contract, err := s.contractRepo.GetByID(ctx, nil, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract %d: %w", contractID, err)
	}
	if contract == nil {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("contract %d not found", contractID))
	}

	// Idempotent read: a signed contract just reports its facts.
	if contract.IsSigned() {
		return alreadySignedResponse(contract), nil
	}
	if contract.Status != types.ContractStatusSent {
		return nil, apierr.New(http.StatusConflict, apierr.CodeInvalidState,
			fmt.Errorf("contract %d has not been offered for signing", contractID))
	}

	if err := validateSubmission(contract, input); err != nil {
		return nil, err
	}

	result, err := s.contractRepo.TrySign(ctx, contractID, repos.SignWrite{
		SignatureName:   strings.TrimSpace(input.SignatureName),
		SignedAt:        s.now(),
		ClientIPAddress: input.ClientIP,
		ClientPhone:     strings.TrimSpace(input.ClientPhone),
		ClientAddress:   strings.TrimSpace(input.ClientAddress),
		VenueAddress:    strings.TrimSpace(input.VenueAddress),
	})
	if err != nil {
		return nil, fmt.Errorf("try sign contract %d: %w", contractID, err)
	}

	switch result.Outcome {
	case repos.SignOutcomeNotFound:
		return nil, apierr.New(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("contract %d not found", contractID))
	case repos.SignOutcomeInvalidState:
		return nil, apierr.New(http.StatusConflict, apierr.CodeInvalidState,
			fmt.Errorf("contract %d has not been offered for signing", contractID))
	case repos.SignOutcomeAlreadySigned:
		// Another caller won. Success-with-information, not an error.
		return alreadySignedResponse(result.Contract), nil
	}

	signed := result.Contract

	// The signature is durably recorded from here on: anything that
	// fails below is logged and repaired later from the authoritative
	// row, never reported to the client as a signing failure.
	s.publishSignedArtifacts(ctx, signed)
	s.sendConfirmations(ctx, signed)

	return &SignResponse{
		AlreadySigned: false,
		SignedBy:      signed.SignatureName,
		SignedAt:      *signed.SignedAt,
	}, nil
}

func alreadySignedResponse(contract *types.Contract) *SignResponse {
	resp := &SignResponse{AlreadySigned: true, SignedBy: contract.SignatureName}
	if contract.SignedAt != nil {
		resp.SignedAt = *contract.SignedAt
	}
	return resp
}

func validateSubmission(contract *types.Contract, input SignSubmission) error {
	missing := func(field string) error {
		return apierr.New(http.StatusBadRequest, apierr.CodeValidation,
			fmt.Errorf("field %q is required", field))
	}
	if strings.TrimSpace(input.SignatureName) == "" {
		return missing("signatureName")
	}
	// Fields pre-filled by the performer are optional for the client to
	// repeat; fields left blank are mandatory.
	if contract.ClientPhone == "" && strings.TrimSpace(input.ClientPhone) == "" {
		return missing("clientPhone")
	}
	if contract.ClientAddress == "" && strings.TrimSpace(input.ClientAddress) == "" {
		return missing("clientAddress")
	}
	if contract.VenueAddress == "" && strings.TrimSpace(input.VenueAddress) == "" {
		return missing("venueAddress")
	}
	return nil
}

// publishSignedArtifacts renders and publishes the signed PDF and the
// read-only confirmation page. Best-effort: the maintenance path can
// regenerate both from the signed row at any time.
func (s *signingService) publishSignedArtifacts(ctx context.Context, contract *types.Contract) {
	settings, err := s.settingsRepo.GetByUserID(ctx, nil, contract.UserID)
	if err != nil || settings == nil {
		s.log.Error("Post-sign publish skipped: settings unavailable",
			"contract_id", contract.ID, "error", err)
		return
	}

	now := s.now()
	facts := contract.Signature()

	pdfBytes, err := s.renderer.ContractPDF(contract, settings, facts, now)
	if err != nil {
		s.log.Error("Post-sign PDF render failed; will regenerate on demand",
			"contract_id", contract.ID, "error", err)
	} else {
		pdfKey := gcs.ArtifactKey(gcs.ArtifactContractPDF, contract.ContractNumber+"-signed", contract.ID, now)
		pdfURL, err := s.store.Put(ctx, pdfKey, pdfBytes, "")
		if err != nil {
			s.log.Error("Post-sign PDF publish failed; will retry on next maintenance pass",
				"contract_id", contract.ID, "key", pdfKey, "error", err)
		} else if err := s.contractRepo.UpdatePDFPointer(ctx, nil, contract.ID, pdfKey, pdfURL); err != nil {
			s.log.Error("Post-sign PDF pointer update failed",
				"contract_id", contract.ID, "key", pdfKey, "error", err)
		} else {
			contract.ContractPDFKey = pdfKey
			contract.ContractPDFURL = pdfURL
		}
	}

	page, err := s.renderer.SignedPage(contract, settings, now)
	if err != nil {
		s.log.Error("Post-sign page render failed; will regenerate on demand",
			"contract_id", contract.ID, "error", err)
		return
	}
	pageKey := gcs.ArtifactKey(gcs.ArtifactSigningPage, contract.ContractNumber, contract.ID, now)
	pageURL, err := s.store.Put(ctx, pageKey, page, "")
	if err != nil {
		s.log.Error("Post-sign page publish failed; will retry on next maintenance pass",
			"contract_id", contract.ID, "key", pageKey, "error", err)
		return
	}
	oldKey := contract.CloudStorageKey
	if err := s.contractRepo.UpdatePublication(ctx, nil, contract.ID, repos.PublicationMeta{
		CloudStorageKey:     pageKey,
		CloudStorageURL:     pageURL,
		SigningURLCreatedAt: now,
	}); err != nil {
		s.log.Error("Post-sign publication pointer update failed",
			"contract_id", contract.ID, "key", pageKey, "error", err)
		return
	}
	s.cleanupOldKey(ctx, contract.ID, oldKey, pageKey)
}

// sendConfirmations fans out the signed copies. Outcomes land in the
// email audit log; nothing here can fail the signing response.
func (s *signingService) sendConfirmations(ctx context.Context, contract *types.Contract) {
	if s.notify == nil {
		return
	}
	settings, err := s.settingsRepo.GetByUserID(ctx, nil, contract.UserID)
	if err != nil || settings == nil {
		s.log.Error("Signed confirmations skipped: settings unavailable",
			"contract_id", contract.ID, "error", err)
		return
	}
	outcome := s.notify.SendSignedConfirmations(ctx, contract, settings)
	if outcome.AllFailed() {
		s.log.Error("No signed confirmation was delivered", "contract_id", contract.ID)
	}
}

// RenderFallbackPage serves the app-hosted signing route from the
// authoritative row, independent of the published object.
func (s *signingService) RenderFallbackPage(ctx context.Context, contractID uint) ([]byte, error) {
	contract, settings, err := s.loadContractAndSettings(ctx, contractID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if contract.IsSigned() {
		page, err := s.renderer.SignedPage(contract, settings, now)
		if err != nil {
			return nil, apierr.New(http.StatusBadGateway, apierr.CodeRenderFailed,
				fmt.Errorf("render signed page: %w", err))
		}
		return page, nil
	}
	if contract.Status != types.ContractStatusSent {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeNotFound,
			fmt.Errorf("contract %d has not been offered for signing", contractID))
	}
	page, err := s.renderer.SigningPage(contract, settings, s.signEndpoint(contract.ID), now)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRenderFailed,
			fmt.Errorf("render signing page: %w", err))
	}
	return page, nil
}

// cleanupOldKey best-effort deletes the superseded object after the row
// points at the new one. Failures are logged, never propagated.
func (s *signingService) cleanupOldKey(ctx context.Context, contractID uint, oldKey, newKey string) {
	if oldKey == "" || oldKey == newKey {
		return
	}
	if err := s.store.Delete(ctx, oldKey); err != nil {
		s.log.Warn("Failed to delete superseded signing page (ignored)",
			"contract_id", contractID, "key", oldKey, "error", err)
	}
}
