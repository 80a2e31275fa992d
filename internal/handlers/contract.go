package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gigfolio/gigfolio-backend/internal/middleware"
	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/services"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

type ContractHandler struct {
	log             *logger.Logger
	contractService services.ContractService
	settingsService services.SettingsService
	signingService  services.SigningService
	notifyService   services.NotificationService
}

func NewContractHandler(
	baseLog *logger.Logger,
	contractService services.ContractService,
	settingsService services.SettingsService,
	signingService services.SigningService,
	notifyService services.NotificationService,
) *ContractHandler {
	return &ContractHandler{
		log:             baseLog.With("handler", "ContractHandler"),
		contractService: contractService,
		settingsService: settingsService,
		signingService:  signingService,
		notifyService:   notifyService,
	}
}

type contractRequest struct {
	ContractNumber string  `json:"contract_number"`
	ClientName     string  `json:"client_name"`
	ClientEmail    string  `json:"client_email"`
	ClientPhone    string  `json:"client_phone"`
	ClientAddress  string  `json:"client_address"`
	EventDate      string  `json:"event_date"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Venue          string  `json:"venue"`
	VenueAddress   string  `json:"venue_address"`
	Fee            float64 `json:"fee"`
	Deposit        float64 `json:"deposit"`
}

func (ch *ContractHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req contractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}
	eventDate, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("event_date must be YYYY-MM-DD"))
		return
	}

	contract := &types.Contract{
		ContractNumber: req.ContractNumber,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		ClientAddress:  req.ClientAddress,
		EventDate:      eventDate,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Venue:          req.Venue,
		VenueAddress:   req.VenueAddress,
		Fee:            req.Fee,
		Deposit:        req.Deposit,
	}
	created, err := ch.contractService.Create(c.Request.Context(), userID, contract)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (ch *ContractHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	contractID, ok := contractIDParam(c)
	if !ok {
		return
	}

	var req struct {
		ClientName      *string  `json:"client_name"`
		ClientEmail     *string  `json:"client_email"`
		ClientPhone     *string  `json:"client_phone"`
		ClientAddress   *string  `json:"client_address"`
		EventDate       *string  `json:"event_date"`
		StartTime       *string  `json:"start_time"`
		EndTime         *string  `json:"end_time"`
		Venue           *string  `json:"venue"`
		VenueAddress    *string  `json:"venue_address"`
		Fee             *float64 `json:"fee"`
		Deposit         *float64 `json:"deposit"`
		ReminderEnabled *bool    `json:"reminder_enabled"`
		ReminderDays    *int     `json:"reminder_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}

	update := services.ContractUpdate{
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		ClientAddress:   req.ClientAddress,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Venue:           req.Venue,
		VenueAddress:    req.VenueAddress,
		Fee:             req.Fee,
		Deposit:         req.Deposit,
		ReminderEnabled: req.ReminderEnabled,
		ReminderDays:    req.ReminderDays,
	}
	if req.EventDate != nil {
		eventDate, err := time.Parse("2006-01-02", *req.EventDate)
		if err != nil {
			RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("event_date must be YYYY-MM-DD"))
			return
		}
		update.EventDate = &eventDate
	}

	updated, err := ch.contractService.Update(c.Request.Context(), userID, contractID, update)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, updated)
}

func (ch *ContractHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	contractID, ok := contractIDParam(c)
	if !ok {
		return
	}
	contract, err := ch.contractService.Get(c.Request.Context(), userID, contractID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, contract)
}

func (ch *ContractHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	contracts, err := ch.contractService.List(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"contracts": contracts})
}

// Send publishes the signing page, marks the contract sent and emails
// the client. An object-store failure degrades to the app-hosted signing
// route instead of failing the send.
func (ch *ContractHandler) Send(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	contractID, ok := contractIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
			return
		}
	}

	ctx := c.Request.Context()

	// Ownership check before any side effect.
	if _, err := ch.contractService.Get(ctx, userID, contractID); err != nil {
		RespondServiceError(c, err)
		return
	}

	signingURL := ""
	result, err := ch.signingService.PublishForSending(ctx, contractID)
	switch {
	case err == nil:
		signingURL = result.SigningURL
	default:
		var pe *services.PublicationError
		if !errors.As(err, &pe) {
			RespondServiceError(c, err)
			return
		}
		// Degraded path: the email carries the app-hosted link.
		if err := ch.signingService.MarkSentFallback(ctx, contractID); err != nil {
			RespondServiceError(c, fmt.Errorf("mark sent: %w", err))
			return
		}
		signingURL = pe.FallbackURL
		ch.log.Warn("Send degraded to app-hosted signing URL", "contract_id", contractID)
	}

	contract, err := ch.contractService.Get(ctx, userID, contractID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	settings, err := ch.settingsService.Get(ctx, userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	emailSent := true
	if err := ch.notifyService.SendSigningRequest(ctx, contract, settings, signingURL, req.Message); err != nil {
		// The contract is sent and the link works; email failure is
		// reported, not fatal.
		ch.log.Error("Signing-request email failed", "contract_id", contractID, "error", err)
		emailSent = false
	}

	RespondOK(c, gin.H{
		"signing_url": signingURL,
		"status":      contract.Status,
		"email_sent":  emailSent,
	})
}

// Download streams the canonical PDF for the contract's current state.
func (ch *ContractHandler) Download(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	contractID, ok := contractIDParam(c)
	if !ok {
		return
	}
	pdfBytes, filename, err := ch.contractService.DownloadPDF(c.Request.Context(), userID, contractID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("not authenticated"))
		return uuid.Nil, false
	}
	return userID, true
}

func contractIDParam(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid contract id"))
		return 0, false
	}
	return uint(id), true
}
