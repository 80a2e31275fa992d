package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/services"
)

// SignHandler serves the public, unauthenticated signing routes. The
// GET route is the app-hosted fallback for the published page; the POST
// route is the single submission endpoint both pages call.
type SignHandler struct {
	log            *logger.Logger
	signingService services.SigningService
}

func NewSignHandler(baseLog *logger.Logger, signingService services.SigningService) *SignHandler {
	return &SignHandler{
		log:            baseLog.With("handler", "SignHandler"),
		signingService: signingService,
	}
}

func (sh *SignHandler) Page(c *gin.Context) {
	contractID, ok := contractIDParam(c)
	if !ok {
		return
	}
	page, err := sh.signingService.RenderFallbackPage(c.Request.Context(), contractID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (sh *SignHandler) Submit(c *gin.Context) {
	contractID, ok := contractIDParam(c)
	if !ok {
		return
	}

	var req struct {
		SignatureName string `json:"signatureName"`
		ClientPhone   string `json:"clientPhone"`
		ClientAddress string `json:"clientAddress"`
		VenueAddress  string `json:"venueAddress"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}

	resp, err := sh.signingService.ExecuteSign(c.Request.Context(), contractID, services.SignSubmission{
		SignatureName: req.SignatureName,
		ClientPhone:   req.ClientPhone,
		ClientAddress: req.ClientAddress,
		VenueAddress:  req.VenueAddress,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"success":       true,
		"alreadySigned": resp.AlreadySigned,
		"signedBy":      resp.SignedBy,
		"signedAt":      resp.SignedAt.Format(time.RFC3339),
	})
}
