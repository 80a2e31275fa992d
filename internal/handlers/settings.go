package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/services"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

type SettingsHandler struct {
	settingsService services.SettingsService
}

func NewSettingsHandler(settingsService services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (sh *SettingsHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	settings, err := sh.settingsService.Get(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, settings)
}

func (sh *SettingsHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		BusinessName        string `json:"business_name"`
		BusinessAddress     string `json:"business_address"`
		BusinessEmail       string `json:"business_email"`
		BusinessPhone       string `json:"business_phone"`
		NotificationEmail   string `json:"notification_email"`
		DefaultEmailMessage string `json:"default_email_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}
	settings := &types.BusinessSettings{
		BusinessName:        req.BusinessName,
		BusinessAddress:     req.BusinessAddress,
		BusinessEmail:       req.BusinessEmail,
		BusinessPhone:       req.BusinessPhone,
		NotificationEmail:   req.NotificationEmail,
		DefaultEmailMessage: req.DefaultEmailMessage,
	}
	saved, err := sh.settingsService.Upsert(c.Request.Context(), userID, settings)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, saved)
}
