package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/vetdesk/clinicpos-api/internal/application/service"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/dto/response"
)

// SettingsHandler handles clinic settings HTTP requests
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings retrieves the clinic settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Settings retrieved successfully", settings)
}

// UpdateSettings updates the clinic settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		ClinicName   *string `json:"clinic_name"`
		CurrencyCode *string `json:"currency_code"`
		Address      *string `json:"address"`
		Phone        *string `json:"phone"`
		Email        *string `json:"email"`
		ReceiptNote  *string `json:"receipt_note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	settings, err := h.settingsService.UpdateSettings(c.Request.Context(), &service.UpdateSettingsInput{
		ClinicName:   req.ClinicName,
		CurrencyCode: req.CurrencyCode,
		Address:      req.Address,
		Phone:        req.Phone,
		Email:        req.Email,
		ReceiptNote:  req.ReceiptNote,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Settings updated successfully", settings)
}
