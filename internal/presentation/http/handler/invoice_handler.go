package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/application/service"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/dto/response"
)

// InvoiceHandler handles invoice and payment method HTTP requests
type InvoiceHandler struct {
	paymentService *service.PaymentService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(paymentService *service.PaymentService) *InvoiceHandler {
	return &InvoiceHandler{paymentService: paymentService}
}

// Get handles getting an invoice with its allocations
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.paymentService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Invoice retrieved successfully", invoice)
}

// ListByEncounter returns every invoice settled against an encounter
func (h *InvoiceHandler) ListByEncounter(c *gin.Context) {
	encounterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	invoices, err := h.paymentService.ListInvoicesByEncounter(c.Request.Context(), encounterID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Invoices retrieved successfully", invoices)
}

// ListPaymentMethods returns the configured payment methods
func (h *InvoiceHandler) ListPaymentMethods(c *gin.Context) {
	methods, err := h.paymentService.ListPaymentMethods(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment methods retrieved successfully", methods)
}
