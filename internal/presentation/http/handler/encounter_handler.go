package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/application/service"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/dto/response"
	"github.com/vetdesk/clinicpos-api/pkg/pagination"
)

// EncounterHandler handles encounter, line and pending-item HTTP requests
type EncounterHandler struct {
	encounterService *service.EncounterService
}

// NewEncounterHandler creates a new encounter handler
func NewEncounterHandler(encounterService *service.EncounterService) *EncounterHandler {
	return &EncounterHandler{encounterService: encounterService}
}

// List handles listing encounters with filtering
func (h *EncounterHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))

	params := &repository.EncounterFilterParams{
		Pagination: &pagination.PaginationParams{
			Page:    page,
			PerPage: perPage,
		},
		Search: c.Query("search"),
	}

	if customerStr := c.Query("customer_id"); customerStr != "" {
		customerID, err := uuid.Parse(customerStr)
		if err != nil {
			response.BadRequest(c, "Invalid customer ID")
			return
		}
		params.CustomerID = &customerID
	}
	switch c.Query("state") {
	case "open":
		state := enum.EncounterStateOpen
		params.State = &state
	case "closed":
		state := enum.EncounterStateClosed
		params.State = &state
	}

	result, err := h.encounterService.ListEncounters(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Encounters retrieved successfully", result)
}

// Create handles opening a new encounter
func (h *EncounterHandler) Create(c *gin.Context) {
	var req struct {
		CustomerID     string   `json:"customer_id" binding:"required,uuid"`
		PatientIDs     []string `json:"patient_ids"`
		PractitionerID *string  `json:"practitioner_id"`
		RoomID         *string  `json:"room_id"`
		CurrencyCode   string   `json:"currency_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.BadRequest(c, "Invalid customer ID")
		return
	}

	input := &service.CreateEncounterInput{
		CustomerID:   customerID,
		CurrencyCode: req.CurrencyCode,
	}
	if input.PatientIDs, err = parseUUIDs(req.PatientIDs); err != nil {
		response.BadRequest(c, "Invalid patient ID")
		return
	}
	if input.PractitionerID, err = parseOptionalUUID(req.PractitionerID); err != nil {
		response.BadRequest(c, "Invalid practitioner ID")
		return
	}
	if input.RoomID, err = parseOptionalUUID(req.RoomID); err != nil {
		response.BadRequest(c, "Invalid room ID")
		return
	}

	encounter, err := h.encounterService.CreateEncounter(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Encounter created successfully", encounter)
}

// Get handles getting a single encounter with details
func (h *EncounterHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	encounter, err := h.encounterService.GetEncounter(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Encounter retrieved successfully", encounter)
}

// Update handles editing an open encounter's header
func (h *EncounterHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	var req struct {
		PractitionerID *string  `json:"practitioner_id"`
		RoomID         *string  `json:"room_id"`
		PatientIDs     []string `json:"patient_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	input := &service.UpdateEncounterInput{ID: id}
	if input.PractitionerID, err = parseOptionalUUID(req.PractitionerID); err != nil {
		response.BadRequest(c, "Invalid practitioner ID")
		return
	}
	if input.RoomID, err = parseOptionalUUID(req.RoomID); err != nil {
		response.BadRequest(c, "Invalid room ID")
		return
	}
	if req.PatientIDs != nil {
		if input.PatientIDs, err = parseUUIDs(req.PatientIDs); err != nil {
			response.BadRequest(c, "Invalid patient ID")
			return
		}
	}

	encounter, err := h.encounterService.UpdateEncounter(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Encounter updated successfully", encounter)
}

// Close handles closing an encounter
func (h *EncounterHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	if err := h.encounterService.CloseEncounter(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Encounter closed successfully", nil)
}

// ListLines returns an encounter's lines
func (h *EncounterHandler) ListLines(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	lines, err := h.encounterService.ListLines(c.Request.Context(), id, c.Query("payable") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Lines retrieved successfully", lines)
}

// AddPendingItem queues a billable item on an encounter
func (h *EncounterHandler) AddPendingItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	var req struct {
		ProductID string  `json:"product_id" binding:"required,uuid"`
		PatientID *string `json:"patient_id"`
		Qty       string  `json:"qty"`
		Note      *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		response.BadRequest(c, "Invalid product ID")
		return
	}

	input := &service.AddPendingItemInput{
		EncounterID: id,
		ProductID:   productID,
		Note:        req.Note,
	}
	if input.PatientID, err = parseOptionalUUID(req.PatientID); err != nil {
		response.BadRequest(c, "Invalid patient ID")
		return
	}
	if req.Qty != "" {
		if qty, err := decimal.NewFromString(req.Qty); err == nil {
			input.Qty = qty
		}
	}

	item, err := h.encounterService.AddPendingItem(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Pending item queued successfully", item)
}

// ListPendingItems returns the unconsumed queue for an encounter
func (h *EncounterHandler) ListPendingItems(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	items, err := h.encounterService.ListPendingItems(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Pending items retrieved successfully", items)
}

// ConvertPendingItem turns a queued item into an encounter line
func (h *EncounterHandler) ConvertPendingItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		response.BadRequest(c, "Invalid pending item ID")
		return
	}

	line, err := h.encounterService.ConvertPendingItem(c.Request.Context(), itemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Pending item added to encounter", line)
}

// ListResources lists practitioners or rooms
func (h *EncounterHandler) ListResources(c *gin.Context) {
	var category enum.ResourceCategory
	switch c.Query("category") {
	case "practitioner", "":
		category = enum.ResourceCategoryPractitioner
	case "room", "location":
		category = enum.ResourceCategoryLocation
	default:
		response.BadRequest(c, "Unknown resource category")
		return
	}

	resources, err := h.encounterService.ListResources(c.Request.Context(), category, c.Query("all") != "true")
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Resources retrieved successfully", resources)
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
