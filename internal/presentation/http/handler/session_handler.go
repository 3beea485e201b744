package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/application/pos"
	"github.com/vetdesk/clinicpos-api/internal/application/service"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/dto/request"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/dto/response"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
)

// SessionHandler exposes the terminal cart session over HTTP. Every
// endpoint operates on the per-encounter in-memory session; only sync,
// delete and pay reach the database.
type SessionHandler struct {
	sessions         *service.SessionManager
	catalogService   *service.CatalogService
	paymentService   *service.PaymentService
	encounterService *service.EncounterService
	customerService  *service.CustomerService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessions *service.SessionManager,
	catalogService *service.CatalogService,
	paymentService *service.PaymentService,
	encounterService *service.EncounterService,
	customerService *service.CustomerService,
) *SessionHandler {
	return &SessionHandler{
		sessions:         sessions,
		catalogService:   catalogService,
		paymentService:   paymentService,
		encounterService: encounterService,
		customerService:  customerService,
	}
}

// Open loads (or reuses) the cart session for an encounter
func (h *SessionHandler) Open(c *gin.Context) {
	encounterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	session, err := h.sessions.OpenSession(c.Request.Context(), encounterID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Session opened", sessionView(session))
}

// Get returns the current cart state
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	response.OK(c, "Session retrieved", sessionView(session))
}

// AddLine adds a product to the cart
func (h *SessionHandler) AddLine(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req request.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		response.BadRequest(c, "Invalid product ID")
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), productID)
	if err != nil {
		response.Error(c, err)
		return
	}

	qty := decimal.NewFromInt(1)
	if req.Qty != "" {
		if parsed, err := decimal.NewFromString(req.Qty); err == nil {
			qty = parsed
		}
	}

	if err := session.AddLine(pos.ProductRecord{
		ID:        product.ID,
		Name:      product.Name,
		Code:      product.Code,
		ListPrice: product.ListPrice,
	}, qty); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Line added", sessionView(session))
}

// UpdateLine edits one field of a cart line
func (h *SessionHandler) UpdateLine(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req request.UpdateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if err := session.UpdateLineField(c.Param("lineId"), pos.LineField(req.Field), req.Value); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Line updated", sessionView(session))
}

// RemoveLine removes a cart line, deleting the backend record first
func (h *SessionHandler) RemoveLine(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := session.RemoveLine(c.Request.Context(), c.Param("lineId")); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Line removed", sessionView(session))
}

// SetGlobalDiscount installs or clears the cart-wide discount
func (h *SessionHandler) SetGlobalDiscount(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req request.GlobalDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		response.BadRequest(c, "Invalid discount value")
		return
	}

	if err := session.SetGlobalDiscount(value, enum.DiscountType(req.Type)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Discount applied", sessionView(session))
}

// TogglePaymentMethod selects or deselects a payment method
func (h *SessionHandler) TogglePaymentMethod(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req request.TogglePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	methodID, err := uuid.Parse(req.PaymentMethodID)
	if err != nil {
		response.BadRequest(c, "Invalid payment method ID")
		return
	}

	method, err := h.paymentService.ListPaymentMethods(c.Request.Context(), true)
	if err != nil {
		response.Error(c, err)
		return
	}
	for _, m := range method {
		if m.ID == methodID {
			session.TogglePaymentMethod(pos.PaymentMethodRecord{
				ID:       m.ID,
				Name:     m.Name,
				IsCredit: m.IsCredit,
			})
			response.OK(c, "Payment method toggled", sessionView(session))
			return
		}
	}
	response.NotFound(c, "Payment method not found")
}

// UpdateHeader changes the encounter's practitioner, room or patient
// selection and propagates it to the unsaved cart lines
func (h *SessionHandler) UpdateHeader(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req request.UpdateHeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()

	if req.PractitionerID != nil {
		ref, allowedRooms, err := h.resolvePractitioner(ctx, *req.PractitionerID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if err := session.SetHeaderPractitioner(ref, allowedRooms); err != nil {
			response.Error(c, err)
			return
		}
	}

	if req.RoomID != nil {
		ref, err := h.resolveRoom(ctx, *req.RoomID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if err := session.SetHeaderRoom(ref); err != nil {
			response.Error(c, err)
			return
		}
	}

	if req.PatientIDs != nil {
		refs, err := h.resolvePatients(ctx, session, req.PatientIDs)
		if err != nil {
			response.Error(c, err)
			return
		}
		if err := session.SetHeaderPatients(refs); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.OK(c, "Header updated", sessionView(session))
}

// resolvePractitioner looks up the practitioner plus the rooms its
// department may use. An empty id clears the selection.
func (h *SessionHandler) resolvePractitioner(ctx context.Context, id string) (*pos.Ref, []uuid.UUID, error) {
	if id == "" {
		return nil, nil, nil
	}
	practitionerID, err := uuid.Parse(id)
	if err != nil {
		return nil, nil, apperror.NewBadRequestError("Invalid practitioner ID")
	}

	practitioners, err := h.encounterService.ListResources(ctx, enum.ResourceCategoryPractitioner, true)
	if err != nil {
		return nil, nil, err
	}
	var practitioner *entity.Resource
	for i := range practitioners {
		if practitioners[i].ID == practitionerID {
			practitioner = &practitioners[i]
			break
		}
	}
	if practitioner == nil {
		return nil, nil, apperror.NewNotFoundError("Practitioner")
	}

	rooms, err := h.encounterService.ListResources(ctx, enum.ResourceCategoryLocation, true)
	if err != nil {
		return nil, nil, err
	}
	allowed := make([]uuid.UUID, 0, len(rooms))
	for i := range rooms {
		if rooms[i].UsableWith(practitioner.DepartmentID) {
			allowed = append(allowed, rooms[i].ID)
		}
	}
	return &pos.Ref{ID: practitioner.ID, Label: practitioner.Name}, allowed, nil
}

func (h *SessionHandler) resolveRoom(ctx context.Context, id string) (*pos.Ref, error) {
	if id == "" {
		return nil, nil
	}
	roomID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NewBadRequestError("Invalid room ID")
	}

	rooms, err := h.encounterService.ListResources(ctx, enum.ResourceCategoryLocation, true)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		if rooms[i].ID == roomID {
			return &pos.Ref{ID: rooms[i].ID, Label: rooms[i].Name}, nil
		}
	}
	return nil, apperror.NewNotFoundError("Room")
}

// resolvePatients matches the requested ids against the encounter customer's
// own patients, rejecting anyone else's.
func (h *SessionHandler) resolvePatients(ctx context.Context, session *pos.Session, ids []string) ([]pos.Ref, error) {
	encounter := session.Encounter()
	if encounter == nil {
		return nil, apperror.NewBadRequestError("No encounter loaded")
	}

	patients, err := h.customerService.ListPatients(ctx, encounter.Customer.ID)
	if err != nil {
		return nil, err
	}

	refs := make([]pos.Ref, 0, len(ids))
	for _, raw := range ids {
		patientID, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.NewBadRequestError("Invalid patient ID")
		}
		found := false
		for i := range patients {
			if patients[i].ID == patientID {
				refs = append(refs, pos.Ref{ID: patients[i].ID, Label: patients[i].Name})
				found = true
				break
			}
		}
		if !found {
			return nil, apperror.NewBadRequestError("Patient does not belong to this customer")
		}
	}
	return refs, nil
}

// Totals returns the derived billing figures for the cart
func (h *SessionHandler) Totals(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	response.OK(c, "Totals computed", gin.H{
		"cart_total":       session.CartTotal(),
		"discount_total":   session.TotalDiscountAmount(),
		"available_credit": session.AvailableCredit(),
		"distribution":     session.PaymentDistribution(),
	})
}

// Save writes the edited header and every dirty cart line to the backend
func (h *SessionHandler) Save(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := session.Save(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Session saved", sessionView(session))
}

// Sync writes every new or dirty cart line to the backend
func (h *SessionHandler) Sync(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := session.SyncToBackend(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Cart synced", sessionView(session))
}

// Pay settles the encounter's payable lines
func (h *SessionHandler) Pay(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	result, err := session.ProcessPayment(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment completed", gin.H{
		"result":  result,
		"session": sessionView(session),
	})
}

// Close discards the in-memory session for an encounter
func (h *SessionHandler) Close(c *gin.Context) {
	encounterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return
	}

	h.sessions.CloseSession(encounterID)
	response.NoContent(c)
}

func (h *SessionHandler) session(c *gin.Context) (*pos.Session, bool) {
	encounterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid encounter ID")
		return nil, false
	}

	session, err := h.sessions.GetSession(encounterID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return session, true
}

// sessionView assembles the full cart state the terminal renders from
func sessionView(s *pos.Session) gin.H {
	view := gin.H{
		"state":            s.State().String(),
		"encounter":        s.Encounter(),
		"lines":            s.Lines(),
		"cart_total":       s.CartTotal(),
		"discount_total":   s.TotalDiscountAmount(),
		"available_credit": s.AvailableCredit(),
		"distribution":     s.PaymentDistribution(),
		"selected_methods": s.SelectedMethods(),
		"global_discount":  s.GlobalDiscountSetting(),
		"invoice_id":       s.InvoiceID(),
	}
	if err := s.LastError(); err != nil {
		view["last_error"] = err.Error()
	}
	return view
}
