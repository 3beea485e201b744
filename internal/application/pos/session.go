package pos

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"go.uber.org/zap"
)

// GlobalDiscountLineID is the fixed id of the synthetic cart-wide discount
// line. At most one line carries it.
const GlobalDiscountLineID = "global_discount_line"

// discountProductCode identifies the catalog product that backs synthetic
// discount lines when they are written to the backend.
const discountProductCode = "DISC"

const moneyScale = 3

// State is the lifecycle state of a session
type State int

const (
	StateLoading State = iota
	StateReady
	StateProcessing
	StateCompleted
)

func (s State) String() string {
	return [...]string{"Loading", "Ready", "Processing", "Completed"}[s]
}

// Session errors
var (
	ErrNotLoaded           = apperror.NewBadRequestError("no encounter loaded")
	ErrPaymentInProgress   = apperror.NewConflictError("payment already in progress")
	ErrPaymentCompleted    = apperror.NewConflictError("payment already completed for this session")
	ErrNoPaymentMethod     = apperror.NewBadRequestError("no payment method selected")
	ErrCartEmpty           = apperror.NewBadRequestError("cart is empty")
	ErrNothingDue          = apperror.NewBadRequestError("no unpaid lines to settle")
	ErrLineNotFound        = apperror.NewNotFoundError("Cart line")
	ErrInvalidDiscountType = apperror.NewBadRequestError("discount type must be percent or fixed")
)

// LineField names a cart line field that UpdateLineField can mutate
type LineField string

const (
	FieldQty      LineField = "qty"
	FieldPrice    LineField = "price"
	FieldDiscount LineField = "discount"
)

// CartLine is one in-memory cart entry. New lines carry a client-generated
// id until the backend issues one; existing lines mirror a persisted record.
type CartLine struct {
	ID               string             `json:"id"`
	Product          Ref                `json:"product"`
	ProductCode      string             `json:"product_code"`
	Qty              decimal.Decimal    `json:"qty"`
	UnitPrice        decimal.Decimal    `json:"unit_price"`
	Discount         decimal.Decimal    `json:"discount"`
	BackendID        *uuid.UUID         `json:"backend_id,omitempty"`
	IsExisting       bool               `json:"is_existing"`
	IsGlobalDiscount bool               `json:"is_global_discount"`
	HasChanges       bool               `json:"has_changes"`
	PaymentStatus    enum.PaymentStatus `json:"payment_status"`
	PaidAmount       decimal.Decimal    `json:"paid_amount"`
	Practitioner     *Ref               `json:"practitioner,omitempty"`
	Room             *Ref               `json:"room,omitempty"`
	Patients         []Ref              `json:"patients,omitempty"`
}

// GlobalDiscount is the cart-wide discount setting behind the synthetic line
type GlobalDiscount struct {
	Type  enum.DiscountType `json:"type"`
	Value decimal.Decimal   `json:"value"`
}

// Distribution is the derived split of the cart total across store credit
// and the primary tender. Never stored, recomputed on demand.
type Distribution struct {
	Credit       decimal.Decimal       `json:"credit"`
	Remaining    decimal.Decimal       `json:"remaining"`
	OtherMethods []PaymentMethodRecord `json:"other_methods"`
}

// Session holds the authoritative in-memory cart for one encounter. All
// derived billing figures are computed from it; the backend is only written
// on sync, delete and payment.
//
// A generation counter guards against stale backend responses: every load
// bumps it, and responses issued under an older generation are discarded.
type Session struct {
	mu      sync.Mutex
	backend Backend
	logger  *zap.Logger

	generation      uint64
	state           State
	lastErr         error
	encounter       *EncounterRecord
	availableCredit decimal.Decimal
	discountProduct *ProductRecord
	lines           []*CartLine
	globalDiscount  *GlobalDiscount
	selectedMethods []PaymentMethodRecord
	nextLineSeq     int
	invoiceID       *uuid.UUID
	headerDirty     bool
}

// NewSession creates a session in the Loading state. LoadEncounter must be
// called before any cart operation.
func NewSession(backend Backend, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		backend: backend,
		logger:  logger,
		state:   StateLoading,
	}
}

// LoadEncounter fetches the encounter header, its unpaid lines and the
// customer's credit balance, and populates the in-memory cart. On failure
// the cart is left empty and the error is surfaced; the session stays usable
// for a retry.
func (s *Session) LoadEncounter(ctx context.Context, encounterID uuid.UUID) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = StateLoading
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen == s.generation {
			s.encounter = nil
			s.lines = nil
			s.state = StateReady
			s.lastErr = err
		}
		return err
	}

	encounter, err := s.backend.ReadEncounter(ctx, encounterID)
	if err != nil {
		return fail(err)
	}
	if encounter == nil {
		return fail(apperror.NewNotFoundError("Encounter"))
	}

	records, err := s.backend.ListEncounterLines(ctx, LineFilter{
		EncounterID:       encounterID,
		PaymentStatusIn:   []enum.PaymentStatus{enum.PaymentStatusPending, enum.PaymentStatusPartial},
		RemainingPositive: true,
	})
	if err != nil {
		return fail(err)
	}

	credit := decimal.Zero
	if !encounter.Customer.IsZero() {
		credit, err = s.backend.GetCreditBalance(ctx, encounter.Customer.ID)
		if err != nil {
			s.logger.Warn("credit balance lookup failed, assuming zero",
				zap.String("customer_id", encounter.Customer.ID.String()),
				zap.Error(err))
			credit = decimal.Zero
		}
	}

	var discountProduct *ProductRecord
	if products, err := s.backend.SearchProducts(ctx, discountProductCode); err == nil {
		for i := range products {
			if products[i].Code == discountProductCode {
				discountProduct = &products[i]
				break
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}

	s.encounter = encounter
	s.availableCredit = credit
	s.discountProduct = discountProduct
	s.lines = make([]*CartLine, 0, len(records))
	for _, rec := range records {
		s.lines = append(s.lines, lineFromRecord(rec))
	}
	s.globalDiscount = nil
	s.selectedMethods = nil
	s.invoiceID = nil
	s.headerDirty = false
	s.state = StateReady
	s.lastErr = nil

	s.logger.Info("encounter loaded",
		zap.String("encounter_id", encounterID.String()),
		zap.Int("lines", len(s.lines)))
	return nil
}

func lineFromRecord(rec LineRecord) *CartLine {
	id := rec.ID
	return &CartLine{
		ID:            rec.ID.String(),
		Product:       Ref{ID: rec.ProductID, Label: rec.ProductName},
		ProductCode:   rec.ProductCode,
		Qty:           rec.Qty,
		UnitPrice:     rec.UnitPrice,
		Discount:      rec.Discount,
		BackendID:     &id,
		IsExisting:    true,
		PaymentStatus: rec.PaymentStatus,
		PaidAmount:    rec.PaidAmount,
		Practitioner:  rec.Practitioner,
		Room:          rec.Room,
		Patients:      rec.Patients,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent surfaced error, nil when healthy
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Encounter returns the loaded header, nil before a successful load
func (s *Session) Encounter() *EncounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encounter
}

// InvoiceID returns the invoice issued by a completed payment
func (s *Session) InvoiceID() *uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoiceID
}

// AvailableCredit returns the customer credit balance loaded for the session
func (s *Session) AvailableCredit() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableCredit
}

// Lines returns a snapshot copy of the cart lines in display order
func (s *Session) Lines() []CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]CartLine, 0, len(s.lines))
	for _, l := range s.lines {
		lines = append(lines, *l)
	}
	return lines
}

// AddLine appends a product to the cart, or bumps the quantity of an
// existing unsaved line for the same product. The new line inherits the
// encounter's current practitioner, room and patient selection.
func (s *Session) AddLine(product ProductRecord, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encounter == nil {
		return ErrNotLoaded
	}
	if s.state == StateCompleted {
		return ErrPaymentCompleted
	}

	one := decimal.NewFromInt(1)
	if qty.LessThan(one) {
		qty = one
	}

	for _, line := range s.lines {
		if !line.IsExisting && !line.IsGlobalDiscount && line.Product.ID == product.ID {
			line.Qty = line.Qty.Add(qty)
			s.refreshGlobalDiscountLocked()
			return nil
		}
	}

	s.nextLineSeq++
	line := &CartLine{
		ID:          fmt.Sprintf("new_%d_%s", s.nextLineSeq, uuid.New().String()[:8]),
		Product:     Ref{ID: product.ID, Label: product.Name},
		ProductCode: product.Code,
		Qty:         qty,
		UnitPrice:   product.ListPrice,
		Discount:    decimal.Zero,
	}
	line.Practitioner = copyRef(s.encounter.Practitioner)
	line.Room = copyRef(s.encounter.Room)
	if len(s.encounter.Patients) > 0 {
		line.Patients = append([]Ref(nil), s.encounter.Patients...)
	}

	s.lines = append(s.lines, line)
	s.refreshGlobalDiscountLocked()
	return nil
}

// UpdateLineField mutates one editable field of a cart line. Invalid input
// is coerced rather than rejected: a quantity below 1 is ignored, an
// unparseable price becomes 0, an unparseable discount becomes 0 and is
// clamped to the 0..100 range. Persisted lines are marked dirty for the
// next sync.
func (s *Session) UpdateLineField(lineID string, field LineField, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.findLineLocked(lineID)
	if line == nil {
		return ErrLineNotFound
	}
	if line.IsGlobalDiscount {
		return nil
	}

	switch field {
	case FieldQty:
		qty, err := decimal.NewFromString(raw)
		if err != nil || qty.LessThan(decimal.NewFromInt(1)) {
			return nil
		}
		line.Qty = qty
	case FieldPrice:
		price, err := decimal.NewFromString(raw)
		if err != nil || price.IsNegative() {
			price = decimal.Zero
		}
		line.UnitPrice = price
	case FieldDiscount:
		discount, err := decimal.NewFromString(raw)
		if err != nil {
			discount = decimal.Zero
		}
		hundred := decimal.NewFromInt(100)
		if discount.IsNegative() {
			discount = decimal.Zero
		} else if discount.GreaterThan(hundred) {
			discount = hundred
		}
		line.Discount = discount
	default:
		return apperror.NewBadRequestError("unknown line field: " + string(field))
	}

	if line.IsExisting {
		line.HasChanges = true
	}
	s.refreshGlobalDiscountLocked()
	return nil
}

// RemoveLine removes a cart line. For persisted lines the backend record is
// deleted first; if that fails the in-memory line is kept untouched and the
// error is surfaced.
func (s *Session) RemoveLine(ctx context.Context, lineID string) error {
	s.mu.Lock()
	line := s.findLineLocked(lineID)
	if line == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}

	if line.IsGlobalDiscount {
		s.globalDiscount = nil
		s.removeLineLocked(lineID)
		s.mu.Unlock()
		return nil
	}

	if line.IsExisting && line.BackendID != nil {
		backendID := *line.BackendID
		gen := s.generation
		s.mu.Unlock()

		if err := s.backend.DeleteEncounterLine(ctx, backendID); err != nil {
			s.mu.Lock()
			if gen == s.generation {
				s.lastErr = err
			}
			s.mu.Unlock()
			s.logger.Warn("line delete failed, keeping cart unchanged",
				zap.String("line_id", lineID), zap.Error(err))
			return err
		}

		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return nil
		}
	}

	s.removeLineLocked(lineID)
	s.refreshGlobalDiscountLocked()
	s.mu.Unlock()
	return nil
}

// SetGlobalDiscount installs or replaces the cart-wide discount. The
// synthetic line amount is recomputed from the pre-discount subtotal; a
// resulting amount of zero removes the line entirely.
func (s *Session) SetGlobalDiscount(value decimal.Decimal, discountType enum.DiscountType) error {
	if !discountType.Valid() {
		return ErrInvalidDiscountType
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encounter == nil {
		return ErrNotLoaded
	}

	if value.IsNegative() {
		value = decimal.Zero
	}
	if value.IsZero() {
		s.globalDiscount = nil
	} else {
		s.globalDiscount = &GlobalDiscount{Type: discountType, Value: value}
	}
	s.refreshGlobalDiscountLocked()
	return nil
}

// GlobalDiscountSetting returns the active cart-wide discount, nil if none
func (s *Session) GlobalDiscountSetting() *GlobalDiscount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.globalDiscount == nil {
		return nil
	}
	gd := *s.globalDiscount
	return &gd
}

// SetHeaderPractitioner changes the encounter's practitioner and pushes the
// new value onto every unsaved non-discount line. allowedRooms lists the
// rooms usable by the new practitioner's department; when the current room is
// not among them it is cleared everywhere too. A nil slice means no
// restriction.
func (s *Session) SetHeaderPractitioner(ref *Ref, allowedRooms []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encounter == nil {
		return ErrNotLoaded
	}

	s.encounter.Practitioner = copyRef(ref)
	roomCleared := false
	if s.encounter.Room != nil && allowedRooms != nil && !containsID(allowedRooms, s.encounter.Room.ID) {
		s.encounter.Room = nil
		roomCleared = true
	}

	for _, line := range s.lines {
		if line.IsExisting || line.IsGlobalDiscount {
			continue
		}
		line.Practitioner = copyRef(s.encounter.Practitioner)
		if roomCleared {
			line.Room = nil
		}
	}
	s.headerDirty = true
	return nil
}

// SetHeaderRoom changes the encounter's room and pushes the new value onto
// every unsaved non-discount line.
func (s *Session) SetHeaderRoom(ref *Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encounter == nil {
		return ErrNotLoaded
	}

	s.encounter.Room = copyRef(ref)
	for _, line := range s.lines {
		if line.IsExisting || line.IsGlobalDiscount {
			continue
		}
		line.Room = copyRef(s.encounter.Room)
	}
	s.headerDirty = true
	return nil
}

// SetHeaderPatients replaces the encounter's patient selection and pushes it
// onto every unsaved non-discount line.
func (s *Session) SetHeaderPatients(refs []Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encounter == nil {
		return ErrNotLoaded
	}

	s.encounter.Patients = append([]Ref(nil), refs...)
	for _, line := range s.lines {
		if line.IsExisting || line.IsGlobalDiscount {
			continue
		}
		line.Patients = append([]Ref(nil), refs...)
	}
	s.headerDirty = true
	return nil
}

// Save writes the edited header to the backend and then syncs the cart. The
// header write is skipped when nothing changed since the last save; a failed
// write keeps the header dirty so the next save retries it.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.encounter == nil {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	gen := s.generation
	encounterID := s.encounter.ID
	dirty := s.headerDirty
	var input HeaderInput
	if dirty {
		if s.encounter.Practitioner != nil {
			id := s.encounter.Practitioner.ID
			input.PractitionerID = &id
		}
		if s.encounter.Room != nil {
			id := s.encounter.Room.ID
			input.RoomID = &id
		}
		input.PatientIDs = make([]uuid.UUID, 0, len(s.encounter.Patients))
		for _, p := range s.encounter.Patients {
			input.PatientIDs = append(input.PatientIDs, p.ID)
		}
	}
	s.mu.Unlock()

	if dirty {
		if err := s.backend.UpdateEncounterHeader(ctx, encounterID, input); err != nil {
			s.mu.Lock()
			if gen == s.generation {
				s.lastErr = err
			}
			s.mu.Unlock()
			s.logger.Warn("header save failed",
				zap.String("encounter_id", encounterID.String()), zap.Error(err))
			return err
		}
		s.mu.Lock()
		if gen == s.generation {
			s.headerDirty = false
		}
		s.mu.Unlock()
	}

	return s.SyncToBackend(ctx)
}

// TotalDiscountAmount returns the money taken off the cart: the sum of every
// per-line percentage discount plus the cart-wide discount line.
func (s *Session) TotalDiscountAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, line := range s.lines {
		if line.IsGlobalDiscount {
			total = total.Add(line.UnitPrice.Neg())
			continue
		}
		gross := line.UnitPrice.Mul(line.Qty)
		total = total.Add(gross.Sub(ComputeLineTotal(*line)))
	}
	return total.Round(moneyScale)
}

func copyRef(r *Ref) *Ref {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ComputeLineTotal returns the billed amount of one line. Synthetic discount
// lines contribute their (negative) price directly.
func ComputeLineTotal(line CartLine) decimal.Decimal {
	if line.IsGlobalDiscount {
		return line.UnitPrice
	}
	hundred := decimal.NewFromInt(100)
	factor := hundred.Sub(line.Discount).Div(hundred)
	return line.UnitPrice.Mul(line.Qty).Mul(factor).Round(moneyScale)
}

// CartTotal returns the sum of all line totals, clamped to zero
func (s *Session) CartTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartTotalLocked()
}

func (s *Session) cartTotalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(ComputeLineTotal(*line))
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(moneyScale)
}

// subtotal of all non-discount lines, before the global discount applies
func (s *Session) subtotalLocked() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range s.lines {
		if line.IsGlobalDiscount {
			continue
		}
		subtotal = subtotal.Add(ComputeLineTotal(*line))
	}
	return subtotal
}

// refreshGlobalDiscountLocked removes and reinserts the synthetic discount
// line so it never goes stale after any line mutation.
func (s *Session) refreshGlobalDiscountLocked() {
	s.removeLineLocked(GlobalDiscountLineID)
	if s.globalDiscount == nil {
		return
	}

	subtotal := s.subtotalLocked()
	var amount decimal.Decimal
	switch s.globalDiscount.Type {
	case enum.DiscountTypePercent:
		amount = subtotal.Mul(s.globalDiscount.Value).Div(decimal.NewFromInt(100)).Round(moneyScale)
	case enum.DiscountTypeFixed:
		amount = decimal.Min(s.globalDiscount.Value, subtotal).Round(moneyScale)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return
	}

	line := &CartLine{
		ID:               GlobalDiscountLineID,
		ProductCode:      discountProductCode,
		Qty:              decimal.NewFromInt(1),
		UnitPrice:        amount.Neg(),
		IsGlobalDiscount: true,
	}
	if s.discountProduct != nil {
		line.Product = Ref{ID: s.discountProduct.ID, Label: s.discountProduct.Name}
	}
	s.lines = append(s.lines, line)
}

// TogglePaymentMethod selects or deselects a payment method. Selecting a
// method replaces any other selected method of the same kind, so at most one
// credit method and one primary tender are active at a time.
func (s *Session) TogglePaymentMethod(method PaymentMethodRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasSelected := false
	kept := s.selectedMethods[:0]
	for _, m := range s.selectedMethods {
		if m.ID == method.ID {
			wasSelected = true
			continue
		}
		if m.IsCredit == method.IsCredit {
			continue
		}
		kept = append(kept, m)
	}
	s.selectedMethods = kept

	if !wasSelected {
		s.selectedMethods = append(s.selectedMethods, method)
	}
}

// SelectedMethods returns a snapshot of the selected payment methods
func (s *Session) SelectedMethods() []PaymentMethodRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PaymentMethodRecord(nil), s.selectedMethods...)
}

// PaymentDistribution splits the cart total between available store credit
// and the remaining tender amount.
func (s *Session) PaymentDistribution() Distribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distributionLocked()
}

func (s *Session) distributionLocked() Distribution {
	total := s.cartTotalLocked()
	dist := Distribution{
		Credit:    decimal.Zero,
		Remaining: total,
	}
	creditSelected := false
	for _, m := range s.selectedMethods {
		if m.IsCredit {
			creditSelected = true
		} else {
			dist.OtherMethods = append(dist.OtherMethods, m)
		}
	}
	if creditSelected && s.availableCredit.IsPositive() {
		dist.Credit = decimal.Min(s.availableCredit, total)
		dist.Remaining = decimal.Max(decimal.Zero, total.Sub(dist.Credit))
	}
	return dist
}

// SyncToBackend upserts every new or dirty line in cart order. A created
// line adopts the backend-issued id and becomes existing. The first failed
// upsert aborts the sync; lines already written stay written and only the
// still-dirty ones are retried next time.
func (s *Session) SyncToBackend(ctx context.Context) error {
	s.mu.Lock()
	if s.encounter == nil {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	gen := s.generation
	encounterID := s.encounter.ID
	s.mu.Unlock()

	skipped := make(map[string]bool)
	for {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return nil
		}
		line := s.nextDirtyLineLocked(skipped)
		if line == nil {
			s.mu.Unlock()
			return nil
		}
		lineID := line.ID
		input, ok := s.upsertInputLocked(line)
		if !ok {
			// Discount line without a backing product stays local only
			skipped[lineID] = true
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		backendID, err := s.backend.UpsertEncounterLine(ctx, encounterID, input)
		if err != nil {
			s.mu.Lock()
			if gen == s.generation {
				s.lastErr = err
			}
			s.mu.Unlock()
			s.logger.Warn("line sync aborted",
				zap.String("line_id", lineID), zap.Error(err))
			return err
		}

		s.mu.Lock()
		if gen == s.generation {
			if synced := s.findLineLocked(lineID); synced != nil {
				id := backendID
				synced.BackendID = &id
				synced.IsExisting = true
				synced.HasChanges = false
				if !synced.IsGlobalDiscount {
					synced.ID = backendID.String()
				}
			}
		}
		s.mu.Unlock()
	}
}

func (s *Session) nextDirtyLineLocked(skipped map[string]bool) *CartLine {
	for _, line := range s.lines {
		if skipped[line.ID] {
			continue
		}
		if !line.IsExisting || line.HasChanges {
			return line
		}
	}
	return nil
}

func (s *Session) upsertInputLocked(line *CartLine) (UpsertLineInput, bool) {
	productID := line.Product.ID
	if line.IsGlobalDiscount {
		if s.discountProduct == nil {
			return UpsertLineInput{}, false
		}
		productID = s.discountProduct.ID
	}

	input := UpsertLineInput{
		ProductID: productID,
		Qty:       line.Qty,
		UnitPrice: line.UnitPrice,
		Discount:  line.Discount,
	}
	if line.BackendID != nil {
		id := *line.BackendID
		input.LineID = &id
	}
	if line.Practitioner != nil {
		id := line.Practitioner.ID
		input.PractitionerID = &id
	}
	if line.Room != nil {
		id := line.Room.ID
		input.RoomID = &id
	}
	for _, p := range line.Patients {
		input.PatientIDs = append(input.PatientIDs, p.ID)
	}
	return input, true
}

// ProcessPayment settles the encounter's payable lines. The cart is synced
// first; a sync failure aborts the payment. A second call while one is in
// flight is rejected outright, and a completed session takes no further
// payments.
func (s *Session) ProcessPayment(ctx context.Context) (*PaymentResult, error) {
	s.mu.Lock()
	if s.encounter == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	switch s.state {
	case StateProcessing:
		s.mu.Unlock()
		return nil, ErrPaymentInProgress
	case StateCompleted:
		s.mu.Unlock()
		return nil, ErrPaymentCompleted
	}
	if len(s.selectedMethods) == 0 {
		s.mu.Unlock()
		return nil, ErrNoPaymentMethod
	}
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return nil, ErrCartEmpty
	}

	s.state = StateProcessing
	gen := s.generation
	encounterID := s.encounter.ID
	s.mu.Unlock()

	fail := func(err error) (*PaymentResult, error) {
		s.mu.Lock()
		if gen == s.generation && s.state == StateProcessing {
			s.state = StateReady
			s.lastErr = err
		}
		s.mu.Unlock()
		return nil, err
	}

	if err := s.SyncToBackend(ctx); err != nil {
		return fail(err)
	}

	records, err := s.backend.ListEncounterLines(ctx, LineFilter{
		EncounterID:       encounterID,
		PaymentStatusIn:   []enum.PaymentStatus{enum.PaymentStatusPending, enum.PaymentStatusPartial},
		RemainingPositive: true,
	})
	if err != nil {
		return fail(err)
	}
	if len(records) == 0 {
		return fail(ErrNothingDue)
	}
	lineIDs := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		lineIDs = append(lineIDs, rec.ID)
	}

	s.mu.Lock()
	dist := s.distributionLocked()
	method, ok := s.primaryMethodLocked()
	s.mu.Unlock()
	if !ok {
		return fail(ErrNoPaymentMethod)
	}

	result, err := s.backend.ProcessPayment(ctx, encounterID, PaymentRequest{
		PaymentMethodID: method.ID,
		LineIDs:         lineIDs,
		PaymentAmount:   dist.Remaining,
		CreditUsed:      dist.Credit,
	})
	if err != nil {
		return fail(err)
	}
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "payment was declined"
		}
		return fail(apperror.NewBadRequestError(message))
	}

	s.mu.Lock()
	if gen == s.generation {
		s.state = StateCompleted
		s.invoiceID = result.InvoiceID
		s.lastErr = nil
	}
	s.mu.Unlock()

	s.logger.Info("payment completed",
		zap.String("encounter_id", encounterID.String()),
		zap.String("credit_used", dist.Credit.String()),
		zap.String("amount", dist.Remaining.String()))
	return result, nil
}

// primaryMethodLocked picks the selected non-credit method, falling back to
// the credit method when it is the only selection.
func (s *Session) primaryMethodLocked() (PaymentMethodRecord, bool) {
	var credit *PaymentMethodRecord
	for i, m := range s.selectedMethods {
		if m.IsCredit {
			credit = &s.selectedMethods[i]
			continue
		}
		return m, true
	}
	if credit != nil {
		return *credit, true
	}
	return PaymentMethodRecord{}, false
}

// RemoteOp names the kind of change carried by ApplyRemoteUpdate
type RemoteOp string

const (
	RemoteOpCreate RemoteOp = "create"
	RemoteOpUpdate RemoteOp = "update"
	RemoteOpDelete RemoteOp = "delete"
)

// ApplyRemoteUpdate merges line changes made elsewhere (another terminal, a
// backend workflow) into the in-memory cart. Records for other encounters
// are ignored, and lines with local unsynced edits win over remote state.
func (s *Session) ApplyRemoteUpdate(op RemoteOp, records []LineRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encounter == nil {
		return
	}

	for _, rec := range records {
		if rec.EncounterID != s.encounter.ID {
			continue
		}
		existing := s.findLineLocked(rec.ID.String())

		switch op {
		case RemoteOpDelete:
			if existing != nil && !existing.HasChanges {
				s.removeLineLocked(existing.ID)
			}
		case RemoteOpCreate, RemoteOpUpdate:
			if existing == nil {
				s.lines = append(s.lines, lineFromRecord(rec))
				continue
			}
			if existing.HasChanges {
				continue
			}
			*existing = *lineFromRecord(rec)
		}
	}
	s.refreshGlobalDiscountLocked()
}

// RefreshCredit re-reads the customer's credit balance, for use when a
// ledger change happens outside this terminal.
func (s *Session) RefreshCredit(ctx context.Context) error {
	s.mu.Lock()
	if s.encounter == nil || s.encounter.Customer.IsZero() {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	gen := s.generation
	customerID := s.encounter.Customer.ID
	s.mu.Unlock()

	credit, err := s.backend.GetCreditBalance(ctx, customerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen == s.generation {
		s.availableCredit = credit
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) findLineLocked(lineID string) *CartLine {
	for _, line := range s.lines {
		if line.ID == lineID {
			return line
		}
	}
	return nil
}

func (s *Session) removeLineLocked(lineID string) {
	for i, line := range s.lines {
		if line.ID == lineID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return
		}
	}
}
