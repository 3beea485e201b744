package pos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
)

type fakeBackend struct {
	mu sync.Mutex

	encounter *EncounterRecord
	lines     []LineRecord
	credit    decimal.Decimal
	products  []ProductRecord

	upsertCalls []UpsertLineInput
	upsertErr   error
	deleteCalls []uuid.UUID
	deleteErr   error
	headerCalls []HeaderInput
	headerErr   error

	paymentCalls   int
	paymentResult  *PaymentResult
	paymentErr     error
	paymentStarted chan struct{}
	paymentRelease chan struct{}
}

func (f *fakeBackend) ReadEncounter(_ context.Context, id uuid.UUID) (*EncounterRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.encounter == nil || f.encounter.ID != id {
		return nil, nil
	}
	enc := *f.encounter
	return &enc, nil
}

func (f *fakeBackend) UpdateEncounterHeader(_ context.Context, _ uuid.UUID, input HeaderInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headerErr != nil {
		return f.headerErr
	}
	f.headerCalls = append(f.headerCalls, input)
	return nil
}

func (f *fakeBackend) ListEncounterLines(_ context.Context, filter LineFilter) ([]LineRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LineRecord, 0, len(f.lines))
	for _, l := range f.lines {
		if l.EncounterID == filter.EncounterID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeBackend) UpsertEncounterLine(_ context.Context, encounterID uuid.UUID, input UpsertLineInput) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return uuid.Nil, f.upsertErr
	}
	f.upsertCalls = append(f.upsertCalls, input)

	if input.LineID != nil {
		for i := range f.lines {
			if f.lines[i].ID == *input.LineID {
				f.lines[i].Qty = input.Qty
				f.lines[i].UnitPrice = input.UnitPrice
				f.lines[i].Discount = input.Discount
				return *input.LineID, nil
			}
		}
		return uuid.Nil, errors.New("line not found")
	}

	id := uuid.New()
	f.lines = append(f.lines, LineRecord{
		ID:          id,
		EncounterID: encounterID,
		ProductID:   input.ProductID,
		Qty:         input.Qty,
		UnitPrice:   input.UnitPrice,
		Discount:    input.Discount,
	})
	return id, nil
}

func (f *fakeBackend) DeleteEncounterLine(_ context.Context, lineID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, lineID)
	for i := range f.lines {
		if f.lines[i].ID == lineID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) ProcessPayment(_ context.Context, _ uuid.UUID, _ PaymentRequest) (*PaymentResult, error) {
	f.mu.Lock()
	f.paymentCalls++
	started := f.paymentStarted
	release := f.paymentRelease
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.paymentStarted = nil
		f.mu.Unlock()
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	if f.paymentResult != nil {
		return f.paymentResult, nil
	}
	invoiceID := uuid.New()
	return &PaymentResult{Success: true, InvoiceID: &invoiceID}, nil
}

func (f *fakeBackend) GetCreditBalance(_ context.Context, _ uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credit, nil
}

func (f *fakeBackend) SearchProducts(_ context.Context, query string) ([]ProductRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ProductRecord
	for _, p := range f.products {
		if p.Code == query || p.Name == query {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upsertCalls)
}

func (f *fakeBackend) paymentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paymentCalls
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestBackend() (*fakeBackend, uuid.UUID) {
	encounterID := uuid.New()
	backend := &fakeBackend{
		encounter: &EncounterRecord{
			ID:       encounterID,
			Name:     "ENC-0001",
			Customer: Ref{ID: uuid.New(), Label: "Jamie Doe"},
		},
		products: []ProductRecord{
			{ID: uuid.New(), Name: "Global Discount", Code: "DISC"},
		},
	}
	return backend, encounterID
}

func loadedSession(t *testing.T, backend *fakeBackend, encounterID uuid.UUID) *Session {
	t.Helper()
	session := NewSession(backend, nil)
	require.NoError(t, session.LoadEncounter(context.Background(), encounterID))
	require.Equal(t, StateReady, session.State())
	return session
}

func consultation() ProductRecord {
	return ProductRecord{
		ID:        uuid.New(),
		Name:      "Consultation",
		Code:      "CONS",
		ListPrice: dec("100"),
	}
}

func TestComputeLineTotal(t *testing.T) {
	line := CartLine{
		Qty:       dec("2"),
		UnitPrice: dec("100"),
		Discount:  dec("10"),
	}
	assert.True(t, ComputeLineTotal(line).Equal(dec("180")))
}

func TestComputeLineTotalMonotonic(t *testing.T) {
	base := CartLine{Qty: dec("2"), UnitPrice: dec("50"), Discount: dec("20")}
	baseTotal := ComputeLineTotal(base)

	higherPrice := base
	higherPrice.UnitPrice = dec("60")
	assert.True(t, ComputeLineTotal(higherPrice).GreaterThanOrEqual(baseTotal))

	higherQty := base
	higherQty.Qty = dec("3")
	assert.True(t, ComputeLineTotal(higherQty).GreaterThanOrEqual(baseTotal))

	higherDiscount := base
	higherDiscount.Discount = dec("30")
	assert.True(t, ComputeLineTotal(higherDiscount).LessThanOrEqual(baseTotal))
}

func TestComputeLineTotalGlobalDiscountLine(t *testing.T) {
	line := CartLine{
		UnitPrice:        dec("-18"),
		Qty:              dec("1"),
		IsGlobalDiscount: true,
	}
	assert.True(t, ComputeLineTotal(line).Equal(dec("-18")))
}

func TestAddLineAndCartTotal(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)

	product := consultation()
	require.NoError(t, session.AddLine(product, dec("2")))
	require.NoError(t, session.UpdateLineField(session.Lines()[0].ID, FieldDiscount, "10"))

	assert.True(t, session.CartTotal().Equal(dec("180")),
		"got %s", session.CartTotal())
}

func TestAddLineMergesUnsavedSameProduct(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)

	product := consultation()
	require.NoError(t, session.AddLine(product, dec("1")))
	require.NoError(t, session.AddLine(product, dec("2")))

	lines := session.Lines()
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Qty.Equal(dec("3")))
}

func TestUpdateLineFieldCoercion(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("2")))
	lineID := session.Lines()[0].ID

	// Quantity below 1 is ignored
	require.NoError(t, session.UpdateLineField(lineID, FieldQty, "0"))
	assert.True(t, session.Lines()[0].Qty.Equal(dec("2")))

	// Unparseable quantity is ignored
	require.NoError(t, session.UpdateLineField(lineID, FieldQty, "abc"))
	assert.True(t, session.Lines()[0].Qty.Equal(dec("2")))

	// Invalid price coerces to zero
	require.NoError(t, session.UpdateLineField(lineID, FieldPrice, "nope"))
	assert.True(t, session.Lines()[0].UnitPrice.IsZero())

	// Negative price coerces to zero
	require.NoError(t, session.UpdateLineField(lineID, FieldPrice, "-5"))
	assert.True(t, session.Lines()[0].UnitPrice.IsZero())

	// Invalid discount coerces to zero, valid one clamps to 100
	require.NoError(t, session.UpdateLineField(lineID, FieldDiscount, "x"))
	assert.True(t, session.Lines()[0].Discount.IsZero())
	require.NoError(t, session.UpdateLineField(lineID, FieldDiscount, "150"))
	assert.True(t, session.Lines()[0].Discount.Equal(dec("100")))
}

func TestGlobalDiscountPercent(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("2")))
	require.NoError(t, session.UpdateLineField(session.Lines()[0].ID, FieldDiscount, "10"))

	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))

	lines := session.Lines()
	require.Len(t, lines, 2)
	discountLine := lines[1]
	assert.True(t, discountLine.IsGlobalDiscount)
	assert.Equal(t, GlobalDiscountLineID, discountLine.ID)
	assert.True(t, discountLine.UnitPrice.Equal(dec("-18")), "got %s", discountLine.UnitPrice)
	assert.True(t, session.CartTotal().Equal(dec("162")), "got %s", session.CartTotal())
}

func TestGlobalDiscountFixedClampedToSubtotal(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	require.NoError(t, session.SetGlobalDiscount(dec("1000"), enum.DiscountTypeFixed))

	assert.True(t, session.CartTotal().Equal(decimal.Zero), "got %s", session.CartTotal())
	assert.False(t, session.CartTotal().IsNegative())
}

func TestSetGlobalDiscountIdempotent(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("2")))

	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))
	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))

	discountLines := 0
	for _, line := range session.Lines() {
		if line.IsGlobalDiscount {
			discountLines++
		}
	}
	assert.Equal(t, 1, discountLines)
}

func TestSetGlobalDiscountZeroRemovesLine(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("2")))

	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))
	require.NoError(t, session.SetGlobalDiscount(decimal.Zero, enum.DiscountTypePercent))

	for _, line := range session.Lines() {
		assert.False(t, line.IsGlobalDiscount)
	}
}

func TestGlobalDiscountRecomputedOnLineChange(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("2")))
	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))

	// Subtotal 200 -> discount 20
	var discountLine CartLine
	for _, line := range session.Lines() {
		if line.IsGlobalDiscount {
			discountLine = line
		}
	}
	require.True(t, discountLine.UnitPrice.Equal(dec("-20")))

	// Halving the quantity halves the discount
	var target string
	for _, line := range session.Lines() {
		if !line.IsGlobalDiscount {
			target = line.ID
		}
	}
	require.NoError(t, session.UpdateLineField(target, FieldQty, "1"))

	for _, line := range session.Lines() {
		if line.IsGlobalDiscount {
			assert.True(t, line.UnitPrice.Equal(dec("-10")), "got %s", line.UnitPrice)
		}
	}
}

func TestPaymentDistributionWithCredit(t *testing.T) {
	backend, encounterID := newTestBackend()
	backend.credit = dec("50")
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("2")))
	require.NoError(t, session.UpdateLineField(session.Lines()[0].ID, FieldDiscount, "10"))
	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))
	require.True(t, session.CartTotal().Equal(dec("162")))

	cash := PaymentMethodRecord{ID: uuid.New(), Name: "Cash"}
	credit := PaymentMethodRecord{ID: uuid.New(), Name: "Store Credit", IsCredit: true}
	session.TogglePaymentMethod(cash)
	session.TogglePaymentMethod(credit)

	dist := session.PaymentDistribution()
	assert.True(t, dist.Credit.Equal(dec("50")), "credit %s", dist.Credit)
	assert.True(t, dist.Remaining.Equal(dec("112")), "remaining %s", dist.Remaining)
	require.Len(t, dist.OtherMethods, 1)
	assert.Equal(t, cash.ID, dist.OtherMethods[0].ID)
}

func TestPaymentDistributionWithoutCreditMethod(t *testing.T) {
	backend, encounterID := newTestBackend()
	backend.credit = dec("50")
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	session.TogglePaymentMethod(PaymentMethodRecord{ID: uuid.New(), Name: "Cash"})

	dist := session.PaymentDistribution()
	assert.True(t, dist.Credit.IsZero())
	assert.True(t, dist.Remaining.Equal(dec("100")))
}

func TestPaymentDistributionNeverNegativeRemaining(t *testing.T) {
	backend, encounterID := newTestBackend()
	backend.credit = dec("500")
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	session.TogglePaymentMethod(PaymentMethodRecord{ID: uuid.New(), Name: "Store Credit", IsCredit: true})

	dist := session.PaymentDistribution()
	assert.True(t, dist.Credit.Equal(dec("100")))
	assert.True(t, dist.Remaining.IsZero())
	assert.False(t, dist.Remaining.IsNegative())
}

func TestTogglePaymentMethodPrimaryTender(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)

	cash := PaymentMethodRecord{ID: uuid.New(), Name: "Cash"}
	card := PaymentMethodRecord{ID: uuid.New(), Name: "Card"}
	credit := PaymentMethodRecord{ID: uuid.New(), Name: "Store Credit", IsCredit: true}

	session.TogglePaymentMethod(credit)
	session.TogglePaymentMethod(cash)
	session.TogglePaymentMethod(card)

	selected := session.SelectedMethods()
	require.Len(t, selected, 2)
	names := []string{selected[0].Name, selected[1].Name}
	assert.Contains(t, names, "Store Credit")
	assert.Contains(t, names, "Card")
	assert.NotContains(t, names, "Cash")

	// Toggling the credit method off leaves the tender selection alone
	session.TogglePaymentMethod(credit)
	selected = session.SelectedMethods()
	require.Len(t, selected, 1)
	assert.Equal(t, "Card", selected[0].Name)
}

func TestTogglePaymentMethodReplacesSelectedCreditMethod(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)

	giftCard := PaymentMethodRecord{ID: uuid.New(), Name: "Gift Card", IsCredit: true}
	storeCredit := PaymentMethodRecord{ID: uuid.New(), Name: "Store Credit", IsCredit: true}

	session.TogglePaymentMethod(giftCard)
	session.TogglePaymentMethod(storeCredit)

	selected := session.SelectedMethods()
	require.Len(t, selected, 1)
	assert.Equal(t, storeCredit.ID, selected[0].ID)

	// A selected tender survives the credit swap
	cash := PaymentMethodRecord{ID: uuid.New(), Name: "Cash"}
	session.TogglePaymentMethod(cash)
	session.TogglePaymentMethod(giftCard)

	creditCount := 0
	for _, m := range session.SelectedMethods() {
		if m.IsCredit {
			creditCount++
		}
	}
	assert.Equal(t, 1, creditCount)
	require.Len(t, session.SelectedMethods(), 2)
}

func TestRemoveLineBackendDeleteFailureKeepsCart(t *testing.T) {
	backend, encounterID := newTestBackend()
	lineID := uuid.New()
	backend.lines = []LineRecord{{
		ID:          lineID,
		EncounterID: encounterID,
		ProductID:   uuid.New(),
		ProductName: "Vaccination",
		Qty:         dec("1"),
		UnitPrice:   dec("40"),
	}}
	session := loadedSession(t, backend, encounterID)
	require.Len(t, session.Lines(), 1)

	backend.deleteErr = errors.New("backend unavailable")
	err := session.RemoveLine(context.Background(), lineID.String())

	require.Error(t, err)
	assert.Len(t, session.Lines(), 1, "cart must be unchanged after failed delete")
	assert.Error(t, session.LastError())
}

func TestRemoveLineDeletesBackendFirst(t *testing.T) {
	backend, encounterID := newTestBackend()
	lineID := uuid.New()
	backend.lines = []LineRecord{{
		ID:          lineID,
		EncounterID: encounterID,
		ProductID:   uuid.New(),
		Qty:         dec("1"),
		UnitPrice:   dec("40"),
	}}
	session := loadedSession(t, backend, encounterID)

	require.NoError(t, session.RemoveLine(context.Background(), lineID.String()))
	assert.Empty(t, session.Lines())
	assert.Equal(t, []uuid.UUID{lineID}, backend.deleteCalls)
}

func TestSyncAdoptsBackendIDAndUpdatesInPlace(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	require.NoError(t, session.SyncToBackend(context.Background()))
	require.Equal(t, 1, backend.upsertCount())

	line := session.Lines()[0]
	require.True(t, line.IsExisting)
	require.NotNil(t, line.BackendID)

	// Editing the now-persisted line and syncing again issues exactly one
	// update carrying the backend line id, not a duplicate create.
	require.NoError(t, session.UpdateLineField(line.ID, FieldPrice, "120"))
	require.NoError(t, session.SyncToBackend(context.Background()))

	require.Equal(t, 2, backend.upsertCount())
	second := backend.upsertCalls[1]
	require.NotNil(t, second.LineID)
	assert.Equal(t, *line.BackendID, *second.LineID)
	assert.True(t, second.UnitPrice.Equal(dec("120")))
}

func TestSyncAbortsOnFirstFailureAndRetriesDirtyOnly(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	backend.upsertErr = errors.New("backend down")
	require.Error(t, session.SyncToBackend(context.Background()))

	backend.mu.Lock()
	backend.upsertErr = nil
	backend.mu.Unlock()

	require.NoError(t, session.SyncToBackend(context.Background()))
	assert.Equal(t, 1, backend.upsertCount())
}

func TestProcessPaymentHappyPath(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))
	session.TogglePaymentMethod(PaymentMethodRecord{ID: uuid.New(), Name: "Cash"})

	result, err := session.ProcessPayment(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.NotNil(t, result.InvoiceID)
	assert.Equal(t, StateCompleted, session.State())
	assert.Equal(t, 1, backend.paymentCount())

	// A completed session takes no further payments
	_, err = session.ProcessPayment(context.Background())
	assert.ErrorIs(t, err, ErrPaymentCompleted)
	assert.Equal(t, 1, backend.paymentCount())
}

func TestProcessPaymentPreconditions(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)

	// Empty cart but method selected
	session.TogglePaymentMethod(PaymentMethodRecord{ID: uuid.New(), Name: "Cash"})
	_, err := session.ProcessPayment(context.Background())
	assert.ErrorIs(t, err, ErrCartEmpty)

	// Cart filled but no method
	session2 := loadedSession(t, backend, encounterID)
	require.NoError(t, session2.AddLine(consultation(), dec("1")))
	_, err = session2.ProcessPayment(context.Background())
	assert.ErrorIs(t, err, ErrNoPaymentMethod)

	assert.Equal(t, 0, backend.paymentCount())
}

func TestProcessPaymentRejectsConcurrentAttempt(t *testing.T) {
	backend, encounterID := newTestBackend()
	backend.paymentStarted = make(chan struct{})
	backend.paymentRelease = make(chan struct{})
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))
	session.TogglePaymentMethod(PaymentMethodRecord{ID: uuid.New(), Name: "Cash"})

	done := make(chan error, 1)
	go func() {
		_, err := session.ProcessPayment(context.Background())
		done <- err
	}()

	select {
	case <-backend.paymentStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first payment never reached the backend")
	}

	_, err := session.ProcessPayment(context.Background())
	assert.ErrorIs(t, err, ErrPaymentInProgress)

	close(backend.paymentRelease)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.paymentCount())
}

func TestProcessPaymentBackendDeclineSurfacesMessage(t *testing.T) {
	backend, encounterID := newTestBackend()
	backend.paymentResult = &PaymentResult{Success: false, Message: "insufficient funds"}
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))
	session.TogglePaymentMethod(PaymentMethodRecord{ID: uuid.New(), Name: "Cash"})

	_, err := session.ProcessPayment(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
	assert.Equal(t, StateReady, session.State(), "failed payment returns the session to Ready")
}

func TestLoadEncounterFailureLeavesCartEmpty(t *testing.T) {
	backend, _ := newTestBackend()
	session := NewSession(backend, nil)

	err := session.LoadEncounter(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Empty(t, session.Lines())
	assert.Equal(t, StateReady, session.State())
	assert.Error(t, session.LastError())
}

func TestApplyRemoteUpdateMergesAndSkipsDirtyLines(t *testing.T) {
	backend, encounterID := newTestBackend()
	lineID := uuid.New()
	backend.lines = []LineRecord{{
		ID:          lineID,
		EncounterID: encounterID,
		ProductID:   uuid.New(),
		Qty:         dec("1"),
		UnitPrice:   dec("40"),
	}}
	session := loadedSession(t, backend, encounterID)

	// Remote update of a clean line wins
	session.ApplyRemoteUpdate(RemoteOpUpdate, []LineRecord{{
		ID:          lineID,
		EncounterID: encounterID,
		ProductID:   uuid.New(),
		Qty:         dec("3"),
		UnitPrice:   dec("40"),
	}})
	assert.True(t, session.Lines()[0].Qty.Equal(dec("3")))

	// Local edits shadow remote updates until synced
	require.NoError(t, session.UpdateLineField(lineID.String(), FieldQty, "5"))
	session.ApplyRemoteUpdate(RemoteOpUpdate, []LineRecord{{
		ID:          lineID,
		EncounterID: encounterID,
		Qty:         dec("9"),
		UnitPrice:   dec("40"),
	}})
	assert.True(t, session.Lines()[0].Qty.Equal(dec("5")))

	// Records for other encounters are ignored
	session.ApplyRemoteUpdate(RemoteOpCreate, []LineRecord{{
		ID:          uuid.New(),
		EncounterID: uuid.New(),
		Qty:         dec("1"),
	}})
	assert.Len(t, session.Lines(), 1)
}

func TestSetHeaderPractitionerPropagatesToUnsavedLines(t *testing.T) {
	backend, encounterID := newTestBackend()
	room := Ref{ID: uuid.New(), Label: "Exam Room 1"}
	backend.encounter.Room = &room
	existingID := uuid.New()
	backend.lines = []LineRecord{{
		ID:          existingID,
		EncounterID: encounterID,
		ProductID:   uuid.New(),
		Qty:         dec("1"),
		UnitPrice:   dec("40"),
		Room:        &room,
	}}
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	// The new practitioner's department does not include the current room
	vet := Ref{ID: uuid.New(), Label: "Dr. Nasser"}
	otherRoom := uuid.New()
	require.NoError(t, session.SetHeaderPractitioner(&vet, []uuid.UUID{otherRoom}))

	assert.Nil(t, session.Encounter().Room, "room must be cleared when outside the department")
	for _, line := range session.Lines() {
		if line.IsExisting {
			// Persisted lines keep their stored assignment
			assert.Nil(t, line.Practitioner)
			require.NotNil(t, line.Room)
			assert.Equal(t, room.ID, line.Room.ID)
			continue
		}
		require.NotNil(t, line.Practitioner)
		assert.Equal(t, vet.ID, line.Practitioner.ID)
		assert.Nil(t, line.Room)
	}
}

func TestSetHeaderPractitionerKeepsValidRoom(t *testing.T) {
	backend, encounterID := newTestBackend()
	room := Ref{ID: uuid.New(), Label: "Exam Room 1"}
	backend.encounter.Room = &room
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	vet := Ref{ID: uuid.New(), Label: "Dr. Nasser"}
	require.NoError(t, session.SetHeaderPractitioner(&vet, []uuid.UUID{room.ID}))

	require.NotNil(t, session.Encounter().Room)
	assert.Equal(t, room.ID, session.Encounter().Room.ID)
}

func TestSetHeaderRoomAndPatientsPropagate(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	room := Ref{ID: uuid.New(), Label: "Surgery"}
	patients := []Ref{{ID: uuid.New(), Label: "Whiskers"}, {ID: uuid.New(), Label: "Rex"}}
	require.NoError(t, session.SetHeaderRoom(&room))
	require.NoError(t, session.SetHeaderPatients(patients))

	line := session.Lines()[0]
	require.NotNil(t, line.Room)
	assert.Equal(t, room.ID, line.Room.ID)
	require.Len(t, line.Patients, 2)
	assert.Equal(t, patients[0].ID, line.Patients[0].ID)
}

func TestHeaderPropagationSkipsGlobalDiscountLine(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))
	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))

	require.NoError(t, session.SetHeaderPatients([]Ref{{ID: uuid.New(), Label: "Whiskers"}}))

	for _, line := range session.Lines() {
		if line.IsGlobalDiscount {
			assert.Empty(t, line.Patients)
		}
	}
}

func TestTotalDiscountAmount(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("2")))
	require.NoError(t, session.UpdateLineField(session.Lines()[0].ID, FieldDiscount, "10"))

	// Per-line: 200 gross vs 180 billed. Global: 10% of 180.
	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypePercent))

	assert.True(t, session.TotalDiscountAmount().Equal(dec("38")),
		"got %s", session.TotalDiscountAmount())
}

func TestSaveWritesHeaderOnceAndSyncs(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))

	vet := Ref{ID: uuid.New(), Label: "Dr. Nasser"}
	require.NoError(t, session.SetHeaderPractitioner(&vet, nil))

	require.NoError(t, session.Save(context.Background()))
	require.Len(t, backend.headerCalls, 1)
	require.NotNil(t, backend.headerCalls[0].PractitionerID)
	assert.Equal(t, vet.ID, *backend.headerCalls[0].PractitionerID)
	assert.Equal(t, 1, backend.upsertCount())

	// A clean header is not rewritten on the next save
	require.NoError(t, session.Save(context.Background()))
	assert.Len(t, backend.headerCalls, 1)
}

func TestSaveRetriesHeaderAfterFailure(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.SetHeaderRoom(&Ref{ID: uuid.New(), Label: "Surgery"}))

	backend.headerErr = errors.New("backend down")
	require.Error(t, session.Save(context.Background()))
	assert.Empty(t, backend.headerCalls)

	backend.mu.Lock()
	backend.headerErr = nil
	backend.mu.Unlock()

	require.NoError(t, session.Save(context.Background()))
	assert.Len(t, backend.headerCalls, 1)
}

func TestRefreshCreditPicksUpLedgerChanges(t *testing.T) {
	backend, encounterID := newTestBackend()
	backend.credit = dec("20")
	session := loadedSession(t, backend, encounterID)
	require.True(t, session.AvailableCredit().Equal(dec("20")))

	backend.mu.Lock()
	backend.credit = dec("75")
	backend.mu.Unlock()

	require.NoError(t, session.RefreshCredit(context.Background()))
	assert.True(t, session.AvailableCredit().Equal(dec("75")))
}

func TestCartTotalClampedAtZero(t *testing.T) {
	backend, encounterID := newTestBackend()
	session := loadedSession(t, backend, encounterID)
	require.NoError(t, session.AddLine(consultation(), dec("1")))
	require.NoError(t, session.UpdateLineField(session.Lines()[0].ID, FieldPrice, "0"))

	require.NoError(t, session.SetGlobalDiscount(dec("10"), enum.DiscountTypeFixed))
	total := session.CartTotal()
	assert.False(t, total.IsNegative())
}
