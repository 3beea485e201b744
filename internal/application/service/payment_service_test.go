package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"github.com/vetdesk/clinicpos-api/pkg/pagination"
	"go.uber.org/zap"
)

type fakeEncounterRepo struct {
	encounters map[uuid.UUID]*entity.Encounter
}

func newFakeEncounterRepo() *fakeEncounterRepo {
	return &fakeEncounterRepo{encounters: make(map[uuid.UUID]*entity.Encounter)}
}

func (f *fakeEncounterRepo) Create(_ context.Context, encounter *entity.Encounter) error {
	if encounter.ID == uuid.Nil {
		encounter.ID = uuid.New()
	}
	f.encounters[encounter.ID] = encounter
	return nil
}

func (f *fakeEncounterRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Encounter, error) {
	enc, ok := f.encounters[id]
	if !ok {
		return nil, nil
	}
	cp := *enc
	return &cp, nil
}

func (f *fakeEncounterRepo) GetWithDetails(ctx context.Context, id uuid.UUID) (*entity.Encounter, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeEncounterRepo) GetByName(_ context.Context, name string) (*entity.Encounter, error) {
	for _, enc := range f.encounters {
		if enc.Name == name {
			cp := *enc
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEncounterRepo) Update(_ context.Context, encounter *entity.Encounter) error {
	f.encounters[encounter.ID] = encounter
	return nil
}

func (f *fakeEncounterRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.encounters, id)
	return nil
}

func (f *fakeEncounterRepo) List(_ context.Context, _ *repository.EncounterFilterParams) ([]entity.Encounter, int64, error) {
	out := make([]entity.Encounter, 0, len(f.encounters))
	for _, enc := range f.encounters {
		out = append(out, *enc)
	}
	return out, int64(len(out)), nil
}

func (f *fakeEncounterRepo) SetPatients(_ context.Context, _ uuid.UUID, _ []entity.Patient) error {
	return nil
}

type fakeLineRepo struct {
	lines          map[uuid.UUID]*entity.EncounterLine
	updateBatchErr error
	batchCalls     int
}

func newFakeLineRepo() *fakeLineRepo {
	return &fakeLineRepo{lines: make(map[uuid.UUID]*entity.EncounterLine)}
}

func (f *fakeLineRepo) add(line entity.EncounterLine) entity.EncounterLine {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	line.SubTotal = line.ComputeSubTotal()
	line.RefreshPaymentStatus()
	f.lines[line.ID] = &line
	return line
}

func (f *fakeLineRepo) Create(_ context.Context, line *entity.EncounterLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	f.lines[line.ID] = line
	return nil
}

func (f *fakeLineRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.EncounterLine, error) {
	line, ok := f.lines[id]
	if !ok {
		return nil, nil
	}
	cp := *line
	return &cp, nil
}

func (f *fakeLineRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]entity.EncounterLine, error) {
	out := make([]entity.EncounterLine, 0, len(ids))
	for _, id := range ids {
		if line, ok := f.lines[id]; ok {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (f *fakeLineRepo) Update(_ context.Context, line *entity.EncounterLine) error {
	f.lines[line.ID] = line
	return nil
}

func (f *fakeLineRepo) UpdateBatch(_ context.Context, lines []entity.EncounterLine) error {
	f.batchCalls++
	if f.updateBatchErr != nil {
		return f.updateBatchErr
	}
	for i := range lines {
		cp := lines[i]
		f.lines[cp.ID] = &cp
	}
	return nil
}

func (f *fakeLineRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.lines, id)
	return nil
}

func (f *fakeLineRepo) ListByEncounter(_ context.Context, encounterID uuid.UUID, filter *repository.LineFilterParams) ([]entity.EncounterLine, error) {
	out := make([]entity.EncounterLine, 0)
	for _, line := range f.lines {
		if line.EncounterID != encounterID {
			continue
		}
		if filter != nil && filter.PayableOnly {
			if !line.PaymentStatus.Payable() || !line.RemainingAmount().IsPositive() {
				continue
			}
		}
		out = append(out, *line)
	}
	// oldest first, mirrors the ORDER BY created_at of the real repo
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeLineRepo) SetPatients(_ context.Context, _ uuid.UUID, _ []entity.Patient) error {
	return nil
}

type fakeInvoiceRepo struct {
	invoices  map[uuid.UUID]*entity.Invoice
	createErr error
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*entity.Invoice)}
}

func (f *fakeInvoiceRepo) Create(_ context.Context, invoice *entity.Invoice) error {
	if f.createErr != nil {
		return f.createErr
	}
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoiceRepo) GetByNumber(_ context.Context, number string) (*entity.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.InvoiceNumber == number {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeInvoiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.invoices, id)
	return nil
}

func (f *fakeInvoiceRepo) ListByEncounter(_ context.Context, encounterID uuid.UUID) ([]entity.Invoice, error) {
	out := make([]entity.Invoice, 0)
	for _, inv := range f.invoices {
		if inv.EncounterID == encounterID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) ListByCustomer(_ context.Context, customerID uuid.UUID, _ *pagination.PaginationParams) ([]entity.Invoice, int64, error) {
	out := make([]entity.Invoice, 0)
	for _, inv := range f.invoices {
		if inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	return out, int64(len(out)), nil
}

type fakeCreditRepo struct {
	entries   []entity.CreditEntry
	createErr error
}

func (f *fakeCreditRepo) Create(_ context.Context, entry *entity.CreditEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeCreditRepo) Balance(_ context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, e := range f.entries {
		if e.CustomerID != customerID {
			continue
		}
		if e.Type == enum.CreditEntryTypeCredit {
			balance = balance.Add(e.Amount)
		} else {
			balance = balance.Sub(e.Amount)
		}
	}
	if balance.IsNegative() {
		return decimal.Zero, nil
	}
	return balance, nil
}

func (f *fakeCreditRepo) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]entity.CreditEntry, error) {
	out := make([]entity.CreditEntry, 0)
	for _, e := range f.entries {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCreditRepo) DeleteByInvoice(_ context.Context, invoiceID uuid.UUID) error {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.InvoiceID == nil || *e.InvoiceID != invoiceID {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

type fakeMethodRepo struct {
	methods map[uuid.UUID]*entity.PaymentMethod
}

func newFakeMethodRepo() *fakeMethodRepo {
	return &fakeMethodRepo{methods: make(map[uuid.UUID]*entity.PaymentMethod)}
}

func (f *fakeMethodRepo) Create(_ context.Context, method *entity.PaymentMethod) error {
	if method.ID == uuid.Nil {
		method.ID = uuid.New()
	}
	f.methods[method.ID] = method
	return nil
}

func (f *fakeMethodRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.PaymentMethod, error) {
	m, ok := f.methods[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMethodRepo) GetByName(_ context.Context, name string) (*entity.PaymentMethod, error) {
	for _, m := range f.methods {
		if m.Name == name {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeMethodRepo) GetCreditMethod(_ context.Context) (*entity.PaymentMethod, error) {
	for _, m := range f.methods {
		if m.IsCredit && m.Active {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeMethodRepo) Update(_ context.Context, method *entity.PaymentMethod) error {
	f.methods[method.ID] = method
	return nil
}

func (f *fakeMethodRepo) List(_ context.Context, activeOnly bool) ([]entity.PaymentMethod, error) {
	out := make([]entity.PaymentMethod, 0, len(f.methods))
	for _, m := range f.methods {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

type paymentFixture struct {
	svc        *PaymentService
	encounters *fakeEncounterRepo
	lines      *fakeLineRepo
	invoices   *fakeInvoiceRepo
	credits    *fakeCreditRepo
	methods    *fakeMethodRepo
	encounter  *entity.Encounter
	cash       *entity.PaymentMethod
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	encounters := newFakeEncounterRepo()
	lines := newFakeLineRepo()
	invoices := newFakeInvoiceRepo()
	credits := &fakeCreditRepo{}
	methods := newFakeMethodRepo()

	encounter := &entity.Encounter{
		ID:           uuid.New(),
		Name:         "ENC-test0001",
		CustomerID:   uuid.New(),
		CurrencyCode: "KWD",
		State:        enum.EncounterStateOpen,
	}
	require.NoError(t, encounters.Create(context.Background(), encounter))

	cash := &entity.PaymentMethod{ID: uuid.New(), Name: "Cash", Active: true}
	require.NoError(t, methods.Create(context.Background(), cash))

	svc := NewPaymentService(encounters, lines, invoices, credits, methods, nil, zap.NewNop())

	return &paymentFixture{
		svc:        svc,
		encounters: encounters,
		lines:      lines,
		invoices:   invoices,
		credits:    credits,
		methods:    methods,
		encounter:  encounter,
		cash:       cash,
	}
}

func (fx *paymentFixture) addLine(t *testing.T, price int64, age time.Duration) entity.EncounterLine {
	t.Helper()
	return fx.lines.add(entity.EncounterLine{
		EncounterID: fx.encounter.ID,
		ProductID:   uuid.New(),
		Description: "Consultation",
		Qty:         decimal.NewFromInt(1),
		UnitPrice:   decimal.NewFromInt(price),
		CreatedAt:   time.Now().Add(-age),
	})
}

func TestProcessPaymentSettlesOldestLinesFirst(t *testing.T) {
	fx := newPaymentFixture(t)
	older := fx.addLine(t, 10, 2*time.Hour)
	newer := fx.addLine(t, 20, time.Hour)

	out, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		PaymentAmount:   decimal.NewFromInt(15),
	})
	require.NoError(t, err)
	require.True(t, out.Success)
	require.NotNil(t, out.InvoiceID)

	invoice := fx.invoices.invoices[*out.InvoiceID]
	require.NotNil(t, invoice)
	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(15)))
	require.Len(t, invoice.Allocations, 2)
	assert.Equal(t, older.ID, invoice.Allocations[0].LineID)
	assert.True(t, invoice.Allocations[0].Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, newer.ID, invoice.Allocations[1].LineID)
	assert.True(t, invoice.Allocations[1].Amount.Equal(decimal.NewFromInt(5)))

	paidLine, _ := fx.lines.GetByID(context.Background(), older.ID)
	assert.Equal(t, enum.PaymentStatusPaid, paidLine.PaymentStatus)
	partialLine, _ := fx.lines.GetByID(context.Background(), newer.ID)
	assert.Equal(t, enum.PaymentStatusPartial, partialLine.PaymentStatus)
	assert.True(t, partialLine.RemainingAmount().Equal(decimal.NewFromInt(15)))

	// Something still owed, so the encounter stays open
	enc, _ := fx.encounters.GetByID(context.Background(), fx.encounter.ID)
	assert.Equal(t, enum.EncounterStateOpen, enc.State)
}

func TestProcessPaymentClosesEncounterWhenSettled(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 25, time.Hour)

	out, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		PaymentAmount:   decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	require.True(t, out.Success)

	enc, _ := fx.encounters.GetByID(context.Background(), fx.encounter.ID)
	assert.Equal(t, enum.EncounterStateClosed, enc.State)
}

func TestProcessPaymentCapsOverpaymentAtTotalDue(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 30, time.Hour)

	out, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		PaymentAmount:   decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	invoice := fx.invoices.invoices[*out.InvoiceID]
	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(30)))
}

func TestProcessPaymentDebitsStoreCredit(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 50, time.Hour)
	fx.credits.entries = append(fx.credits.entries, entity.CreditEntry{
		ID:         uuid.New(),
		CustomerID: fx.encounter.CustomerID,
		Type:       enum.CreditEntryTypeCredit,
		Amount:     decimal.NewFromInt(20),
	})

	out, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		PaymentAmount:   decimal.NewFromInt(30),
		CreditUsed:      decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	invoice := fx.invoices.invoices[*out.InvoiceID]
	assert.True(t, invoice.CreditApplied.Equal(decimal.NewFromInt(20)))
	assert.True(t, invoice.TenderedAmount.Equal(decimal.NewFromInt(30)))

	balance, err := fx.credits.Balance(context.Background(), fx.encounter.CustomerID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestProcessPaymentRejectsCreditAboveBalance(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 50, time.Hour)

	_, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		CreditUsed:      decimal.NewFromInt(5),
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperror.GetAppError(err).Code)
	assert.Empty(t, fx.invoices.invoices)
}

func TestProcessPaymentRejectsClosedEncounter(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 10, time.Hour)
	fx.encounter.State = enum.EncounterStateClosed
	require.NoError(t, fx.encounters.Update(context.Background(), fx.encounter))

	_, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		PaymentAmount:   decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperror.GetAppError(err).Code)
}

func TestProcessPaymentRejectsEmptyAttempt(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 10, time.Hour)

	_, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperror.GetAppError(err).Code)
}

func TestProcessPaymentCompensatesWhenLineUpdateFails(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 40, time.Hour)
	fx.credits.entries = append(fx.credits.entries, entity.CreditEntry{
		ID:         uuid.New(),
		CustomerID: fx.encounter.CustomerID,
		Type:       enum.CreditEntryTypeCredit,
		Amount:     decimal.NewFromInt(10),
	})
	fx.lines.updateBatchErr = errors.New("connection reset")

	_, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		PaymentAmount:   decimal.NewFromInt(30),
		CreditUsed:      decimal.NewFromInt(10),
	})
	require.Error(t, err)

	// Invoice removed and the credit debit rolled back
	assert.Empty(t, fx.invoices.invoices)
	balance, berr := fx.credits.Balance(context.Background(), fx.encounter.CustomerID)
	require.NoError(t, berr)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))
}

func TestProcessPaymentWithExplicitLineSelection(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.addLine(t, 10, 3*time.Hour)
	picked := fx.addLine(t, 20, 2*time.Hour)

	out, err := fx.svc.ProcessPayment(context.Background(), &ProcessPaymentInput{
		EncounterID:     fx.encounter.ID,
		PaymentMethodID: fx.cash.ID,
		LineIDs:         []uuid.UUID{picked.ID},
		PaymentAmount:   decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	invoice := fx.invoices.invoices[*out.InvoiceID]
	require.Len(t, invoice.Allocations, 1)
	assert.Equal(t, picked.ID, invoice.Allocations[0].LineID)

	// The untouched line keeps the encounter open
	enc, _ := fx.encounters.GetByID(context.Background(), fx.encounter.ID)
	assert.Equal(t, enum.EncounterStateOpen, enc.State)
}
