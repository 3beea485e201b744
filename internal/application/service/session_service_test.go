package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetdesk/clinicpos-api/internal/application/pos"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"go.uber.org/zap"
)

// stubBackend serves a single encounter with no lines
type stubBackend struct {
	encounterID uuid.UUID
}

func (s *stubBackend) ReadEncounter(_ context.Context, id uuid.UUID) (*pos.EncounterRecord, error) {
	if id != s.encounterID {
		return nil, apperror.NewNotFoundError("Encounter")
	}
	return &pos.EncounterRecord{
		ID:           id,
		Name:         "ENC-stub0001",
		Customer:     pos.Ref{ID: uuid.New(), Label: "Jo Owner"},
		CurrencyCode: "KWD",
	}, nil
}

func (s *stubBackend) UpdateEncounterHeader(_ context.Context, _ uuid.UUID, _ pos.HeaderInput) error {
	return nil
}

func (s *stubBackend) ListEncounterLines(_ context.Context, _ pos.LineFilter) ([]pos.LineRecord, error) {
	return nil, nil
}

func (s *stubBackend) UpsertEncounterLine(_ context.Context, _ uuid.UUID, _ pos.UpsertLineInput) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubBackend) DeleteEncounterLine(_ context.Context, _ uuid.UUID) error {
	return nil
}

func (s *stubBackend) ProcessPayment(_ context.Context, _ uuid.UUID, _ pos.PaymentRequest) (*pos.PaymentResult, error) {
	id := uuid.New()
	return &pos.PaymentResult{Success: true, InvoiceID: &id}, nil
}

func (s *stubBackend) GetCreditBalance(_ context.Context, _ uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubBackend) SearchProducts(_ context.Context, _ string) ([]pos.ProductRecord, error) {
	return nil, nil
}

func TestOpenSessionReusesLiveSession(t *testing.T) {
	backend := &stubBackend{encounterID: uuid.New()}
	manager := NewSessionManager(backend, zap.NewNop())

	first, err := manager.OpenSession(context.Background(), backend.encounterID)
	require.NoError(t, err)

	second, err := manager.OpenSession(context.Background(), backend.encounterID)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestOpenSessionEvictsFailedLoad(t *testing.T) {
	backend := &stubBackend{encounterID: uuid.New()}
	manager := NewSessionManager(backend, zap.NewNop())

	_, err := manager.OpenSession(context.Background(), uuid.New())
	require.Error(t, err)

	// The failed entry must not shadow a later successful open
	session, err := manager.OpenSession(context.Background(), backend.encounterID)
	require.NoError(t, err)
	assert.Equal(t, pos.StateReady, session.State())
}

func TestGetSessionUnknownEncounter(t *testing.T) {
	manager := NewSessionManager(&stubBackend{encounterID: uuid.New()}, zap.NewNop())

	_, err := manager.GetSession(uuid.New())
	require.Error(t, err)
	assert.True(t, apperror.IsAppError(err))
}

func TestCloseSessionDiscardsState(t *testing.T) {
	backend := &stubBackend{encounterID: uuid.New()}
	manager := NewSessionManager(backend, zap.NewNop())

	_, err := manager.OpenSession(context.Background(), backend.encounterID)
	require.NoError(t, err)

	manager.CloseSession(backend.encounterID)

	_, err = manager.GetSession(backend.encounterID)
	require.Error(t, err)
}
