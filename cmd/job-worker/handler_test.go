package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/application/topup"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/infrastructure/messaging"
	apperrors "ai-tutor-api/pkg/errors"
)

type stubApplier struct {
	calls     []topup.PaymentConfirmed
	duplicate bool
	err       error
}

func (s *stubApplier) HandlePaymentConfirmed(_ context.Context, in topup.PaymentConfirmed) (*entity.LedgerTransaction, bool, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return nil, false, s.err
	}
	if s.duplicate {
		return nil, true, nil
	}
	return &entity.LedgerTransaction{ID: "tx-1"}, false, nil
}

func newPaymentMessage(t *testing.T, payload any) *messaging.Message {
	t.Helper()
	msg, err := messaging.NewMessage("m-1", messaging.MessageTypePaymentConfirmed, "stu-1", payload)
	require.NoError(t, err)
	return msg
}

func TestPaymentConfirmedHandler_AppliesPayload(t *testing.T) {
	stub := &stubApplier{}
	h := paymentConfirmedHandler(stub)

	err := h(context.Background(), newPaymentMessage(t, messaging.PaymentConfirmedMessage{EventID: "evt_1", AccountID: "stu-1", Credits: 500}))
	require.NoError(t, err)
	require.Len(t, stub.calls, 1)
	assert.Equal(t, topup.PaymentConfirmed{EventID: "evt_1", AccountID: "stu-1", Credits: 500}, stub.calls[0])

	stub.duplicate = true
	assert.NoError(t, h(context.Background(), newPaymentMessage(t, messaging.PaymentConfirmedMessage{EventID: "evt_1", AccountID: "stu-1", Credits: 500})))
}

func TestPaymentConfirmedHandler_ClassifiesFailures(t *testing.T) {
	msg := newPaymentMessage(t, messaging.PaymentConfirmedMessage{EventID: "evt_1", AccountID: "stu-1", Credits: 500})

	invalid := paymentConfirmedHandler(&stubApplier{err: apperrors.ErrInvalidParam.WithDetail("credits must be positive")})
	assert.ErrorIs(t, invalid(context.Background(), msg), messaging.ErrPermanent)

	storage := paymentConfirmedHandler(&stubApplier{err: apperrors.ErrStorageUnavailable})
	err := storage(context.Background(), msg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, messaging.ErrPermanent))
}

func TestPaymentConfirmedHandler_UndecodablePayloadIsPermanent(t *testing.T) {
	stub := &stubApplier{}
	err := paymentConfirmedHandler(stub)(context.Background(), newPaymentMessage(t, "not an object"))
	assert.ErrorIs(t, err, messaging.ErrPermanent)
	assert.Empty(t, stub.calls)
}
