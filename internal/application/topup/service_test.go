package topup

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/application/metering"
	"ai-tutor-api/internal/application/pricing"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/testutil/memrepo"
	apperrors "ai-tutor-api/pkg/errors"
)

func newTestService(t *testing.T, store *memrepo.Store) (*Service, *metering.Service) {
	t.Helper()
	table, err := pricing.NewTable(map[string]config.ModelConfig{
		"gpt_4o_mini": {Provider: "openai", UpstreamModel: "gpt-4o-mini", PromptTokenCost: 0.15, CompletionTokenCost: 0.6},
	}, "gpt_4o_mini")
	require.NoError(t, err)
	ledger := metering.NewService(table, memrepo.LedgerRepository{Store: store}, memrepo.Transactor{Store: store})
	svc := NewService(
		Config{CreditPrice: decimal.RequireFromString("0.01"), MaxCreditsPerBuy: 10000},
		ledger,
		memrepo.PaymentEventRepository{Store: store},
		memrepo.Transactor{Store: store},
	)
	return svc, ledger
}

func TestHandlePaymentConfirmed_CreditsOnce(t *testing.T) {
	store := memrepo.NewStore()
	svc, ledger := newTestService(t, store)
	ctx := context.Background()
	in := PaymentConfirmed{EventID: "evt_1", AccountID: "stu-1", Credits: 500}

	tx, duplicate, err := svc.HandlePaymentConfirmed(ctx, in)
	require.NoError(t, err)
	assert.False(t, duplicate)
	require.NotNil(t, tx)
	assert.Equal(t, "Payment: 500 credits purchased via Stripe", tx.Notes)
	assert.True(t, decimal.NewFromInt(5).Equal(tx.Amount), "got %s", tx.Amount)

	again, duplicate, err := svc.HandlePaymentConfirmed(ctx, in)
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Nil(t, again)

	assert.Len(t, store.TransactionsOf("stu-1"), 1)
	balance, err := ledger.Balance(ctx, "stu-1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(balance), "got %s", balance)

	event := store.PaymentEvents["evt_1"]
	require.NotNil(t, event.TransactionID)
	assert.Equal(t, tx.ID, *event.TransactionID)
}

func TestHandlePaymentConfirmed_FailedCreditReleasesClaim(t *testing.T) {
	store := memrepo.NewStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	in := PaymentConfirmed{EventID: "evt_2", AccountID: "stu-1", Credits: 100}

	store.FailAppend = errors.New("disk full")
	_, _, err := svc.HandlePaymentConfirmed(ctx, in)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStorageUnavailable))
	assert.NotContains(t, store.PaymentEvents, "evt_2")

	// 重投后正常入账
	store.FailAppend = nil
	tx, duplicate, err := svc.HandlePaymentConfirmed(ctx, in)
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.True(t, decimal.NewFromInt(1).Equal(tx.Amount))
}

func TestHandlePaymentConfirmed_Validation(t *testing.T) {
	store := memrepo.NewStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	cases := []PaymentConfirmed{
		{AccountID: "stu-1", Credits: 10},
		{EventID: "evt", Credits: 10},
		{EventID: "evt", AccountID: "stu-1", Credits: 0},
		{EventID: "evt", AccountID: "stu-1", Credits: 10001},
	}
	for _, in := range cases {
		_, _, err := svc.HandlePaymentConfirmed(ctx, in)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam), "%+v", in)
	}
	assert.Empty(t, store.PaymentEvents)
}
