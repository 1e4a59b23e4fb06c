package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/domain/entity"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := NewClientWithConn(conn)
	require.NoError(t, err)
	return client, mock
}

func balanceRows(accountID, balance string, version int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"account_id", "balance", "version", "created_at", "updated_at"}).
		AddRow(accountID, balance, version, now, now)
}

func TestLedgerRepository_GetBalanceNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewLedgerRepository(client)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "credit_balances"`)).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "created_at", "updated_at"}))

	balance, err := repo.GetBalance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Nil(t, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_DebitCommitsBalanceAndTransactionTogether(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewLedgerRepository(client)
	txMgr := NewTxManager(client)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "credit_balances"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "credit_balances"`)).
		WillReturnRows(balanceRows("acct-1", "9.99955", 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "ledger_transactions"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	amount := decimal.RequireFromString("0.00045")
	err := txMgr.WithTransaction(context.Background(), func(ctx context.Context) error {
		balance, err := repo.ApplyDelta(ctx, "acct-1", amount.Neg())
		if err != nil {
			return err
		}
		assert.True(t, decimal.RequireFromString("9.99955").Equal(balance.Balance))
		return repo.AppendTransaction(ctx, entity.NewDebitTransaction("acct-1", amount, "gpt_4o_mini", 1000, 500, "tutor answer"))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_FailedAppendRollsBackBalance(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewLedgerRepository(client)
	txMgr := NewTxManager(client)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "credit_balances"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "credit_balances"`)).
		WillReturnRows(balanceRows("acct-1", "9", 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "ledger_transactions"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := txMgr.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := repo.ApplyDelta(ctx, "acct-1", decimal.NewFromInt(-1)); err != nil {
			return err
		}
		return repo.AppendTransaction(ctx, entity.NewDebitTransaction("acct-1", decimal.NewFromInt(1), "gpt_4o", 10, 10, "grading"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_SumTransactions(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewLedgerRepository(client)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(amount), 0) FROM "ledger_transactions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("12.5"))

	sum, err := repo.SumTransactions(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(sum))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentEventRepository_ClaimReportsDuplicates(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewPaymentEventRepository(client)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "payment_events"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "payment_events"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	claimed, err := repo.Claim(ctx, entity.NewPaymentEvent("evt_1", "acct-1", 100))
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, entity.NewPaymentEvent("evt_1", "acct-1", 100))
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
