package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ai-tutor-api/internal/domain/repository"
)

// AuditRepository 对账查询，直接走 database/sql 以使用数组参数
type AuditRepository struct {
	client *Client
}

func NewAuditRepository(client *Client) *AuditRepository {
	return &AuditRepository{client: client}
}

var _ repository.AuditRepository = (*AuditRepository)(nil)

// ListAccountIDs 键集分页遍历余额表
func (r *AuditRepository) ListAccountIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.AuditRepository.ListAccountIDs")
	defer span.End()

	db, err := r.client.SqlDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}

	query := `
		SELECT account_id
		FROM credit_balances
		WHERE account_id > $1
		ORDER BY account_id
		LIMIT $2
	`
	rows, err := db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindDrift 一次查询比对一批账户的余额与流水合计
func (r *AuditRepository) FindDrift(ctx context.Context, accountIDs []string) ([]repository.AccountDrift, error) {
	ctx, span := tracer.Start(ctx, "postgres.AuditRepository.FindDrift")
	defer span.End()

	if len(accountIDs) == 0 {
		return nil, nil
	}
	db, err := r.client.SqlDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}

	query := `
		SELECT b.account_id, b.balance, COALESCE(SUM(t.amount), 0) AS ledger_sum
		FROM credit_balances b
		LEFT JOIN ledger_transactions t ON t.account_id = b.account_id
		WHERE b.account_id = ANY($1)
		GROUP BY b.account_id, b.balance
		HAVING b.balance <> COALESCE(SUM(t.amount), 0)
		ORDER BY b.account_id
	`
	drifts, err := r.queryDrifts(ctx, db, query, true, pq.Array(accountIDs))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return drifts, nil
}

// FindOrphanLedgers 查找缺少余额行的流水
func (r *AuditRepository) FindOrphanLedgers(ctx context.Context) ([]repository.AccountDrift, error) {
	ctx, span := tracer.Start(ctx, "postgres.AuditRepository.FindOrphanLedgers")
	defer span.End()

	db, err := r.client.SqlDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}

	query := `
		SELECT t.account_id, 0 AS balance, SUM(t.amount) AS ledger_sum
		FROM ledger_transactions t
		WHERE NOT EXISTS (SELECT 1 FROM credit_balances b WHERE b.account_id = t.account_id)
		GROUP BY t.account_id
		HAVING SUM(t.amount) <> 0
		ORDER BY t.account_id
	`
	drifts, err := r.queryDrifts(ctx, db, query, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return drifts, nil
}

func (r *AuditRepository) queryDrifts(ctx context.Context, db *sql.DB, query string, hasBalance bool, args ...any) ([]repository.AccountDrift, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger drift: %w", err)
	}
	defer rows.Close()

	var out []repository.AccountDrift
	for rows.Next() {
		var (
			d         repository.AccountDrift
			balance   decimal.Decimal
			ledgerSum decimal.Decimal
		)
		if err := rows.Scan(&d.AccountID, &balance, &ledgerSum); err != nil {
			return nil, fmt.Errorf("failed to scan ledger drift: %w", err)
		}
		d.Balance = balance
		d.LedgerSum = ledgerSum
		d.HasBalance = hasBalance
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger drift: %w", err)
	}
	return out, nil
}
