package metering

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/domain/repository"
)

type fakeAuditRepo struct {
	mu       sync.Mutex
	accounts []string
	drift    map[string]repository.AccountDrift
	orphans  []repository.AccountDrift
	failOn   string
	batches  [][]string
}

func (f *fakeAuditRepo) ListAccountIDs(_ context.Context, afterID string, limit int) ([]string, error) {
	ids := append([]string(nil), f.accounts...)
	sort.Strings(ids)
	var out []string
	for _, id := range ids {
		if id > afterID && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) FindDrift(_ context.Context, accountIDs []string) ([]repository.AccountDrift, error) {
	f.mu.Lock()
	f.batches = append(f.batches, accountIDs)
	f.mu.Unlock()
	var out []repository.AccountDrift
	for _, id := range accountIDs {
		if id == f.failOn {
			return nil, errors.New("connection reset")
		}
		if d, ok := f.drift[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) FindOrphanLedgers(context.Context) ([]repository.AccountDrift, error) {
	return f.orphans, nil
}

func TestAuditor_BatchesAllAccountsAndCollectsDrift(t *testing.T) {
	repo := &fakeAuditRepo{
		accounts: []string{"a1", "a2", "a3", "a4", "a5"},
		drift: map[string]repository.AccountDrift{
			"a4": {AccountID: "a4", Balance: decimal.NewFromInt(2), LedgerSum: decimal.NewFromInt(1), HasBalance: true},
		},
		orphans: []repository.AccountDrift{{AccountID: "a0", LedgerSum: decimal.NewFromInt(-1)}},
	}

	report, err := NewAuditor(repo, 2, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.AccountsChecked)
	assert.Len(t, repo.batches, 3)
	assert.False(t, report.Consistent())
	require.Len(t, report.Drifts, 2)
	assert.Equal(t, "a0", report.Drifts[0].AccountID)
	assert.Equal(t, "a4", report.Drifts[1].AccountID)
	assert.True(t, decimal.NewFromInt(1).Equal(report.Drifts[1].Drift()))
}

func TestAuditor_ConsistentLedger(t *testing.T) {
	repo := &fakeAuditRepo{accounts: []string{"a1", "a2"}}

	report, err := NewAuditor(repo, 10, 1).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 2, report.AccountsChecked)
}

func TestAuditor_BatchFailureFailsRun(t *testing.T) {
	repo := &fakeAuditRepo{accounts: []string{"a1", "a2", "a3"}, failOn: "a3"}

	_, err := NewAuditor(repo, 2, 2).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
