package metering

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"ai-tutor-api/internal/domain/repository"
	"ai-tutor-api/pkg/logger"
)

// AuditReport 全量对账结果
type AuditReport struct {
	AccountsChecked int
	Drifts          []repository.AccountDrift
}

func (r *AuditReport) Consistent() bool {
	return len(r.Drifts) == 0
}

// Auditor 分批并发地对全部账户对账
type Auditor struct {
	repo        repository.AuditRepository
	batchSize   int
	concurrency int
}

func NewAuditor(repo repository.AuditRepository, batchSize, concurrency int) *Auditor {
	if batchSize <= 0 {
		batchSize = 500
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Auditor{repo: repo, batchSize: batchSize, concurrency: concurrency}
}

// Run 遍历所有余额行并查找孤立流水；任一查询失败则整体失败
func (a *Auditor) Run(ctx context.Context) (*AuditReport, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	var (
		mu     sync.Mutex
		report AuditReport
	)
	collect := func(drifts []repository.AccountDrift) {
		mu.Lock()
		report.Drifts = append(report.Drifts, drifts...)
		mu.Unlock()
	}

	g.Go(func() error {
		drifts, err := a.repo.FindOrphanLedgers(gctx)
		if err != nil {
			return fmt.Errorf("failed to find orphan ledgers: %w", err)
		}
		collect(drifts)
		return nil
	})

	after := ""
	for {
		ids, err := a.repo.ListAccountIDs(gctx, after, a.batchSize)
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("failed to list accounts after %q: %w", after, err)
		}
		if len(ids) == 0 {
			break
		}
		report.AccountsChecked += len(ids)
		after = ids[len(ids)-1]

		batch := ids
		g.Go(func() error {
			drifts, err := a.repo.FindDrift(gctx, batch)
			if err != nil {
				return fmt.Errorf("failed to audit batch starting at %s: %w", batch[0], err)
			}
			collect(drifts)
			return nil
		})

		if len(ids) < a.batchSize {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].AccountID < report.Drifts[j].AccountID
	})
	for _, d := range report.Drifts {
		logger.Warn(ctx, "ledger drift detected",
			"account_id", d.AccountID,
			"balance", d.Balance.String(),
			"ledger_sum", d.LedgerSum.String(),
			"has_balance_row", d.HasBalance,
		)
	}
	return &report, nil
}
