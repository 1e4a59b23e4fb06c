// Package topup 处理支付确认事件并为账户充值
package topup

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ai-tutor-api/internal/application/metering"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/metrics"
)

// PaymentConfirmed 支付渠道确认的一次购买
type PaymentConfirmed struct {
	EventID   string
	AccountID string
	Credits   int64
}

type Config struct {
	CreditPrice      decimal.Decimal
	MaxCreditsPerBuy int64
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		CreditPrice:      decimal.NewFromFloat(cfg.Billing.CreditPrice),
		MaxCreditsPerBuy: cfg.Billing.Payment.MaxCreditsPerBuy,
	}
}

type Service struct {
	cfg    Config
	ledger *metering.Service
	events repository.PaymentEventRepository
	txMgr  repository.Transactor
}

func NewService(cfg Config, ledger *metering.Service, events repository.PaymentEventRepository, txMgr repository.Transactor) *Service {
	if !cfg.CreditPrice.IsPositive() {
		cfg.CreditPrice = decimal.NewFromInt(1)
	}
	return &Service{cfg: cfg, ledger: ledger, events: events, txMgr: txMgr}
}

// HandlePaymentConfirmed 按事件 ID 幂等入账。重复投递返回 duplicate=true 且不产生新流水。
func (s *Service) HandlePaymentConfirmed(ctx context.Context, in PaymentConfirmed) (*entity.LedgerTransaction, bool, error) {
	if in.EventID == "" || in.AccountID == "" {
		metrics.PaymentEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, apperrors.ErrInvalidParam.WithDetail("event id and account id are required")
	}
	if in.Credits <= 0 {
		metrics.PaymentEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, apperrors.ErrInvalidParam.WithDetail("credits must be positive")
	}
	if s.cfg.MaxCreditsPerBuy > 0 && in.Credits > s.cfg.MaxCreditsPerBuy {
		metrics.PaymentEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, apperrors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("credits exceed the per-purchase limit of %d", s.cfg.MaxCreditsPerBuy))
	}

	var (
		tx        *entity.LedgerTransaction
		duplicate bool
	)
	err := s.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		claimed, err := s.events.Claim(txCtx, entity.NewPaymentEvent(in.EventID, in.AccountID, in.Credits))
		if err != nil {
			return apperrors.ErrStorageUnavailable.WithError(err)
		}
		if !claimed {
			duplicate = true
			return nil
		}

		amount := decimal.NewFromInt(in.Credits).Mul(s.cfg.CreditPrice)
		notes := fmt.Sprintf("Payment: %d credits purchased via Stripe", in.Credits)
		tx, err = s.ledger.CreditAccount(txCtx, in.AccountID, amount, notes)
		if err != nil {
			return err
		}
		if err := s.events.AttachTransaction(txCtx, in.EventID, tx.ID); err != nil {
			return apperrors.ErrStorageUnavailable.WithError(err)
		}
		return nil
	})
	if err != nil {
		metrics.PaymentEventsTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "failed to apply payment", err, "event_id", in.EventID, "account_id", in.AccountID)
		return nil, false, err
	}

	if duplicate {
		metrics.PaymentEventsTotal.WithLabelValues("duplicate").Inc()
		logger.Info(ctx, "duplicate payment event ignored", "event_id", in.EventID, "account_id", in.AccountID)
		return nil, true, nil
	}

	metrics.PaymentEventsTotal.WithLabelValues("applied").Inc()
	logger.Info(ctx, "payment credited",
		"event_id", in.EventID,
		"account_id", in.AccountID,
		"credits", in.Credits,
		"transaction_id", tx.ID,
	)
	return tx, false, nil
}
