package main

import (
	"context"
	"fmt"

	"ai-tutor-api/internal/application/topup"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/infrastructure/messaging"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
)

type paymentApplier interface {
	HandlePaymentConfirmed(ctx context.Context, in topup.PaymentConfirmed) (*entity.LedgerTransaction, bool, error)
}

// paymentConfirmedHandler 入账一条支付确认。参数错误不会因重试变好，直接进死信队列。
func paymentConfirmedHandler(svc paymentApplier) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.PaymentConfirmedMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("%w: %v", messaging.ErrPermanent, err)
		}

		tx, duplicate, err := svc.HandlePaymentConfirmed(ctx, topup.PaymentConfirmed{
			EventID:   payload.EventID,
			AccountID: payload.AccountID,
			Credits:   payload.Credits,
		})
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeInvalidParam) {
				return fmt.Errorf("%w: %v", messaging.ErrPermanent, err)
			}
			return err
		}
		if duplicate {
			logger.Info(ctx, "payment event already applied", "event_id", payload.EventID)
			return nil
		}
		logger.Info(ctx, "payment credited",
			"event_id", payload.EventID,
			"account_id", payload.AccountID,
			"transaction_id", tx.ID,
		)
		return nil
	}
}
