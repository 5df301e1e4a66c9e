package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/loumoapp/loumo-backend/internal/payments"
	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/logger"
	"github.com/loumoapp/loumo-backend/pkg/pawapay"
)

const defaultReconcileLimit = 250

// PaymentReconcileJobParams configures the payment status polling job.
type PaymentReconcileJobParams struct {
	Logger   *logger.Logger
	Payments paymentsReconciler
	Gateway  depositStatusChecker
	Limit    int
}

type paymentsReconciler interface {
	ListReconcilable(ctx context.Context, limit int) ([]models.Payment, error)
	ApplyExternalStatus(ctx context.Context, paymentID uuid.UUID, input payments.ExternalStatusInput) (*models.Payment, bool, error)
}

type depositStatusChecker interface {
	CheckDepositStatus(ctx context.Context, depositID string) (*pawapay.DepositState, error)
}

// NewPaymentReconcileJob builds the gateway polling job. Every non-terminal
// mobile-money payment is checked against the provider; one failing deposit
// never stops the sweep.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("deposit gateway required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		payments: params.Payments,
		gateway:  params.Gateway,
		limit:    limit,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	payments paymentsReconciler
	gateway  depositStatusChecker
	limit    int
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	candidates, err := j.payments.ListReconcilable(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list reconcilable payments: %w", err)
	}

	var errs error
	updated := 0
	for i := range candidates {
		changed, err := j.reconcilePayment(ctx, &candidates[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if changed {
			updated++
		}
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"updated":    updated,
	})
	j.logg.Info(reportCtx, "payment reconcile loop complete")
	return errs
}

func (j *paymentReconcileJob) reconcilePayment(ctx context.Context, payment *models.Payment) (bool, error) {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"payment_id": payment.ID,
		"deposit_id": payment.DepositID,
	})

	state, err := j.gateway.CheckDepositStatus(logCtx, payment.DepositID)
	if err != nil {
		return false, fmt.Errorf("check deposit %s: %w", payment.DepositID, err)
	}

	status, ok := pawapay.MapProviderStatus(state.Status)
	if !ok {
		// Unknown provider vocabulary is left alone, next sweep retries.
		j.logg.Warn(j.logg.WithField(logCtx, "provider_status", state.Status), "unmapped provider status; skipping")
		return false, nil
	}
	if status == payment.Status {
		return false, nil
	}

	input := payments.ExternalStatusInput{Status: status, ProviderTxnID: state.ProviderTransactionID}
	if state.FailureReason != nil {
		msg := state.FailureReason.FailureMessage
		input.FailureReason = &msg
	}

	_, changed, err := j.payments.ApplyExternalStatus(logCtx, payment.ID, input)
	if err != nil {
		return false, fmt.Errorf("apply status for payment %s: %w", payment.ID, err)
	}
	if changed {
		j.logg.Info(j.logg.WithField(logCtx, "status", status.String()), "payment reconciled")
	}
	return changed, nil
}
