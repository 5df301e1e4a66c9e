package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/config"
	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
	"github.com/loumoapp/loumo-backend/pkg/logger"
	"github.com/loumoapp/loumo-backend/pkg/outbox"
	"github.com/loumoapp/loumo-backend/pkg/outbox/payloads"
	"github.com/loumoapp/loumo-backend/pkg/pawapay"
)

// payerType is the only payer kind pawaPay supports for deposits.
const payerType = "MMO"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the payment ledger: opening settlement attempts and applying
// provider-reported status changes.
type Service interface {
	Open(ctx context.Context, input OpenPaymentInput) (*models.Payment, error)
	Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	ApplyExternalStatus(ctx context.Context, paymentID uuid.UUID, input ExternalStatusInput) (*models.Payment, bool, error)
	ListReconcilable(ctx context.Context, limit int) ([]models.Payment, error)
}

type service struct {
	repo           Repository
	tx             txRunner
	gateway        DepositGateway
	orders         OrderWorkflow
	notifications  NotificationEmitter
	outbox         outboxPublisher
	logg           *logger.Logger
	cfg            config.PawapayConfig
	cancelOnReject bool
}

// NewService builds the payment service with the required dependencies.
func NewService(repo Repository, tx txRunner, gateway DepositGateway, orders OrderWorkflow, notifications NotificationEmitter, outboxSvc outboxPublisher, logg *logger.Logger, cfg config.PawapayConfig, cancelOrderOnReject bool) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("deposit gateway required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order workflow required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification emitter required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		tx:            tx,
		gateway:       gateway,
		orders:        orders,
		notifications: notifications,
		outbox:        outboxSvc,
		logg:          logg,
		cfg:           cfg,
		cancelOnReject: cancelOrderOnReject,
	}, nil
}

// Open records a settlement attempt for a pending order. Cash is written
// terminal immediately. Mobile-money payments persist as pending first, then
// the deposit is requested: a transport failure leaves the row pending for the
// reconciler, a synchronous rejection marks it failed.
func (s *service) Open(ctx context.Context, input OpenPaymentInput) (*models.Payment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", input.Method))
	}
	if !input.Method.IsCash() && input.PayerPhone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer phone is required for mobile money payments")
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order no longer accepts payments")
		}
		if hasCompletedPayment(order) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a settled payment")
		}

		now := time.Now().UTC()
		p := &models.Payment{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Method:      input.Method,
			AmountCents: order.TotalCents,
			PayerPhone:  input.PayerPhone,
			Ref:         newPaymentRef(now),
		}
		if input.Method.IsCash() {
			p.Status = enums.PaymentStatusCompleted
			p.DepositID = "CASH-" + uuid.NewString()
		} else {
			p.Status = enums.PaymentStatusPending
			p.DepositID = uuid.NewString()
		}

		if err := repo.Create(ctx, p); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		if input.Method.IsCash() {
			if err := s.settleInTx(ctx, tx, p); err != nil {
				return err
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if payment.Method.IsCash() {
		return payment, nil
	}
	return s.requestDeposit(ctx, payment)
}

func (s *service) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// ApplyExternalStatus applies a provider-reported status to a payment. It is
// the single write path the reconciler and any gateway callback go through.
// Terminal payments and repeated statuses are left untouched and report
// changed==false.
func (s *service) ApplyExternalStatus(ctx context.Context, paymentID uuid.UUID, input ExternalStatusInput) (*models.Payment, bool, error) {
	if paymentID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Status.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment status %q", input.Status))
	}

	var result *models.Payment
	var changed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		if payment.Status.IsTerminal() || payment.Status == input.Status {
			result = payment
			return nil
		}

		if err := repo.UpdateStatus(ctx, payment.ID, input); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		payment.Status = input.Status
		if input.ProviderTxnID != nil {
			payment.ProviderTxnID = input.ProviderTxnID
		}
		if input.FailureReason != nil {
			payment.FailureReason = input.FailureReason
		}
		changed = true

		switch {
		case input.Status == enums.PaymentStatusCompleted:
			if err := s.settleInTx(ctx, tx, payment); err != nil {
				return err
			}
		case input.Status == enums.PaymentStatusFailed || input.Status == enums.PaymentStatusRejected:
			if err := s.failInTx(ctx, tx, payment); err != nil {
				return err
			}
		}

		result = payment
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

func (s *service) ListReconcilable(ctx context.Context, limit int) ([]models.Payment, error) {
	rows, err := s.repo.ListReconcilable(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reconcilable payments")
	}
	return rows, nil
}

// requestDeposit runs after the pending row committed. Whatever happens here,
// the payment already exists and the reconciler can pick it up.
func (s *service) requestDeposit(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	ack, err := s.gateway.RequestDeposit(ctx, pawapay.DepositRequest{
		DepositID: payment.DepositID,
		Amount:    amountString(payment.AmountCents),
		Currency:  s.cfg.Currency,
		Country:   s.cfg.Country,
		Payer: pawapay.Payer{
			Type: payerType,
			AccountDetails: pawapay.AccountDetails{
				PhoneNumber: payment.PayerPhone,
				Provider:    payment.Method.CarrierCode(),
			},
		},
		ClientReferenceID: payment.Ref,
	})
	if err != nil {
		logCtx := s.logg.WithPaymentID(ctx, payment.ID.String())
		s.logg.Warn(logCtx, fmt.Sprintf("deposit request failed, payment left pending for reconciliation: %v", err))
		return payment, nil
	}

	if ack.Accepted() {
		updated, _, err := s.ApplyExternalStatus(ctx, payment.ID, ExternalStatusInput{Status: enums.PaymentStatusAccepted})
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	var reason *string
	if ack.FailureReason != nil {
		msg := ack.FailureReason.FailureMessage
		reason = &msg
	}
	updated, _, err := s.ApplyExternalStatus(ctx, payment.ID, ExternalStatusInput{
		Status:        enums.PaymentStatusFailed,
		FailureReason: reason,
	})
	if err != nil {
		return nil, err
	}

	if s.cancelOnReject {
		if _, err := s.orders.Cancel(ctx, payment.OrderID); err != nil {
			logCtx := s.logg.WithOrderID(ctx, payment.OrderID.String())
			s.logg.Warn(logCtx, fmt.Sprintf("cancel order after deposit rejection: %v", err))
		}
	}
	return updated, nil
}

func (s *service) settleInTx(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	if err := s.emitStatusEvent(ctx, tx, enums.EventPaymentSettled, payment); err != nil {
		return err
	}
	notification := &models.Notification{
		Variant:     enums.NotificationVariantSuccess,
		Type:        enums.NotificationTypePayment,
		Action:      "payment_settled",
		Description: fmt.Sprintf("payment %s settled", payment.Ref),
		OrderID:     &payment.OrderID,
		PaymentID:   &payment.ID,
	}
	if err := s.notifications.Emit(ctx, tx, notification); err != nil {
		return err
	}
	return s.orders.MaybeComplete(ctx, tx, payment.OrderID)
}

func (s *service) failInTx(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	if err := s.emitStatusEvent(ctx, tx, enums.EventPaymentFailed, payment); err != nil {
		return err
	}
	description := fmt.Sprintf("payment %s failed", payment.Ref)
	if payment.FailureReason != nil {
		description = fmt.Sprintf("payment %s failed: %s", payment.Ref, *payment.FailureReason)
	}
	notification := &models.Notification{
		Variant:     enums.NotificationVariantDanger,
		Type:        enums.NotificationTypePayment,
		Action:      "payment_failed",
		Description: description,
		OrderID:     &payment.OrderID,
		PaymentID:   &payment.ID,
	}
	return s.notifications.Emit(ctx, tx, notification)
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payment *models.Payment) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.PaymentStatusEvent{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			DepositID:   payment.DepositID,
			Method:      payment.Method,
			Status:      payment.Status,
			AmountCents: payment.AmountCents,
			Ref:         payment.Ref,
		},
	})
}

func hasCompletedPayment(order *models.Order) bool {
	for _, payment := range order.Payments {
		if payment.Status == enums.PaymentStatusCompleted {
			return true
		}
	}
	return false
}

// amountString renders cents as the major-unit string pawaPay expects.
func amountString(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).String()
}

func newPaymentRef(now time.Time) string {
	return fmt.Sprintf("PAY-%d", now.UnixMilli())
}
