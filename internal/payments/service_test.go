package payments

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/config"
	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
	"github.com/loumoapp/loumo-backend/pkg/logger"
	"github.com/loumoapp/loumo-backend/pkg/outbox"
	"github.com/loumoapp/loumo-backend/pkg/pawapay"
)

type stubPaymentsRepo struct {
	order        *models.Order
	payments     map[uuid.UUID]*models.Payment
	reconcilable []models.Payment
	created      *models.Payment
	updated      *ExternalStatusInput
}

func newStubPaymentsRepo(order *models.Order) *stubPaymentsRepo {
	return &stubPaymentsRepo{order: order, payments: map[uuid.UUID]*models.Payment{}}
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPaymentsRepo) Create(ctx context.Context, payment *models.Payment) error {
	s.created = payment
	s.payments[payment.ID] = payment
	return nil
}

func (s *stubPaymentsRepo) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *payment
	return &copied, nil
}

func (s *stubPaymentsRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubPaymentsRepo) UpdateStatus(ctx context.Context, paymentID uuid.UUID, input ExternalStatusInput) error {
	payment, ok := s.payments[paymentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.updated = &input
	payment.Status = input.Status
	if input.ProviderTxnID != nil {
		payment.ProviderTxnID = input.ProviderTxnID
	}
	if input.FailureReason != nil {
		payment.FailureReason = input.FailureReason
	}
	return nil
}

func (s *stubPaymentsRepo) ListReconcilable(ctx context.Context, limit int) ([]models.Payment, error) {
	return s.reconcilable, nil
}

type stubGateway struct {
	request *pawapay.DepositRequest
	ack     *pawapay.DepositAck
	err     error
}

func (s *stubGateway) RequestDeposit(ctx context.Context, req pawapay.DepositRequest) (*pawapay.DepositAck, error) {
	s.request = &req
	if s.err != nil {
		return nil, s.err
	}
	return s.ack, nil
}

type stubOrderWorkflow struct {
	completedFor []uuid.UUID
	canceledFor  []uuid.UUID
}

func (s *stubOrderWorkflow) MaybeComplete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	s.completedFor = append(s.completedFor, orderID)
	return nil
}

func (s *stubOrderWorkflow) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	s.canceledFor = append(s.canceledFor, orderID)
	return &models.Order{ID: orderID, Status: enums.OrderStatusCanceled}, nil
}

type stubNotifier struct {
	notifications []models.Notification
}

func (s *stubNotifier) Emit(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	s.notifications = append(s.notifications, *notification)
	return nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type testPaymentDeps struct {
	repo           *stubPaymentsRepo
	gateway        *stubGateway
	orders         *stubOrderWorkflow
	notifier       *stubNotifier
	outbox         *stubOutboxPublisher
	cancelOnReject bool
}

func newTestService(t *testing.T, deps testPaymentDeps) Service {
	t.Helper()
	if deps.repo == nil {
		deps.repo = newStubPaymentsRepo(nil)
	}
	if deps.gateway == nil {
		deps.gateway = &stubGateway{ack: &pawapay.DepositAck{Status: pawapay.ProviderStatusAccepted}}
	}
	if deps.orders == nil {
		deps.orders = &stubOrderWorkflow{}
	}
	if deps.notifier == nil {
		deps.notifier = &stubNotifier{}
	}
	if deps.outbox == nil {
		deps.outbox = &stubOutboxPublisher{}
	}
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	cfg := config.PawapayConfig{Currency: "XAF", Country: "CMR"}
	svc, err := NewService(deps.repo, stubTxRunner{}, deps.gateway, deps.orders, deps.notifier, deps.outbox, logg, cfg, deps.cancelOnReject)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func pendingOrder(totalCents int) *models.Order {
	return &models.Order{
		ID:         uuid.New(),
		Ref:        "ORD-1",
		UserID:     uuid.New(),
		Status:     enums.OrderStatusPending,
		TotalCents: totalCents,
	}
}

func TestOpen_Cash(t *testing.T) {
	order := pendingOrder(2500)
	repo := newStubPaymentsRepo(order)
	orders := &stubOrderWorkflow{}
	notifier := &stubNotifier{}
	publisher := &stubOutboxPublisher{}
	gateway := &stubGateway{}
	svc := newTestService(t, testPaymentDeps{repo: repo, gateway: gateway, orders: orders, notifier: notifier, outbox: publisher})

	payment, err := svc.Open(context.Background(), OpenPaymentInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("open cash payment: %v", err)
	}

	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("cash must settle immediately, got %s", payment.Status)
	}
	if !strings.HasPrefix(payment.DepositID, "CASH-") {
		t.Fatalf("unexpected deposit id %q", payment.DepositID)
	}
	if !strings.HasPrefix(payment.Ref, "PAY-") {
		t.Fatalf("unexpected ref %q", payment.Ref)
	}
	if payment.AmountCents != 2500 {
		t.Fatalf("amount must match order total, got %d", payment.AmountCents)
	}
	if gateway.request != nil {
		t.Fatal("cash must never hit the gateway")
	}
	if len(orders.completedFor) != 1 || orders.completedFor[0] != order.ID {
		t.Fatalf("expected order completion check, got %v", orders.completedFor)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventPaymentSettled {
		t.Fatalf("expected payment_settled event, got %+v", publisher.events)
	}
	if len(notifier.notifications) != 1 || notifier.notifications[0].Action != "payment_settled" {
		t.Fatalf("expected settled notification, got %+v", notifier.notifications)
	}
}

func TestOpen_GatewayAccepted(t *testing.T) {
	order := pendingOrder(4000)
	repo := newStubPaymentsRepo(order)
	gateway := &stubGateway{ack: &pawapay.DepositAck{Status: pawapay.ProviderStatusAccepted}}
	svc := newTestService(t, testPaymentDeps{repo: repo, gateway: gateway})

	payment, err := svc.Open(context.Background(), OpenPaymentInput{
		OrderID:    order.ID,
		Method:     enums.PaymentMethodOrangeCM,
		PayerPhone: "237699000001",
	})
	if err != nil {
		t.Fatalf("open gateway payment: %v", err)
	}

	if payment.Status != enums.PaymentStatusAccepted {
		t.Fatalf("expected accepted, got %s", payment.Status)
	}
	if gateway.request == nil {
		t.Fatal("deposit was never requested")
	}
	if gateway.request.Amount != "40" {
		t.Fatalf("amount must be in major units, got %q", gateway.request.Amount)
	}
	if gateway.request.Currency != "XAF" || gateway.request.Country != "CMR" {
		t.Fatalf("unexpected deposit locale: %+v", gateway.request)
	}
	if gateway.request.Payer.Type != "MMO" {
		t.Fatalf("unexpected payer type %q", gateway.request.Payer.Type)
	}
	if gateway.request.Payer.AccountDetails.Provider != "ORANGE_CM" {
		t.Fatalf("unexpected provider %q", gateway.request.Payer.AccountDetails.Provider)
	}
	if gateway.request.Payer.AccountDetails.PhoneNumber != "237699000001" {
		t.Fatalf("unexpected phone %q", gateway.request.Payer.AccountDetails.PhoneNumber)
	}
}

func TestOpen_GatewayRejected(t *testing.T) {
	order := pendingOrder(1000)
	repo := newStubPaymentsRepo(order)
	gateway := &stubGateway{ack: &pawapay.DepositAck{
		Status:        pawapay.ProviderStatusRejected,
		FailureReason: &pawapay.FailureReason{FailureCode: "PAYER_LIMIT_REACHED", FailureMessage: "payer limit reached"},
	}}
	publisher := &stubOutboxPublisher{}
	orders := &stubOrderWorkflow{}
	svc := newTestService(t, testPaymentDeps{repo: repo, gateway: gateway, outbox: publisher, orders: orders, cancelOnReject: true})

	payment, err := svc.Open(context.Background(), OpenPaymentInput{
		OrderID:    order.ID,
		Method:     enums.PaymentMethodMTNMomoCMR,
		PayerPhone: "237670000002",
	})
	if err != nil {
		t.Fatalf("open rejected payment: %v", err)
	}

	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("rejected ack must fail the payment, got %s", payment.Status)
	}
	if payment.FailureReason == nil || *payment.FailureReason != "payer limit reached" {
		t.Fatalf("failure reason must be recorded, got %v", payment.FailureReason)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected payment_failed event, got %+v", publisher.events)
	}
	if len(orders.canceledFor) != 1 || orders.canceledFor[0] != order.ID {
		t.Fatalf("expected order cancellation, got %v", orders.canceledFor)
	}
}

func TestOpen_GatewayTransportErrorLeavesPending(t *testing.T) {
	order := pendingOrder(1000)
	repo := newStubPaymentsRepo(order)
	gateway := &stubGateway{err: pkgerrors.New(pkgerrors.CodeGateway, "connection refused")}
	svc := newTestService(t, testPaymentDeps{repo: repo, gateway: gateway})

	payment, err := svc.Open(context.Background(), OpenPaymentInput{
		OrderID:    order.ID,
		Method:     enums.PaymentMethodOrangeCM,
		PayerPhone: "237699000003",
	})
	if err != nil {
		t.Fatalf("transport failure must not surface: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment must stay pending for reconciliation, got %s", payment.Status)
	}
	if repo.created == nil {
		t.Fatal("pending payment row must be persisted")
	}
}

func TestOpen_MissingPhone(t *testing.T) {
	svc := newTestService(t, testPaymentDeps{})

	_, err := svc.Open(context.Background(), OpenPaymentInput{
		OrderID: uuid.New(),
		Method:  enums.PaymentMethodOrangeCM,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpen_OrderNotPending(t *testing.T) {
	order := pendingOrder(1000)
	order.Status = enums.OrderStatusCanceled
	repo := newStubPaymentsRepo(order)
	svc := newTestService(t, testPaymentDeps{repo: repo})

	_, err := svc.Open(context.Background(), OpenPaymentInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCash,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpen_OrderAlreadySettled(t *testing.T) {
	order := pendingOrder(1000)
	order.Payments = []models.Payment{{ID: uuid.New(), Status: enums.PaymentStatusCompleted}}
	repo := newStubPaymentsRepo(order)
	svc := newTestService(t, testPaymentDeps{repo: repo})

	_, err := svc.Open(context.Background(), OpenPaymentInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCash,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func seedPayment(repo *stubPaymentsRepo, status enums.PaymentStatus) *models.Payment {
	payment := &models.Payment{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		Method:      enums.PaymentMethodOrangeCM,
		Status:      status,
		DepositID:   uuid.NewString(),
		AmountCents: 1500,
		Ref:         "PAY-1",
	}
	repo.payments[payment.ID] = payment
	return payment
}

func TestApplyExternalStatus_Completed(t *testing.T) {
	repo := newStubPaymentsRepo(nil)
	payment := seedPayment(repo, enums.PaymentStatusProcessing)
	orders := &stubOrderWorkflow{}
	publisher := &stubOutboxPublisher{}
	notifier := &stubNotifier{}
	svc := newTestService(t, testPaymentDeps{repo: repo, orders: orders, outbox: publisher, notifier: notifier})

	txnID := "prov-123"
	updated, changed, err := svc.ApplyExternalStatus(context.Background(), payment.ID, ExternalStatusInput{
		Status:        enums.PaymentStatusCompleted,
		ProviderTxnID: &txnID,
	})
	if err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if !changed {
		t.Fatal("expected a status change")
	}
	if updated.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.ProviderTxnID == nil || *updated.ProviderTxnID != "prov-123" {
		t.Fatalf("provider txn id must be recorded, got %v", updated.ProviderTxnID)
	}
	if len(orders.completedFor) != 1 || orders.completedFor[0] != payment.OrderID {
		t.Fatalf("settlement must trigger order completion, got %v", orders.completedFor)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventPaymentSettled {
		t.Fatalf("expected payment_settled event, got %+v", publisher.events)
	}
}

func TestApplyExternalStatus_Failed(t *testing.T) {
	repo := newStubPaymentsRepo(nil)
	payment := seedPayment(repo, enums.PaymentStatusAccepted)
	publisher := &stubOutboxPublisher{}
	notifier := &stubNotifier{}
	svc := newTestService(t, testPaymentDeps{repo: repo, outbox: publisher, notifier: notifier})

	reason := "insufficient balance"
	updated, changed, err := svc.ApplyExternalStatus(context.Background(), payment.ID, ExternalStatusInput{
		Status:        enums.PaymentStatusFailed,
		FailureReason: &reason,
	})
	if err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if !changed || updated.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got changed=%v status=%s", changed, updated.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected payment_failed event, got %+v", publisher.events)
	}
	if len(notifier.notifications) != 1 || notifier.notifications[0].Variant != enums.NotificationVariantDanger {
		t.Fatalf("expected danger notification, got %+v", notifier.notifications)
	}
}

func TestApplyExternalStatus_NoChange(t *testing.T) {
	repo := newStubPaymentsRepo(nil)
	payment := seedPayment(repo, enums.PaymentStatusProcessing)
	publisher := &stubOutboxPublisher{}
	svc := newTestService(t, testPaymentDeps{repo: repo, outbox: publisher})

	_, changed, err := svc.ApplyExternalStatus(context.Background(), payment.ID, ExternalStatusInput{
		Status: enums.PaymentStatusProcessing,
	})
	if err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if changed {
		t.Fatal("repeated status must report no change")
	}
	if repo.updated != nil {
		t.Fatal("no write may happen on a repeated status")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("no events expected, got %+v", publisher.events)
	}
}

func TestApplyExternalStatus_TerminalIsFrozen(t *testing.T) {
	repo := newStubPaymentsRepo(nil)
	payment := seedPayment(repo, enums.PaymentStatusCompleted)
	svc := newTestService(t, testPaymentDeps{repo: repo})

	updated, changed, err := svc.ApplyExternalStatus(context.Background(), payment.ID, ExternalStatusInput{
		Status: enums.PaymentStatusFailed,
	})
	if err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if changed {
		t.Fatal("terminal payments must never change")
	}
	if updated.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed to stick, got %s", updated.Status)
	}
}

func TestApplyExternalStatus_UnknownPayment(t *testing.T) {
	svc := newTestService(t, testPaymentDeps{})

	_, _, err := svc.ApplyExternalStatus(context.Background(), uuid.New(), ExternalStatusInput{
		Status: enums.PaymentStatusCompleted,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}
