package orders

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
	"github.com/loumoapp/loumo-backend/pkg/outbox"
	"github.com/loumoapp/loumo-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the order state machine. Every status transition in the system
// funnels through it.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Reject(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MaybeComplete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo          Repository
	tx            txRunner
	inventory     StockReserver
	notifications NotificationEmitter
	outbox        outboxPublisher
	policy        config.CompletionPolicy
}

// NewService builds the order workflow service with the required dependencies.
func NewService(repo Repository, tx txRunner, inventory StockReserver, notifications NotificationEmitter, outboxSvc outboxPublisher, policy config.CompletionPolicy) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification emitter required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if policy == "" {
		policy = config.CompletionPolicyLenient
	}
	return &service{
		repo:          repo,
		tx:            tx,
		inventory:     inventory,
		notifications: notifications,
		outbox:        outboxSvc,
		policy:        policy,
	}, nil
}

// Create reserves stock for every line and persists the order atomically.
// Any failed reservation aborts the whole transaction, leaving no partial
// order or stock state behind.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		prices, err := s.priceLines(ctx, repo, input.Lines)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order := &models.Order{
			ID:               uuid.New(),
			Ref:              newOrderRef(now),
			UserID:           input.UserID,
			AddressID:        input.AddressID,
			Status:           enums.OrderStatusPending,
			DeliveryFeeCents: input.DeliveryFeeCents,
			Note:             input.Note,
		}

		items := make([]models.OrderItem, 0, len(input.Lines))
		lowStocks := make([]*models.Stock, 0)
		total := input.DeliveryFeeCents
		for i, line := range input.Lines {
			stock, err := s.inventory.Reserve(ctx, tx, line.ProductVariantID, line.ShopID, line.Quantity)
			if err != nil {
				return err
			}
			if stock.IsLow() {
				lowStocks = append(lowStocks, stock)
			}

			lineTotal := prices[line.ProductVariantID] * line.Quantity
			total += lineTotal
			items = append(items, models.OrderItem{
				ID:               uuid.New(),
				OrderID:          order.ID,
				ProductVariantID: line.ProductVariantID,
				ShopID:           line.ShopID,
				Quantity:         line.Quantity,
				TotalCents:       lineTotal,
				Note:             line.Note,
				Position:         i,
			})
		}

		order.TotalCents = total
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		orderNotification := &models.Notification{
			Variant:     enums.NotificationVariantInfo,
			Type:        enums.NotificationTypeOrder,
			Action:      "order_created",
			Description: fmt.Sprintf("order %s created", order.Ref),
			UserID:      &order.UserID,
			OrderID:     &order.ID,
		}
		if err := s.notifications.Emit(ctx, tx, orderNotification); err != nil {
			return err
		}
		for _, stock := range lowStocks {
			stockID := stock.ID
			stockNotification := &models.Notification{
				Variant:     enums.NotificationVariantWarning,
				Type:        enums.NotificationTypeStock,
				Action:      "stock_low",
				Description: fmt.Sprintf("stock for variant %s is down to %d", stock.ProductVariantID, stock.Quantity),
				StockID:     &stockID,
				OrderID:     &order.ID,
			}
			if err := s.notifications.Emit(ctx, tx, stockNotification); err != nil {
				return err
			}
		}

		if err := s.emitStatusEvent(ctx, tx, enums.EventOrderCreated, order); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Cancel moves a pending order to canceled. Orders with a completed payment
// or delivery are already being processed and cannot be canceled.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.terminate(ctx, orderID, enums.OrderStatusCanceled, enums.EventOrderCanceled)
}

// Reject is the operator-side refusal of an order, same preconditions as Cancel.
func (s *service) Reject(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.terminate(ctx, orderID, enums.OrderStatusRejected, enums.EventOrderRejected)
}

func (s *service) terminate(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, eventType enums.OutboxEventType) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already in a terminal state")
		}
		if hasCompletedPayment(order) || hasCompletedDelivery(order) {
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot cancel an order that has been processed")
		}

		now := time.Now().UTC()
		if err := repo.UpdateStatus(ctx, order.ID, target, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = target
		order.CanceledAt = &now

		if err := s.emitStatusEvent(ctx, tx, eventType, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MaybeComplete promotes a pending order to completed once at least one
// payment settled and the deliveries satisfy the completion policy. It runs
// inside the caller's transaction and is idempotent: anything already
// terminal is left untouched.
func (s *service) MaybeComplete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status != enums.OrderStatusPending {
		return nil
	}
	if !hasCompletedPayment(order) {
		return nil
	}
	if !s.deliveriesSatisfied(order) {
		return nil
	}

	now := time.Now().UTC()
	if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCompleted, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
	}
	order.Status = enums.OrderStatusCompleted
	return s.emitStatusEvent(ctx, tx, enums.EventOrderCompleted, order)
}

func (s *service) deliveriesSatisfied(order *models.Order) bool {
	if s.policy == config.CompletionPolicyStrict && len(order.Deliveries) == 0 {
		return false
	}
	for _, delivery := range order.Deliveries {
		if delivery.Status != enums.DeliveryStatusCompleted {
			return false
		}
	}
	return true
}

func (s *service) priceLines(ctx context.Context, repo Repository, lines []OrderLineInput) (map[uuid.UUID]int, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductVariantID)
	}

	variants, err := repo.FindVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variants")
	}

	prices := make(map[uuid.UUID]int, len(variants))
	for _, variant := range variants {
		prices[variant.ID] = int(variant.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	for _, line := range lines {
		if _, ok := prices[line.ProductVariantID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product variant %s not found", line.ProductVariantID))
		}
	}
	return prices, nil
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderStatusEvent{
			OrderID:    order.ID,
			Ref:        order.Ref,
			UserID:     order.UserID,
			Status:     order.Status,
			TotalCents: order.TotalCents,
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

func hasCompletedDelivery(order *models.Order) bool {
	for _, delivery := range order.Deliveries {
		if delivery.Status == enums.DeliveryStatusCompleted {
			return true
		}
	}
	return false
}

func newOrderRef(now time.Time) string {
	return fmt.Sprintf("ORD-%d", now.UnixMilli())
}
