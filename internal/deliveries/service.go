package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateDeliveryInput groups order items into one dispatch.
type CreateDeliveryInput struct {
	OrderID      uuid.UUID
	OrderItemIDs []uuid.UUID
	Priority     enums.DeliveryPriority
}

// Service runs the delivery lifecycle: grouping items, agent assignment and
// status transitions.
type Service interface {
	Create(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error)
	Get(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error)
	AssignAgent(ctx context.Context, deliveryID, agentID uuid.UUID) (*models.Delivery, error)
	UnassignAgent(ctx context.Context, deliveryID, agentID uuid.UUID) error
	UpdateStatus(ctx context.Context, deliveryID uuid.UUID, next enums.DeliveryStatus) (*models.Delivery, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	orders OrderCompleter
}

// NewService wires delivery dependencies.
func NewService(repo Repository, tx txRunner, orders OrderCompleter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order completer required")
	}
	return &service{repo: repo, tx: tx, orders: orders}, nil
}

// Create groups the given order items under a new tracking code. Items must
// belong to the order and must not already sit on another delivery.
func (s *service) Create(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(input.OrderItemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order item is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = enums.DeliveryPriorityNormal
	}
	if !priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown delivery priority %q", input.Priority))
	}

	var created *models.Delivery
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
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order no longer accepts deliveries")
		}

		items, err := repo.FindOrderItems(ctx, input.OrderID, input.OrderItemIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		if len(items) != len(input.OrderItemIDs) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "one or more order items not found on order")
		}
		for _, item := range items {
			if item.DeliveryID != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order item %s already belongs to a delivery", item.ID))
			}
		}

		now := time.Now().UTC()
		delivery := &models.Delivery{
			ID:           uuid.New(),
			OrderID:      input.OrderID,
			Status:       enums.DeliveryStatusNotStarted,
			Priority:     priority,
			TrackingCode: newTrackingCode(now),
		}
		if err := repo.CreateDelivery(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}

		affected, err := repo.AttachItems(ctx, delivery.ID, input.OrderID, input.OrderItemIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach order items")
		}
		if affected != int64(len(input.OrderItemIDs)) {
			// A concurrent delivery claimed one of the items first.
			return pkgerrors.New(pkgerrors.CodeConflict, "order items were claimed by another delivery")
		}

		created, err = repo.FindByID(ctx, delivery.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload delivery")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	delivery, err := s.repo.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

// AssignAgent hands the delivery to an agent. Reassigning a held delivery is
// a conflict, the current agent has to be unassigned first.
func (s *service) AssignAgent(ctx context.Context, deliveryID, agentID uuid.UUID) (*models.Delivery, error) {
	if deliveryID == uuid.Nil || agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id and agent id required")
	}

	var result *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		delivery, err := repo.FindByID(ctx, deliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if delivery.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery is already in a terminal state")
		}
		if delivery.AgentID != nil && *delivery.AgentID != agentID {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery is already assigned to another agent")
		}

		if err := repo.SetAgent(ctx, deliveryID, agentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign agent")
		}
		delivery.AgentID = &agentID
		result = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnassignAgent detaches an agent from a delivery. The agent must currently
// hold it, detaching someone else's delivery is a conflict rather than a no-op.
func (s *service) UnassignAgent(ctx context.Context, deliveryID, agentID uuid.UUID) error {
	if deliveryID == uuid.Nil || agentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id and agent id required")
	}

	affected, err := s.repo.ClearAgent(ctx, deliveryID, agentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unassign agent")
	}
	if affected == 0 {
		if _, err := s.repo.FindByID(ctx, deliveryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "agent does not hold this delivery")
	}
	return nil
}

// UpdateStatus applies a lifecycle transition. Completing the delivery also
// gives the order a chance to complete inside the same transaction.
func (s *service) UpdateStatus(ctx context.Context, deliveryID uuid.UUID, next enums.DeliveryStatus) (*models.Delivery, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown delivery status %q", next))
	}

	var result *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		delivery, err := repo.FindByID(ctx, deliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if !delivery.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move delivery from %s to %s", delivery.Status, next))
		}

		now := time.Now().UTC()
		if err := repo.UpdateStatus(ctx, deliveryID, next, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		delivery.Status = next
		switch next {
		case enums.DeliveryStatusStarted:
			delivery.StartedAt = &now
		case enums.DeliveryStatusCompleted:
			delivery.CompletedAt = &now
		}

		if next == enums.DeliveryStatusCompleted {
			if err := s.orders.MaybeComplete(ctx, tx, delivery.OrderID); err != nil {
				return err
			}
		}
		result = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func newTrackingCode(now time.Time) string {
	return fmt.Sprintf("LIV-%d", now.UnixMilli())
}
