package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
	"github.com/loumoapp/loumo-backend/pkg/outbox"
	"github.com/loumoapp/loumo-backend/pkg/outbox/payloads"
	"github.com/loumoapp/loumo-backend/pkg/pagination"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the notification feed. Emit runs inside the caller's
// transaction so the row and its outbox event land atomically with the
// domain change that caused them.
type Service interface {
	Emit(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo   Repository
	outbox outboxPublisher
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID *uuid.UUID
	Limit  int
	Cursor string
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, outbox: outboxSvc}, nil
}

func (s *service) Emit(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	if notification == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification required")
	}
	if !notification.Variant.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown notification variant %q", notification.Variant))
	}
	if !notification.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown notification type %q", notification.Type))
	}
	if notification.Action == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification action required")
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}

	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   notification.ID,
		Version:       1,
		Data: payloads.NotificationRequestedEvent{
			NotificationID: notification.ID,
			Variant:        notification.Variant,
			Type:           notification.Type,
			Action:         notification.Action,
			Description:    notification.Description,
			UserID:         notification.UserID,
			OrderID:        notification.OrderID,
			PaymentID:      notification.PaymentID,
			StockID:        notification.StockID,
		},
	})
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listNotificationsParams{
		UserID: params.UserID,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cutoff required")
	}
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notifications")
	}
	return deleted, nil
}
