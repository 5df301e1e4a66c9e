package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
	"github.com/loumoapp/loumo-backend/pkg/outbox"
	"github.com/loumoapp/loumo-backend/pkg/pagination"
)

type fakeRepo struct {
	created    []models.Notification
	rows       []models.Notification
	next       *pagination.Cursor
	listParams *listNotificationsParams
	deleted    int64
	cutoff     time.Time
	err        error
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepo) Create(ctx context.Context, notification *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *notification)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.listParams = &params
	return f.rows, f.next, nil
}

func (f *fakeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.cutoff = cutoff
	return f.deleted, nil
}

type fakePublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakePublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestService(t *testing.T, repo *fakeRepo, publisher *fakePublisher) Service {
	t.Helper()
	svc, err := NewService(repo, publisher)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestEmit(t *testing.T) {
	repo := &fakeRepo{}
	publisher := &fakePublisher{}
	svc := newTestService(t, repo, publisher)

	orderID := uuid.New()
	notification := &models.Notification{
		Variant:     enums.NotificationVariantInfo,
		Type:        enums.NotificationTypeOrder,
		Action:      "order_created",
		Description: "order ORD-1 created",
		OrderID:     &orderID,
	}
	if err := svc.Emit(context.Background(), nil, notification); err != nil {
		t.Fatalf("emit: %v", err)
	}

	if notification.ID == uuid.Nil {
		t.Fatal("emit must assign an id")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.created))
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.EventType != enums.EventNotificationRequested {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateType != enums.AggregateNotification || event.AggregateID != notification.ID {
		t.Fatalf("event must reference the notification, got %+v", event)
	}
}

func TestEmit_InvalidVariant(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{})

	err := svc.Emit(context.Background(), nil, &models.Notification{
		Variant: "loud",
		Type:    enums.NotificationTypeOrder,
		Action:  "order_created",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmit_MissingAction(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{})

	err := svc.Emit(context.Background(), nil, &models.Notification{
		Variant: enums.NotificationVariantInfo,
		Type:    enums.NotificationTypeOrder,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestList(t *testing.T) {
	now := time.Now().UTC()
	nextID := uuid.New()
	repo := &fakeRepo{
		rows: []models.Notification{{ID: uuid.New()}},
		next: &pagination.Cursor{CreatedAt: now, ID: nextID},
	}
	svc := newTestService(t, repo, &fakePublisher{})

	userID := uuid.New()
	result, err := svc.List(context.Background(), ListParams{UserID: &userID, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected an encoded cursor")
	}
	if repo.listParams == nil || repo.listParams.UserID == nil || *repo.listParams.UserID != userID {
		t.Fatalf("user filter must pass through, got %+v", repo.listParams)
	}

	cursor, err := pagination.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if cursor.ID != nextID {
		t.Fatalf("cursor must round-trip, got %s", cursor.ID)
	}
}

func TestList_InvalidCursor(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{})

	_, err := svc.List(context.Background(), ListParams{Cursor: "not base64!"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo := &fakeRepo{deleted: 7}
	svc := newTestService(t, repo, &fakePublisher{})

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	deleted, err := svc.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected 7 deletions, got %d", deleted)
	}
	if !repo.cutoff.Equal(cutoff) {
		t.Fatalf("cutoff must pass through, got %v", repo.cutoff)
	}
}
