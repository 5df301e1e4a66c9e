package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/pawapay"
)

// Repository defines persistence operations for payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, input ExternalStatusInput) error
	ListReconcilable(ctx context.Context, limit int) ([]models.Payment, error)
}

// DepositGateway is the slice of the pawaPay client used to open deposits.
type DepositGateway interface {
	RequestDeposit(ctx context.Context, req pawapay.DepositRequest) (*pawapay.DepositAck, error)
}

// OrderWorkflow is the slice of the order service payments drive.
type OrderWorkflow interface {
	MaybeComplete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// NotificationEmitter appends a notification row inside the payment transaction.
type NotificationEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
}
