package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
)

// Repository defines persistence operations for shipment manifests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLatestByPhone(ctx context.Context, phone string) (*models.Order, error)
	ListShipmentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListDraftsByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Notifier receives order events after their state change has been committed.
// Implementations must swallow delivery failures; a lost message never rolls
// back the transition that triggered it.
type Notifier interface {
	OrderFinalized(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus)
	TrackingAssigned(ctx context.Context, order *models.Order)
}

// Exporter appends a finalized order to the external ledger. Append is not
// idempotent downstream, so callers invoke it at most once per finalize.
type Exporter interface {
	AppendOrder(ctx context.Context, order *models.Order) error
}
