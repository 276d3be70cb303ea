package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paquetebot/paquetebot-backend/internal/sessions"
	"github.com/paquetebot/paquetebot-backend/pkg/db"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the draft/finalize lifecycle and the order status machine.
// It is the sole mutator of orders once they exist: intake hands confirmed
// buffers to UpsertDraft, the admin workflow drives TransitionStatus and
// SetTracking.
type Service interface {
	UpsertDraft(ctx context.Context, user *models.User, items models.LineItems) (*models.Order, error)
	Finalize(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	SetTracking(ctx context.Context, orderID uuid.UUID, number, url string) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindLatestByPhone(ctx context.Context, phone string) (*models.Order, error)
	ListShipments(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListDrafts(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

type service struct {
	repo     Repository
	users    sessions.Repository
	tx       txRunner
	exporter Exporter
	notifier Notifier
	logg     *logger.Logger
	metrics  *metrics.BotMetrics
}

// NewService builds an order lifecycle service with the required dependencies.
// metrics may be nil; the counters degrade to no-ops.
func NewService(
	repo Repository,
	users sessions.Repository,
	tx txRunner,
	exporter Exporter,
	notifier Notifier,
	logg *logger.Logger,
	botMetrics *metrics.BotMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("sessions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if exporter == nil {
		return nil, fmt.Errorf("ledger exporter required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		users:    users,
		tx:       tx,
		exporter: exporter,
		notifier: notifier,
		logg:     logg,
		metrics:  botMetrics,
	}, nil
}

// UpsertDraft persists the confirmed buffer as the user's single live draft.
// If pendingDraftOrderId still points at a draft, that order is rewritten in
// place; otherwise a new draft is created. The user's pending reference is
// updated inside the same transaction.
func (s *service) UpsertDraft(ctx context.Context, user *models.User, items models.LineItems) (*models.Order, error) {
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	for _, item := range items {
		if item.Product == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product name required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.LineTotal.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item total cannot be negative")
		}
	}
	if user.Phone == nil || *user.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact phone required before saving")
	}

	total := items.Sum()

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		users := s.users.WithTx(tx)

		if user.PendingDraftID != nil {
			existing, err := repo.FindByID(ctx, *user.PendingDraftID)
			if err != nil && !db.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending draft")
			}
			if existing != nil && existing.Status == enums.OrderStatusDraft {
				existing.Items = items
				existing.TotalSum = total
				existing.ClientPhone = *user.Phone
				if err := repo.Save(ctx, existing); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update draft")
				}
				result = existing
				return users.Save(ctx, user)
			}
		}

		created, err := repo.Create(ctx, &models.Order{
			UserID:      user.ID,
			ClientPhone: *user.Phone,
			Items:       items,
			TotalSum:    total,
			Status:      enums.OrderStatusDraft,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create draft")
		}
		result = created
		user.PendingDraftID = &created.ID
		return users.Save(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Finalize moves a draft to processing. The ledger append runs first and is
// best-effort: a ledger outage must never strand a confirmed order in draft.
func (s *service) Finalize(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only draft orders can be finalized")
	}

	if err := s.exporter.AppendOrder(ctx, order); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "ledger export failed", err)
		s.metrics.IncLedgerExport("failure")
	} else {
		s.metrics.IncLedgerExport("success")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		users := s.users.WithTx(tx)

		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":     enums.OrderStatusProcessing,
			"updated_at": time.Now().UTC(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		owner, err := users.FindByID(ctx, order.UserID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load draft owner")
		}
		if owner.PendingDraftID != nil && *owner.PendingDraftID == order.ID {
			owner.PendingDraftID = nil
			return users.Save(ctx, owner)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusProcessing
	s.notifier.OrderFinalized(ctx, order)
	return order, nil
}

// TransitionStatus applies one legal status change and dispatches the
// customer notification after commit.
func (s *service) TransitionStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}

	previous := order.Status
	if err := s.repo.Update(ctx, order.ID, map[string]any{
		"status":     target,
		"updated_at": time.Now().UTC(),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	order.Status = target
	s.notifier.OrderStatusChanged(ctx, order, previous)
	return order, nil
}

// SetTracking assigns tracking data and forces the order to shipped, even
// from later statuses. Tracking reassignment intentionally re-ships.
func (s *service) SetTracking(ctx context.Context, orderID uuid.UUID, number, url string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var urlPtr *string
	if url != "" {
		urlPtr = &url
	}
	if err := s.repo.Update(ctx, order.ID, map[string]any{
		"tracking_number": number,
		"tracking_url":    urlPtr,
		"status":          enums.OrderStatusShipped,
		"updated_at":      time.Now().UTC(),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking")
	}

	order.TrackingNumber = &number
	order.TrackingURL = urlPtr
	order.Status = enums.OrderStatusShipped
	s.notifier.TrackingAssigned(ctx, order)
	return order, nil
}

func (s *service) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.load(ctx, orderID)
}

func (s *service) FindLatestByPhone(ctx context.Context, phone string) (*models.Order, error) {
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone required")
	}
	order, err := s.repo.FindLatestByPhone(ctx, phone)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no orders for phone")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search orders by phone")
	}
	return order, nil
}

func (s *service) ListShipments(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	list, err := s.repo.ListShipmentsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipments")
	}
	return list, nil
}

func (s *service) ListDrafts(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	list, err := s.repo.ListDraftsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drafts")
	}
	return list, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
