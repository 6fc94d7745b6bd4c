package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chowline/internal/auth"
	"chowline/internal/channels"
	"chowline/internal/domain"
	"chowline/internal/logger"
	"chowline/internal/orders/repository"
	"chowline/internal/state"
)

// Publisher fans events out on a push channel's exchange. Satisfied by
// bus.Client; faked in tests.
type Publisher interface {
	Publish(ctx context.Context, ch channels.Channel, ev channels.Event, payload any) error
}

type OrderServiceInterface interface {
	PlaceOrder(ctx context.Context, actor auth.Actor, req domain.PlacementRequest) (domain.Order, error)
	UpdateStatus(ctx context.Context, actor auth.Actor, orderID string, newStatus domain.Status) (domain.Order, error)
	ListOwn(ctx context.Context, actor auth.Actor) ([]domain.Order, error)
	ListAll(ctx context.Context, actor auth.Actor) ([]domain.Order, error)
}

type OrderService struct {
	repo     repository.OrderRepositoryInterface
	pub      Publisher
	validate *validator.Validate
	lg       *logger.Logger
}

func New(repo repository.OrderRepositoryInterface, pub Publisher, lg *logger.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		pub:      pub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		lg:       lg,
	}
}

// PlaceOrder creates the canonical order. Prices are read from the catalog
// at placement time and snapshotted into the order lines, so the total
// stays stable even if catalog prices later change. The server assigns the
// id and the initial pending status.
func (s *OrderService) PlaceOrder(ctx context.Context, actor auth.Actor, req domain.PlacementRequest) (domain.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.Order{}, &domain.ValidationError{Reason: err.Error()}
	}

	rest, err := s.repo.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		return domain.Order{}, err
	}

	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.MenuItemID
	}
	catalog, err := s.repo.GetMenuItems(ctx, rest.ID, ids)
	if err != nil {
		return domain.Order{}, err
	}

	total := rest.DeliveryFee
	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		mi, ok := catalog[it.MenuItemID]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %s", repository.ErrMenuItemNotFound, it.MenuItemID)
		}
		lines = append(lines, domain.OrderLine{
			MenuItemID:          mi.ID,
			Name:                mi.Name,
			UnitPrice:           mi.UnitPrice,
			Quantity:            it.Quantity,
			SpecialInstructions: it.SpecialInstructions,
		})
		total = total.Add(mi.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          actor.UserID,
		RestaurantID:    rest.ID,
		RestaurantName:  rest.Name,
		Items:           lines,
		Status:          domain.StatusPending,
		Total:           total,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}

	s.publish(ctx, channels.Orders, channels.EventNewOrder, domain.NewOrderEvent{Order: order})
	s.publish(ctx, channels.Notifications, channels.EventNotification, domain.Notification{
		UserID:    actor.UserID,
		OrderID:   order.ID,
		Message:   fmt.Sprintf("Your order at %s has been placed.", rest.Name),
		Timestamp: now,
	})
	s.publish(ctx, channels.Analytics, channels.EventAuditLogUpdate, domain.AuditLogUpdate{
		OrderID: order.ID, Action: "order_placed", Actor: actor.UserID, Timestamp: now,
	})

	s.lg.Info("order_placed", map[string]any{
		"order_id": order.ID, "user_id": actor.UserID,
		"restaurant_id": rest.ID, "total": total.String(),
	})
	return order, nil
}

// UpdateStatus applies an admin-initiated transition. Transition legality
// is enforced here as well as in the client: nothing skips states, the only
// moves are the immediate successor or a cancel from a non-terminal status.
func (s *OrderService) UpdateStatus(ctx context.Context, actor auth.Actor, orderID string, newStatus domain.Status) (domain.Order, error) {
	if !actor.IsAdmin() {
		return domain.Order{}, &domain.AuthorizationError{Actor: actor.UserID, Capability: "order:update-status"}
	}
	if !state.Known(newStatus) {
		return domain.Order{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}

	current, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := state.ApplyTransition(current, newStatus); err != nil {
		return domain.Order{}, err
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, current.Status, newStatus, actor.UserID)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	s.publish(ctx, channels.Orders, channels.EventOrderStatusUpdate, domain.OrderStatusUpdate{
		OrderID:   updated.ID,
		OldStatus: current.Status,
		Status:    updated.Status,
		ChangedBy: actor.UserID,
		Timestamp: now,
	})
	s.publish(ctx, channels.Notifications, channels.EventNotification, domain.Notification{
		UserID:    updated.UserID,
		OrderID:   updated.ID,
		Message:   fmt.Sprintf("Your order is now %s.", updated.Status),
		Timestamp: now,
	})
	s.publish(ctx, channels.Analytics, channels.EventAuditLogUpdate, domain.AuditLogUpdate{
		OrderID: updated.ID, Action: "status_changed", Actor: actor.UserID,
		Detail: fmt.Sprintf("%s -> %s", current.Status, updated.Status), Timestamp: now,
	})

	s.lg.Info("order_status_changed", map[string]any{
		"order_id": updated.ID, "from": string(current.Status),
		"to": string(updated.Status), "changed_by": actor.UserID,
	})
	return updated, nil
}

func (s *OrderService) ListOwn(ctx context.Context, actor auth.Actor) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, actor.UserID)
}

func (s *OrderService) ListAll(ctx context.Context, actor auth.Actor) ([]domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, &domain.AuthorizationError{Actor: actor.UserID, Capability: "order:list-all"}
	}
	return s.repo.ListAll(ctx, 0)
}

// publish is best-effort: a broker hiccup must not fail the request that
// already committed; consumers reconcile via fetch.
func (s *OrderService) publish(ctx context.Context, ch channels.Channel, ev channels.Event, payload any) {
	if err := s.pub.Publish(ctx, ch, ev, payload); err != nil {
		s.lg.Error("event_publish_failed", err, map[string]any{"channel": string(ch), "event": string(ev)})
	}
}
