// Package dispatch orchestrates order placement and keeps the client-local
// order caches in sync with push events. The caches are the only shared
// mutable state in the client; every mutation happens behind one mutex so
// events apply in arrival order while reads stay safe from any goroutine.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"chowline/internal/auth"
	"chowline/internal/cart"
	"chowline/internal/channels"
	"chowline/internal/client/conn"
	"chowline/internal/domain"
	"chowline/internal/logger"
	"chowline/internal/state"
)

type Dispatcher struct {
	transport Transport
	lg        *logger.Logger

	mu  sync.Mutex
	own []domain.Order // the caller's orders, newest first
	all []domain.Order // admin-facing view over every order, newest first
}

func New(transport Transport, lg *logger.Logger) *Dispatcher {
	return &Dispatcher{transport: transport, lg: lg}
}

// Bind subscribes the dispatcher's event handlers on the orders channel.
func (d *Dispatcher) Bind(m *conn.Manager) error {
	if err := m.Subscribe(channels.Orders, channels.EventOrderStatusUpdate, func(payload json.RawMessage) {
		var upd domain.OrderStatusUpdate
		if err := json.Unmarshal(payload, &upd); err != nil {
			d.lg.Error("event_decode_failed", err, map[string]any{"event": "order_status_update"})
			return
		}
		d.OnOrderStatusUpdate(upd.OrderID, upd.Status)
	}); err != nil {
		return err
	}
	return m.Subscribe(channels.Orders, channels.EventNewOrder, func(payload json.RawMessage) {
		var ev domain.NewOrderEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			d.lg.Error("event_decode_failed", err, map[string]any{"event": "new_order"})
			return
		}
		d.OnNewOrder(ev.Order)
	})
}

// PlaceOrder validates the cart locally, submits the placement, prepends
// the canonical server order to the caller's cache and clears the cart. On
// any failure the cart and the caches are left untouched so the user can
// retry without re-entering anything.
func (d *Dispatcher) PlaceOrder(ctx context.Context, crt *cart.Aggregator, restaurant *domain.Restaurant,
	deliveryAddress string, paymentMethod domain.PaymentMethod, actor auth.Actor) (domain.Order, error) {

	if crt == nil || crt.IsEmpty() {
		return domain.Order{}, &domain.ValidationError{Field: "cart", Reason: "cart is empty"}
	}
	if restaurant == nil || restaurant.ID == "" {
		return domain.Order{}, &domain.ValidationError{Field: "restaurant", Reason: "restaurant is not set"}
	}
	if strings.TrimSpace(deliveryAddress) == "" {
		return domain.Order{}, &domain.ValidationError{Field: "delivery_address", Reason: "delivery address is blank"}
	}
	if !domain.ValidPaymentMethod(paymentMethod) {
		return domain.Order{}, &domain.ValidationError{Field: "payment_method", Reason: "unsupported payment method"}
	}

	lines := crt.Lines()
	req := domain.PlacementRequest{
		RestaurantID:    restaurant.ID,
		DeliveryAddress: deliveryAddress,
		PaymentMethod:   string(paymentMethod),
		Items:           make([]domain.PlacementItem, len(lines)),
	}
	for i, l := range lines {
		req.Items[i] = domain.PlacementItem{
			MenuItemID:          l.MenuItemID,
			Quantity:            l.Quantity,
			SpecialInstructions: l.SpecialInstructions,
		}
	}

	order, err := d.transport.PlaceOrder(ctx, req)
	if err != nil {
		return domain.Order{}, err
	}

	d.mu.Lock()
	d.own = append([]domain.Order{order}, d.own...)
	d.mu.Unlock()
	crt.Clear(ctx)

	d.lg.Info("order_placed", map[string]any{"order_id": order.ID, "total": order.Total.String()})
	return order, nil
}

// RequestStatusChange validates the transition locally, applies it
// optimistically, submits it, and rolls the optimistic change back if the
// server rejects it.
func (d *Dispatcher) RequestStatusChange(ctx context.Context, orderID string, newStatus domain.Status, actor auth.Actor) error {
	if !actor.IsAdmin() {
		return &domain.AuthorizationError{Actor: actor.UserID, Capability: "order:update-status"}
	}

	d.mu.Lock()
	cached, ok := d.lookup(orderID)
	d.mu.Unlock()
	if !ok {
		return &domain.SubmissionError{Op: "status change", NotFound: true,
			Err: fmt.Errorf("order %s not in local cache", orderID)}
	}
	if _, err := state.ApplyTransition(cached, newStatus); err != nil {
		return err
	}

	prior := cached.Status
	d.applyStatus(orderID, newStatus)

	confirmed, err := d.transport.UpdateStatus(ctx, orderID, newStatus)
	if err != nil {
		d.applyStatus(orderID, prior)
		d.lg.Error("status_change_rejected", err, map[string]any{
			"order_id": orderID, "rolled_back_to": string(prior),
		})
		return err
	}
	// the server response is canonical; usually identical to the
	// optimistic state
	d.applyStatus(orderID, confirmed.Status)
	return nil
}

// OnOrderStatusUpdate is the authoritative path for status changes made by
// other actors. Idempotent: re-applying the same (orderID, status) pair
// leaves the cache unchanged, which is the defense against duplicate
// delivery after a reconnect.
func (d *Dispatcher) OnOrderStatusUpdate(orderID string, status domain.Status) {
	d.applyStatus(orderID, status)
}

// OnNewOrder prepends the order to the admin-facing cache unless an order
// with the same id is already present.
func (d *Dispatcher) OnNewOrder(order domain.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.all {
		if d.all[i].ID == order.ID {
			return
		}
	}
	d.all = append([]domain.Order{order}, d.all...)
}

// FetchOwnOrders repopulates the caller's cache from the server.
func (d *Dispatcher) FetchOwnOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := d.transport.FetchOwnOrders(ctx)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.own = orders
	d.mu.Unlock()
	return d.OwnOrders(), nil
}

// FetchAllOrders repopulates the admin cache from the server.
func (d *Dispatcher) FetchAllOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := d.transport.FetchAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.all = orders
	d.mu.Unlock()
	return d.AllOrders(), nil
}

func (d *Dispatcher) OwnOrders() []domain.Order {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Order, len(d.own))
	copy(out, d.own)
	return out
}

func (d *Dispatcher) AllOrders() []domain.Order {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Order, len(d.all))
	copy(out, d.all)
	return out
}

// lookup must be called with the mutex held.
func (d *Dispatcher) lookup(orderID string) (domain.Order, bool) {
	for i := range d.own {
		if d.own[i].ID == orderID {
			return d.own[i], true
		}
	}
	for i := range d.all {
		if d.all[i].ID == orderID {
			return d.all[i], true
		}
	}
	return domain.Order{}, false
}

// applyStatus replaces the status of the cached order in both views. A
// matching status is a no-op so the timestamp does not churn on duplicate
// events; an unknown id is a no-op entirely.
func (d *Dispatcher) applyStatus(orderID string, status domain.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now().UTC()
	for _, cache := range [][]domain.Order{d.own, d.all} {
		for i := range cache {
			if cache[i].ID == orderID && cache[i].Status != status {
				cache[i].Status = status
				cache[i].UpdatedAt = now
			}
		}
	}
}
