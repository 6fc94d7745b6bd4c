// Package cart maintains the client-local active cart. A cart is scoped to
// exactly one restaurant: adding an item from a different restaurant clears
// the existing lines first (last-writer-wins, no merge).
package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chowline/internal/domain"
	"chowline/internal/logger"
)

// Aggregator enforces the single-restaurant invariant and keeps totals
// consistent across mutations. Every mutating call persists the new
// snapshot through the Store; persistence failures are logged and never
// block the in-memory mutation.
type Aggregator struct {
	userID       string
	restaurantID string
	lines        []domain.CartLine
	store        Store
	lg           *logger.Logger
}

func New(userID string, store Store, lg *logger.Logger) *Aggregator {
	return &Aggregator{userID: userID, store: store, lg: lg}
}

// Restore replaces the in-memory cart with the persisted snapshot, if one
// exists. Called on session start.
func (a *Aggregator) Restore(ctx context.Context) error {
	snap, ok, err := a.store.Load(ctx, a.userID)
	if err != nil {
		return err
	}
	if ok {
		a.restaurantID = snap.RestaurantID
		a.lines = snap.Lines
	}
	return nil
}

// AddLine puts an item in the cart. A non-empty cart belonging to a
// different restaurant is cleared first. If a line for the same menu item
// already exists its quantity grows and the instructions are replaced only
// when new ones are supplied.
func (a *Aggregator) AddLine(ctx context.Context, item domain.MenuItem, quantity int, instructions string) error {
	if quantity <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	if len(a.lines) > 0 && a.restaurantID != item.RestaurantID {
		a.lines = nil
	}
	a.restaurantID = item.RestaurantID

	for i := range a.lines {
		if a.lines[i].MenuItemID == item.ID {
			a.lines[i].Quantity += quantity
			if instructions != "" {
				a.lines[i].SpecialInstructions = instructions
			}
			a.persist(ctx)
			return nil
		}
	}

	a.lines = append(a.lines, domain.CartLine{
		LineID:              uuid.NewString(),
		MenuItemID:          item.ID,
		Name:                item.Name,
		UnitPrice:           item.UnitPrice,
		Quantity:            quantity,
		SpecialInstructions: instructions,
	})
	a.persist(ctx)
	return nil
}

// UpdateLine replaces quantity and instructions in place. A quantity of
// zero or less removes the line.
func (a *Aggregator) UpdateLine(ctx context.Context, lineID string, quantity int, instructions string) {
	if quantity <= 0 {
		a.RemoveLine(ctx, lineID)
		return
	}
	for i := range a.lines {
		if a.lines[i].LineID == lineID {
			a.lines[i].Quantity = quantity
			a.lines[i].SpecialInstructions = instructions
			a.persist(ctx)
			return
		}
	}
}

// RemoveLine is idempotent: removing an absent line is a no-op.
func (a *Aggregator) RemoveLine(ctx context.Context, lineID string) {
	for i := range a.lines {
		if a.lines[i].LineID == lineID {
			a.lines = append(a.lines[:i], a.lines[i+1:]...)
			a.persist(ctx)
			return
		}
	}
}

func (a *Aggregator) Clear(ctx context.Context) {
	a.lines = nil
	a.restaurantID = ""
	a.persist(ctx)
}

// Total sums unitPrice * quantity over the current lines.
func (a *Aggregator) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range a.lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (a *Aggregator) RestaurantID() string { return a.restaurantID }

func (a *Aggregator) IsEmpty() bool { return len(a.lines) == 0 }

// Lines returns a copy; callers cannot mutate the cart through it.
func (a *Aggregator) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(a.lines))
	copy(out, a.lines)
	return out
}

func (a *Aggregator) Snapshot() domain.CartSnapshot {
	return domain.CartSnapshot{RestaurantID: a.restaurantID, Lines: a.Lines()}
}

func (a *Aggregator) persist(ctx context.Context) {
	if err := a.store.Save(ctx, a.userID, a.Snapshot()); err != nil {
		a.lg.Error("cart_persist_failed", err, map[string]any{"user_id": a.userID})
	}
}
