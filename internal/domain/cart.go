package domain

import "github.com/shopspring/decimal"

// CartLine is owned exclusively by the active cart and is destroyed on
// order placement or explicit removal.
type CartLine struct {
	LineID              string          `json:"line_id"`
	MenuItemID          string          `json:"menu_item_id"`
	Name                string          `json:"name"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
}

// MenuItem is the read-only catalog view a cart line is built from.
type MenuItem struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// CartSnapshot is the persisted form of a cart. All lines reference the
// same restaurant.
type CartSnapshot struct {
	RestaurantID string     `json:"restaurant_id"`
	Lines        []CartLine `json:"lines"`
}
