package domain

// PlacementRequest is the body of POST /orders. Prices are intentionally
// absent: the server reads them from the catalog, never from the client.
type PlacementRequest struct {
	RestaurantID    string          `json:"restaurant_id" validate:"required"`
	DeliveryAddress string          `json:"delivery_address" validate:"required"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=mobile-money cash"`
	Items           []PlacementItem `json:"items" validate:"required,min=1,dive"`
}

type PlacementItem struct {
	MenuItemID          string `json:"menu_item_id" validate:"required"`
	Quantity            int    `json:"quantity" validate:"required,gt=0"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// StatusChangeRequest is the body of PUT /orders/{id}/status.
type StatusChangeRequest struct {
	Status Status `json:"status"`
}
