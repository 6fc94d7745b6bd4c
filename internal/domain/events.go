package domain

import (
	"encoding/json"
	"time"
)

// Frame is the wire envelope carried on every push channel.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type OrderStatusUpdate struct {
	OrderID   string    `json:"order_id"`
	OldStatus Status    `json:"old_status"`
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

type NewOrderEvent struct {
	Order Order `json:"order"`
}

type Notification struct {
	UserID    string    `json:"user_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type AnalyticsUpdate struct {
	TotalOrders   int               `json:"total_orders"`
	CountByStatus map[Status]int    `json:"count_by_status"`
	Revenue       string            `json:"revenue"`
	Extra         map[string]string `json:"extra,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

type AuditLogUpdate struct {
	OrderID   string    `json:"order_id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
