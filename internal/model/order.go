package model

import "time"

// OrderStatus describes the purchase lifecycle:
// pending -> processing -> completed, with failed reachable from
// any non-terminal state.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
)

// OrderStatuses lists every known status in lifecycle order.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderCompleted, OrderFailed}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is expected.
func (s OrderStatus) IsTerminal() bool { return s == OrderCompleted || s == OrderFailed }

// OrderFile is metadata of a file attached to an order. Content
// lives in the upload store; only the reference is persisted.
type OrderFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
}

// Order is a purchase of a service item, stored in the `orders`
// table. UserName and UserEmail are denormalized from the owning
// user at creation time.
type Order struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	UserName          string      `json:"userName"`
	UserEmail         string      `json:"userEmail"`
	ItemName          string      `json:"itemName"`
	Price             float64     `json:"price"`
	Type              string      `json:"type"`
	Features          []string    `json:"features,omitempty"`
	ArticleText       string      `json:"articleText,omitempty"`
	File              *OrderFile  `json:"file,omitempty"`
	Message           string      `json:"message,omitempty"`
	Status            OrderStatus `json:"status"`
	CompletionMessage string      `json:"completionMessage,omitempty"`
	CompletionLink    string      `json:"completionLink,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	SubmittedAt       *time.Time  `json:"submittedAt,omitempty"`
	CompletedAt       *time.Time  `json:"completedAt,omitempty"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// OrderStats aggregates orders matching an optional user filter.
type OrderStats struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Processing        int     `json:"processing"`
	Completed         int     `json:"completed"`
	Failed            int     `json:"failed"`
	TotalRevenue      float64 `json:"totalRevenue"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}
