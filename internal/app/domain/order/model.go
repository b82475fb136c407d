package order

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusDraft is the state of a freshly created order.
	StatusDraft Status = "draft"
	// StatusSubmitted marks an order handed off for fulfilment.
	StatusSubmitted Status = "submitted"
)

// DefaultCurrency is applied to every order budget.
const DefaultCurrency = "CNY"

// Order is a food order. OrderNumber is a human-readable identifier of
// the form ORD<YYYYMMDD><seq>, where seq counts orders created that
// day. UserSequence counts the user's own orders starting at 1.
type Order struct {
	ID                  string
	OrderNumber         string
	UserID              string
	PhoneNumber         string
	Status              Status
	UserSequence        int64
	DeliveryAddress     string
	DietaryRestrictions []string
	FoodPreferences     []string
	BudgetAmount        float64
	BudgetCurrency      string
	Rating              int
	Feedback            string
	IsDeleted           bool
	CreatedAt           time.Time
	SubmittedAt         time.Time
	FeedbackAt          time.Time
	UpdatedAt           time.Time
}

// FormData is the order form as captured from the client. Budget is
// kept as the raw client value and validated when the order is created.
type FormData struct {
	Address     string
	Budget      string
	Allergies   []string
	Preferences []string
}
