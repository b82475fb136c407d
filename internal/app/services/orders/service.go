// Package orders manages the order lifecycle: draft creation,
// submission and post-delivery feedback.
package orders

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/omnilaze/universal/internal/app/domain/order"
	"github.com/omnilaze/universal/internal/app/storage"
	"github.com/omnilaze/universal/pkg/logger"
)

// Errors callers can branch on.
var (
	ErrUserRequired    = errors.New("user_id and phone_number are required")
	ErrAddressRequired = errors.New("delivery address is required")
	ErrInvalidBudget   = errors.New("budget must be a non-negative number")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrOrderNotFound   = errors.New("order not found")
)

// Service manages orders for registered users.
type Service struct {
	store storage.OrderStore
	users storage.UserStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs an order service.
func New(store storage.OrderStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{
		store: store,
		users: users,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the order form and stores a draft order. The budget
// arrives as the raw client value; zero is a valid budget, negative or
// non-numeric values are not.
func (s *Service) Create(ctx context.Context, userID, phone string, form order.FormData) (order.Order, error) {
	if userID == "" || phone == "" {
		return order.Order{}, ErrUserRequired
	}
	if form.Address == "" {
		return order.Order{}, ErrAddressRequired
	}
	budget, err := parseBudget(form.Budget)
	if err != nil {
		return order.Order{}, err
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); errors.Is(err, storage.ErrNotFound) {
			return order.Order{}, ErrUserRequired
		} else if err != nil {
			return order.Order{}, err
		}
	}

	o, err := s.store.CreateOrder(ctx, order.Order{
		UserID:              userID,
		PhoneNumber:         phone,
		Status:              order.StatusDraft,
		DeliveryAddress:     form.Address,
		DietaryRestrictions: form.Allergies,
		FoodPreferences:     form.Preferences,
		BudgetAmount:        budget,
		BudgetCurrency:      order.DefaultCurrency,
	})
	if err != nil {
		return order.Order{}, err
	}

	s.log.WithField("order_id", o.ID).WithField("order_number", o.OrderNumber).Info("order created")
	return o, nil
}

// Submit moves the order to submitted and stamps the submission time.
// Submitting an already submitted order restamps it.
func (s *Service) Submit(ctx context.Context, orderID string) (order.Order, error) {
	if orderID == "" {
		return order.Order{}, ErrOrderNotFound
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return order.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return order.Order{}, err
	}

	o.Status = order.StatusSubmitted
	o.SubmittedAt = s.now()

	updated, err := s.store.UpdateOrder(ctx, o)
	if errors.Is(err, storage.ErrNotFound) {
		return order.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return order.Order{}, err
	}

	s.log.WithField("order_number", updated.OrderNumber).Info("order submitted")
	return updated, nil
}

// RecordFeedback attaches a 1-5 rating and optional comment to the
// order. Feedback can be revised; the latest submission wins.
func (s *Service) RecordFeedback(ctx context.Context, orderID string, rating int, feedback string) (order.Order, error) {
	if orderID == "" {
		return order.Order{}, ErrOrderNotFound
	}
	if rating < 1 || rating > 5 {
		return order.Order{}, ErrInvalidRating
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return order.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return order.Order{}, err
	}

	o.Rating = rating
	o.Feedback = feedback
	o.FeedbackAt = s.now()

	updated, err := s.store.UpdateOrder(ctx, o)
	if errors.Is(err, storage.ErrNotFound) {
		return order.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return order.Order{}, err
	}

	s.log.WithField("order_id", orderID).WithField("rating", rating).Info("order feedback recorded")
	return updated, nil
}

// List returns the user's live orders, most recent first.
func (s *Service) List(ctx context.Context, userID string) ([]order.Order, error) {
	return s.store.ListOrders(ctx, userID)
}

// parseBudget accepts a decimal string. Missing budgets are rejected;
// zero is allowed.
func parseBudget(raw string) (float64, error) {
	if raw == "" {
		return 0, ErrInvalidBudget
	}
	budget, err := strconv.ParseFloat(raw, 64)
	if err != nil || budget < 0 {
		return 0, ErrInvalidBudget
	}
	return budget, nil
}
