// Package preferences manages saved order-form defaults.
package preferences

import (
	"context"
	"errors"

	"github.com/omnilaze/universal/internal/app/domain/preference"
	"github.com/omnilaze/universal/internal/app/storage"
	"github.com/omnilaze/universal/pkg/logger"
)

// Errors callers can branch on.
var (
	ErrUserRequired    = errors.New("user_id is required")
	ErrAddressRequired = errors.New("default address is required")
	ErrNotFound        = errors.New("preferences not found")
)

// Service manages per-user order-form defaults.
type Service struct {
	store storage.PreferenceStore
	log   *logger.Logger
}

// New constructs a preferences service.
func New(store storage.PreferenceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("preferences")
	}
	return &Service{store: store, log: log}
}

// Save stores the full set of defaults, replacing any previous record.
func (s *Service) Save(ctx context.Context, p preference.Preferences) (preference.Preferences, error) {
	if p.UserID == "" {
		return preference.Preferences{}, ErrUserRequired
	}
	if p.DefaultAddress == "" {
		return preference.Preferences{}, ErrAddressRequired
	}
	return s.store.UpsertPreferences(ctx, p)
}

// Get returns the user's saved defaults. ErrNotFound when nothing has
// been saved yet.
func (s *Service) Get(ctx context.Context, userID string) (preference.Preferences, error) {
	if userID == "" {
		return preference.Preferences{}, ErrUserRequired
	}
	p, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return preference.Preferences{}, ErrNotFound
	}
	return p, err
}

// Update applies a partial change to an existing record; nil fields of
// upd are left as they were. ErrNotFound when nothing has been saved.
func (s *Service) Update(ctx context.Context, userID string, upd preference.Update) (preference.Preferences, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return preference.Preferences{}, err
	}

	if upd.DefaultAddress != nil {
		p.DefaultAddress = *upd.DefaultAddress
	}
	if upd.DefaultFoodTypes != nil {
		p.DefaultFoodTypes = upd.DefaultFoodTypes
	}
	if upd.DefaultAllergies != nil {
		p.DefaultAllergies = upd.DefaultAllergies
	}
	if upd.DefaultPreferences != nil {
		p.DefaultPreferences = upd.DefaultPreferences
	}
	if upd.DefaultBudget != nil {
		p.DefaultBudget = *upd.DefaultBudget
	}
	if upd.OtherAllergyText != nil {
		p.OtherAllergyText = *upd.OtherAllergyText
	}
	if upd.OtherPreferenceText != nil {
		p.OtherPreferenceText = *upd.OtherPreferenceText
	}
	if upd.AddressSuggestion != nil {
		p.AddressSuggestion = upd.AddressSuggestion
	}

	return s.store.UpsertPreferences(ctx, p)
}

// Delete removes the user's saved defaults. ErrNotFound when nothing
// has been saved.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	err := s.store.DeletePreferences(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Completeness reports whether the saved defaults can prefill an order
// on their own. A user with no record is simply incomplete.
func (s *Service) Completeness(ctx context.Context, userID string) (preference.Preferences, bool, error) {
	p, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return preference.Preferences{}, false, nil
	}
	if err != nil {
		return preference.Preferences{}, false, err
	}
	return p, p.Complete(), nil
}
