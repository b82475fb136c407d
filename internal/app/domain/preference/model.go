package preference

import "time"

// Preferences holds a user's saved order-form defaults. AddressSuggestion
// is an opaque client blob (map structure chosen by the frontend) stored
// and returned verbatim.
type Preferences struct {
	UserID              string
	DefaultAddress      string
	DefaultFoodTypes    []string
	DefaultAllergies    []string
	DefaultPreferences  []string
	DefaultBudget       string
	OtherAllergyText    string
	OtherPreferenceText string
	AddressSuggestion   map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Complete reports whether the saved defaults are sufficient to prefill
// an order without further input: an address, a budget and at least one
// food type.
func (p Preferences) Complete() bool {
	return p.DefaultAddress != "" && p.DefaultBudget != "" && len(p.DefaultFoodTypes) > 0
}

// Update is a partial change to saved preferences; nil fields are left
// untouched.
type Update struct {
	DefaultAddress      *string
	DefaultFoodTypes    []string
	DefaultAllergies    []string
	DefaultPreferences  []string
	DefaultBudget       *string
	OtherAllergyText    *string
	OtherPreferenceText *string
	AddressSuggestion   map[string]any
}
