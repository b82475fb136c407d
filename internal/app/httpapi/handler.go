// Package httpapi exposes the application services as a JSON HTTP API.
//
// Every failure response carries the envelope {"success": false,
// "message": "..."}; success responses set "success": true alongside
// the endpoint's payload.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/omnilaze/universal/internal/app"
	"github.com/omnilaze/universal/internal/app/domain/order"
	"github.com/omnilaze/universal/internal/app/domain/preference"
	"github.com/omnilaze/universal/internal/app/metrics"
	orderssvc "github.com/omnilaze/universal/internal/app/services/orders"
	preferencessvc "github.com/omnilaze/universal/internal/app/services/preferences"
	rewardssvc "github.com/omnilaze/universal/internal/app/services/rewards"
	userssvc "github.com/omnilaze/universal/internal/app/services/users"
	verificationsvc "github.com/omnilaze/universal/internal/app/services/verification"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/send-verification-code", h.sendVerificationCode).Methods(http.MethodPost)
	r.HandleFunc("/login-with-phone", h.loginWithPhone).Methods(http.MethodPost)
	r.HandleFunc("/verify-invite-code", h.verifyInviteCode).Methods(http.MethodPost)

	r.HandleFunc("/create-order", h.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/submit-order", h.submitOrder).Methods(http.MethodPost)
	r.HandleFunc("/order-feedback", h.orderFeedback).Methods(http.MethodPost)
	r.HandleFunc("/orders/{user_id}", h.listOrders).Methods(http.MethodGet)

	r.HandleFunc("/get-user-invite-stats", h.inviteStats).Methods(http.MethodGet)
	r.HandleFunc("/get-invite-progress", h.inviteProgress).Methods(http.MethodGet)
	r.HandleFunc("/claim-free-drink", h.claimFreeDrink).Methods(http.MethodPost)
	r.HandleFunc("/free-drinks-remaining", h.freeDrinksRemaining).Methods(http.MethodGet)

	r.HandleFunc("/preferences", h.savePreferences).Methods(http.MethodPost)
	r.HandleFunc("/preferences/{user_id}", h.getPreferences).Methods(http.MethodGet)
	r.HandleFunc("/preferences/{user_id}", h.updatePreferences).Methods(http.MethodPut)
	r.HandleFunc("/preferences/{user_id}", h.deletePreferences).Methods(http.MethodDelete)
	r.HandleFunc("/preferences/{user_id}/complete", h.preferencesComplete).Methods(http.MethodGet)
	r.HandleFunc("/preferences/{user_id}/form-data", h.preferencesFormData).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, false, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, false, "method not allowed")
	})

	return r
}

// --- auth flow ---------------------------------------------------------------

func (h *handler) sendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	code, err := h.app.Verification.Issue(r.Context(), payload.PhoneNumber)
	if err != nil {
		metrics.RecordVerificationCode("error")
		writeError(w, err)
		return
	}
	metrics.RecordVerificationCode("sent")

	resp := map[string]any{
		"success": true,
		"message": "verification code sent",
	}
	if h.app.Verification.DevelopmentMode() {
		resp["message"] = "development mode: use the fixed verification code"
		resp["dev_code"] = code.Code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) loginWithPhone(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PhoneNumber      string `json:"phone_number"`
		VerificationCode string `json:"verification_code"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	if err := h.app.Verification.Verify(r.Context(), payload.PhoneNumber, payload.VerificationCode); err != nil {
		metrics.RecordVerificationCheck("failed")
		writeError(w, err)
		return
	}
	metrics.RecordVerificationCheck("ok")

	u, err := h.app.Users.Lookup(r.Context(), payload.PhoneNumber)
	if errors.Is(err, userssvc.ErrUserNotFound) {
		// Phone verified but not registered: the client proceeds to
		// invite code verification.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"message":      "phone verified; invite code required",
			"user_id":      nil,
			"phone_number": payload.PhoneNumber,
			"is_new_user":  true,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "login successful",
		"user_id":       u.ID,
		"phone_number":  u.PhoneNumber,
		"is_new_user":   false,
		"user_sequence": u.Sequence,
	})
}

func (h *handler) verifyInviteCode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PhoneNumber string `json:"phone_number"`
		InviteCode  string `json:"invite_code"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	u, err := h.app.Users.RedeemInvite(r.Context(), payload.PhoneNumber, payload.InviteCode)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"message":          "invite code verified; account created",
		"user_id":          u.ID,
		"phone_number":     u.PhoneNumber,
		"user_invite_code": u.PersonalInviteCode,
		"user_sequence":    u.Sequence,
	})
}

// --- orders ------------------------------------------------------------------

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID      string `json:"user_id"`
		PhoneNumber string `json:"phone_number"`
		FormData    struct {
			Address     string   `json:"address"`
			Budget      any      `json:"budget"`
			Allergies   []string `json:"allergies"`
			Preferences []string `json:"preferences"`
		} `json:"form_data"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	o, err := h.app.Orders.Create(r.Context(), payload.UserID, payload.PhoneNumber, order.FormData{
		Address:     payload.FormData.Address,
		Budget:      rawBudget(payload.FormData.Budget),
		Allergies:   payload.FormData.Allergies,
		Preferences: payload.FormData.Preferences,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordOrderCreated()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"message":              "order created",
		"order_id":             o.ID,
		"order_number":         o.OrderNumber,
		"user_sequence_number": o.UserSequence,
	})
}

func (h *handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OrderID string `json:"order_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	o, err := h.app.Orders.Submit(r.Context(), payload.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "order submitted",
		"order_number": o.OrderNumber,
	})
}

func (h *handler) orderFeedback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OrderID  string `json:"order_id"`
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	if _, err := h.app.Orders.RecordFeedback(r.Context(), payload.OrderID, payload.Rating, payload.Feedback); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, true, "feedback recorded")
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	orders, err := h.app.Orders.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  views,
		"count":   len(views),
	})
}

func orderView(o order.Order) map[string]any {
	view := map[string]any{
		"id":                   o.ID,
		"order_number":         o.OrderNumber,
		"user_id":              o.UserID,
		"phone_number":         o.PhoneNumber,
		"status":               string(o.Status),
		"user_sequence_number": o.UserSequence,
		"delivery_address":     o.DeliveryAddress,
		"dietary_restrictions": o.DietaryRestrictions,
		"food_preferences":     o.FoodPreferences,
		"budget_amount":        o.BudgetAmount,
		"budget_currency":      o.BudgetCurrency,
		"created_at":           o.CreatedAt.Format(time.RFC3339),
	}
	if !o.SubmittedAt.IsZero() {
		view["submitted_at"] = o.SubmittedAt.Format(time.RFC3339)
	}
	if o.Rating != 0 {
		view["rating"] = o.Rating
		view["feedback"] = o.Feedback
	}
	return view
}

// --- referral rewards --------------------------------------------------------

func (h *handler) inviteStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Rewards.Stats(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	remaining, err := h.app.Rewards.Remaining(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":                 true,
		"user_invite_code":        stats.InviteCode,
		"current_uses":            stats.CurrentUses,
		"max_uses":                stats.MaxUses,
		"remaining_uses":          stats.RemainingUses,
		"eligible_for_free_drink": stats.Eligible,
		"free_drink_claimed":      stats.Claimed,
		"free_drinks_remaining":   remaining,
	})
}

func (h *handler) inviteProgress(w http.ResponseWriter, r *http.Request) {
	views, err := h.app.Rewards.Progress(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	invitations := make([]map[string]any, 0, len(views))
	for _, v := range views {
		invitations = append(invitations, map[string]any{
			"masked_phone": v.MaskedPhone,
			"invited_at":   v.InvitedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"invitations":       invitations,
		"total_invitations": len(invitations),
	})
}

func (h *handler) claimFreeDrink(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	remaining, err := h.app.Rewards.Claim(r.Context(), payload.UserID)
	if err != nil {
		metrics.RecordRewardClaim("rejected")
		writeError(w, err)
		return
	}
	metrics.RecordRewardClaim("ok")

	writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"message":               "free drink claimed",
		"free_drinks_remaining": remaining,
	})
}

func (h *handler) freeDrinksRemaining(w http.ResponseWriter, r *http.Request) {
	remaining, err := h.app.Rewards.Remaining(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"free_drinks_remaining": remaining,
	})
}

// --- preferences -------------------------------------------------------------

func (h *handler) savePreferences(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID              string         `json:"user_id"`
		DefaultAddress      string         `json:"default_address"`
		DefaultFoodTypes    []string       `json:"default_food_type"`
		DefaultAllergies    []string       `json:"default_allergies"`
		DefaultPreferences  []string       `json:"default_preferences"`
		DefaultBudget       string         `json:"default_budget"`
		OtherAllergyText    string         `json:"other_allergy_text"`
		OtherPreferenceText string         `json:"other_preference_text"`
		AddressSuggestion   map[string]any `json:"address_suggestion"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	p, err := h.app.Preferences.Save(r.Context(), preference.Preferences{
		UserID:              payload.UserID,
		DefaultAddress:      payload.DefaultAddress,
		DefaultFoodTypes:    payload.DefaultFoodTypes,
		DefaultAllergies:    payload.DefaultAllergies,
		DefaultPreferences:  payload.DefaultPreferences,
		DefaultBudget:       payload.DefaultBudget,
		OtherAllergyText:    payload.OtherAllergyText,
		OtherPreferenceText: payload.OtherPreferenceText,
		AddressSuggestion:   payload.AddressSuggestion,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "preferences saved",
		"preferences": preferenceView(p),
	})
}

func (h *handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Preferences.Get(r.Context(), mux.Vars(r)["user_id"])
	if errors.Is(err, preferencessvc.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"has_preferences": false,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"has_preferences": true,
		"preferences":     preferenceView(p),
	})
}

func (h *handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DefaultAddress      *string        `json:"default_address"`
		DefaultFoodTypes    []string       `json:"default_food_type"`
		DefaultAllergies    []string       `json:"default_allergies"`
		DefaultPreferences  []string       `json:"default_preferences"`
		DefaultBudget       *string        `json:"default_budget"`
		OtherAllergyText    *string        `json:"other_allergy_text"`
		OtherPreferenceText *string        `json:"other_preference_text"`
		AddressSuggestion   map[string]any `json:"address_suggestion"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	p, err := h.app.Preferences.Update(r.Context(), mux.Vars(r)["user_id"], preference.Update{
		DefaultAddress:      payload.DefaultAddress,
		DefaultFoodTypes:    payload.DefaultFoodTypes,
		DefaultAllergies:    payload.DefaultAllergies,
		DefaultPreferences:  payload.DefaultPreferences,
		DefaultBudget:       payload.DefaultBudget,
		OtherAllergyText:    payload.OtherAllergyText,
		OtherPreferenceText: payload.OtherPreferenceText,
		AddressSuggestion:   payload.AddressSuggestion,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "preferences updated",
		"preferences": preferenceView(p),
	})
}

func (h *handler) deletePreferences(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Preferences.Delete(r.Context(), mux.Vars(r)["user_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "preferences deleted")
}

func (h *handler) preferencesComplete(w http.ResponseWriter, r *http.Request) {
	_, complete, err := h.app.Preferences.Completeness(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"complete": complete,
	})
}

// preferencesFormData projects saved defaults into the shape the order
// form consumes directly.
func (h *handler) preferencesFormData(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Preferences.Get(r.Context(), mux.Vars(r)["user_id"])
	if errors.Is(err, preferencessvc.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"form_data": nil,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"form_data": map[string]any{
			"address":             p.DefaultAddress,
			"budget":              p.DefaultBudget,
			"foodType":            p.DefaultFoodTypes,
			"allergies":           p.DefaultAllergies,
			"preferences":         p.DefaultPreferences,
			"otherAllergyText":    p.OtherAllergyText,
			"otherPreferenceText": p.OtherPreferenceText,
			"addressSuggestion":   p.AddressSuggestion,
		},
	})
}

// --- health ------------------------------------------------------------------

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	remaining, err := h.app.Rewards.Remaining(r.Context())
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, false, "health check failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "healthy",
		"development_mode":      h.app.DevelopmentMode(),
		"free_drinks_remaining": remaining,
	})
}

// --- helpers -----------------------------------------------------------------

// rawBudget normalizes the client's budget value (number or string) to
// its decimal string form for validation downstream.
func rawBudget(v any) string {
	switch b := v.(type) {
	case nil:
		return ""
	case string:
		return b
	case float64:
		return fmt.Sprintf("%g", b)
	case json.Number:
		return b.String()
	default:
		return fmt.Sprintf("%v", b)
	}
}

// decodeJSON tolerates unknown fields: clients ship form state with
// extra keys the API has no use for.
func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dst)
}

func preferenceView(p preference.Preferences) map[string]any {
	return map[string]any{
		"user_id":               p.UserID,
		"default_address":       p.DefaultAddress,
		"default_food_type":     p.DefaultFoodTypes,
		"default_allergies":     p.DefaultAllergies,
		"default_preferences":   p.DefaultPreferences,
		"default_budget":        p.DefaultBudget,
		"other_allergy_text":    p.OtherAllergyText,
		"other_preference_text": p.OtherPreferenceText,
		"address_suggestion":    p.AddressSuggestion,
		"updated_at":            p.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, map[string]any{
		"success": success,
		"message": message,
	})
}

// writeError maps service errors onto HTTP statuses: validation and
// business rejections are 400, missing records 404, transport and
// storage faults 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, verificationsvc.ErrInvalidPhone),
		errors.Is(err, verificationsvc.ErrInvalidCodeFormat),
		errors.Is(err, verificationsvc.ErrCodeNotFound),
		errors.Is(err, verificationsvc.ErrCodeExpired),
		errors.Is(err, verificationsvc.ErrCodeMismatch),
		errors.Is(err, userssvc.ErrInvalidPhone),
		errors.Is(err, userssvc.ErrInviteCodeRequired),
		errors.Is(err, userssvc.ErrInvalidInviteCode),
		errors.Is(err, orderssvc.ErrUserRequired),
		errors.Is(err, orderssvc.ErrAddressRequired),
		errors.Is(err, orderssvc.ErrInvalidBudget),
		errors.Is(err, orderssvc.ErrInvalidRating),
		errors.Is(err, rewardssvc.ErrAlreadyClaimed),
		errors.Is(err, rewardssvc.ErrNotEligible),
		errors.Is(err, rewardssvc.ErrPoolExhausted),
		errors.Is(err, preferencessvc.ErrUserRequired),
		errors.Is(err, preferencessvc.ErrAddressRequired):
		status = http.StatusBadRequest
	case errors.Is(err, userssvc.ErrUserNotFound),
		errors.Is(err, orderssvc.ErrOrderNotFound),
		errors.Is(err, rewardssvc.ErrUserNotFound),
		errors.Is(err, preferencessvc.ErrNotFound):
		status = http.StatusNotFound
	}
	writeMessage(w, status, false, err.Error())
}
