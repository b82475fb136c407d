package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	"github.com/omnilaze/universal/internal/app/domain/order"
	"github.com/omnilaze/universal/internal/app/domain/preference"
	"github.com/omnilaze/universal/internal/app/domain/reward"
	"github.com/omnilaze/universal/internal/app/domain/user"
	"github.com/omnilaze/universal/internal/app/domain/verification"
	"github.com/omnilaze/universal/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Every
// counter update is a single conditional statement (or a short
// transaction for the reward claim), so concurrent callers serialize on
// the row rather than racing in application code.
type Store struct {
	db *sql.DB
}

var _ storage.VerificationStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.InviteStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.RewardStore = (*Store)(nil)
var _ storage.PreferenceStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrAlreadyExists
	}
	return err
}

// --- VerificationStore -------------------------------------------------------

func (s *Store) UpsertCode(ctx context.Context, code verification.Code) (verification.Code, error) {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	code.Used = false

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_codes (phone_number, code, expires_at, used, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (phone_number)
		DO UPDATE SET code = $2, expires_at = $3, used = FALSE, created_at = $4
	`, code.PhoneNumber, code.Code, code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return verification.Code{}, mapErr(err)
	}
	return code, nil
}

func (s *Store) GetCode(ctx context.Context, phone string) (verification.Code, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT phone_number, code, expires_at, used, created_at
		FROM verification_codes
		WHERE phone_number = $1
	`, phone)

	var code verification.Code
	if err := row.Scan(&code.PhoneNumber, &code.Code, &code.ExpiresAt, &code.Used, &code.CreatedAt); err != nil {
		return verification.Code{}, mapErr(err)
	}
	return code, nil
}

func (s *Store) ConsumeCode(ctx context.Context, phone string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE verification_codes
		SET used = TRUE
		WHERE phone_number = $1 AND used = FALSE
	`, phone)
	if err != nil {
		return false, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 1 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM verification_codes WHERE phone_number = $1)
	`, phone).Scan(&exists)
	if err != nil {
		return false, mapErr(err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

func (s *Store) DeleteExpiredCodes(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM verification_codes WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, mapErr(err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, phone_number, invite_code, personal_invite_code, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING user_sequence
	`, u.ID, u.PhoneNumber, u.InviteCode, u.PersonalInviteCode, u.CreatedAt).Scan(&u.Sequence)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, user_sequence, invite_code, personal_invite_code, created_at
		FROM users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, user_sequence, invite_code, personal_invite_code, created_at
		FROM users
		WHERE phone_number = $1
	`, phone))
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.PhoneNumber, &u.Sequence, &u.InviteCode, &u.PersonalInviteCode, &u.CreatedAt); err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

// --- InviteStore -------------------------------------------------------------

func (s *Store) CreateInviteCode(ctx context.Context, c invite.Code) (invite.Code, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invite_codes (code, invite_type, max_uses, current_uses, owner_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.Code, c.Type, c.MaxUses, c.CurrentUses, nullString(c.OwnerUserID), c.CreatedAt)
	if err != nil {
		return invite.Code{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) GetInviteCode(ctx context.Context, code string) (invite.Code, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT code, invite_type, max_uses, current_uses, owner_user_id, last_used_by, last_used_at, created_at
		FROM invite_codes
		WHERE code = $1
	`, code)
	return scanInviteCode(row)
}

func (s *Store) RedeemInviteCode(ctx context.Context, code, redeemerPhone string) (invite.Code, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE invite_codes
		SET current_uses = current_uses + 1, last_used_by = $2, last_used_at = $3
		WHERE code = $1 AND current_uses < max_uses
		RETURNING code, invite_type, max_uses, current_uses, owner_user_id, last_used_by, last_used_at, created_at
	`, code, redeemerPhone, time.Now().UTC())

	c, err := scanInviteCode(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return invite.Code{}, err
	}

	// The conditional update missed: distinguish unknown from spent.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM invite_codes WHERE code = $1)
	`, code).Scan(&exists); err != nil {
		return invite.Code{}, mapErr(err)
	}
	if !exists {
		return invite.Code{}, storage.ErrNotFound
	}
	return invite.Code{}, storage.ErrExhausted
}

func scanInviteCode(row *sql.Row) (invite.Code, error) {
	var (
		c          invite.Code
		owner      sql.NullString
		lastUsedBy sql.NullString
		lastUsedAt sql.NullTime
	)
	if err := row.Scan(&c.Code, &c.Type, &c.MaxUses, &c.CurrentUses, &owner, &lastUsedBy, &lastUsedAt, &c.CreatedAt); err != nil {
		return invite.Code{}, mapErr(err)
	}
	c.OwnerUserID = owner.String
	c.LastUsedBy = lastUsedBy.String
	if lastUsedAt.Valid {
		c.LastUsedAt = lastUsedAt.Time
	}
	return c, nil
}

func (s *Store) CreateInvitation(ctx context.Context, inv invite.Invitation) (invite.Invitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invitations (id, inviter_user_id, invitee_user_id, invite_code, invitee_phone, invited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, inv.ID, inv.InviterUserID, inv.InviteeUserID, inv.InviteCode, inv.InviteePhone, inv.InvitedAt)
	if err != nil {
		return invite.Invitation{}, mapErr(err)
	}
	return inv, nil
}

func (s *Store) ListInvitations(ctx context.Context, inviterUserID string) ([]invite.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inviter_user_id, invitee_user_id, invite_code, invitee_phone, invited_at
		FROM invitations
		WHERE inviter_user_id = $1
		ORDER BY invited_at DESC
	`, inviterUserID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []invite.Invitation
	for rows.Next() {
		var inv invite.Invitation
		if err := rows.Scan(&inv.ID, &inv.InviterUserID, &inv.InviteeUserID, &inv.InviteCode, &inv.InviteePhone, &inv.InvitedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// --- OrderStore --------------------------------------------------------------

func (s *Store) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	restrictionsJSON, err := json.Marshal(o.DietaryRestrictions)
	if err != nil {
		return order.Order{}, err
	}
	preferencesJSON, err := json.Marshal(o.FoodPreferences)
	if err != nil {
		return order.Order{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_order_counters (user_id, next_seq)
		VALUES ($1, 1)
		ON CONFLICT (user_id)
		DO UPDATE SET next_seq = user_order_counters.next_seq + 1
		RETURNING next_seq
	`, o.UserID).Scan(&o.UserSequence)
	if err != nil {
		return order.Order{}, mapErr(err)
	}

	day := o.CreatedAt.Format("20060102")
	var daySeq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO order_day_counters (day, next_seq)
		VALUES ($1, 1)
		ON CONFLICT (day)
		DO UPDATE SET next_seq = order_day_counters.next_seq + 1
		RETURNING next_seq
	`, day).Scan(&daySeq)
	if err != nil {
		return order.Order{}, mapErr(err)
	}
	o.OrderNumber = fmt.Sprintf("ORD%s%03d", day, daySeq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, phone_number, status, user_sequence,
			delivery_address, dietary_restrictions, food_preferences,
			budget_amount, budget_currency, rating, feedback, is_deleted,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, $14, $15)
	`, o.ID, o.OrderNumber, o.UserID, o.PhoneNumber, string(o.Status), o.UserSequence,
		o.DeliveryAddress, restrictionsJSON, preferencesJSON,
		o.BudgetAmount, o.BudgetCurrency, o.Rating, o.Feedback,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return order.Order{}, mapErr(err)
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

const orderColumns = `
	id, order_number, user_id, phone_number, status, user_sequence,
	delivery_address, dietary_restrictions, food_preferences,
	budget_amount, budget_currency, rating, feedback,
	created_at, submitted_at, feedback_at, updated_at
`

func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND is_deleted = FALSE
	`, id)
	return scanOrder(row.Scan)
}

func (s *Store) UpdateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	o.UpdatedAt = time.Now().UTC()

	restrictionsJSON, err := json.Marshal(o.DietaryRestrictions)
	if err != nil {
		return order.Order{}, err
	}
	preferencesJSON, err := json.Marshal(o.FoodPreferences)
	if err != nil {
		return order.Order{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, delivery_address = $3, dietary_restrictions = $4,
			food_preferences = $5, budget_amount = $6, budget_currency = $7,
			rating = $8, feedback = $9, submitted_at = $10, feedback_at = $11,
			updated_at = $12
		WHERE id = $1 AND is_deleted = FALSE
	`, o.ID, string(o.Status), o.DeliveryAddress, restrictionsJSON,
		preferencesJSON, o.BudgetAmount, o.BudgetCurrency,
		o.Rating, o.Feedback, nullTime(o.SubmittedAt), nullTime(o.FeedbackAt), o.UpdatedAt)
	if err != nil {
		return order.Order{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return order.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(scan func(...any) error) (order.Order, error) {
	var (
		o               order.Order
		status          string
		restrictionsRaw []byte
		preferencesRaw  []byte
		submittedAt     sql.NullTime
		feedbackAt      sql.NullTime
	)
	err := scan(&o.ID, &o.OrderNumber, &o.UserID, &o.PhoneNumber, &status, &o.UserSequence,
		&o.DeliveryAddress, &restrictionsRaw, &preferencesRaw,
		&o.BudgetAmount, &o.BudgetCurrency, &o.Rating, &o.Feedback,
		&o.CreatedAt, &submittedAt, &feedbackAt, &o.UpdatedAt)
	if err != nil {
		return order.Order{}, mapErr(err)
	}
	o.Status = order.Status(status)
	if len(restrictionsRaw) > 0 {
		_ = json.Unmarshal(restrictionsRaw, &o.DietaryRestrictions)
	}
	if len(preferencesRaw) > 0 {
		_ = json.Unmarshal(preferencesRaw, &o.FoodPreferences)
	}
	if submittedAt.Valid {
		o.SubmittedAt = submittedAt.Time
	}
	if feedbackAt.Valid {
		o.FeedbackAt = feedbackAt.Time
	}
	return o, nil
}

// --- RewardStore -------------------------------------------------------------

func (s *Store) GetClaim(ctx context.Context, userID string) (reward.Claim, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, claimed_at FROM reward_claims WHERE user_id = $1
	`, userID)

	var c reward.Claim
	if err := row.Scan(&c.UserID, &c.ClaimedAt); err != nil {
		return reward.Claim{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) ClaimReward(ctx context.Context, userID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO reward_claims (user_id, claimed_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, time.Now().UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return 0, storage.ErrAlreadyExists
	}

	var remaining int
	err = tx.QueryRowContext(ctx, `
		UPDATE reward_pool
		SET remaining = remaining - 1
		WHERE id = 1 AND remaining > 0
		RETURNING remaining
	`).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrExhausted
	}
	if err != nil {
		return 0, mapErr(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *Store) PoolRemaining(ctx context.Context) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx, `
		SELECT remaining FROM reward_pool WHERE id = 1
	`).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapErr(err)
	}
	return remaining, nil
}

func (s *Store) SeedPool(ctx context.Context, remaining int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reward_pool (id, remaining)
		VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING
	`, remaining)
	return mapErr(err)
}

// --- PreferenceStore ---------------------------------------------------------

func (s *Store) UpsertPreferences(ctx context.Context, p preference.Preferences) (preference.Preferences, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	foodTypesJSON, err := json.Marshal(p.DefaultFoodTypes)
	if err != nil {
		return preference.Preferences{}, err
	}
	allergiesJSON, err := json.Marshal(p.DefaultAllergies)
	if err != nil {
		return preference.Preferences{}, err
	}
	preferencesJSON, err := json.Marshal(p.DefaultPreferences)
	if err != nil {
		return preference.Preferences{}, err
	}
	suggestionJSON, err := json.Marshal(p.AddressSuggestion)
	if err != nil {
		return preference.Preferences{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (
			user_id, default_address, default_food_types, default_allergies,
			default_preferences, default_budget, other_allergy_text,
			other_preference_text, address_suggestion, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id)
		DO UPDATE SET default_address = $2, default_food_types = $3,
			default_allergies = $4, default_preferences = $5,
			default_budget = $6, other_allergy_text = $7,
			other_preference_text = $8, address_suggestion = $9,
			updated_at = $11
	`, p.UserID, p.DefaultAddress, foodTypesJSON, allergiesJSON,
		preferencesJSON, p.DefaultBudget, p.OtherAllergyText,
		p.OtherPreferenceText, suggestionJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return preference.Preferences{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (preference.Preferences, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, default_address, default_food_types, default_allergies,
			default_preferences, default_budget, other_allergy_text,
			other_preference_text, address_suggestion, created_at, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`, userID)

	var (
		p             preference.Preferences
		foodTypesRaw  []byte
		allergiesRaw  []byte
		prefsRaw      []byte
		suggestionRaw []byte
	)
	err := row.Scan(&p.UserID, &p.DefaultAddress, &foodTypesRaw, &allergiesRaw,
		&prefsRaw, &p.DefaultBudget, &p.OtherAllergyText,
		&p.OtherPreferenceText, &suggestionRaw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return preference.Preferences{}, mapErr(err)
	}
	if len(foodTypesRaw) > 0 {
		_ = json.Unmarshal(foodTypesRaw, &p.DefaultFoodTypes)
	}
	if len(allergiesRaw) > 0 {
		_ = json.Unmarshal(allergiesRaw, &p.DefaultAllergies)
	}
	if len(prefsRaw) > 0 {
		_ = json.Unmarshal(prefsRaw, &p.DefaultPreferences)
	}
	if len(suggestionRaw) > 0 {
		_ = json.Unmarshal(suggestionRaw, &p.AddressSuggestion)
	}
	return p, nil
}

func (s *Store) DeletePreferences(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_preferences WHERE user_id = $1
	`, userID)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// helpers ---------------------------------------------------------------------

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
