package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	"github.com/omnilaze/universal/internal/app/domain/order"
	"github.com/omnilaze/universal/internal/app/domain/preference"
	"github.com/omnilaze/universal/internal/app/domain/reward"
	"github.com/omnilaze/universal/internal/app/domain/user"
	"github.com/omnilaze/universal/internal/app/domain/verification"
	"github.com/omnilaze/universal/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is
// safe for concurrent use and is primarily intended for tests, local
// development and development mode.
type Store struct {
	mu            sync.RWMutex
	codes         map[string]verification.Code
	users         map[string]user.User
	usersByPhone  map[string]string
	userSeq       int64
	inviteCodes   map[string]invite.Code
	invitations   map[string][]invite.Invitation
	orders        map[string]order.Order
	userOrderSeqs map[string]int64
	dayOrderSeqs  map[string]int64
	claims        map[string]reward.Claim
	poolRemaining int
	poolSeeded    bool
	preferences   map[string]preference.Preferences
}

var _ storage.VerificationStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.InviteStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.RewardStore = (*Store)(nil)
var _ storage.PreferenceStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		codes:         make(map[string]verification.Code),
		users:         make(map[string]user.User),
		usersByPhone:  make(map[string]string),
		inviteCodes:   make(map[string]invite.Code),
		invitations:   make(map[string][]invite.Invitation),
		orders:        make(map[string]order.Order),
		userOrderSeqs: make(map[string]int64),
		dayOrderSeqs:  make(map[string]int64),
		claims:        make(map[string]reward.Claim),
		preferences:   make(map[string]preference.Preferences),
	}
}

// VerificationStore implementation -------------------------------------------

func (s *Store) UpsertCode(_ context.Context, code verification.Code) (verification.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	code.Used = false
	s.codes[code.PhoneNumber] = code
	return code, nil
}

func (s *Store) GetCode(_ context.Context, phone string) (verification.Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.codes[phone]
	if !ok {
		return verification.Code{}, storage.ErrNotFound
	}
	return code, nil
}

func (s *Store) ConsumeCode(_ context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[phone]
	if !ok {
		return false, storage.ErrNotFound
	}
	if code.Used {
		return false, nil
	}
	code.Used = true
	s.codes[phone] = code
	return true, nil
}

func (s *Store) DeleteExpiredCodes(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phone, code := range s.codes {
		if code.ExpiresAt.Before(before) {
			delete(s.codes, phone)
			removed++
		}
	}
	return removed, nil
}

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByPhone[u.PhoneNumber]; exists {
		return user.User{}, storage.ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, storage.ErrAlreadyExists
	}

	s.userSeq++
	u.Sequence = s.userSeq
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	s.users[u.ID] = u
	s.usersByPhone[u.PhoneNumber] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByPhone[phone]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// InviteStore implementation -------------------------------------------------

func (s *Store) CreateInviteCode(_ context.Context, c invite.Code) (invite.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.inviteCodes[c.Code]; exists {
		return invite.Code{}, storage.ErrAlreadyExists
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.inviteCodes[c.Code] = c
	return c, nil
}

func (s *Store) GetInviteCode(_ context.Context, code string) (invite.Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.inviteCodes[code]
	if !ok {
		return invite.Code{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) RedeemInviteCode(_ context.Context, code, redeemerPhone string) (invite.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.inviteCodes[code]
	if !ok {
		return invite.Code{}, storage.ErrNotFound
	}
	if c.Exhausted() {
		return invite.Code{}, storage.ErrExhausted
	}

	c.CurrentUses++
	c.LastUsedBy = redeemerPhone
	c.LastUsedAt = time.Now().UTC()
	s.inviteCodes[code] = c
	return c, nil
}

func (s *Store) CreateInvitation(_ context.Context, inv invite.Invitation) (invite.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = time.Now().UTC()
	}
	s.invitations[inv.InviterUserID] = append(s.invitations[inv.InviterUserID], inv)
	return inv, nil
}

func (s *Store) ListInvitations(_ context.Context, inviterUserID string) ([]invite.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invs := s.invitations[inviterUserID]
	out := make([]invite.Invitation, len(invs))
	copy(out, invs)
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.After(out[j].InvitedAt) })
	return out, nil
}

// OrderStore implementation --------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.NewString()
	} else if _, exists := s.orders[o.ID]; exists {
		return order.Order{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	s.userOrderSeqs[o.UserID]++
	o.UserSequence = s.userOrderSeqs[o.UserID]

	day := o.CreatedAt.Format("20060102")
	s.dayOrderSeqs[day]++
	o.OrderNumber = fmt.Sprintf("ORD%s%03d", day, s.dayOrderSeqs[day])

	o.DietaryRestrictions = cloneStrings(o.DietaryRestrictions)
	o.FoodPreferences = cloneStrings(o.FoodPreferences)

	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok || o.IsDeleted {
		return order.Order{}, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) UpdateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[o.ID]
	if !ok || existing.IsDeleted {
		return order.Order{}, storage.ErrNotFound
	}

	o.UpdatedAt = time.Now().UTC()
	o.DietaryRestrictions = cloneStrings(o.DietaryRestrictions)
	o.FoodPreferences = cloneStrings(o.FoodPreferences)
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, userID string) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []order.Order
	for _, o := range s.orders {
		if o.UserID == userID && !o.IsDeleted {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// RewardStore implementation -------------------------------------------------

func (s *Store) GetClaim(_ context.Context, userID string) (reward.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[userID]
	if !ok {
		return reward.Claim{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ClaimReward(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, claimed := s.claims[userID]; claimed {
		return 0, storage.ErrAlreadyExists
	}
	if s.poolRemaining <= 0 {
		return 0, storage.ErrExhausted
	}

	s.poolRemaining--
	s.claims[userID] = reward.Claim{UserID: userID, ClaimedAt: time.Now().UTC()}
	return s.poolRemaining, nil
}

func (s *Store) PoolRemaining(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poolRemaining, nil
}

func (s *Store) SeedPool(_ context.Context, remaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poolSeeded {
		return nil
	}
	s.poolRemaining = remaining
	s.poolSeeded = true
	return nil
}

// PreferenceStore implementation ---------------------------------------------

func (s *Store) UpsertPreferences(_ context.Context, p preference.Preferences) (preference.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.preferences[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	p.DefaultFoodTypes = cloneStrings(p.DefaultFoodTypes)
	p.DefaultAllergies = cloneStrings(p.DefaultAllergies)
	p.DefaultPreferences = cloneStrings(p.DefaultPreferences)
	p.AddressSuggestion = cloneAny(p.AddressSuggestion)

	s.preferences[p.UserID] = p
	return clonePreferences(p), nil
}

func (s *Store) GetPreferences(_ context.Context, userID string) (preference.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[userID]
	if !ok {
		return preference.Preferences{}, storage.ErrNotFound
	}
	return clonePreferences(p), nil
}

func (s *Store) DeletePreferences(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.preferences[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.preferences, userID)
	return nil
}

// helpers ---------------------------------------------------------------------

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneAny(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneOrder(o order.Order) order.Order {
	o.DietaryRestrictions = cloneStrings(o.DietaryRestrictions)
	o.FoodPreferences = cloneStrings(o.FoodPreferences)
	return o
}

func clonePreferences(p preference.Preferences) preference.Preferences {
	p.DefaultFoodTypes = cloneStrings(p.DefaultFoodTypes)
	p.DefaultAllergies = cloneStrings(p.DefaultAllergies)
	p.DefaultPreferences = cloneStrings(p.DefaultPreferences)
	p.AddressSuggestion = cloneAny(p.AddressSuggestion)
	return p
}
