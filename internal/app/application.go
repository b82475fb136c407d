package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/omnilaze/universal/internal/app/domain/invite"
	orderssvc "github.com/omnilaze/universal/internal/app/services/orders"
	preferencessvc "github.com/omnilaze/universal/internal/app/services/preferences"
	rewardssvc "github.com/omnilaze/universal/internal/app/services/rewards"
	userssvc "github.com/omnilaze/universal/internal/app/services/users"
	verificationsvc "github.com/omnilaze/universal/internal/app/services/verification"
	"github.com/omnilaze/universal/internal/app/storage"
	"github.com/omnilaze/universal/internal/app/storage/memory"
	"github.com/omnilaze/universal/internal/app/system"
	"github.com/omnilaze/universal/internal/config"
	"github.com/omnilaze/universal/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Verification storage.VerificationStore
	Users        storage.UserStore
	Invites      storage.InviteStore
	Orders       storage.OrderStore
	Rewards      storage.RewardStore
	Preferences  storage.PreferenceStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	cfg     config.AppConfig
	invites storage.InviteStore
	rewards storage.RewardStore

	Verification *verificationsvc.Service
	Users        *userssvc.Service
	Orders       *orderssvc.Service
	Rewards      *rewardssvc.Service
	Preferences  *preferencessvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(cfg config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Verification == nil {
		stores.Verification = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Invites == nil {
		stores.Invites = mem
	}
	if stores.Orders == nil {
		stores.Orders = mem
	}
	if stores.Rewards == nil {
		stores.Rewards = mem
	}
	if stores.Preferences == nil {
		stores.Preferences = mem
	}

	manager := system.NewManager()

	var verifyOpts []verificationsvc.Option
	if cfg.App.DevelopmentMode {
		verifyOpts = append(verifyOpts, verificationsvc.WithDevelopmentMode(cfg.App.DevVerificationCode))
	} else if cfg.SMS.SpugURL != "" {
		client := &http.Client{Timeout: time.Duration(cfg.SMS.TimeoutSec) * time.Second}
		sender := verificationsvc.NewSpugSender(client, cfg.SMS.SpugURL, log)
		verifyOpts = append(verifyOpts, verificationsvc.WithSender(sender))
	} else {
		log.Warn("no SMS gateway configured; verification codes will not be delivered")
	}
	verifyService := verificationsvc.New(stores.Verification, log, verifyOpts...)

	usersService := userssvc.New(stores.Users, stores.Invites, cfg.App.UserInviteMaxUses, log)
	ordersService := orderssvc.New(stores.Orders, stores.Users, log)
	rewardsService := rewardssvc.New(stores.Users, stores.Invites, stores.Rewards, cfg.App.UserInviteMaxUses, log)
	preferencesService := preferencessvc.New(stores.Preferences, log)

	sweeper := verificationsvc.NewSweeper(stores.Verification, log)
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		cfg:          cfg.App,
		invites:      stores.Invites,
		rewards:      stores.Rewards,
		Verification: verifyService,
		Users:        usersService,
		Orders:       ordersService,
		Rewards:      rewardsService,
		Preferences:  preferencesService,
	}, nil
}

// DevelopmentMode reports whether the application issues fixed
// verification codes.
func (a *Application) DevelopmentMode() bool {
	return a.cfg.DevelopmentMode
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start seeds startup data and begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	if err := a.seed(ctx); err != nil {
		return fmt.Errorf("seed startup data: %w", err)
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// seed creates the configured invite codes and initializes the reward
// pool. Both are idempotent across restarts.
func (a *Application) seed(ctx context.Context) error {
	for _, code := range a.cfg.SeedInviteCodes {
		_, err := a.invites.CreateInviteCode(ctx, invite.Code{
			Code:    code,
			Type:    invite.TypeSystem,
			MaxUses: a.cfg.SeedInviteMaxUses,
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed invite code %s: %w", code, err)
		}
	}
	if err := a.rewards.SeedPool(ctx, a.cfg.FreeDrinkQuota); err != nil {
		return fmt.Errorf("seed reward pool: %w", err)
	}
	return nil
}
