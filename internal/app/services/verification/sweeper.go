package verification

import (
	"context"
	"sync"
	"time"

	"github.com/omnilaze/universal/internal/app/storage"
	"github.com/omnilaze/universal/internal/app/system"
	"github.com/omnilaze/universal/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// Sweeper periodically removes expired verification codes. Backends
// with native TTL expiry make each sweep a cheap no-op.
type Sweeper struct {
	store    storage.VerificationStore
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSweeper creates a lifecycle-managed code sweeper.
func NewSweeper(store storage.VerificationStore, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("verification-sweeper")
	}
	return &Sweeper{
		store:    store,
		log:      log,
		interval: time.Minute,
	}
}

func (s *Sweeper) Name() string { return "verification-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.sweep(runCtx)
			}
		}
	}()

	s.log.Info("verification sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("verification sweeper stopped")
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.store.DeleteExpiredCodes(ctx, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Warn("sweep failed")
		return
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Debug("swept expired verification codes")
	}
}
