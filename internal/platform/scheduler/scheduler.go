// Package scheduler runs the daily overdue sweep across all tenant schemas.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TenantLister enumerates the tenants to sweep.
type TenantLister func(ctx context.Context) ([]string, error)

// SweepFunc performs one tenant's sweep. The context passed in is already
// scoped to that tenant's schema.
type SweepFunc func(ctx context.Context, tenantID string) error

// Scheduler fires the sweep once a day at a fixed hour, fanning out over
// tenants with bounded concurrency. A failing tenant never blocks the rest.
type Scheduler struct {
	hour        int
	concurrency int
	listTenants TenantLister
	sweep       SweepFunc
	logger      zerolog.Logger
	now         func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(hour, concurrency int, listTenants TenantLister, sweep SweepFunc, logger zerolog.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		hour:        hour,
		concurrency: concurrency,
		listTenants: listTenants,
		sweep:       sweep,
		logger:      logger.With().Str("component", "sweep_scheduler").Logger(),
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the scheduling loop in a goroutine. Call Stop to shut it
// down.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		for {
			wait := time.Until(s.nextRun())
			s.logger.Info().Dur("wait", wait).Msg("next sweep scheduled")

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
				s.RunOnce(ctx)
			case <-s.stop:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

// Stop terminates the scheduling loop and waits for it to exit. A sweep in
// flight finishes first.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// nextRun returns the next occurrence of the configured hour.
func (s *Scheduler) nextRun() time.Time {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce sweeps every tenant immediately and returns the number of tenants
// swept and the number that failed.
func (s *Scheduler) RunOnce(ctx context.Context) (swept, failed int) {
	start := s.now()
	tenants, err := s.listTenants(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing tenants failed, skipping sweep")
		return 0, 0
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for _, tenantID := range tenants {
		select {
		case <-ctx.Done():
			s.logger.Warn().Msg("sweep cancelled")
			wg.Wait()
			return swept, failed
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.sweep(ctx, tenantID); err != nil {
				s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("tenant sweep failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			swept++
			mu.Unlock()
		}(tenantID)
	}
	wg.Wait()

	s.logger.Info().
		Int("tenants_swept", swept).
		Int("tenants_failed", failed).
		Dur("elapsed", s.now().Sub(start)).
		Msg("sweep completed")
	return swept, failed
}
