package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-registration/config"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

// ExpirySweeper enforces the soft 24h claim deadline. No distributed timer
// is assumed: each tick demotes overdue NOTIFIED entries and the waitlist
// manager promotes the next in line for every seat that comes free.
type ExpirySweeper interface {
	Start(ctx context.Context) error
	Stop() error
	Status() SweeperStatus
}

type SweeperStatus struct {
	IsRunning    bool      `json:"is_running"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	LastSweep    time.Time `json:"last_sweep,omitempty"`
	TotalExpired int64     `json:"total_expired"`
	ErrorCount   int64     `json:"error_count"`
}

type expirySweeper struct {
	waitlist WaitlistManager
	l        logger.Logger

	interval  time.Duration
	batchSize int

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	lastSweep time.Time
	expired   int64
	errCount  int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewExpirySweeper(waitlist WaitlistManager, cfg config.RegistrationConfig, l logger.Logger) ExpirySweeper {
	return &expirySweeper{
		waitlist:  waitlist,
		l:         l,
		interval:  cfg.SweepInterval,
		batchSize: cfg.SweepBatchSize,
	}
}

func (s *expirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return errors.New("expiry sweeper is already running")
	}

	s.l.Infof(ctx, "Starting expiry sweeper: interval=%s batch_size=%d", s.interval, s.batchSize)

	s.isRunning = true
	s.startedAt = time.Now()
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.sweepLoop(ctx, s.stopCh)

	return nil
}

func (s *expirySweeper) Stop() error {
	s.mu.Lock()

	if !s.isRunning {
		s.mu.Unlock()
		return errors.New("expiry sweeper is not running")
	}

	s.isRunning = false
	close(s.stopCh)

	// Release the mutex before waiting: an in-flight sweep takes it to
	// record its stats, and would deadlock against a waiting Stop.
	s.mu.Unlock()
	s.wg.Wait()

	s.l.Info(context.Background(), "Expiry sweeper stopped")

	return nil
}

func (s *expirySweeper) Status() SweeperStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SweeperStatus{
		IsRunning:    s.isRunning,
		StartedAt:    s.startedAt,
		LastSweep:    s.lastSweep,
		TotalExpired: s.expired,
		ErrorCount:   s.errCount,
	}
}

func (s *expirySweeper) sweepLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *expirySweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	// Drain in batches so a long backlog cannot starve a tick forever.
	for {
		expired, err := s.waitlist.ExpireOverdue(ctx, now, s.batchSize)

		s.mu.Lock()
		s.lastSweep = time.Now()
		s.expired += int64(expired)
		if err != nil {
			s.errCount++
		}
		s.mu.Unlock()

		if err != nil {
			s.l.Errorf(ctx, "service.expirySweeper.sweep: %v", err)
			return
		}

		if expired > 0 {
			s.l.Infof(ctx, "Expiry sweep completed: expired=%d", expired)
		}

		if expired < s.batchSize {
			return
		}
	}
}
