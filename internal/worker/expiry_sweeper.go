package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// ExpirySweeper deletes records past their expires_at on a fixed interval.
type ExpirySweeper struct {
	store    ExpiredSweeper
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExpirySweeper(store ExpiredSweeper, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{store: store, interval: interval}
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(sweepCtx)
			}
		}
	}()
}

// RunOnce performs a single sweep and returns how many records were removed.
func (s *ExpirySweeper) RunOnce(ctx context.Context) int64 {
	deleted, err := s.store.SweepExpired(ctx)
	if err != nil {
		log.Printf("expiry sweep failed: %v", err)
		return 0
	}
	if deleted > 0 {
		log.Printf("expiry sweep removed %d embeddings", deleted)
	}
	return deleted
}

func (s *ExpirySweeper) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
