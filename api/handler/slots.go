package handler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Slots bounds how many checks (and therefore browsers) run at once.
type Slots struct {
	sem    *semaphore.Weighted
	max    int
	active atomic.Int32
}

// NewSlots creates a limiter admitting max concurrent checks.
func NewSlots(max int) *Slots {
	if max < 1 {
		max = 1
	}
	return &Slots{sem: semaphore.NewWeighted(int64(max)), max: max}
}

// Acquire waits for a free slot until ctx ends.
func (s *Slots) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.active.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (s *Slots) Release() {
	s.active.Add(-1)
	s.sem.Release(1)
}

// Active returns the number of checks currently running.
func (s *Slots) Active() int { return int(s.active.Load()) }

// Max returns the slot capacity.
func (s *Slots) Max() int { return s.max }
