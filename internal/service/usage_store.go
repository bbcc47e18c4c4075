package service

import (
	"context"
	"sync"
	"time"
)

// MemUsageStore tracks daily transfer volume per network in process memory.
// Fallback when redis is not configured; counters reset on restart.
type MemUsageStore struct {
	mu          sync.RWMutex
	dailyVolume map[string]float64 // Key: network:YYYY-MM-DD
	dailyCount  map[string]int
}

func NewMemUsageStore() *MemUsageStore {
	return &MemUsageStore{
		dailyVolume: make(map[string]float64),
		dailyCount:  make(map[string]int),
	}
}

func (s *MemUsageStore) GetDailyUsage(ctx context.Context, network string) (int, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := s.makeKey(network)
	return s.dailyCount[key], s.dailyVolume[key], nil
}

func (s *MemUsageStore) AddDailyUsage(ctx context.Context, network string, transfers int, amountUSDC float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.makeKey(network)
	s.dailyVolume[key] += amountUSDC
	s.dailyCount[key] += transfers
	return nil
}

func (s *MemUsageStore) makeKey(network string) string {
	// Split by UTC date so counters roll over at midnight.
	return network + ":" + time.Now().UTC().Format("2006-01-02")
}
