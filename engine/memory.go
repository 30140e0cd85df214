package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engineName string
	expiresAt  time.Time
}

// EngineMemory remembers which engine last produced an accepted title for
// each host. Entries expire after the TTL and are swept once per TTL.
type EngineMemory struct {
	store sync.Map // host (string) -> *memoryEntry
	ttl   time.Duration
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

// NewEngineMemory creates an EngineMemory and starts its sweeper.
func NewEngineMemory(ttl time.Duration) *EngineMemory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	m := &EngineMemory{
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Get returns the remembered engine for host, or "" if none or expired.
func (m *EngineMemory) Get(host string) string {
	val, ok := m.store.Load(host)
	if !ok {
		return ""
	}
	entry := val.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.store.Delete(host)
		return ""
	}
	return entry.engineName
}

// Set records the winning engine for host.
func (m *EngineMemory) Set(host, engineName string) {
	m.store.Store(host, &memoryEntry{
		engineName: engineName,
		expiresAt:  m.now().Add(m.ttl),
	})
}

// Delete forgets host.
func (m *EngineMemory) Delete(host string) {
	m.store.Delete(host)
}

// Stop terminates the sweeper. It is safe to call more than once.
func (m *EngineMemory) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *EngineMemory) sweepLoop() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *EngineMemory) sweep() {
	now := m.now()
	m.store.Range(func(key, value any) bool {
		if now.After(value.(*memoryEntry).expiresAt) {
			m.store.Delete(key)
		}
		return true
	})
}
