// Package memory keeps log events in a slice. Tests use it to assert on what a
// component reported.
package memory

import (
	"strings"
	"sync"

	"github.com/AnishMulay/sandblock/internal/log_service"
)

type Entry struct {
	Level string
	Event log_service.LogEvent
}

type MemoryLogService struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryLogService() *MemoryLogService {
	return &MemoryLogService{}
}

func (m *MemoryLogService) record(level string, event log_service.LogEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Event: event})
}

func (m *MemoryLogService) Debug(event log_service.LogEvent) { m.record(log_service.DebugLevel, event) }
func (m *MemoryLogService) Info(event log_service.LogEvent)  { m.record(log_service.InfoLevel, event) }
func (m *MemoryLogService) Warn(event log_service.LogEvent)  { m.record(log_service.WarnLevel, event) }
func (m *MemoryLogService) Error(event log_service.LogEvent) { m.record(log_service.ErrorLevel, event) }

func (m *MemoryLogService) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Contains reports whether an event at level has a message containing substr.
func (m *MemoryLogService) Contains(level, substr string) bool {
	for _, e := range m.Entries() {
		if e.Level == level && strings.Contains(e.Event.Message, substr) {
			return true
		}
	}
	return false
}

var _ log_service.LogService = (*MemoryLogService)(nil)
