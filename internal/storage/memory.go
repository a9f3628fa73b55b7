package storage

import (
	"context"
	"sync"

	"github.com/skalibog/scalpsignal/pkg/models"
)

// MemoryStore история сигналов в памяти процесса, используется без внешнего хранилища
type MemoryStore struct {
	mu      sync.RWMutex
	max     int
	records map[string][]models.SignalRecord // от старых к новым
}

// NewMemoryStore создает хранилище, хранящее не более limit записей на символ
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryStore{max: limit, records: make(map[string][]models.SignalRecord)}
}

// SaveSignal сохраняет запись
func (s *MemoryStore) SaveSignal(_ context.Context, rec *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.records[rec.Symbol], *rec)
	if len(list) > s.max {
		list = append([]models.SignalRecord(nil), list[len(list)-s.max:]...)
	}
	s.records[rec.Symbol] = list
	return nil
}

// GetSignalHistory возвращает последние limit записей, новые первыми
func (s *MemoryStore) GetSignalHistory(_ context.Context, symbol string, limit int) ([]models.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.records[symbol]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	out := make([]models.SignalRecord, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Close ничего не делает
func (s *MemoryStore) Close() {}
