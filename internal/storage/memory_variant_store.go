package storage

import (
	"context"
	"sync"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
)

// MemoryVariantStore реализует VariantStore в памяти.
// Используется в тестах и для локальной разработки без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryVariantStore struct {
	mu   sync.RWMutex
	data map[cube.Pos]block.VariantID
}

// NewMemoryVariantStore создает пустое хранилище в памяти.
func NewMemoryVariantStore() *MemoryVariantStore {
	return &MemoryVariantStore{data: make(map[cube.Pos]block.VariantID)}
}

func (s *MemoryVariantStore) Save(ctx context.Context, pos cube.Pos, id block.VariantID) error {
	if err := checkVariant(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data[pos] = id
	s.mu.Unlock()
	return nil
}

func (s *MemoryVariantStore) Load(ctx context.Context, pos cube.Pos) (block.VariantID, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.data[pos]
	return id, ok, nil
}

func (s *MemoryVariantStore) Delete(ctx context.Context, pos cube.Pos) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, pos)
	s.mu.Unlock()
	return nil
}

// BatchSave сохраняет все варианты или ни одного
func (s *MemoryVariantStore) BatchSave(ctx context.Context, variants map[cube.Pos]block.VariantID) error {
	for _, id := range variants {
		if err := checkVariant(id); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	for pos, id := range variants {
		s.data[pos] = id
	}
	s.mu.Unlock()
	return nil
}

// Scan обходит снимок данных, поэтому fn может писать в хранилище
func (s *MemoryVariantStore) Scan(ctx context.Context, fn func(pos cube.Pos, id block.VariantID) error) error {
	s.mu.RLock()
	snapshot := make(map[cube.Pos]block.VariantID, len(s.data))
	for pos, id := range s.data {
		snapshot[pos] = id
	}
	s.mu.RUnlock()

	for pos, id := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(pos, id); err != nil {
			return err
		}
	}
	return nil
}

// Len возвращает количество сохранённых позиций
func (s *MemoryVariantStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryVariantStore) Close() error {
	return nil
}
