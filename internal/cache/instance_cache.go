// Package cache держит экземпляры поведений блоков между вызовами движка
// и рассылает инвалидации между узлами.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/annel0/blockbase/internal/logging"
	"github.com/annel0/blockbase/internal/storage"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
)

type entry struct {
	variant  block.VariantID
	behavior block.Behavior
}

// InstanceCache реализует block.InstanceSource поверх Resolver.
// Экземпляр живёт, пока вариант позиции не изменится или позиция
// не будет инвалидирована, поэтому состояние поведения сохраняется
// между вызовами.
type InstanceCache struct {
	resolver *block.Resolver
	logger   *logging.Logger

	mu      sync.RWMutex
	entries map[cube.Pos]entry

	hits   atomic.Int64
	misses atomic.Int64
}

// NewInstanceCache создаёт пустой кеш
func NewInstanceCache(resolver *block.Resolver, logger *logging.Logger) *InstanceCache {
	if logger == nil {
		logger = logging.Nop()
	}
	return &InstanceCache{
		resolver: resolver,
		logger:   logger,
		entries:  make(map[cube.Pos]entry),
	}
}

// Resolve возвращает закешированный экземпляр, если он построен для того же
// варианта, иначе строит новый. Неудачи не кешируются.
func (c *InstanceCache) Resolve(pos cube.Pos, id block.VariantID) (block.Behavior, error) {
	c.mu.RLock()
	e, ok := c.entries[pos]
	c.mu.RUnlock()
	if ok && e.variant == id {
		c.hits.Add(1)
		return e.behavior, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Пока ждали блокировку, экземпляр мог построить другой вызов
	if e, ok := c.entries[pos]; ok && e.variant == id {
		c.hits.Add(1)
		return e.behavior, nil
	}
	c.misses.Add(1)

	b, err := c.resolver.Resolve(pos, id)
	if err != nil || b == nil {
		delete(c.entries, pos)
		return b, err
	}
	c.entries[pos] = entry{variant: id, behavior: b}
	return b, nil
}

// Invalidate выбрасывает экземпляр позиции
func (c *InstanceCache) Invalidate(pos cube.Pos) {
	c.mu.Lock()
	delete(c.entries, pos)
	c.mu.Unlock()
}

// Purge очищает кеш целиком (перезагрузка мира)
func (c *InstanceCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[cube.Pos]entry)
	c.mu.Unlock()
}

// Len возвращает количество экземпляров в кеше
func (c *InstanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats возвращает счётчики попаданий и промахов
func (c *InstanceCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

// HandleInvalidation - InvalidationHandler для ключей вида variant:x:y:z
func (c *InstanceCache) HandleInvalidation(key string) error {
	pos, err := storage.ParsePosKey(key)
	if err != nil {
		return fmt.Errorf("invalidation: %w", err)
	}
	c.Invalidate(pos)
	c.logger.Debug("Инвалидирован экземпляр %v", pos)
	return nil
}

// Subscribe подключает кеш к удалённым инвалидациям
func (c *InstanceCache) Subscribe(ctx context.Context, inv CacheInvalidator) error {
	return inv.SubscribeInvalidations(ctx, c.HandleInvalidation)
}
