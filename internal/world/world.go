// Package world хранит варианты блоков по позициям и отдаёт их диспетчеру.
package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/blockbase/internal/cache"
	"github.com/annel0/blockbase/internal/eventbus"
	"github.com/annel0/blockbase/internal/logging"
	"github.com/annel0/blockbase/internal/storage"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
)

// InstanceInvalidator выбрасывает закешированный экземпляр поведения позиции
type InstanceInvalidator interface {
	Invalidate(pos cube.Pos)
}

// Options содержит зависимости мира
type Options struct {
	Store storage.VariantStore
	// Instances - локальный кеш экземпляров (может быть nil)
	Instances InstanceInvalidator
	// Invalidator рассылает изменения другим узлам (может быть nil)
	Invalidator cache.CacheInvalidator
	Logger      *logging.Logger
	// Events получает журнал изменений (может быть nil)
	Events eventbus.EventBus
	// Source - имя узла в событиях
	Source string
	// IOTimeout ограничивает запись в хранилище из RemoveBlock
	IOTimeout time.Duration
}

// World реализует block.WorldState. Варианты читаются из памяти,
// каждое изменение сразу пишется в хранилище.
type World struct {
	store       storage.VariantStore
	instances   InstanceInvalidator
	invalidator cache.CacheInvalidator
	events      eventbus.EventBus
	source      string
	logger      *logging.Logger
	ioTimeout   time.Duration

	mu     sync.RWMutex
	blocks map[cube.Pos]block.VariantID
}

var _ block.WorldState = (*World)(nil)

// New создаёт пустой мир. Загрузка сохранённых вариантов - Load.
func New(opts Options) *World {
	if opts.Store == nil {
		opts.Store = storage.NewMemoryVariantStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 5 * time.Second
	}
	if opts.Source == "" {
		opts.Source = "world"
	}
	return &World{
		store:       opts.Store,
		instances:   opts.Instances,
		invalidator: opts.Invalidator,
		events:      opts.Events,
		source:      opts.Source,
		logger:      opts.Logger,
		ioTimeout:   opts.IOTimeout,
		blocks:      make(map[cube.Pos]block.VariantID),
	}
}

// Load читает все варианты из хранилища в память
func (w *World) Load(ctx context.Context) (int, error) {
	loaded := make(map[cube.Pos]block.VariantID)
	err := w.store.Scan(ctx, func(pos cube.Pos, id block.VariantID) error {
		loaded[pos] = id
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("загрузка мира: %w", err)
	}

	w.mu.Lock()
	previous := w.blocks
	w.blocks = loaded
	w.mu.Unlock()

	w.dropInstances(previous, loaded)

	w.logger.Info("Мир загружен: %d блоков", len(loaded))
	return len(loaded), nil
}

// Variant возвращает вариант блока в позиции
func (w *World) Variant(pos cube.Pos) (block.VariantID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.blocks[pos]
	return id, ok
}

// SetVariant ставит блок варианта id в позицию
func (w *World) SetVariant(ctx context.Context, pos cube.Pos, id block.VariantID) error {
	if err := w.store.Save(ctx, pos, id); err != nil {
		return fmt.Errorf("сохранение %v: %w", pos, err)
	}

	w.mu.Lock()
	prev, existed := w.blocks[pos]
	w.blocks[pos] = id
	w.mu.Unlock()

	if !existed || prev != id {
		w.changed(ctx, pos)
		w.emit(ctx, eventbus.EventVariantSet, pos, id, prev, existed)
	}
	return nil
}

// SetVariants ставит блоки пачкой (генерация, импорт)
func (w *World) SetVariants(ctx context.Context, variants map[cube.Pos]block.VariantID) error {
	if err := w.store.BatchSave(ctx, variants); err != nil {
		return fmt.Errorf("пакетное сохранение: %w", err)
	}

	type change struct {
		prev    block.VariantID
		existed bool
	}
	changes := make(map[cube.Pos]change, len(variants))
	w.mu.Lock()
	for pos, id := range variants {
		prev, existed := w.blocks[pos]
		if !existed || prev != id {
			changes[pos] = change{prev, existed}
		}
		w.blocks[pos] = id
	}
	w.mu.Unlock()

	for pos, c := range changes {
		w.changed(ctx, pos)
		w.emit(ctx, eventbus.EventVariantSet, pos, variants[pos], c.prev, c.existed)
	}
	return nil
}

// Remove убирает блок из позиции. false - блока не было.
func (w *World) Remove(ctx context.Context, pos cube.Pos) (bool, error) {
	w.mu.RLock()
	prev, ok := w.blocks[pos]
	w.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if err := w.store.Delete(ctx, pos); err != nil {
		return false, fmt.Errorf("удаление %v: %w", pos, err)
	}

	w.mu.Lock()
	delete(w.blocks, pos)
	w.mu.Unlock()

	w.changed(ctx, pos)
	w.emit(ctx, eventbus.EventBlockRemoved, pos, prev, prev, true)
	return true, nil
}

// RemoveBlock реализует block.WorldState. Ошибка хранилища логируется,
// блок при этом остаётся на месте.
func (w *World) RemoveBlock(pos cube.Pos) bool {
	ctx, cancel := context.WithTimeout(context.Background(), w.ioTimeout)
	defer cancel()

	removed, err := w.Remove(ctx, pos)
	if err != nil {
		w.logger.Error("Не удалось убрать блок %v: %v", pos, err)
		return false
	}
	return removed
}

// Len возвращает количество блоков в мире
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.blocks)
}

// Snapshot возвращает копию всех блоков
func (w *World) Snapshot() map[cube.Pos]block.VariantID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[cube.Pos]block.VariantID, len(w.blocks))
	for pos, id := range w.blocks {
		out[pos] = id
	}
	return out
}

// ApplyRemote обновляет позицию после изменения на другом узле:
// перечитывает вариант из общего хранилища без повторной рассылки.
func (w *World) ApplyRemote(ctx context.Context, pos cube.Pos) error {
	id, ok, err := w.store.Load(ctx, pos)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if ok {
		w.blocks[pos] = id
	} else {
		delete(w.blocks, pos)
	}
	w.mu.Unlock()

	if w.instances != nil {
		w.instances.Invalidate(pos)
	}
	return nil
}

// HandleInvalidation - cache.InvalidationHandler для ключей variant:x:y:z
func (w *World) HandleInvalidation(key string) error {
	pos, err := storage.ParsePosKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.ioTimeout)
	defer cancel()
	return w.ApplyRemote(ctx, pos)
}

// dropInstances выбрасывает экземпляры после перезагрузки: даже при том же
// варианте состояние прежнего экземпляра относится к выгруженному миру.
func (w *World) dropInstances(previous, loaded map[cube.Pos]block.VariantID) {
	if w.instances == nil {
		return
	}
	if p, ok := w.instances.(interface{ Purge() }); ok {
		p.Purge()
		return
	}
	for pos := range previous {
		w.instances.Invalidate(pos)
	}
	for pos := range loaded {
		if _, seen := previous[pos]; !seen {
			w.instances.Invalidate(pos)
		}
	}
}

// changed выбрасывает экземпляр позиции и сообщает другим узлам
func (w *World) changed(ctx context.Context, pos cube.Pos) {
	if w.instances != nil {
		w.instances.Invalidate(pos)
	}
	if w.invalidator == nil {
		return
	}
	if err := w.invalidator.PublishInvalidation(ctx, storage.PosKey(pos)); err != nil {
		w.logger.Warn("Не удалось разослать инвалидацию %v: %v", pos, err)
	}
}

// emit пишет изменение в журнал событий. Ошибка публикации не откатывает запись.
func (w *World) emit(ctx context.Context, eventType string, pos cube.Pos, id, prev block.VariantID, existed bool) {
	if w.events == nil {
		return
	}
	env, err := eventbus.NewBlockEnvelope(w.source, eventType, eventbus.BlockEvent{
		X: pos.X(), Y: pos.Y(), Z: pos.Z(),
		Variant:     id,
		Previous:    prev,
		HadPrevious: existed,
	})
	if err == nil {
		err = w.events.Publish(ctx, env)
	}
	if err != nil {
		w.logger.Warn("Событие %s для %v не опубликовано: %v", eventType, pos, err)
	}
}

// Close закрывает хранилище
func (w *World) Close() error {
	return w.store.Close()
}
