package world

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/annel0/blockbase/internal/cache"
	"github.com/annel0/blockbase/internal/eventbus"
	"github.com/annel0/blockbase/internal/storage"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (r *recordingInvalidator) PublishInvalidation(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return r.err
}

func (r *recordingInvalidator) SubscribeInvalidations(context.Context, cache.InvalidationHandler) error {
	return nil
}

func (r *recordingInvalidator) Close() error { return nil }

type recordingInstances struct {
	invalidated []cube.Pos
}

func (r *recordingInstances) Invalidate(pos cube.Pos) {
	r.invalidated = append(r.invalidated, pos)
}

// failingStore отказывает на удалении
type failingStore struct {
	*storage.MemoryVariantStore
}

func (failingStore) Delete(context.Context, cube.Pos) error {
	return errors.New("disk on fire")
}

func TestWorld_SetAndRemove(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	inst := &recordingInstances{}
	store := storage.NewMemoryVariantStore()
	w := New(Options{Store: store, Instances: inst, Invalidator: inv})

	pos := cube.Pos{1, 64, 1}
	_, ok := w.Variant(pos)
	assert.False(t, ok)

	require.NoError(t, w.SetVariant(ctx, pos, 3))
	id, ok := w.Variant(pos)
	require.True(t, ok)
	assert.Equal(t, block.VariantID(3), id)

	stored, found, err := store.Load(ctx, pos)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, block.VariantID(3), stored)

	// Тот же вариант - без инвалидации
	require.NoError(t, w.SetVariant(ctx, pos, 3))
	assert.Len(t, inv.keys, 1)

	assert.True(t, w.RemoveBlock(pos))
	assert.False(t, w.RemoveBlock(pos))
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, []string{"variant:1:64:1", "variant:1:64:1"}, inv.keys)
	assert.Equal(t, []cube.Pos{pos, pos}, inst.invalidated)
}

func TestWorld_RemoveBlockStoreFailure(t *testing.T) {
	ctx := context.Background()
	w := New(Options{Store: failingStore{storage.NewMemoryVariantStore()}})
	pos := cube.Pos{0, 0, 0}
	require.NoError(t, w.SetVariant(ctx, pos, 1))

	assert.False(t, w.RemoveBlock(pos))
	_, ok := w.Variant(pos)
	assert.True(t, ok, "при ошибке хранилища блок остаётся")
}

func TestWorld_PublishFailureIsNotFatal(t *testing.T) {
	w := New(Options{Invalidator: &recordingInvalidator{err: errors.New("nats down")}})
	assert.NoError(t, w.SetVariant(context.Background(), cube.Pos{}, 2))
}

func TestWorld_LoadAndRemote(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryVariantStore()
	require.NoError(t, store.BatchSave(ctx, map[cube.Pos]block.VariantID{
		{0, 0, 0}: 1,
		{1, 0, 0}: 2,
	}))

	inst := &recordingInstances{}
	w := New(Options{Store: store, Instances: inst})
	n, err := w.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, inst.invalidated, 2, "загрузка выбрасывает экземпляры загруженных позиций")
	inst.invalidated = nil

	// Другой узел поменял вариант в общем хранилище
	require.NoError(t, store.Save(ctx, cube.Pos{0, 0, 0}, 4))
	require.NoError(t, store.Delete(ctx, cube.Pos{1, 0, 0}))

	require.NoError(t, w.HandleInvalidation("variant:0:0:0"))
	require.NoError(t, w.HandleInvalidation("variant:1:0:0"))
	assert.Error(t, w.HandleInvalidation("nonsense"))

	id, _ := w.Variant(cube.Pos{0, 0, 0})
	assert.Equal(t, block.VariantID(4), id)
	_, ok := w.Variant(cube.Pos{1, 0, 0})
	assert.False(t, ok)
	assert.Len(t, inst.invalidated, 2)
}

type stickyBehavior struct {
	block.Passthrough
	lit bool
}

func TestWorld_ReloadPurgesInstances(t *testing.T) {
	ctx := context.Background()
	reg := block.NewRegistry(1)
	reg.MustRegister(0, block.TypeOf("Sticky", func() block.Behavior { return &stickyBehavior{} }), "sticky")
	instances := cache.NewInstanceCache(block.NewResolver(reg), nil)

	store := storage.NewMemoryVariantStore()
	pos := cube.Pos{2, 64, 2}
	require.NoError(t, store.Save(ctx, pos, 0))

	w := New(Options{Store: store, Instances: instances})
	_, err := w.Load(ctx)
	require.NoError(t, err)

	b, err := instances.Resolve(pos, 0)
	require.NoError(t, err)
	b.(*stickyBehavior).lit = true

	// Тот же вариант после перезагрузки получает новый экземпляр
	_, err = w.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, instances.Len())

	fresh, err := instances.Resolve(pos, 0)
	require.NoError(t, err)
	assert.NotSame(t, b, fresh)
	assert.False(t, fresh.(*stickyBehavior).lit)
}

func TestWorld_WithDispatcher(t *testing.T) {
	reg := block.NewRegistry(2)
	reg.MustRegister(0, block.TypeOf("Plain", func() block.Behavior { return &block.Passthrough{} }), "plain")
	resolver := block.NewResolver(reg)
	instances := cache.NewInstanceCache(resolver, nil)

	w := New(Options{Instances: instances})
	d := block.NewDispatcher(block.DispatcherConfig{Registry: reg, Source: instances})

	orphan := cube.Pos{3, 3, 3}
	require.NoError(t, w.SetVariant(context.Background(), orphan, 1))

	// Без поведения блок убирается при изменении соседа
	d.NeighborChanged(w, orphan, cube.Pos{3, 4, 3})
	_, ok := w.Variant(orphan)
	assert.False(t, ok)
}

func TestGenerator(t *testing.T) {
	layers := []Layer{{Threshold: 0.3, Variant: 1}, {Threshold: 0.6, Variant: 2}}
	g := NewGenerator(7, layers)

	region := g.Region(cube.Pos{-8, 64, -8}, cube.Pos{8, 64, 8})
	again := NewGenerator(7, layers).Region(cube.Pos{8, 64, 8}, cube.Pos{-8, 64, -8})
	assert.Equal(t, region, again, "генерация детерминирована и не зависит от порядка углов")

	for pos, id := range region {
		assert.Equal(t, 64, pos.Y())
		assert.Contains(t, []block.VariantID{1, 2}, id)
	}

	w := New(Options{})
	n, err := g.Populate(context.Background(), w, cube.Pos{0, 10, 0}, cube.Pos{15, 10, 15})
	require.NoError(t, err)
	assert.Equal(t, n, w.Len())
}

func TestWorld_EmitsBlockEvents(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.NewMemoryBus(16)

	var (
		mu     sync.Mutex
		events []eventbus.BlockEvent
		types  []string
	)
	_, err := bus.Subscribe(ctx, eventbus.Filter{Sources: []string{"node-a"}}, func(_ context.Context, env *eventbus.Envelope) {
		ev, err := eventbus.DecodeBlockEvent(env)
		require.NoError(t, err)
		mu.Lock()
		events = append(events, ev)
		types = append(types, env.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	w := New(Options{Events: bus, Source: "node-a"})
	pos := cube.Pos{2, 3, 4}
	require.NoError(t, w.SetVariant(ctx, pos, 1))
	require.NoError(t, w.SetVariant(ctx, pos, 1)) // без изменений - без события
	require.NoError(t, w.SetVariant(ctx, pos, 2))
	removed, err := w.Remove(ctx, pos)
	require.NoError(t, err)
	require.True(t, removed)
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		eventbus.EventVariantSet, eventbus.EventVariantSet, eventbus.EventBlockRemoved,
	}, types)
	require.Len(t, events, 3)
	assert.False(t, events[0].HadPrevious)
	assert.Equal(t, block.VariantID(1), events[1].Previous)
	assert.Equal(t, block.VariantID(2), events[1].Variant)
	assert.Equal(t, pos, events[2].Pos())
	assert.Equal(t, block.VariantID(2), events[2].Previous)
}
