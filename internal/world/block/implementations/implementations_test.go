package implementations

import (
	"context"
	"testing"

	"github.com/annel0/blockbase/internal/cache"
	"github.com/annel0/blockbase/internal/logging"
	"github.com/annel0/blockbase/internal/world"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWorld реализует block.WorldState для тестирования
type mockWorld struct {
	variants map[cube.Pos]block.VariantID
}

func newMockWorld() *mockWorld {
	return &mockWorld{variants: make(map[cube.Pos]block.VariantID)}
}

func (m *mockWorld) Variant(pos cube.Pos) (block.VariantID, bool) {
	id, ok := m.variants[pos]
	return id, ok
}

func (m *mockWorld) RemoveBlock(pos cube.Pos) bool {
	_, ok := m.variants[pos]
	delete(m.variants, pos)
	return ok
}

type particles struct {
	names []string
}

func (p *particles) AddParticle(name string, _ mgl32.Vec3) {
	p.names = append(p.names, name)
}

func newDispatcher(t *testing.T) *block.Dispatcher {
	t.Helper()
	reg := block.NewRegistry(16)
	require.NoError(t, RegisterAll(reg))
	reg.Seal()
	return block.NewDispatcher(block.DispatcherConfig{Registry: reg})
}

func TestRegisterAll(t *testing.T) {
	reg := block.NewRegistry(MinCapacity)
	require.NoError(t, RegisterAll(reg))

	names := map[block.VariantID]string{
		FurnaceVariant:   "Furnace",
		ChestVariant:     "Chest",
		LampVariant:      "Lamp",
		PipeVariant:      "Pipe",
		GlassPaneVariant: "GlassPane",
	}
	for id, name := range names {
		desc, ok := reg.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, name, desc.Type.Name)
	}

	// Повторная регистрация упирается в занятые слоты
	var dup *block.DuplicateRegistrationError
	assert.ErrorAs(t, RegisterAll(reg), &dup)

	// Реестр меньше нужного
	var oor *block.OutOfRangeError
	assert.ErrorAs(t, RegisterAll(block.NewRegistry(2)), &oor)
}

func TestFurnace_ToggleBurning(t *testing.T) {
	w := newMockWorld()
	pos := cube.Pos{1, 1, 1}
	w.variants[pos] = FurnaceVariant
	d := newDispatcher(t)

	b, ok := d.CreateInstance(w, pos)
	require.True(t, ok)
	furnace := b.(*FurnaceBehavior)
	assert.Equal(t, pos, furnace.pos)

	site := d.Site(w, pos)
	assert.Equal(t, 0, furnace.LightValue(site))
	assert.True(t, furnace.Activated(site, nil, cube.FaceUp, mgl32.Vec3{}))
	assert.True(t, furnace.Burning())
	assert.Equal(t, FurnaceLight, furnace.LightValue(site))

	r := &particles{}
	furnace.HitEffects(site, trace.BBoxResult{}, r)
	assert.Equal(t, []string{"smoke"}, r.names)

	furnace.Activated(site, nil, cube.FaceUp, mgl32.Vec3{})
	assert.False(t, furnace.Burning())

	// Без кеша каждый вызов получает новый экземпляр, состояние не сохраняется
	assert.Equal(t, float32(3.5), d.Hardness(w, pos))
	assert.True(t, d.SideSolid(w, pos, cube.FaceNorth))
}

func TestChest(t *testing.T) {
	w := newMockWorld()
	pos := cube.Pos{0, 0, 0}
	w.variants[pos] = ChestVariant
	d := newDispatcher(t)

	assert.Equal(t, float32(2.5), d.Hardness(w, pos))
	assert.Equal(t, float32(12.5), d.ExplosionResistance(w, pos, nil, block.Explosion{Size: 4}))
	assert.Equal(t, chestBounds, d.BlockBounds(w, pos))

	b, ok := d.CreateInstance(w, pos)
	require.True(t, ok)
	chest := b.(*ChestBehavior)
	site := d.Site(w, pos)

	for i := 0; i < ChestSlots; i++ {
		require.True(t, chest.Put(block.ItemStack{Variant: 9, Count: 1}))
	}
	assert.False(t, chest.Put(block.ItemStack{Variant: 9, Count: 1}), "сундук переполнен")

	drops := chest.Drops(site, 0)
	require.Len(t, drops, ChestSlots+1)
	assert.Equal(t, block.ItemStack{Variant: ChestVariant, Count: 1}, drops[0])

	assert.True(t, chest.Activated(site, nil, cube.FaceNorth, mgl32.Vec3{}))
	assert.Equal(t, 1, chest.Opened())

	chest.Broken(site)
	assert.Empty(t, chest.Contents())
}

// Сундук в настоящем мире с кешем экземпляров: удаление выбрасывает
// экземпляр, но содержимое всё равно должно выпасть.
func TestChest_SpillsThroughWorldAndCache(t *testing.T) {
	ctx := context.Background()
	reg := block.NewRegistry(MinCapacity)
	require.NoError(t, RegisterAll(reg))
	reg.Seal()

	instances := cache.NewInstanceCache(block.NewResolver(reg), logging.Nop())
	w := world.New(world.Options{Instances: instances})
	d := block.NewDispatcher(block.DispatcherConfig{Registry: reg, Source: instances})

	pos := cube.Pos{8, 64, 8}
	require.NoError(t, w.SetVariant(ctx, pos, ChestVariant))

	b, ok := d.CreateInstance(w, pos)
	require.True(t, ok)
	loot := block.ItemStack{Variant: 9, Count: 3}
	require.True(t, b.(*ChestBehavior).Put(loot))

	require.True(t, d.RemovedByPlayer(w, pos, nil, true))
	_, ok = w.Variant(pos)
	require.False(t, ok)
	d.Broken(w, pos, ChestVariant)

	drops := d.Drops(w, pos, ChestVariant, 0)
	assert.Equal(t, []block.ItemStack{{Variant: ChestVariant, Count: 1}, loot}, drops)

	// Содержимое выпадает один раз
	assert.Equal(t, []block.ItemStack{{Variant: ChestVariant, Count: 1}}, d.Drops(w, pos, ChestVariant, 0))
}

func TestChest_RemovalWithoutHarvestDiscardsContents(t *testing.T) {
	w := newMockWorld()
	pos := cube.Pos{9, 64, 9}
	w.variants[pos] = ChestVariant
	d := newDispatcher(t)

	chest := &ChestBehavior{}
	require.True(t, chest.Put(block.ItemStack{Variant: 9, Count: 1}))
	site := d.Site(w, pos)

	assert.True(t, chest.RemovedByPlayer(site, nil, false))
	assert.Empty(t, chest.Contents())
	assert.Equal(t, []block.ItemStack{{Variant: ChestVariant, Count: 1}}, d.Drops(w, pos, ChestVariant, 0))

	// Блока уже нет: удаление не удалось, содержимое остаётся в сундуке
	require.True(t, chest.Put(block.ItemStack{Variant: 9, Count: 1}))
	assert.False(t, chest.RemovedByPlayer(site, nil, true))
	assert.Len(t, chest.Contents(), 1)
}

func TestLamp(t *testing.T) {
	w := newMockWorld()
	pos := cube.Pos{2, 0, 2}
	w.variants[pos] = LampVariant
	d := newDispatcher(t)

	assert.Equal(t, 15, d.LightValue(w, pos))
	assert.Equal(t, DefaultLampColor, d.ColorMultiplier(w, pos, 0))

	lamp := &LampBehavior{Color: DefaultLampColor}
	site := d.Site(w, pos)
	lamp.Activated(site, nil, cube.FaceUp, mgl32.Vec3{})
	assert.Equal(t, LampPalette[1], lamp.ColorMultiplier(site, 0))

	// Нулевой цвет отдаёт решение умолчанию
	assert.Equal(t, 0xFFFFFF, (&LampBehavior{}).ColorMultiplier(site, 0))

	r := &particles{}
	assert.True(t, d.DestroyEffects(w, pos, r))
	assert.Len(t, r.names, 4)
}

func TestPipe_ConnectsToNeighbours(t *testing.T) {
	w := newMockWorld()
	pos := cube.Pos{5, 5, 5}
	w.variants[pos] = PipeVariant
	d := newDispatcher(t)

	everything := cube.Box(-10, -10, -10, 20, 20, 20)
	boxes := d.CollisionBoxes(w, pos, PipeVariant, everything, nil, nil)
	require.Len(t, boxes, 1, "одиночная труба - только сердцевина")

	w.variants[pos.Side(cube.FaceUp)] = PipeVariant
	w.variants[pos.Side(cube.FaceEast)] = PipeVariant
	w.variants[pos.Side(cube.FaceNorth)] = ChestVariant
	boxes = d.CollisionBoxes(w, pos, PipeVariant, everything, nil, nil)
	assert.Len(t, boxes, 3)

	bounds := d.BlockBounds(w, pos)
	assert.InDelta(t, pipeInset, bounds.Min().X(), 1e-6)
	assert.InDelta(t, 1-pipeInset, bounds.Max().Y(), 1e-6)
	assert.False(t, d.SideSolid(w, pos, cube.FaceUp))

	// Луч мимо сердцевины, но через угол блока, не попадает
	_, ok := d.CollisionRayTrace(w, pos, mgl32.Vec3{5.05, 10, 5.05}, mgl32.Vec3{5.05, 0, 5.05})
	assert.False(t, ok)
	_, ok = d.CollisionRayTrace(w, pos, mgl32.Vec3{5.5, 10, 5.5}, mgl32.Vec3{5.5, 0, 5.5})
	assert.True(t, ok)
}

func TestGlassPane(t *testing.T) {
	w := newMockWorld()
	pos := cube.Pos{0, 3, 0}
	w.variants[pos] = GlassPaneVariant
	d := newDispatcher(t)

	assert.Empty(t, d.Drops(w, pos, GlassPaneVariant, 3))
	assert.True(t, d.SideSolid(w, pos, cube.FaceUp))
	assert.False(t, d.SideSolid(w, pos, cube.FaceSouth))
	assert.Equal(t, block.ItemStack{Variant: GlassPaneVariant, Count: 1}, d.PickBlock(w, pos, trace.BBoxResult{}))

	side := cube.Box(0, 3, 0, 1, 4, 0.3)
	assert.Empty(t, d.CollisionBoxes(w, pos, GlassPaneVariant, side, nil, nil))
}

func TestSeedLayers(t *testing.T) {
	layers := SeedLayers()
	require.NotEmpty(t, layers)
	for i := 1; i < len(layers); i++ {
		assert.Greater(t, layers[i].Threshold, layers[i-1].Threshold, "пороги должны возрастать")
	}

	reg := block.NewRegistry(MinCapacity)
	require.NoError(t, RegisterAll(reg))
	for _, l := range layers {
		_, ok := reg.Lookup(l.Variant)
		assert.True(t, ok, "слой %v ссылается на незарегистрированный вариант", l)
	}
}
