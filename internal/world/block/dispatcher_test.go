package block

import (
	"testing"
	"time"

	"github.com/annel0/blockbase/internal/logging"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// mockWorld реализует WorldState для тестирования
type mockWorld struct {
	variants map[cube.Pos]VariantID
	removed  []cube.Pos
}

func newMockWorld() *mockWorld {
	return &mockWorld{variants: make(map[cube.Pos]VariantID)}
}

func (w *mockWorld) Variant(pos cube.Pos) (VariantID, bool) {
	id, ok := w.variants[pos]
	return id, ok
}

func (w *mockWorld) RemoveBlock(pos cube.Pos) bool {
	if _, ok := w.variants[pos]; !ok {
		return false
	}
	delete(w.variants, pos)
	w.removed = append(w.removed, pos)
	return true
}

// furnaceBehavior считает вызовы и переопределяет часть методов
type furnaceBehavior struct {
	Passthrough
	calls *int
}

func (f *furnaceBehavior) Hardness(Site) float32 {
	*f.calls++
	return 3.5
}

func (f *furnaceBehavior) LightValue(s Site) int {
	*f.calls++
	// умолчание плюс своя добавка
	return s.Default.LightValue(s) + 13
}

// countingDefault считает обращения к поведению по умолчанию
type countingDefault struct {
	*DefaultBehavior
	hardness int
}

func (c *countingDefault) Hardness(s Site) float32 {
	c.hardness++
	return c.DefaultBehavior.Hardness(s)
}

type testPlayer struct {
	harvest bool
	speed   float32
}

func (p testPlayer) Position() mgl32.Vec3 { return mgl32.Vec3{} }
func (p testPlayer) BBox() cube.BBox      { return cube.Box(0, 0, 0, 0.6, 1.8, 0.6) }
func (p testPlayer) Name() string         { return "steve" }
func (p testPlayer) CanHarvest() bool     { return p.harvest }
func (p testPlayer) DigSpeed() float32    { return p.speed }

type dispatcherFixture struct {
	d       *Dispatcher
	world   *mockWorld
	def     *countingDefault
	calls   *int
	metrics *Metrics
	logs    *observer.ObservedLogs
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	calls := 0
	reg := NewRegistry(4)
	reg.MustRegister(0, TypeOf("Furnace", func() Behavior { return &furnaceBehavior{calls: &calls} }), "tile.furnace")
	reg.MustRegister(1, BehaviorType{Name: "Broken"}, "tile.broken")
	reg.MustRegister(2, TypeOf("Panicky", func() Behavior { return &panickyBehavior{} }), "tile.panicky")
	reg.Seal()

	core, logs := observer.New(zap.DebugLevel)
	def := &countingDefault{DefaultBehavior: NewDefaultBehavior(DefaultProps())}
	metrics := NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(DispatcherConfig{
		Registry: reg,
		Default:  def,
		Logger:   logging.FromZap(zap.New(core)),
		Metrics:  metrics,
	})
	return &dispatcherFixture{d: d, world: newMockWorld(), def: def, calls: &calls, metrics: metrics, logs: logs}
}

type panickyBehavior struct{ Passthrough }

func (panickyBehavior) Hardness(Site) float32 { panic("сломалось") }

func TestDispatcher_Scenario(t *testing.T) {
	f := newDispatcherFixture(t)
	posA := cube.Pos{0, 64, 0}
	posB := cube.Pos{1, 64, 0}
	f.world.variants[posA] = 0
	f.world.variants[posB] = 9

	// Регистрация дубля не меняет первый дескриптор
	err := f.d.Registry().Register(0, stubType("Chest"), "tile.chest")
	assert.Error(t, err)
	desc, ok := f.d.Registry().Lookup(0)
	require.True(t, ok)
	assert.Equal(t, "Furnace", desc.Type.Name)
	_, ok = f.d.Registry().Lookup(4)
	assert.False(t, ok)

	b, ok := f.d.CreateInstance(f.world, posA)
	require.True(t, ok)
	assert.IsType(t, &furnaceBehavior{}, b)

	_, ok = f.d.CreateInstance(f.world, posB)
	assert.False(t, ok)

	assert.Equal(t, float32(3.5), f.d.Hardness(f.world, posA))
	assert.Equal(t, 1, *f.calls, "поведение варианта вызывается ровно один раз")
	assert.Equal(t, 0, f.def.hardness, "умолчание не вызывается при найденном поведении")

	assert.Equal(t, float32(1.0), f.d.Hardness(f.world, posB))
	assert.Equal(t, 1, f.def.hardness, "умолчание вызывается ровно один раз")
	assert.Equal(t, 1, *f.calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Calls().WithLabelValues(OpHardness, RouteBehavior)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Calls().WithLabelValues(OpHardness, RouteDefault)))
}

func TestDispatcher_ComposesWithDefault(t *testing.T) {
	f := newDispatcherFixture(t)
	pos := cube.Pos{3, 3, 3}
	f.world.variants[pos] = 0

	assert.Equal(t, 13, f.d.LightValue(f.world, pos))
	// Не переопределённые методы уходят в умолчание через Passthrough
	assert.Equal(t, 0xFFFFFF, f.d.ColorMultiplier(f.world, pos, 0))
	assert.Equal(t, []ItemStack{{Variant: 0, Count: 1}}, f.d.Drops(f.world, pos, 0, 0))
	assert.Same(t, f.def, f.d.Default())
}

func TestDispatcher_InstantiationFailureLoggedOnce(t *testing.T) {
	f := newDispatcherFixture(t)
	pos := cube.Pos{5, 5, 5}
	f.world.variants[pos] = 1

	for i := 0; i < 10; i++ {
		assert.Equal(t, float32(1.0), f.d.Hardness(f.world, pos))
	}

	assert.Equal(t, 10, f.def.hardness)
	errorsLogged := f.logs.FilterLevelExact(zap.ErrorLevel).Len()
	assert.Equal(t, 1, errorsLogged, "ошибка создания должна логироваться один раз")
	assert.Equal(t, 10.0, testutil.ToFloat64(f.metrics.Failures().WithLabelValues(FailureInstantiation)))

	f.d.ResetFailureLog()
	f.d.Hardness(f.world, pos)
	assert.Equal(t, 2, f.logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestDispatcher_InstantiationFailureWindow(t *testing.T) {
	reg := NewRegistry(2)
	reg.MustRegister(1, BehaviorType{Name: "Broken"}, "tile.broken")
	reg.Seal()

	core, logs := observer.New(zap.DebugLevel)
	metrics := NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(DispatcherConfig{
		Registry:      reg,
		Logger:        logging.FromZap(zap.New(core)),
		Metrics:       metrics,
		FailureWindow: time.Minute,
	})
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d.failures.now = func() time.Time { return clock }

	w := newMockWorld()
	pos := cube.Pos{6, 6, 6}
	w.variants[pos] = 1
	errorsLogged := func() int { return logs.FilterLevelExact(zap.ErrorLevel).Len() }

	d.Hardness(w, pos)
	clock = clock.Add(30 * time.Second)
	d.Hardness(w, pos)
	clock = clock.Add(29 * time.Second)
	d.Hardness(w, pos)
	assert.Equal(t, 1, errorsLogged(), "внутри окна ошибка логируется один раз")

	clock = clock.Add(time.Second)
	d.Hardness(w, pos)
	assert.Equal(t, 2, errorsLogged(), "после окна ошибка логируется снова")

	// Окно отсчитывается от последней записи
	clock = clock.Add(59 * time.Second)
	d.Hardness(w, pos)
	assert.Equal(t, 2, errorsLogged())

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.Failures().WithLabelValues(FailureInstantiation)),
		"метрика считает каждый вызов")
}

func TestDispatcher_UnregisteredVariantDiagnostic(t *testing.T) {
	f := newDispatcherFixture(t)
	pos := cube.Pos{0, 0, 0}
	f.world.variants[pos] = 3

	f.d.Hardness(f.world, pos)
	f.d.Hardness(f.world, pos)

	assert.Equal(t, 1, f.logs.FilterLevelExact(zap.WarnLevel).Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Failures().WithLabelValues(FailureUnregistered)))
}

func TestDispatcher_BehaviorPanicFallsBack(t *testing.T) {
	f := newDispatcherFixture(t)
	pos := cube.Pos{2, 2, 2}
	f.world.variants[pos] = 2

	var got float32
	assert.NotPanics(t, func() { got = f.d.Hardness(f.world, pos) })
	assert.Equal(t, float32(1.0), got)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failures().WithLabelValues(FailurePanic)))
}

func TestDispatcher_NeighborChangedRemovesOrphan(t *testing.T) {
	f := newDispatcherFixture(t)
	orphan := cube.Pos{0, 1, 0}
	furnace := cube.Pos{0, 2, 0}
	f.world.variants[orphan] = 3
	f.world.variants[furnace] = 0

	f.d.NeighborChanged(f.world, orphan, furnace)
	f.d.NeighborChanged(f.world, furnace, orphan)

	assert.Equal(t, []cube.Pos{orphan}, f.world.removed)
	_, ok := f.world.Variant(furnace)
	assert.True(t, ok, "блок с поведением не должен удаляться")
}

func TestDispatcher_DefaultsWithoutBehavior(t *testing.T) {
	f := newDispatcherFixture(t)
	pos := cube.Pos{10, 0, 10}
	f.world.variants[pos] = 3

	assert.False(t, f.d.Activated(f.world, pos, 3, testPlayer{}, cube.FaceUp, mgl32.Vec3{}))
	assert.False(t, f.d.SideSolid(f.world, pos, cube.FaceNorth))
	assert.Equal(t, float32(1), f.d.ExplosionResistance(f.world, pos, nil, Explosion{Size: 4}))
	assert.Equal(t, ItemStack{Variant: 3, Count: 1}, f.d.PickBlock(f.world, pos, trace.BBoxResult{}))
	assert.Equal(t, VariantID(3), f.d.DamageDropped(3))
	assert.False(t, f.d.DestroyEffects(f.world, pos, nil))
	assert.Equal(t, FullCube(), f.d.BlockBoundsForItem())

	// 1 / 1.0 / 100 без подходящего инструмента
	assert.InDelta(t, 0.01, f.d.PlayerRelativeHardness(f.world, pos, testPlayer{}), 1e-6)
	assert.InDelta(t, 2.0/30.0, f.d.PlayerRelativeHardness(f.world, pos, testPlayer{harvest: true, speed: 2}), 1e-6)

	assert.True(t, f.d.RemovedByPlayer(f.world, pos, testPlayer{}, true))
	_, ok := f.world.Variant(pos)
	assert.False(t, ok)
}

func TestDispatcher_CollisionBoxes(t *testing.T) {
	f := newDispatcherFixture(t)
	pos := cube.Pos{4, 10, 4}
	f.world.variants[pos] = 0

	hitMask := cube.Box(4.2, 10.5, 4.2, 4.8, 12, 4.8)
	boxes := f.d.CollisionBoxes(f.world, pos, 0, hitMask, nil, nil)
	require.Len(t, boxes, 1)
	assert.Equal(t, mgl32.Vec3{4, 10, 4}, boxes[0].Min())
	assert.Equal(t, mgl32.Vec3{5, 11, 5}, boxes[0].Max())

	missMask := cube.Box(10, 10, 10, 11, 11, 11)
	assert.Empty(t, f.d.CollisionBoxes(f.world, pos, 0, missMask, nil, nil))
}

func TestDispatcher_CollisionRayTrace(t *testing.T) {
	f := newDispatcherFixture(t)
	pos := cube.Pos{0, 0, 0}
	f.world.variants[pos] = 0

	_, ok := f.d.CollisionRayTrace(f.world, pos, mgl32.Vec3{0.5, 3, 0.5}, mgl32.Vec3{0.5, -2, 0.5})
	assert.True(t, ok, "луч сверху вниз через блок должен попасть")

	_, ok = f.d.CollisionRayTrace(f.world, pos, mgl32.Vec3{3, 3, 3}, mgl32.Vec3{4, 4, 4})
	assert.False(t, ok)
}

